package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapShoppingResults(t *testing.T) {
	results := []shoppingResult{
		{Title: "  Linen Shirt ", Link: " https://a.example.com/shirt ", Source: "A Store", Price: "$30", Thumbnail: "https://img/1"},
		{Title: "Oxford Shirt", ProductLink: "https://provider.example.com/p/9"},
		{Title: "No Link Shirt"},
	}

	items := mapShoppingResults(results)

	assert.Len(t, items, 3)
	assert.Equal(t, "Linen Shirt", items[0].Title)
	assert.Equal(t, "https://a.example.com/shirt", items[0].Link)
	assert.Equal(t, "A Store", items[0].Source)
	assert.Equal(t, "https://img/1", items[0].Thumbnail)
	assert.Equal(t, "https://provider.example.com/p/9", items[1].Link)
	assert.Empty(t, items[2].Link)
}

func TestMapShoppingResults_Empty(t *testing.T) {
	items := mapShoppingResults(nil)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
