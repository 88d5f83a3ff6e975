package search

import (
	"strings"

	"github.com/outfitter/backend/internal/domain"
)

// shoppingResponse is the subset of the provider payload we consume
type shoppingResponse struct {
	ShoppingResults []shoppingResult `json:"shopping_results"`
	Error           string           `json:"error,omitempty"`
}

type shoppingResult struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	ProductLink string `json:"product_link"`
	Source      string `json:"source"`
	Snippet     string `json:"snippet"`
	Price       string `json:"price"`
	Thumbnail   string `json:"thumbnail"`
}

// mapShoppingResults converts provider results to domain items, preserving provider order.
// The merchant link is preferred over the provider's product page.
func mapShoppingResults(results []shoppingResult) []domain.SearchResultItem {
	items := make([]domain.SearchResultItem, 0, len(results))
	for _, r := range results {
		link := strings.TrimSpace(r.Link)
		if link == "" {
			link = strings.TrimSpace(r.ProductLink)
		}
		items = append(items, domain.SearchResultItem{
			Title:     strings.TrimSpace(r.Title),
			Link:      link,
			Source:    strings.TrimSpace(r.Source),
			Snippet:   strings.TrimSpace(r.Snippet),
			Price:     strings.TrimSpace(r.Price),
			Thumbnail: r.Thumbnail,
		})
	}
	return items
}
