package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitter/backend/internal/domain"
)

var listingLine = regexp.MustCompile(`(?m)^\[(\d+)\] (.+)$`)

type testVerdict struct {
	valid  bool
	status string
	score  any // nil omits matchScore
	price  any
}

// verdictsByName answers verify calls by looking up each listed candidate by name.
// Names missing from the map get no verdict.
func verdictsByName(verdicts map[string]testVerdict) func(domain.GenerationRequest) (string, error) {
	return func(req domain.GenerationRequest) (string, error) {
		results := []map[string]any{}
		for _, m := range listingLine.FindAllStringSubmatch(req.Instruction, -1) {
			v, ok := verdicts[m[2]]
			if !ok {
				continue
			}
			idx, _ := strconv.Atoi(m[1])
			r := map[string]any{
				"index":            idx,
				"isValidPage":      v.valid,
				"detectedCategory": "dress",
				"stockStatus":      v.status,
				"reason":           "checked " + m[2],
			}
			if v.score != nil {
				r["matchScore"] = v.score
			}
			if v.price != nil {
				r["price"] = v.price
			}
			results = append(results, r)
		}
		body, _ := json.Marshal(map[string]any{"results": results})
		return "```json\n" + string(body) + "\n```", nil
	}
}

func candidate(name, link string, rank int) domain.Candidate {
	return domain.Candidate{
		Name:         name,
		Link:         link,
		Snippet:      name + " snippet",
		Source:       "Shop",
		Provenance:   domain.ProvenanceSearchProvider,
		ProviderRank: rank,
	}
}

func newTestVerifier(fetcher domain.ContentFetcher, gen domain.Generator) *BatchVerifier {
	return NewBatchVerifier(fetcher, gen, BatchVerifierConfig{BatchSize: 5, MaxItems: 7, ContentSampleChars: 200}, nil)
}

func TestBatchVerifier_PreFilterSkipsRemoteCalls(t *testing.T) {
	gen := NewMockGenerator().On("verify", verdictsByName(nil))
	fetcher := NewMockContentFetcher()
	v := newTestVerifier(fetcher, gen)

	candidates := []domain.Candidate{
		candidate("No Scheme", "www.shop.com/dress", 1),
		candidate("Relative", "/dress/1", 2),
		candidate("Ftp", "ftp://shop.com/dress", 3),
		candidate("Pin", "https://www.pinterest.com/pin/1", 4),
		candidate("Insta", "https://instagram.com/p/1", 5),
	}

	items, logs := v.Verify(t.Context(), candidates, "Dress", &domain.SearchContext{})
	assert.Empty(t, items)
	assert.Len(t, logs, 5)
	assert.Empty(t, gen.Calls("verify"), "no classification call for filtered candidates")
	assert.Empty(t, fetcher.fetched, "no fetch for filtered candidates")
}

func TestBatchVerifier_AcceptPolicy(t *testing.T) {
	gen := NewMockGenerator().On("verify", verdictsByName(map[string]testVerdict{
		"Available":   {valid: true, status: "LIKELY_AVAILABLE", score: 90},
		"Uncertain":   {valid: true, status: "UNCERTAIN", score: 70},
		"Unavailable": {valid: true, status: "UNAVAILABLE", score: 99},
		"Invalid":     {valid: false, status: "LIKELY_AVAILABLE", score: 95},
		"NoScore":     {valid: true, status: "likely_available"},
	}))
	v := newTestVerifier(NewMockContentFetcher(), gen)

	candidates := []domain.Candidate{
		candidate("Available", "https://shop.com/a", 1),
		candidate("Uncertain", "https://shop.com/b", 2),
		candidate("Unavailable", "https://shop.com/c", 3),
		candidate("Invalid", "https://shop.com/d", 4),
		candidate("NoScore", "https://shop.com/e", 5),
		candidate("Silent", "https://shop.com/f", 6),
	}

	items, logs := v.Verify(t.Context(), candidates, "Dress", &domain.SearchContext{})
	require.Len(t, items, 3)

	assert.Equal(t, "Available", items[0].Name)
	assert.Equal(t, domain.StockAvailable, items[0].StockStatus)
	assert.Equal(t, domain.LabelInStock, items[0].Availability)
	assert.Equal(t, "dress_1", items[0].ID)

	assert.Equal(t, "Uncertain", items[1].Name)
	assert.Equal(t, domain.StockUncertain, items[1].StockStatus)
	assert.Equal(t, domain.LabelRisk, items[1].Availability)

	assert.Equal(t, "NoScore", items[2].Name)
	assert.Equal(t, domain.DefaultMatchScore, items[2].MatchScore)
	assert.Equal(t, "dress_3", items[2].ID)

	for _, item := range items {
		assert.NotEqual(t, domain.StockUnavailable, item.StockStatus)
		assert.Equal(t, "https://www.google.com/search?tbm=shop&q=Shop+"+item.Name, item.FallbackLink)
	}
	assert.Contains(t, logs, `rejected "Unavailable": unavailable (checked Unavailable)`)
	assert.Contains(t, logs, `rejected "Invalid": not a valid product page (checked Invalid)`)
	assert.Contains(t, logs, `rejected "Silent": no verdict returned`)
}

func TestBatchVerifier_BatchesRunSequentiallyAndFailIndependently(t *testing.T) {
	calls := 0
	gen := NewMockGenerator().On("verify", func(req domain.GenerationRequest) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("%w: exhausted", domain.ErrRemoteFailure)
		}
		return verdictsByName(map[string]testVerdict{
			"Item 6": {valid: true, status: "UNCERTAIN", score: 60},
			"Item 7": {valid: true, status: "LIKELY_AVAILABLE", score: 80},
		})(req)
	})
	v := newTestVerifier(NewMockContentFetcher(), gen)

	var candidates []domain.Candidate
	for i := 1; i <= 7; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("Item %d", i), fmt.Sprintf("https://shop.com/%d", i), i))
	}

	items, logs := v.Verify(t.Context(), candidates, "Dress", &domain.SearchContext{})
	assert.Len(t, gen.Calls("verify"), 2)
	require.Len(t, items, 2)
	assert.Equal(t, "Item 7", items[0].Name)
	assert.Equal(t, "Item 6", items[1].Name)
	assert.Contains(t, logs[0], "batch 1 discarded (5 candidates)")
}

func TestBatchVerifier_MalformedResponseDiscardsBatch(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"not json", "I could not classify these"},
		{"unknown status", `{"results":[{"index":0,"isValidPage":true,"stockStatus":"SOLD_OUT"}]}`},
		{"score out of range", `{"results":[{"index":0,"isValidPage":true,"stockStatus":"UNCERTAIN","matchScore":140}]}`},
		{"missing validity flag", `{"results":[{"index":0,"stockStatus":"UNCERTAIN"}]}`},
		{"index out of range", `{"results":[{"index":9,"isValidPage":true,"stockStatus":"UNCERTAIN"}]}`},
		{"missing results", `{"verdicts":[]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewMockGenerator().On("verify", func(domain.GenerationRequest) (string, error) {
				return tc.body, nil
			})
			v := newTestVerifier(NewMockContentFetcher(), gen)

			items, logs := v.Verify(t.Context(), []domain.Candidate{candidate("A", "https://shop.com/a", 1)}, "Dress", &domain.SearchContext{})
			assert.Empty(t, items)
			require.NotEmpty(t, logs)
			assert.Contains(t, logs[len(logs)-1], "batch 1 discarded")
		})
	}
}

func TestBatchVerifier_ContentFallsBackToSnippet(t *testing.T) {
	gen := NewMockGenerator().On("verify", verdictsByName(map[string]testVerdict{
		"Live":    {valid: true, status: "UNCERTAIN"},
		"Snippet": {valid: true, status: "UNCERTAIN"},
	}))
	fetcher := NewMockContentFetcher()
	fetcher.pages["https://shop.com/live"] = "Live page text in stock"
	v := newTestVerifier(fetcher, gen)

	items, _ := v.Verify(t.Context(), []domain.Candidate{
		candidate("Live", "https://shop.com/live", 1),
		candidate("Snippet", "https://shop.com/gone", 2),
	}, "Dress", &domain.SearchContext{})

	require.Len(t, items, 2)
	assert.Equal(t, domain.ContentLive, items[0].ContentSource)
	assert.Equal(t, "Live page text in stock", items[0].Content)
	assert.Equal(t, domain.ContentSnippet, items[1].ContentSource)
	assert.Equal(t, "Snippet snippet", items[1].Content)

	instruction := gen.Calls("verify")[0].Instruction
	assert.Contains(t, instruction, "Content (live): Live page text in stock")
	assert.Contains(t, instruction, "Content (snippet): Snippet snippet")
}

func TestBatchVerifier_PriceFromVerdict(t *testing.T) {
	gen := NewMockGenerator().On("verify", verdictsByName(map[string]testVerdict{
		"A": {valid: true, status: "UNCERTAIN", price: 49.5},
	}))
	v := newTestVerifier(NewMockContentFetcher(), gen)

	items, _ := v.Verify(t.Context(), []domain.Candidate{candidate("A", "https://shop.com/a", 1)}, "Dress", &domain.SearchContext{})
	require.Len(t, items, 1)
	assert.Equal(t, "49.5", items[0].Price)
}

func TestBatchVerifier_RankAndTruncate(t *testing.T) {
	verdicts := map[string]testVerdict{}
	var candidates []domain.Candidate
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("Item %d", i)
		verdicts[name] = testVerdict{valid: true, status: "UNCERTAIN", score: i * 10 % 70}
		candidates = append(candidates, candidate(name, fmt.Sprintf("https://shop.com/%d", i), i))
	}
	gen := NewMockGenerator().On("verify", verdictsByName(verdicts))

	run := func() []domain.ValidatedItem {
		items, _ := newTestVerifier(NewMockContentFetcher(), gen).Verify(t.Context(), candidates, "Evening Dress", &domain.SearchContext{})
		return items
	}

	first := run()
	require.Len(t, first, 7)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].MatchScore, first[i].MatchScore)
	}
	assert.Equal(t, "evening-dress_1", first[0].ID)
	assert.Equal(t, "evening-dress_7", first[6].ID)

	assert.Equal(t, "Item 6", first[0].Name)
	// equal scores keep provider order
	assert.Equal(t, "Item 3", first[3].Name)
	assert.Equal(t, "Item 10", first[4].Name)

	second := run()
	assert.Equal(t, first, second)
}

func TestDiscoverThenVerify_RepeatedRunsMatch(t *testing.T) {
	provider := NewMockSearchProvider()
	fetcher := NewMockContentFetcher()
	verdicts := map[string]testVerdict{}
	var listings []domain.SearchResultItem
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("Dress %d", i)
		link := fmt.Sprintf("https://shop.com/dress-%d", i)
		listings = append(listings, domain.SearchResultItem{Title: name, Link: link, Source: "Shop", Price: "$50"})
		// three score levels so most items tie with others
		verdicts[name] = testVerdict{valid: true, status: "LIKELY_AVAILABLE", score: 60 + (i%3)*10}
		if i%2 == 0 {
			fetcher.pages[link] = name + " page"
		}
	}
	provider.results["Dress"] = listings
	gen := NewMockGenerator().On("verify", verdictsByName(verdicts))

	discovery := NewCategoryDiscovery(provider, nil)
	verifier := newTestVerifier(fetcher, gen)
	sc := &domain.SearchContext{Gender: "female", Preferences: domain.Preferences{Color: "Black"}}

	run := func() (string, []domain.ValidatedItem) {
		found, err := discovery.Discover(t.Context(), "Dress", sc)
		require.NoError(t, err)
		items, _ := verifier.Verify(t.Context(), found.Candidates, "Dress", sc)
		return found.Query, items
	}

	firstQuery, first := run()
	secondQuery, second := run()

	assert.Equal(t, firstQuery, secondQuery)
	require.Len(t, first, 7)
	assert.Equal(t, first, second)

	var names, ids []string
	for _, item := range first {
		names = append(names, item.Name)
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"Dress 2", "Dress 5", "Dress 8", "Dress 11", "Dress 1", "Dress 4", "Dress 7"}, names)
	assert.Equal(t, []string{"dress_1", "dress_2", "dress_3", "dress_4", "dress_5", "dress_6", "dress_7"}, ids)
	assert.Len(t, gen.Calls("verify"), 6)
}
