package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

const verifySchema = `{"results":[{"index":0,"isValidPage":true,"detectedCategory":"string","stockStatus":"UNAVAILABLE|LIKELY_AVAILABLE|UNCERTAIN","price":"string","matchScore":0,"reason":"string"}]}`

// BatchVerifierConfig holds batching and truncation limits
type BatchVerifierConfig struct {
	BatchSize          int
	MaxItems           int
	ContentSampleChars int
}

// BatchVerifier enriches candidates with page content and classifies them in batches
type BatchVerifier struct {
	fetcher   domain.ContentFetcher
	generator domain.Generator
	config    BatchVerifierConfig
	logger    *zap.Logger
}

// NewBatchVerifier creates a verifier. generator should already be wrapped in a RetryingInvoker.
func NewBatchVerifier(fetcher domain.ContentFetcher, generator domain.Generator, config BatchVerifierConfig, logger *zap.Logger) *BatchVerifier {
	if config.BatchSize <= 0 {
		config.BatchSize = 5
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 7
	}
	if config.ContentSampleChars <= 0 {
		config.ContentSampleChars = 1500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchVerifier{
		fetcher:   fetcher,
		generator: generator,
		config:    config,
		logger:    logger.Named("verifier"),
	}
}

type verdict struct {
	Index            *int                `json:"index"`
	IsValidPage      *bool               `json:"isValidPage"`
	DetectedCategory string              `json:"detectedCategory"`
	StockStatus      domain.StockVerdict `json:"stockStatus"`
	Price            looseText           `json:"price"`
	MatchScore       *score              `json:"matchScore"`
	Reason           string              `json:"reason"`
}

type verdictResponse struct {
	Results []verdict `json:"results"`
}

// Verify pre-filters, enriches and classifies candidates, keeping the lenient
// accept policy: valid and not UNAVAILABLE. Output is ranked by matchScore and truncated.
func (v *BatchVerifier) Verify(ctx context.Context, candidates []domain.Candidate, category string, sc *domain.SearchContext) ([]domain.ValidatedItem, []string) {
	var logs []string
	log := v.logger.With(zap.String("category", category))

	eligible := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		switch {
		case !hasRecognizedScheme(c.Link):
			logs = append(logs, fmt.Sprintf("skipped %q: link %q has no recognized scheme", c.Name, c.Link))
		case hostBlacklisted(c.Link, socialBlacklist):
			logs = append(logs, fmt.Sprintf("skipped %q: social link %q", c.Name, c.Link))
		default:
			eligible = append(eligible, c)
		}
	}

	kept := make([]domain.ValidatedItem, 0, len(eligible))
	for start := 0; start < len(eligible); start += v.config.BatchSize {
		end := min(start+v.config.BatchSize, len(eligible))
		batchNo := start/v.config.BatchSize + 1

		enriched := v.enrich(ctx, eligible[start:end])
		items, batchLogs, err := v.classify(ctx, enriched, category, sc)
		logs = append(logs, batchLogs...)
		if err != nil {
			logs = append(logs, fmt.Sprintf("batch %d discarded (%d candidates): %v", batchNo, len(enriched), err))
			log.Warn("batch discarded", zap.Int("batch", batchNo), zap.Error(err))
			continue
		}
		kept = append(kept, items...)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].MatchScore > kept[j].MatchScore
	})
	if len(kept) > v.config.MaxItems {
		logs = append(logs, fmt.Sprintf("truncated %d verified items to %d", len(kept), v.config.MaxItems))
		kept = kept[:v.config.MaxItems]
	}

	prefix := idPrefix(category)
	for i := range kept {
		kept[i].ID = fmt.Sprintf("%s_%d", prefix, i+1)
	}

	metrics.CategoryItemsTotal.WithLabelValues("verified").Add(float64(len(kept)))
	log.Debug("verification complete", zap.Int("eligible", len(eligible)), zap.Int("kept", len(kept)))
	return kept, logs
}

// enrich fetches page content concurrently. A failed fetch falls back to the snippet.
func (v *BatchVerifier) enrich(ctx context.Context, batch []domain.Candidate) []domain.EnrichedCandidate {
	out := make([]domain.EnrichedCandidate, len(batch))

	var wg sync.WaitGroup
	for i, c := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = domain.EnrichedCandidate{Candidate: c, Content: c.Snippet, ContentSource: domain.ContentSnippet}
			if v.fetcher == nil {
				return
			}
			text, err := v.fetcher.Fetch(ctx, c.Link)
			if err != nil {
				v.logger.Debug("fetch failed, using snippet", zap.String("link", c.Link), zap.Error(err))
				return
			}
			out[i].Content = text
			out[i].ContentSource = domain.ContentLive
		}()
	}
	wg.Wait()

	return out
}

func (v *BatchVerifier) classify(ctx context.Context, batch []domain.EnrichedCandidate, category string, sc *domain.SearchContext) ([]domain.ValidatedItem, []string, error) {
	raw, err := v.generator.Generate(ctx, domain.GenerationRequest{
		Operation:   "verify",
		Instruction: v.buildInstruction(batch, category, sc),
		Schema:      verifySchema,
	})
	if err != nil {
		return nil, nil, err
	}

	var resp verdictResponse
	if err := decodeStructured(raw, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Results == nil {
		return nil, nil, fmt.Errorf("%w: missing results", domain.ErrParse)
	}

	byIndex := make(map[int]verdict, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index == nil || r.IsValidPage == nil || r.StockStatus == "" {
			return nil, nil, fmt.Errorf("%w: verdict missing index, isValidPage or stockStatus", domain.ErrParse)
		}
		if *r.Index < 0 || *r.Index >= len(batch) {
			return nil, nil, fmt.Errorf("%w: verdict index %d out of range", domain.ErrParse, *r.Index)
		}
		if _, dup := byIndex[*r.Index]; !dup {
			byIndex[*r.Index] = r
		}
	}

	var logs []string
	items := make([]domain.ValidatedItem, 0, len(batch))
	for i, c := range batch {
		r, ok := byIndex[i]
		switch {
		case !ok:
			logs = append(logs, fmt.Sprintf("rejected %q: no verdict returned", c.Name))
			continue
		case !*r.IsValidPage:
			logs = append(logs, fmt.Sprintf("rejected %q: not a valid product page (%s)", c.Name, r.Reason))
			continue
		case r.StockStatus == domain.VerdictUnavailable:
			logs = append(logs, fmt.Sprintf("rejected %q: unavailable (%s)", c.Name, r.Reason))
			continue
		}

		item := domain.ValidatedItem{
			EnrichedCandidate: c,
			Category:          category,
			StockStatus:       domain.StockStatusFromVerdict(r.StockStatus),
			ResolvedCategory:  strings.TrimSpace(r.DetectedCategory),
			MatchScore:        domain.DefaultMatchScore,
			Rationale:         r.Reason,
			FallbackLink:      fallbackLink(c.Source, c.Name),
		}
		item.Availability = item.StockStatus.Label()
		if r.MatchScore != nil {
			item.MatchScore = int(*r.MatchScore)
		}
		if item.Price == "" {
			item.Price = string(r.Price)
		}
		items = append(items, item)
	}

	return items, logs, nil
}

func (v *BatchVerifier) buildInstruction(batch []domain.EnrichedCandidate, category string, sc *domain.SearchContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You verify shopping listings for the category %q.", category)
	if sc.Gender != "" {
		fmt.Fprintf(&b, " Shopper gender: %s.", sc.Gender)
	}
	if sc.Size != "" {
		fmt.Fprintf(&b, " Shopper size: %s.", sc.Size)
	}
	b.WriteString("\nFor each listing decide whether the page is a real product page for this category, ")
	b.WriteString("its stock status (UNAVAILABLE only when the page explicitly says sold out or unavailable, ")
	b.WriteString("LIKELY_AVAILABLE when it can be bought, UNCERTAIN otherwise), the price shown, ")
	b.WriteString("a 0-100 match score and a short reason. Return one result per listing using its index.\n")

	for i, c := range batch {
		fmt.Fprintf(&b, "\n[%d] %s\nStore: %s\nListed price: %s\nContent (%s): %s\n",
			i, c.Name, c.Source, c.Price, c.ContentSource, sample(c.Content, v.config.ContentSampleChars))
	}
	return b.String()
}

// idPrefix turns a category name into an identifier-safe prefix
func idPrefix(category string) string {
	return strings.Join(strings.Fields(strings.ToLower(category)), "-")
}

func sample(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
