package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

// DiscoveryResult is the outcome of one category search
type DiscoveryResult struct {
	Candidates []domain.Candidate
	Query      string
	RawCount   int // results returned by the provider before link filtering
	Logs       []string
}

// CategoryDiscovery searches the provider for one category at a time
type CategoryDiscovery struct {
	provider     domain.SearchProvider
	preprocessor *QueryPreprocessor
	logger       *zap.Logger
}

// NewCategoryDiscovery creates a discovery stage backed by provider
func NewCategoryDiscovery(provider domain.SearchProvider, logger *zap.Logger) *CategoryDiscovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryDiscovery{
		provider:     provider,
		preprocessor: NewQueryPreprocessor(),
		logger:       logger.Named("discovery"),
	}
}

// Discover builds the category query and runs it against the provider.
// Only query construction can fail; provider problems yield an empty result with a diagnostic.
func (d *CategoryDiscovery) Discover(ctx context.Context, category string, sc *domain.SearchContext) (*DiscoveryResult, error) {
	query, err := d.preprocessor.BuildQuery(category, sc)
	if err != nil {
		return nil, err
	}

	result := &DiscoveryResult{Query: query, Candidates: []domain.Candidate{}}
	log := d.logger.With(zap.String("category", category), zap.String("query", query))

	items, err := d.provider.Search(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredentials) {
			result.Logs = append(result.Logs, fmt.Sprintf("search provider credentials missing; %q skipped", category))
			log.Warn("search skipped, no credentials")
		} else {
			result.Logs = append(result.Logs, fmt.Sprintf("search provider failed for %q: %v", category, err))
			log.Warn("search failed", zap.Error(err))
		}
		return result, nil
	}

	result.RawCount = len(items)
	if len(items) == 0 {
		result.Logs = append(result.Logs, fmt.Sprintf("zero results from search provider for query %q", query))
		log.Info("zero results")
		return result, nil
	}

	dropped := 0
	for i, item := range items {
		link := strings.TrimSpace(item.Link)
		if !hasRecognizedScheme(link) {
			dropped++
			continue
		}
		result.Candidates = append(result.Candidates, domain.Candidate{
			Name:         strings.TrimSpace(item.Title),
			Link:         link,
			Snippet:      item.Snippet,
			Source:       item.Source,
			Price:        item.Price,
			Image:        item.Thumbnail,
			Provenance:   domain.ProvenanceSearchProvider,
			ProviderRank: i + 1,
		})
	}

	if dropped > 0 {
		result.Logs = append(result.Logs, fmt.Sprintf("dropped %d results without a usable link", dropped))
	}
	result.Logs = append(result.Logs, fmt.Sprintf("discovered %d candidates for %q", len(result.Candidates), category))
	metrics.CategoryItemsTotal.WithLabelValues("discovered").Add(float64(len(result.Candidates)))
	log.Debug("discovery complete", zap.Int("raw", len(items)), zap.Int("candidates", len(result.Candidates)))

	return result, nil
}
