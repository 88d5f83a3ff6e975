package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/infrastructure/cache"
	"github.com/outfitter/backend/internal/logger"
	"github.com/outfitter/backend/internal/metrics"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// OrchestratorConfig holds pipeline-wide settings
type OrchestratorConfig struct {
	MaxParallelCategories int
	SimplifiedTopN        int
	BudgetResortRatio     float64
	DefaultMaxBudget      float64
	CacheTTL              time.Duration
}

// Stages bundles the pipeline components the orchestrator drives
type Stages struct {
	Discovery *CategoryDiscovery
	Verifier  *BatchVerifier
	Validator *HeuristicValidator
	Scorer    *StyleScorer
	Composer  *OutfitComposer
}

// Orchestrator runs the category pipeline with caching
type Orchestrator struct {
	stages Stages
	cache  domain.CacheRepository
	config OrchestratorConfig
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator with dependencies
func NewOrchestrator(stages Stages, cacheRepo domain.CacheRepository, config OrchestratorConfig, log *zap.Logger) *Orchestrator {
	if config.MaxParallelCategories <= 0 {
		config.MaxParallelCategories = 4
	}
	if config.SimplifiedTopN <= 0 {
		config.SimplifiedTopN = 3
	}
	if config.BudgetResortRatio <= 0 {
		config.BudgetResortRatio = 1.1
	}
	if config.DefaultMaxBudget <= 0 {
		config.DefaultMaxBudget = 100000
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 6 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{stages: stages, cache: cacheRepo, config: config, logger: log.Named("orchestrator")}
}

// Search runs the pipeline for every requested category.
// Flow: validate -> check cache -> fan out per category -> aggregate -> cache -> return
func (o *Orchestrator) Search(ctx context.Context, sc *domain.SearchContext, mode domain.Mode) (*domain.SearchResult, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := logger.FromContextOr(ctx, o.logger).With(zap.String("pipeline_request_id", requestID), zap.String("mode", string(mode)))

	result, status, err := o.search(ctx, sc, mode, requestID, log)

	metrics.PipelineRequestsTotal.WithLabelValues(string(mode), status).Inc()
	metrics.PipelineDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("pipeline failed", zap.Error(err))
		return nil, err
	}

	log.Info("pipeline complete",
		zap.Bool("cached", result.Cached),
		zap.Int("items", result.TotalItems()),
		zap.Int("bundles", len(result.Bundles)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (o *Orchestrator) search(ctx context.Context, sc *domain.SearchContext, mode domain.Mode, requestID string, log *zap.Logger) (*domain.SearchResult, string, error) {
	if err := validateContext(sc, mode); err != nil {
		return nil, "error", err
	}

	key, err := generateCacheKey(sc, mode)
	if err != nil {
		return nil, "error", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	cached, err := o.getFromCache(ctx, key, log)
	if err != nil {
		return nil, "error", err
	}
	if cached != nil {
		cached.RequestID = requestID
		cached.Cached = true
		return cached, "cached", nil
	}

	categories := sc.Categories()
	results := make([]domain.CategoryResult, len(categories))
	candidates := make([][]domain.ValidatedItem, len(categories))

	var g errgroup.Group
	g.SetLimit(o.config.MaxParallelCategories)
	for i, category := range categories {
		g.Go(func() error {
			res, items, err := o.runCategory(ctx, category, sc, mode)
			if err != nil {
				return err
			}
			results[i] = res
			candidates[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "error", err
	}

	result := &domain.SearchResult{
		RequestID:  requestID,
		Mode:       mode,
		Categories: results,
		Bundles:    []domain.OutfitBundle{},
		Logs:       []string{},
	}

	switch mode {
	case domain.ModeSimplified:
		o.finishSimplified(result, candidates, sc)
	default:
		result.Bundles, result.BundleNote = o.stages.Composer.Compose(ctx, result.Categories, sc)
		if result.BundleNote != "" {
			result.Logs = append(result.Logs, result.BundleNote)
		}
	}

	for _, cat := range result.Categories {
		metrics.CategoryItemsTotal.WithLabelValues("returned").Add(float64(len(cat.Items)))
	}

	if result.TotalItems() > 0 {
		if err := o.setInCache(ctx, key, result); err != nil {
			// Log but don't fail if caching fails
			log.Warn("cache write failed", zap.Error(err))
		}
	} else {
		result.Logs = append(result.Logs, "no items found; result not cached")
	}

	return result, "ok", nil
}

// runCategory runs one category task. Stage failures degrade to an empty result;
// only query construction returns an error.
func (o *Orchestrator) runCategory(ctx context.Context, category string, sc *domain.SearchContext, mode domain.Mode) (domain.CategoryResult, []domain.ValidatedItem, error) {
	discovered, err := o.stages.Discovery.Discover(ctx, category, sc)
	if err != nil {
		return domain.CategoryResult{}, nil, err
	}

	res := domain.CategoryResult{
		Category:              category,
		Query:                 discovered.Query,
		Items:                 []domain.ScoredItem{},
		InitialCandidateCount: discovered.RawCount,
		Logs:                  append([]string{}, discovered.Logs...),
	}
	if len(discovered.Candidates) == 0 {
		return res, nil, nil
	}

	verified, logs := o.stages.Verifier.Verify(ctx, discovered.Candidates, category, sc)
	res.Logs = append(res.Logs, logs...)

	if mode == domain.ModeSimplified {
		kept, discarded := o.stages.Validator.Validate(verified, sc)
		res.Logs = append(res.Logs, discarded...)
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].ProviderRank < kept[j].ProviderRank
		})
		return res, kept, nil
	}

	scored, logs := o.stages.Scorer.Score(ctx, verified, sc)
	res.Logs = append(res.Logs, logs...)
	res.Items = scored
	return res, nil, nil
}

// finishSimplified runs the budget check over all validated items, then keeps the top N per category.
func (o *Orchestrator) finishSimplified(result *domain.SearchResult, validated [][]domain.ValidatedItem, sc *domain.SearchContext) {
	maxBudget := parseMaxBudget(sc.Preferences.PriceRange, o.config.DefaultMaxBudget)
	cheapest := cheapestTotal(validated)
	resort := cheapest > maxBudget*o.config.BudgetResortRatio

	result.Budget = &domain.BudgetSummary{
		MaxBudget:     maxBudget,
		CheapestTotal: cheapest,
		Feasible:      cheapest <= maxBudget,
		Resorted:      resort,
	}
	if resort {
		result.Logs = append(result.Logs, fmt.Sprintf(
			"cheapest combination %.2f exceeds %.0f%% of budget %.2f; items re-sorted by price",
			cheapest, o.config.BudgetResortRatio*100, maxBudget))
	}

	for i := range result.Categories {
		items := validated[i]
		if resort {
			sortByPrice(items)
		}
		if len(items) > o.config.SimplifiedTopN {
			items = items[:o.config.SimplifiedTopN]
		}
		scored := make([]domain.ScoredItem, len(items))
		for j, item := range items {
			scored[j] = domain.ScoredItem{ValidatedItem: item}
		}
		result.Categories[i].Items = scored
	}
}

// cheapestTotal sums the minimum known price of each category that has one.
func cheapestTotal(categories [][]domain.ValidatedItem) float64 {
	total := 0.0
	for _, items := range categories {
		lowest, found := 0.0, false
		for _, item := range items {
			if p, ok := parsePrice(item.Price); ok && (!found || p < lowest) {
				lowest, found = p, true
			}
		}
		if found {
			total += lowest
		}
	}
	return total
}

// sortByPrice orders items ascending by price with unknown prices last.
func sortByPrice(items []domain.ValidatedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, iok := parsePrice(items[i].Price)
		pj, jok := parsePrice(items[j].Price)
		if iok != jok {
			return iok
		}
		return iok && pi < pj
	})
}

func validateContext(sc *domain.SearchContext, mode domain.Mode) error {
	if sc == nil {
		return fmt.Errorf("%w: missing search context", domain.ErrInvalidRequest)
	}
	if mode != domain.ModeFull && mode != domain.ModeSimplified {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidRequest, mode)
	}
	categories := sc.Categories()
	if len(categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", domain.ErrInvalidRequest)
	}
	for _, c := range categories {
		if c == "" {
			return fmt.Errorf("%w: empty category", domain.ErrInvalidRequest)
		}
	}
	return nil
}

type cacheKeyInput struct {
	Mode            domain.Mode          `json:"mode"`
	Gender          string               `json:"gender"`
	Size            string               `json:"size"`
	Style           string               `json:"style"`
	Color           string               `json:"color"`
	PriceRange      string               `json:"priceRange"`
	Occasion        string               `json:"occasion"`
	Categories      []string             `json:"categories"`
	Bracket         *domain.StyleBracket `json:"bracket,omitempty"`
	ReferenceImages []string             `json:"referenceImages,omitempty"`
	CategoryQueries map[string]string    `json:"categoryQueries,omitempty"`
}

// generateCacheKey hashes the normalized, semantically relevant subset of the request.
// Large inputs such as data-URI images are signed before hashing.
func generateCacheKey(sc *domain.SearchContext, mode domain.Mode) (string, error) {
	p := sc.Preferences
	input := cacheKeyInput{
		Mode:       mode,
		Gender:     normalizeForCacheKey(sc.Gender),
		Size:       normalizeForCacheKey(sc.Size),
		Style:      normalizeForCacheKey(p.Style),
		Color:      normalizeForCacheKey(p.Color),
		PriceRange: strings.TrimSpace(p.PriceRange),
		Occasion:   normalizeForCacheKey(p.Occasion),
		Bracket:    sc.StyleBracket,
	}
	for _, c := range sc.Categories() {
		input.Categories = append(input.Categories, normalizeForCacheKey(c))
	}
	for _, img := range sc.ReferenceImages {
		input.ReferenceImages = append(input.ReferenceImages, cache.Sign(img))
	}
	if len(sc.CategoryQueries) > 0 {
		input.CategoryQueries = make(map[string]string, len(sc.CategoryQueries))
		for k, v := range sc.CategoryQueries {
			input.CategoryQueries[normalizeForCacheKey(k)] = normalizeForCacheKey(v)
		}
	}
	return cache.HashKey("pipeline", input)
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// getFromCache returns nil on a miss. Any other cache failure is fatal for the request.
func (o *Orchestrator) getFromCache(ctx context.Context, key string, log *zap.Logger) (*domain.SearchResult, error) {
	if o.cache == nil {
		return nil, nil
	}

	value, err := o.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			metrics.CacheTotal.WithLabelValues("miss").Inc()
			return nil, nil
		}
		metrics.CacheTotal.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrCacheUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	var result domain.SearchResult
	if err := json.Unmarshal(value, &result); err != nil {
		log.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	metrics.CacheTotal.WithLabelValues("hit").Inc()
	return &result, nil
}

// setInCache stores the result once under key
func (o *Orchestrator) setInCache(ctx context.Context, key string, result *domain.SearchResult) error {
	if o.cache == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return o.cache.Set(ctx, key, payload, o.config.CacheTTL)
}
