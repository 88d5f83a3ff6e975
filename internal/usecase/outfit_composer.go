package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
)

const composeSchema = `{"bundles":[{"name":"string","components":[{"id":"string","category":"string","name":"string","link":"string","price":"string"}],"totalPrice":0,"rationale":"string"}]}`

// minComposeItems is the smallest inventory worth composing
const minComposeItems = 2

// OutfitComposerConfig holds composition limits
type OutfitComposerConfig struct {
	BundleCount      int
	DefaultMaxBudget float64
}

// OutfitComposer assembles multi-category bundles remotely and reconciles them locally
type OutfitComposer struct {
	generator domain.Generator
	config    OutfitComposerConfig
	logger    *zap.Logger
}

// NewOutfitComposer creates a composer
func NewOutfitComposer(generator domain.Generator, config OutfitComposerConfig, logger *zap.Logger) *OutfitComposer {
	if config.BundleCount <= 0 {
		config.BundleCount = 3
	}
	if config.DefaultMaxBudget <= 0 {
		config.DefaultMaxBudget = 100000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutfitComposer{generator: generator, config: config, logger: logger.Named("composer")}
}

type composedComponent struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Name     string    `json:"name"`
	Link     string    `json:"link"`
	Price    looseText `json:"price"`
}

type composedBundle struct {
	Name       string              `json:"name"`
	Components []composedComponent `json:"components"`
	TotalPrice looseText           `json:"totalPrice"`
	Rationale  string              `json:"rationale"`
}

type composeResponse struct {
	Bundles []composedBundle `json:"bundles"`
}

// Compose requests bundles for the scored inventory and reconciles their links.
// It returns no bundles and an explanatory note when composition is not possible.
func (c *OutfitComposer) Compose(ctx context.Context, categories []domain.CategoryResult, sc *domain.SearchContext) ([]domain.OutfitBundle, string) {
	inventory := flattenInventory(categories)
	if len(inventory) < minComposeItems {
		return []domain.OutfitBundle{}, fmt.Sprintf("outfit composition needs at least %d items, found %d", minComposeItems, len(inventory))
	}

	want := bundleTarget(categories, c.config.BundleCount)
	maxBudget := parseMaxBudget(sc.Preferences.PriceRange, c.config.DefaultMaxBudget)

	raw, err := c.generator.Generate(ctx, domain.GenerationRequest{
		Operation:   "compose",
		Instruction: c.buildInstruction(categories, want, maxBudget, sc),
		Schema:      composeSchema,
	})
	if err != nil {
		c.logger.Warn("composition failed", zap.Error(err))
		return []domain.OutfitBundle{}, fmt.Sprintf("outfit composition failed: %v", err)
	}

	var resp composeResponse
	if err := decodeStructured(raw, &resp); err != nil {
		c.logger.Warn("composition response rejected", zap.Error(err))
		return []domain.OutfitBundle{}, fmt.Sprintf("outfit composition failed: %v", err)
	}

	bundles := make([]domain.OutfitBundle, 0, want)
	for _, b := range resp.Bundles {
		if len(bundles) == want {
			break
		}
		if len(b.Components) == 0 {
			continue
		}
		bundle := domain.OutfitBundle{Name: b.Name, Rationale: b.Rationale}
		if total, ok := parsePrice(string(b.TotalPrice)); ok {
			bundle.TotalPrice = total
		}
		for _, comp := range b.Components {
			bundle.Components = append(bundle.Components, domain.BundleComponent{
				ID:       comp.ID,
				Category: comp.Category,
				Name:     comp.Name,
				Link:     comp.Link,
				Price:    string(comp.Price),
			})
		}
		bundles = append(bundles, bundle)
	}

	bundles = ReconcileBundles(bundles, inventory)
	if len(bundles) == 0 {
		return bundles, "outfit composer returned no usable bundles"
	}
	return bundles, ""
}

func (c *OutfitComposer) buildInstruction(categories []domain.CategoryResult, want int, maxBudget float64, sc *domain.SearchContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compose exactly %d distinct outfits. Each outfit uses exactly one item from every category listed below, ", want)
	fmt.Fprintf(&b, "and its total price must not exceed %.2f. Prefer items with a higher visualMatchScore. ", maxBudget)
	b.WriteString("Copy item ids, names and links exactly as given. Never invent links or use placeholder URLs.\n")
	if sc.Preferences.Occasion != "" {
		fmt.Fprintf(&b, "Occasion: %s\n", sc.Preferences.Occasion)
	}

	for _, cat := range sortedCategories(categories) {
		if len(cat.Items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nCategory %s:\n", cat.Category)
		for _, item := range cat.Items {
			visual := "unscored"
			if item.VisualMatchScore != nil {
				visual = fmt.Sprintf("%d", *item.VisualMatchScore)
			}
			fmt.Fprintf(&b, "- id=%s name=%q price=%q visualMatchScore=%s link=%s\n",
				item.ID, item.Name, item.Price, visual, item.Link)
		}
	}
	return b.String()
}

// bundleTarget is min(count, number of distinct one-per-category combinations).
func bundleTarget(categories []domain.CategoryResult, count int) int {
	combos := 1
	for _, cat := range categories {
		if n := len(cat.Items); n > 0 {
			combos *= n
			if combos >= count {
				return count
			}
		}
	}
	return min(combos, count)
}

// flattenInventory lists items category by category in name order, keeping rank order within each.
func flattenInventory(categories []domain.CategoryResult) []domain.ScoredItem {
	var out []domain.ScoredItem
	for _, cat := range sortedCategories(categories) {
		out = append(out, cat.Items...)
	}
	return out
}

func sortedCategories(categories []domain.CategoryResult) []domain.CategoryResult {
	sorted := make([]domain.CategoryResult, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Category < sorted[j].Category
	})
	return sorted
}
