package usecase

import (
	"fmt"
	"strings"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

// HeuristicValidatorConfig holds the local filtering policy
type HeuristicValidatorConfig struct {
	PriceCapRatio    float64 // items above ratio*maxBudget are rejected
	DefaultMaxBudget float64 // used when the price range does not parse
}

// HeuristicValidator is a local, non-remote filter over verified items.
// RISK items are kept; only explicit unavailability is rejected.
type HeuristicValidator struct {
	config HeuristicValidatorConfig
}

// NewHeuristicValidator creates a validator
func NewHeuristicValidator(config HeuristicValidatorConfig) *HeuristicValidator {
	if config.PriceCapRatio <= 0 {
		config.PriceCapRatio = 1.3
	}
	if config.DefaultMaxBudget <= 0 {
		config.DefaultMaxBudget = 100000
	}
	return &HeuristicValidator{config: config}
}

// Validate returns the items passing every check and a reason for each discarded one.
func (h *HeuristicValidator) Validate(items []domain.ValidatedItem, sc *domain.SearchContext) ([]domain.ValidatedItem, []string) {
	maxBudget := parseMaxBudget(sc.Preferences.PriceRange, h.config.DefaultMaxBudget)

	kept := make([]domain.ValidatedItem, 0, len(items))
	var discarded []string
	for _, item := range items {
		if reason := h.rejectReason(item, maxBudget); reason != "" {
			discarded = append(discarded, fmt.Sprintf("discarded %q: %s", item.Name, reason))
			continue
		}

		if item.FallbackLink == "" {
			item.FallbackLink = fallbackLink(item.Source, item.Name)
		}
		item.ValidationNote = validationNote(item, maxBudget)
		kept = append(kept, item)
	}

	metrics.CategoryItemsTotal.WithLabelValues("validated").Add(float64(len(kept)))
	metrics.CategoryItemsTotal.WithLabelValues("rejected").Add(float64(len(discarded)))
	return kept, discarded
}

func (h *HeuristicValidator) rejectReason(item domain.ValidatedItem, maxBudget float64) string {
	link := strings.TrimSpace(item.Link)
	if len(link) < minLinkLength || !hasRecognizedScheme(link) {
		return fmt.Sprintf("link %q missing or malformed", link)
	}
	if hostBlacklisted(link, marketplaceBlacklist) {
		return fmt.Sprintf("low-trust marketplace %q", link)
	}
	if price, ok := parsePrice(item.Price); ok && !withinCap(price, maxBudget, h.config.PriceCapRatio) {
		return fmt.Sprintf("price %.2f exceeds %.0f%% of budget %.2f", price, h.config.PriceCapRatio*100, maxBudget)
	}
	if item.StockStatus == domain.StockUnavailable {
		return "explicitly unavailable"
	}
	return ""
}

func validationNote(item domain.ValidatedItem, maxBudget float64) string {
	note := "passed link, marketplace and stock checks"
	if price, ok := parsePrice(item.Price); ok {
		if price > maxBudget {
			note += fmt.Sprintf("; price %.2f is above budget %.2f but within tolerance", price, maxBudget)
		}
	} else {
		note += "; price unknown"
	}
	if item.StockStatus != domain.StockAvailable {
		note += "; availability uncertain"
	}
	return note
}
