package domain

import "strings"

// Mode selects which pipeline stages the orchestrator runs.
type Mode string

const (
	// ModeFull runs discovery, verification, scoring and outfit composition.
	ModeFull Mode = "full"
	// ModeSimplified runs discovery, verification and heuristic validation only.
	ModeSimplified Mode = "simplified"
)

// ParseMode maps a request string to a Mode, defaulting to full.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeFull):
		return ModeFull, nil
	case string(ModeSimplified):
		return ModeSimplified, nil
	default:
		return "", ErrInvalidRequest
	}
}

// Preferences holds the user's stated shopping preferences
type Preferences struct {
	Style      string   `json:"style,omitempty"`
	Color      string   `json:"color,omitempty"`
	PriceRange string   `json:"priceRange,omitempty"` // "min-max", e.g. "50-200"
	Occasion   string   `json:"occasion,omitempty"`
	Categories []string `json:"categories"`
}

// StyleBracket aggregates acceptable style values extracted from several reference inputs.
// Every list is matched with any-of semantics.
type StyleBracket struct {
	Vibes    []string            `json:"vibes,omitempty"`
	Details  map[string][]string `json:"details,omitempty"` // category -> structural features
	Colors   []string            `json:"colors,omitempty"`  // optionally tagged "<category>: <color>"
	Keywords []string            `json:"keywords,omitempty"`
}

// HasVibeDetail reports whether the aggregated vibe/detail signal is present.
func (b *StyleBracket) HasVibeDetail() bool {
	if b == nil {
		return false
	}
	if len(b.Vibes) > 0 {
		return true
	}
	for _, features := range b.Details {
		if len(features) > 0 {
			return true
		}
	}
	return false
}

// HasKeywords reports whether the flat keyword bracket is present.
func (b *StyleBracket) HasKeywords() bool {
	return b != nil && len(b.Keywords) > 0
}

// SearchContext is the immutable per-request input to the pipeline.
type SearchContext struct {
	Gender          string            `json:"gender,omitempty"`
	Size            string            `json:"size,omitempty"`
	Preferences     Preferences       `json:"preferences"`
	StyleBracket    *StyleBracket     `json:"styleBracket,omitempty"`
	ReferenceImages []string          `json:"referenceImages,omitempty"`
	CategoryQueries map[string]string `json:"categoryQueries,omitempty"`
}

// Categories returns the requested categories with surrounding whitespace trimmed.
func (sc *SearchContext) Categories() []string {
	out := make([]string, 0, len(sc.Preferences.Categories))
	for _, c := range sc.Preferences.Categories {
		out = append(out, strings.TrimSpace(c))
	}
	return out
}
