package domain

import (
	"fmt"
	"strings"
)

// ProvenanceSearchProvider tags candidates produced by the external search provider
const ProvenanceSearchProvider = "search-provider"

// Content source tags for EnrichedCandidate
const (
	ContentLive    = "live"
	ContentSnippet = "snippet"
)

// Candidate is a raw, unverified product listing from the search provider
type Candidate struct {
	Name         string `json:"name"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet,omitempty"`
	Source       string `json:"source,omitempty"` // store or brand name
	Price        string `json:"price,omitempty"`
	Image        string `json:"image,omitempty"`
	Provenance   string `json:"provenance"`
	ProviderRank int    `json:"providerRank"` // 1-based position in provider response
}

// EnrichedCandidate is a Candidate plus page content used for verification
type EnrichedCandidate struct {
	Candidate
	Content       string `json:"-"`
	ContentSource string `json:"contentSource"`
}

// StockVerdict is the stock status returned by the classification service
type StockVerdict string

const (
	VerdictUnavailable     StockVerdict = "UNAVAILABLE"
	VerdictLikelyAvailable StockVerdict = "LIKELY_AVAILABLE"
	VerdictUncertain       StockVerdict = "UNCERTAIN"
)

// UnmarshalText rejects anything outside the three known verdicts.
func (v *StockVerdict) UnmarshalText(text []byte) error {
	switch StockVerdict(strings.ToUpper(strings.TrimSpace(string(text)))) {
	case VerdictUnavailable:
		*v = VerdictUnavailable
	case VerdictLikelyAvailable:
		*v = VerdictLikelyAvailable
	case VerdictUncertain:
		*v = VerdictUncertain
	default:
		return fmt.Errorf("%w: unknown stock status %q", ErrParse, string(text))
	}
	return nil
}

// StockStatus is the pipeline's own availability classification
type StockStatus string

const (
	StockAvailable   StockStatus = "AVAILABLE"
	StockUncertain   StockStatus = "UNCERTAIN"
	StockUnavailable StockStatus = "UNAVAILABLE"
)

// Availability labels shown to the user
const (
	LabelInStock = "IN STOCK"
	LabelRisk    = "RISK"
)

// StockStatusFromVerdict maps a classifier verdict onto a StockStatus.
func StockStatusFromVerdict(v StockVerdict) StockStatus {
	switch v {
	case VerdictLikelyAvailable:
		return StockAvailable
	case VerdictUnavailable:
		return StockUnavailable
	default:
		return StockUncertain
	}
}

// Label returns the user-facing availability label.
func (s StockStatus) Label() string {
	if s == StockAvailable {
		return LabelInStock
	}
	return LabelRisk
}

// DefaultMatchScore is assigned when the classifier omits a score
const DefaultMatchScore = 50

// ValidatedItem is a candidate that passed verification
type ValidatedItem struct {
	EnrichedCandidate
	ID               string      `json:"id"` // "<category>_<ordinal>"
	Category         string      `json:"category"`
	StockStatus      StockStatus `json:"stockStatus"`
	Availability     string      `json:"availability"`
	ResolvedCategory string      `json:"resolvedCategory,omitempty"`
	MatchScore       int         `json:"matchScore"`
	Rationale        string      `json:"rationale,omitempty"`
	FallbackLink     string      `json:"fallbackLink,omitempty"`
	ValidationNote   string      `json:"validationNote,omitempty"`
}

// ScoredItem is a ValidatedItem with a style-fit score.
// VisualMatchScore is nil when scoring was skipped or degraded.
type ScoredItem struct {
	ValidatedItem
	VisualMatchScore *int   `json:"visualMatchScore,omitempty"`
	ScoreReason      string `json:"scoreReason,omitempty"`
}

// VisualScore returns the visual match score or 0 when unscored.
func (s ScoredItem) VisualScore() int {
	if s.VisualMatchScore == nil {
		return 0
	}
	return *s.VisualMatchScore
}
