package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
)

const scoreSchema = `{"scores":[{"id":"string","visualMatchScore":0,"reason":"string"}]}`

// Style signals, strongest first
const (
	signalVibeDetail = "vibe-detail bracket"
	signalKeywords   = "keyword bracket"
	signalPlainText  = "preference text"
)

// StyleScorer asks the classification service for a 0-100 visual match score per item
type StyleScorer struct {
	generator domain.Generator
	logger    *zap.Logger
}

// NewStyleScorer creates a scorer
func NewStyleScorer(generator domain.Generator, logger *zap.Logger) *StyleScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StyleScorer{generator: generator, logger: logger.Named("scorer")}
}

type scoreEntry struct {
	ID               string `json:"id"`
	VisualMatchScore *score `json:"visualMatchScore"`
	Reason           string `json:"reason"`
}

type scoreResponse struct {
	Scores []scoreEntry `json:"scores"`
}

// Score returns the items with a visual match score added. It never fails:
// on any remote or parse error the items come back unscored.
func (s *StyleScorer) Score(ctx context.Context, items []domain.ValidatedItem, sc *domain.SearchContext) ([]domain.ScoredItem, []string) {
	scored := make([]domain.ScoredItem, len(items))
	for i, item := range items {
		scored[i] = domain.ScoredItem{ValidatedItem: item}
	}
	if len(items) == 0 {
		return scored, nil
	}

	instruction, signal := buildScoringInstruction(items, sc)
	raw, err := s.generator.Generate(ctx, domain.GenerationRequest{
		Operation:   "score",
		Instruction: instruction,
		Schema:      scoreSchema,
		ImageURLs:   sc.ReferenceImages,
	})
	if err == nil {
		var resp scoreResponse
		if err = decodeStructured(raw, &resp); err == nil && resp.Scores == nil {
			err = fmt.Errorf("%w: missing scores", domain.ErrParse)
		}
		if err == nil {
			n := applyScores(scored, resp.Scores)
			return scored, []string{fmt.Sprintf("scored %d of %d items using %s", n, len(items), signal)}
		}
	}

	s.logger.Warn("style scoring degraded", zap.Error(err))
	return scored, []string{fmt.Sprintf("style scoring unavailable, items left unscored: %v", err)}
}

func applyScores(items []domain.ScoredItem, scores []scoreEntry) int {
	byID := make(map[string]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}

	n := 0
	for _, e := range scores {
		i, ok := byID[strings.TrimSpace(e.ID)]
		if !ok || e.VisualMatchScore == nil || items[i].VisualMatchScore != nil {
			continue
		}
		v := int(*e.VisualMatchScore)
		items[i].VisualMatchScore = &v
		items[i].ScoreReason = e.Reason
		n++
	}
	return n
}

// buildScoringInstruction picks the strongest style signal present and describes it
// with any-of semantics.
func buildScoringInstruction(items []domain.ValidatedItem, sc *domain.SearchContext) (string, string) {
	var b strings.Builder
	b.WriteString("Score how well each product visually matches the shopper's style on a 0-100 scale.\n")

	bracket := sc.StyleBracket
	var signal string
	switch {
	case bracket.HasVibeDetail():
		signal = signalVibeDetail
		b.WriteString("The style is a bracket of acceptable values. An item scores well if it matches ANY listed vibe ")
		b.WriteString("or ANY listed structural detail. Never penalize the absence of one feature when a different listed feature matches.\n")
		if len(bracket.Vibes) > 0 {
			fmt.Fprintf(&b, "Vibes (any of): %s\n", strings.Join(bracket.Vibes, ", "))
		}
		for _, category := range sortedKeys(bracket.Details) {
			if features := bracket.Details[category]; len(features) > 0 {
				fmt.Fprintf(&b, "%s details (any of): %s\n", category, strings.Join(features, ", "))
			}
		}
		if len(bracket.Colors) > 0 {
			fmt.Fprintf(&b, "Colors (any of): %s\n", strings.Join(bracket.Colors, ", "))
		}
	case bracket.HasKeywords():
		signal = signalKeywords
		b.WriteString("An item scores well if it matches ANY of these keywords; missing keywords are not penalized when another matches.\n")
		fmt.Fprintf(&b, "Keywords (any of): %s\n", strings.Join(bracket.Keywords, ", "))
	default:
		signal = signalPlainText
		p := sc.Preferences
		fmt.Fprintf(&b, "Match against style %q, color %q and occasion %q.\n", p.Style, p.Color, p.Occasion)
	}

	if len(sc.ReferenceImages) > 0 {
		b.WriteString("Reference images of the desired look are attached.\n")
	}

	b.WriteString("\nReturn one score per product id.\n")
	for _, item := range items {
		fmt.Fprintf(&b, "\nid: %s\nname: %s\ncategory: %s\n", item.ID, item.Name, item.Category)
		if item.Image != "" {
			fmt.Fprintf(&b, "image: %s\n", item.Image)
		}
	}
	return b.String(), signal
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
