package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/outfitter/backend/internal/domain"
)

// Fixed query suffixes appended to every shopping search
const (
	purchaseIntentKeyword = "buy online"
	exclusionSuffix       = "-pinterest -lyst -polyvore"
	maxQueryBodyLen       = 100
)

var (
	// Characters that break provider query parsing
	querySpecialChars = regexp.MustCompile(`[#%+@!^*=\[\]{}<>|\\~` + "`" + `"]`)

	// Lone punctuation left behind after cleanup
	orphanedPunctuation = regexp.MustCompile(`\s+[,\-;:/]+\s+|^[,\-;:/\s]+|[,\-;:/\s]+$`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// QueryPreprocessor turns a search context into a provider query for one category
type QueryPreprocessor struct{}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor() *QueryPreprocessor {
	return &QueryPreprocessor{}
}

// BuildQuery assembles style, gender term, colors and category, then appends the
// purchase-intent keyword and exclusion suffix. A precomputed category query
// replaces the assembled body.
func (p *QueryPreprocessor) BuildQuery(category string, sc *domain.SearchContext) (string, error) {
	category = cleanQueryPart(category)
	if category == "" {
		return "", fmt.Errorf("%w: empty category", domain.ErrInvalidRequest)
	}

	var body string
	if q := precomputedQuery(category, sc.CategoryQueries); q != "" {
		body = q
	} else {
		parts := []string{
			cleanQueryPart(sc.Preferences.Style),
			genderTerm(sc.Gender),
			cleanQueryPart(p.SanitizeColors(category, sc)),
			category,
		}
		body = joinNonEmpty(parts)
	}

	return limitLength(body, maxQueryBodyLen) + " " + purchaseIntentKeyword + " " + exclusionSuffix, nil
}

// SanitizeColors keeps bracket colors tagged for this category and untagged ones.
// When none survive it falls back to the generic color preference.
func (p *QueryPreprocessor) SanitizeColors(category string, sc *domain.SearchContext) string {
	var kept []string
	seen := make(map[string]bool)

	if sc.StyleBracket != nil {
		for _, entry := range sc.StyleBracket.Colors {
			color := strings.TrimSpace(entry)
			if tag, value, tagged := strings.Cut(entry, ":"); tagged {
				if !fuzzyCategoryMatch(tag, category) {
					continue
				}
				color = strings.TrimSpace(value)
			}
			key := strings.ToLower(color)
			if color == "" || seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, color)
		}
	}

	if len(kept) == 0 {
		return strings.TrimSpace(sc.Preferences.Color)
	}
	return strings.Join(kept, " ")
}

// genderTerm maps a gender attribute to its shopping term, passing unknown values through.
func genderTerm(gender string) string {
	g := strings.TrimSpace(gender)
	switch strings.ToLower(g) {
	case "female", "woman", "women":
		return "Women's"
	case "male", "man", "men":
		return "Men's"
	case "non-binary", "nonbinary", "non binary":
		return "Unisex"
	default:
		return cleanQueryPart(g)
	}
}

// fuzzyCategoryMatch reports a case-insensitive substring match in either direction.
func fuzzyCategoryMatch(tag, category string) bool {
	t := strings.ToLower(strings.TrimSpace(tag))
	c := strings.ToLower(strings.TrimSpace(category))
	if t == "" || c == "" {
		return false
	}
	return strings.Contains(t, c) || strings.Contains(c, t)
}

func precomputedQuery(category string, queries map[string]string) string {
	if q, ok := queries[category]; ok {
		return cleanQueryPart(q)
	}
	for k, q := range queries {
		if strings.EqualFold(strings.TrimSpace(k), category) {
			return cleanQueryPart(q)
		}
	}
	return ""
}

// cleanQueryPart strips characters the provider rejects and normalizes whitespace
func cleanQueryPart(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = querySpecialChars.ReplaceAllString(s, " ")
	s = orphanedPunctuation.ReplaceAllString(s, " ")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// limitLength cuts s to at most n bytes on a rune boundary, preferring a word boundary
func limitLength(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	cut := s[:n]
	if lastSpace := strings.LastIndex(cut, " "); lastSpace > n/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}
