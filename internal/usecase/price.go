package usecase

import (
	"regexp"
	"strconv"
	"strings"
)

// leadingPrice matches the first figure in a price string, with optional
// thousands separators and decimals.
var leadingPrice = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?|\.\d+`)

// parsePrice reads the first figure of a price string.
// "$1,299.00" parses as 1299 and a range like "$500.00 - $900.00" as its lower bound.
// ok is false when no figure is present.
func parsePrice(s string) (float64, bool) {
	figure := leadingPrice.FindString(s)
	if figure == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(figure, ",", ""), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseMaxBudget reads the upper bound of a "min-max" price range.
// A single figure is taken as the maximum. def is returned when nothing parses.
func parseMaxBudget(priceRange string, def float64) float64 {
	r := strings.TrimSpace(priceRange)
	if r == "" {
		return def
	}
	upper := r
	if i := strings.LastIndex(r, "-"); i >= 0 {
		upper = r[i+1:]
	}
	if v, ok := parsePrice(upper); ok && v > 0 {
		return v
	}
	return def
}

// withinCap reports whether price <= ratio*max, tolerating float rounding at the boundary.
func withinCap(price, maxBudget, ratio float64) bool {
	limit := maxBudget * ratio
	return price <= limit+limit*1e-9
}
