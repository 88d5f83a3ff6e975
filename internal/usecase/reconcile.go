package usecase

import (
	"strings"

	"github.com/outfitter/backend/internal/domain"
)

// normalizeName lower-cases, trims and collapses whitespace for name matching
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// linkIndex maps normalized inventory names to their items. The first
// occurrence of a name wins.
type linkIndex struct {
	byName map[string]domain.ScoredItem
	names  []string // distinct normalized names in inventory order
}

func newLinkIndex(inventory []domain.ScoredItem) *linkIndex {
	idx := &linkIndex{byName: make(map[string]domain.ScoredItem, len(inventory))}
	for _, item := range inventory {
		key := normalizeName(item.Name)
		if key == "" {
			continue
		}
		if _, exists := idx.byName[key]; exists {
			continue
		}
		idx.byName[key] = item
		idx.names = append(idx.names, key)
	}
	return idx
}

// lookup finds the inventory item for a component name: exact match first, then
// a substring match in either direction. Among several substring hits the longest
// name wins, then the lexicographically smallest.
func (idx *linkIndex) lookup(name string) (domain.ScoredItem, bool) {
	key := normalizeName(name)
	if key == "" {
		return domain.ScoredItem{}, false
	}
	if item, ok := idx.byName[key]; ok {
		return item, true
	}

	best := ""
	for _, candidate := range idx.names {
		if !strings.Contains(key, candidate) && !strings.Contains(candidate, key) {
			continue
		}
		if best == "" || len(candidate) > len(best) || (len(candidate) == len(best) && candidate < best) {
			best = candidate
		}
	}
	if best == "" {
		return domain.ScoredItem{}, false
	}
	return idx.byName[best], true
}

// ReconcileBundles replaces every component link with the original inventory link
// of the matching item, or empties it when nothing matches. Matched components also
// take the inventory id, category, image and price. Inputs are not modified.
func ReconcileBundles(bundles []domain.OutfitBundle, inventory []domain.ScoredItem) []domain.OutfitBundle {
	idx := newLinkIndex(inventory)

	out := make([]domain.OutfitBundle, len(bundles))
	for i, bundle := range bundles {
		components := make([]domain.BundleComponent, len(bundle.Components))
		total, priced := 0.0, false

		for j, c := range bundle.Components {
			if item, ok := idx.lookup(c.Name); ok {
				c.Link = item.Link
				c.ID = item.ID
				c.Category = item.Category
				if item.Image != "" {
					c.Image = item.Image
				}
				if item.Price != "" {
					c.Price = item.Price
				}
			} else {
				c.Link = ""
			}
			if p, ok := parsePrice(c.Price); ok {
				total += p
				priced = true
			}
			components[j] = c
		}

		bundle.Components = components
		if priced {
			bundle.TotalPrice = total
		}
		out[i] = bundle
	}
	return out
}
