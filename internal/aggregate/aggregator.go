// Package aggregate folds page candidates into deduplicated items, a search
// index and summary statistics.
package aggregate

import (
	"sort"

	"callouts/internal/extract"
	"callouts/internal/ocr"
)

// Location is one retained occurrence of an item.
type Location struct {
	Page       int       `json:"page"`
	BBox       *ocr.Quad `json:"bbox"`
	Confidence float64   `json:"confidence"`
}

// Item is the cross-page record of one pattern or word.
// TotalCount always equals len(Locations).
type Item struct {
	Key        string     `json:"key"`
	Type       string     `json:"type"`
	Category   string     `json:"category"`
	TotalCount int        `json:"total_count"`
	Locations  []Location `json:"locations"`
}

// Aggregator accumulates candidates. It is not safe for concurrent use and
// Add is not idempotent: adding the same stream twice counts it twice.
type Aggregator struct {
	items map[string]*Item
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{items: map[string]*Item{}}
}

// Add folds candidates in the order given. Callers feed pages in ascending
// order. A candidate is dropped when the item already has a boxed location on
// the same page and the candidate is boxed too; box positions are not compared.
func (a *Aggregator) Add(cands ...extract.Candidate) {
	for _, c := range cands {
		item, ok := a.items[c.Key]
		if !ok {
			item = &Item{Key: c.Key, Type: c.Type, Category: c.Category}
			a.items[c.Key] = item
		} else if c.BBox != nil && hasBoxedLocation(item, c.Page) {
			continue
		}

		var bbox *ocr.Quad
		if c.BBox != nil {
			q := *c.BBox
			bbox = &q
		}
		item.Locations = append(item.Locations, Location{Page: c.Page, BBox: bbox, Confidence: c.Confidence})
		item.TotalCount++
	}
}

func hasBoxedLocation(item *Item, page int) bool {
	for _, loc := range item.Locations {
		if loc.Page == page && loc.BBox != nil {
			return true
		}
	}
	return false
}

// Len returns the number of distinct items.
func (a *Aggregator) Len() int { return len(a.items) }

// Item returns a copy of the item with key.
func (a *Aggregator) Item(key string) (Item, bool) {
	item, ok := a.items[key]
	if !ok {
		return Item{}, false
	}
	return copyItem(item), true
}

// Items returns copies of all items sorted by key.
func (a *Aggregator) Items() []Item {
	out := make([]Item, 0, len(a.items))
	for _, key := range a.keys() {
		out = append(out, copyItem(a.items[key]))
	}
	return out
}

// ItemMap returns copies of all items keyed by item key.
func (a *Aggregator) ItemMap() map[string]Item {
	out := make(map[string]Item, len(a.items))
	for key, item := range a.items {
		out[key] = copyItem(item)
	}
	return out
}

func (a *Aggregator) keys() []string {
	keys := make([]string, 0, len(a.items))
	for key := range a.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func copyItem(item *Item) Item {
	out := *item
	out.Locations = append([]Location(nil), item.Locations...)
	return out
}
