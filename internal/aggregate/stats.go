package aggregate

import (
	"sort"
	"strings"
	"unicode"

	"callouts/internal/extract"
)

// DefaultTopK is the size of the top word table.
const DefaultTopK = 20

// Count is a named counter in a ranked list.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PageDensity is the number of retained occurrences on one page.
type PageDensity struct {
	Page  int `json:"page"`
	Count int `json:"count"`
}

// Statistics summarises an item set.
type Statistics struct {
	TotalItems       int            `json:"total_items"`
	TotalOccurrences int            `json:"total_occurrences"`
	ByType           map[string]int `json:"by_type"`
	ByCategory       []Count        `json:"by_category"`
	PrefixHistogram  map[string]int `json:"prefix_histogram"`
	TopWords         []Count        `json:"top_words"`
	PageDensity      []PageDensity  `json:"page_density"`
}

// Statistics computes summary statistics from the current items.
//
//   - ByType and ByCategory count distinct items; ByCategory is sorted by
//     count descending, then name.
//   - PrefixHistogram sums pattern occurrences by leading letters ("PT-1" -> "PT").
//   - TopWords ranks word items by occurrences, then key; topK <= 0 means DefaultTopK.
//   - PageDensity ranks pages by occurrences descending, then page number.
func (a *Aggregator) Statistics(topK int) Statistics {
	if topK <= 0 {
		topK = DefaultTopK
	}

	stats := Statistics{
		ByType:          map[string]int{},
		PrefixHistogram: map[string]int{},
	}
	categories := map[string]int{}
	pages := map[int]int{}
	var words []Count

	for _, key := range a.keys() {
		item := a.items[key]
		stats.TotalItems++
		stats.TotalOccurrences += item.TotalCount
		stats.ByType[item.Type]++
		categories[item.Category]++

		switch item.Type {
		case extract.TypePattern:
			stats.PrefixHistogram[prefixOf(key)] += item.TotalCount
		case extract.TypeWord:
			words = append(words, Count{Name: key, Count: item.TotalCount})
		}

		for _, loc := range item.Locations {
			pages[loc.Page]++
		}
	}

	for name, n := range categories {
		stats.ByCategory = append(stats.ByCategory, Count{Name: name, Count: n})
	}
	sortCounts(stats.ByCategory)

	sortCounts(words)
	if len(words) > topK {
		words = words[:topK]
	}
	stats.TopWords = words

	for page, n := range pages {
		stats.PageDensity = append(stats.PageDensity, PageDensity{Page: page, Count: n})
	}
	sort.Slice(stats.PageDensity, func(i, j int) bool {
		if stats.PageDensity[i].Count != stats.PageDensity[j].Count {
			return stats.PageDensity[i].Count > stats.PageDensity[j].Count
		}
		return stats.PageDensity[i].Page < stats.PageDensity[j].Page
	})

	return stats
}

func sortCounts(counts []Count) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
}

// prefixOf returns the leading letters of a code.
func prefixOf(key string) string {
	end := strings.IndexFunc(key, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return key
	}
	return key[:end]
}
