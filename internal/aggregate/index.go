package aggregate

// SearchIndex maps pages, types and categories to item keys. Key lists are
// sorted and free of duplicates.
type SearchIndex struct {
	ByPage     map[int][]string    `json:"by_page"`
	ByType     map[string][]string `json:"by_type"`
	ByCategory map[string][]string `json:"by_category"`
}

// Index builds a fresh SearchIndex from the current items. Items are visited
// in key order, so every list comes out sorted.
func (a *Aggregator) Index() SearchIndex {
	idx := SearchIndex{
		ByPage:     map[int][]string{},
		ByType:     map[string][]string{},
		ByCategory: map[string][]string{},
	}

	for _, key := range a.keys() {
		item := a.items[key]
		idx.ByType[item.Type] = append(idx.ByType[item.Type], key)
		idx.ByCategory[item.Category] = append(idx.ByCategory[item.Category], key)

		seen := map[int]bool{}
		for _, loc := range item.Locations {
			if seen[loc.Page] {
				continue
			}
			seen[loc.Page] = true
			idx.ByPage[loc.Page] = append(idx.ByPage[loc.Page], key)
		}
	}
	return idx
}
