package pipeline

import (
	"sort"
	"time"

	"callouts/internal/extract"
)

// PageResult is the outcome of one page. Err is nil on success. Results are
// not modified after the dispatcher emits them.
type PageResult struct {
	Page            int
	TokensProcessed int
	Candidates      []extract.Candidate
	Duration        time.Duration
	Attempts        int
	Err             error

	// Image holds the page image when the source served one, for upload.
	Image     []byte
	ImageType string
}

// Succeeded reports whether the page was processed.
func (r PageResult) Succeeded() bool { return r.Err == nil }

// SortResults orders results by ascending page number.
func SortResults(results []PageResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Page < results[j].Page
	})
}

// Partition splits results into succeeded and failed, keeping order.
func Partition(results []PageResult) (succeeded, failed []PageResult) {
	for _, r := range results {
		if r.Succeeded() {
			succeeded = append(succeeded, r)
		} else {
			failed = append(failed, r)
		}
	}
	return succeeded, failed
}

// FailedPages returns the page numbers of failed results.
func FailedPages(results []PageResult) []int {
	out := []int{}
	for _, r := range results {
		if !r.Succeeded() {
			out = append(out, r.Page)
		}
	}
	return out
}
