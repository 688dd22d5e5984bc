package aggregate

import (
	"time"

	"callouts/internal/extract"
)

// Document is the persisted result of one job.
type Document struct {
	ProjectID          string          `json:"project_id"`
	FileID             string          `json:"file_id"`
	ProcessingMetadata Metadata        `json:"processing_metadata"`
	Pages              []PageEntry     `json:"pages"`
	AggregatedPatterns map[string]Item `json:"aggregated_patterns"`
	SearchIndex        SearchIndex     `json:"search_index"`
	Statistics         Statistics      `json:"statistics"`
}

// PageEntry describes one successfully processed page.
type PageEntry struct {
	PageNumber   int                 `json:"page_number"`
	URL          string              `json:"url,omitempty"`
	JSONURL      string              `json:"json_url,omitempty"`
	Patterns     []extract.Candidate `json:"patterns"`
	PatternCount map[string]int      `json:"pattern_count"`
}

// FailedPage records why a page has no entry.
type FailedPage struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

// Metadata describes how the document was produced.
type Metadata struct {
	TotalPages            int             `json:"total_pages"`
	ProcessedPages        int             `json:"processed_pages"`
	FailedPages           []FailedPage    `json:"failed_pages"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
	Timestamp             time.Time       `json:"timestamp"`
	Configuration         Configuration   `json:"configuration"`
	Statistics            ProcessingStats `json:"statistics"`
}

// Configuration echoes the job parameters.
type Configuration struct {
	ChunkSize       int    `json:"chunk_size"`
	ParallelWorkers int    `json:"parallel_workers"`
	RetryAttempts   int    `json:"retry_attempts"`
	OCREngine       string `json:"ocr_engine"`
}

// ProcessingStats summarises page timings. Times are in seconds and
// SuccessRate is a percentage.
type ProcessingStats struct {
	AvgProcessingTimePerPage float64 `json:"avg_processing_time_per_page"`
	MinProcessingTime        float64 `json:"min_processing_time"`
	MaxProcessingTime        float64 `json:"max_processing_time"`
	TotalPatternsFound       int     `json:"total_patterns_found"`
	SuccessRate              float64 `json:"success_rate"`
}

// PageArtifact is the per-page JSON stored next to the page image.
type PageArtifact struct {
	PageNumber    int                 `json:"page_number"`
	Patterns      []extract.Candidate `json:"patterns"`
	PatternCount  map[string]int      `json:"pattern_count"`
	TotalPatterns int                 `json:"total_patterns"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NewPageArtifact builds the per-page JSON payload.
func NewPageArtifact(page int, cands []extract.Candidate, now time.Time) PageArtifact {
	if cands == nil {
		cands = []extract.Candidate{}
	}
	return PageArtifact{
		PageNumber:    page,
		Patterns:      cands,
		PatternCount:  PatternCounts(cands),
		TotalPatterns: len(cands),
		Timestamp:     now.UTC(),
	}
}

// PatternCounts counts candidates by category.
func PatternCounts(cands []extract.Candidate) map[string]int {
	counts := map[string]int{}
	for _, c := range cands {
		counts[c.Category]++
	}
	return counts
}

// NewProcessingStats computes timing statistics over successful page
// durations. total is the number of pages attempted.
func NewProcessingStats(durations []time.Duration, totalPatterns, total int) ProcessingStats {
	stats := ProcessingStats{TotalPatternsFound: totalPatterns}
	if len(durations) == 0 || total == 0 {
		return stats
	}

	var sum float64
	stats.MinProcessingTime = durations[0].Seconds()
	for _, d := range durations {
		s := d.Seconds()
		sum += s
		if s < stats.MinProcessingTime {
			stats.MinProcessingTime = s
		}
		if s > stats.MaxProcessingTime {
			stats.MaxProcessingTime = s
		}
	}
	stats.AvgProcessingTimePerPage = sum / float64(len(durations))
	stats.SuccessRate = float64(len(durations)) / float64(total) * 100
	return stats
}
