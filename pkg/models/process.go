package models

// ProcessRequest asks for callout extraction on one document.
// Exactly one of PDFURL or Images must be set.
type ProcessRequest struct {
	// Source document
	PDFURL string   `json:"pdfUrl,omitempty"` // URL of a PDF drawing set
	Images []string `json:"images,omitempty"` // One image URL (or local path) per page

	// Identifiers; generated when empty
	ProjectID string `json:"projectID,omitempty"`
	FileID    string `json:"fileID,omitempty"`

	// Tuning; zero selects the default
	ChunkSize       int `json:"chunkSize,omitempty"`       // Pages per worker chunk (1-15, default 2)
	ParallelWorkers int `json:"parallelWorkers,omitempty"` // Concurrent chunks (1-50, default 30)

	// Optional completion callback
	Webhook string `json:"webhook,omitempty"`
}

// ProcessResponse summarises a finished job.
type ProcessResponse struct {
	Success               bool     `json:"success"`
	ProjectID             string   `json:"project_id"`
	FileID                string   `json:"file_id"`
	TotalPages            int      `json:"total_pages"`
	ProcessedPages        int      `json:"processed_pages"`
	FailedPages           []int    `json:"failed_pages"`
	FinalJSONURL          string   `json:"final_json_url,omitempty"`
	ImageURLs             []string `json:"image_urls"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
	Error                 string   `json:"error,omitempty"`
}
