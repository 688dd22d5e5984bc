package pipeline

import (
	"callouts/internal/pages"
)

const (
	// MinChunkSize and MaxChunkSize bound the pages per chunk.
	MinChunkSize = 1
	MaxChunkSize = 15

	// DefaultChunkSize is used when a request does not set one.
	DefaultChunkSize = 2
)

// PageTask is one page to process.
type PageTask struct {
	Page int
	Ref  pages.Ref
}

// Chunk is a contiguous run of pages handled by one worker, in order.
type Chunk struct {
	Index int
	Tasks []PageTask
}

// Pages returns the page numbers of the chunk.
func (c Chunk) Pages() []int {
	out := make([]int, len(c.Tasks))
	for i, t := range c.Tasks {
		out[i] = t.Page
	}
	return out
}

// TasksFor lists one task per page of src, in page order.
func TasksFor(src pages.Source) []PageTask {
	n := src.Count()
	tasks := make([]PageTask, n)
	for i := 0; i < n; i++ {
		tasks[i] = PageTask{Page: i + 1, Ref: src.Ref(i + 1)}
	}
	return tasks
}

// ChunkPages splits tasks into consecutive chunks of chunkSize; the last
// chunk holds the remainder.
func ChunkPages(tasks []PageTask, chunkSize int) ([]Chunk, error) {
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, &ValidationError{
			Field:   "chunk_size",
			Value:   chunkSize,
			Message: "must be between 1 and 15",
		}
	}

	chunks := make([]Chunk, 0, (len(tasks)+chunkSize-1)/chunkSize)
	for start := 0; start < len(tasks); start += chunkSize {
		end := min(start+chunkSize, len(tasks))
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Tasks: tasks[start:end:end],
		})
	}
	return chunks, nil
}
