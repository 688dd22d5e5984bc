package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callouts/internal/pipeline"
	"callouts/pkg/models"
)

type stubProcessor struct {
	err error
}

func (s stubProcessor) Process(_ context.Context, req models.ProcessRequest) (models.ProcessResponse, error) {
	if s.err != nil {
		return models.ProcessResponse{}, s.err
	}
	return models.ProcessResponse{
		Success:        true,
		ProjectID:      req.ProjectID,
		FileID:         "file-1234abcd",
		TotalPages:     2,
		ProcessedPages: 2,
		FailedPages:    []int{},
		ImageURLs:      []string{},
	}, nil
}

type countingProcessor struct {
	calls int
}

func (c *countingProcessor) Process(_ context.Context, req models.ProcessRequest) (models.ProcessResponse, error) {
	c.calls++
	return models.ProcessResponse{Success: true, ProjectID: req.ProjectID}, nil
}

type stubEnqueuer struct {
	got models.ProcessRequest
	err error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, req models.ProcessRequest) (string, error) {
	s.got = req
	return "task-1", s.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, NewServer(stubProcessor{}, nil, 0).Router(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestProcess_OK(t *testing.T) {
	rec := do(t, NewServer(stubProcessor{}, nil, 0).Router(), http.MethodPost, "/process",
		`{"pdfUrl":"https://files.example/set.pdf","projectID":"p1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "p1", resp.ProjectID)
	assert.Equal(t, 2, resp.ProcessedPages)
}

func TestProcess_ValidationIs400(t *testing.T) {
	proc := stubProcessor{err: &pipeline.ValidationError{Field: "chunkSize", Value: 20, Message: "must be between 1 and 15"}}
	rec := do(t, NewServer(proc, nil, 0).Router(), http.MethodPost, "/process", `{"images":["https://img.example/a.png"],"chunkSize":20}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "chunkSize")
}

func TestProcess_LocalPathsRejected(t *testing.T) {
	proc := &countingProcessor{}
	h := NewServer(proc, nil, 0).Router()

	for _, body := range []string{
		`{"images":["/etc/passwd"]}`,
		`{"images":["https://img.example/1.png","../secrets/key.png"]}`,
		`{"images":["file:///etc/hosts"]}`,
	} {
		rec := do(t, h, http.MethodPost, "/process", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)

		var resp models.ProcessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "must be an http(s) URL")
	}
	assert.Zero(t, proc.calls)
}

func TestProcess_FatalIs500(t *testing.T) {
	proc := stubProcessor{err: &pipeline.PipelineFatalError{Op: "OpenSource", Err: errors.New("404")}}
	rec := do(t, NewServer(proc, nil, 0).Router(), http.MethodPost, "/process", `{"pdfUrl":"https://files.example/x.pdf"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProcess_BadJSON(t *testing.T) {
	h := NewServer(stubProcessor{}, nil, 0).Router()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/process", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/process", `{"pdf":"x"}`).Code)
}

func TestJobs(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewServer(stubProcessor{}, enq, 0).Router()

	rec := do(t, h, http.MethodPost, "/jobs", `{"images":["https://img.example/1.png"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "task-1", body["task_id"])
	assert.Equal(t, pipeline.DefaultProjectID, body["project_id"])
	assert.Equal(t, enq.got.FileID, body["file_id"])
	assert.Equal(t, pipeline.DefaultChunkSize, enq.got.ChunkSize)

	rec = do(t, h, http.MethodPost, "/jobs", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	enq.got = models.ProcessRequest{}
	rec = do(t, h, http.MethodPost, "/jobs", `{"images":["/home/app/.env"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "images[0]")
	assert.Empty(t, enq.got.Images)

	enq.err = errors.New("redis down")
	rec = do(t, h, http.MethodPost, "/jobs", `{"images":["https://img.example/1.png"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobs_DisabledWithoutQueue(t *testing.T) {
	rec := do(t, NewServer(stubProcessor{}, nil, 0).Router(), http.MethodPost, "/jobs", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
