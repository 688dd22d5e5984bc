// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"callouts/internal/logger"
	"callouts/internal/pipeline"
	"callouts/pkg/models"
)

// DefaultRequestTimeout bounds a synchronous /process call.
const DefaultRequestTimeout = 15 * time.Minute

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Processor runs one job synchronously.
type Processor interface {
	Process(ctx context.Context, req models.ProcessRequest) (models.ProcessResponse, error)
}

// Enqueuer submits a job for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, req models.ProcessRequest) (string, error)
}

// Server holds the HTTP handlers.
type Server struct {
	processor Processor
	enqueuer  Enqueuer
	timeout   time.Duration
	log       zerolog.Logger
}

// NewServer creates a server. enqueuer may be nil, which disables POST /jobs.
func NewServer(processor Processor, enqueuer Enqueuer, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Server{
		processor: processor,
		enqueuer:  enqueuer,
		timeout:   timeout,
		log:       logger.WithComponent("api"),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.timeout))

	r.Get("/health", s.health)
	r.Post("/process", s.process)
	if s.enqueuer != nil {
		r.Post("/jobs", s.enqueue)
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "callouts"})
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	// Only URLs are fetched on behalf of HTTP callers.
	if err := pipeline.RequireRemoteImages(req); err != nil {
		s.writeProcessError(w, r, req, err)
		return
	}

	resp, err := s.processor.Process(r.Context(), req)
	if err != nil {
		s.writeProcessError(w, r, req, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeProcessError(w http.ResponseWriter, r *http.Request, req models.ProcessRequest, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, pipeline.ErrInvalidRequest) {
		status = http.StatusBadRequest
	} else {
		s.log.Error().Err(err).Str("request_id", chimiddleware.GetReqID(r.Context())).Msg("Processing failed")
	}
	writeJSON(w, status, models.ProcessResponse{
		Success:     false,
		ProjectID:   req.ProjectID,
		FileID:      req.FileID,
		FailedPages: []int{},
		ImageURLs:   []string{},
		Error:       err.Error(),
	})
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	// Reject bad requests before they reach a worker.
	req, err := pipeline.NormalizeRequest(req)
	if err == nil {
		err = pipeline.RequireRemoteImages(req)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.enqueuer.Enqueue(r.Context(), req)
	if err != nil {
		s.log.Error().Err(err).Msg("Enqueue failed")
		writeError(w, http.StatusServiceUnavailable, "could not enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id":    id,
		"project_id": req.ProjectID,
		"file_id":    req.FileID,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (models.ProcessRequest, bool) {
	var req models.ProcessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
