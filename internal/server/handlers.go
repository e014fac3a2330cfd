package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/scout-go/internal/answer"
	"github.com/54b3r/scout-go/internal/engine"
	"github.com/54b3r/scout-go/internal/ingestion"
	"github.com/54b3r/scout-go/internal/logging"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/retrieval"
	"github.com/54b3r/scout-go/internal/task"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// handleIngest handles POST /api/ingest. Only one job runs at a time; a
// concurrent request receives 409.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	if !s.ingestMu.TryLock() {
		writeError(w, http.StatusConflict, "an ingestion job is already running")
		return
	}
	defer s.ingestMu.Unlock()

	s.metrics.ingestActive.Inc()
	defer s.metrics.ingestActive.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.IngestTimeout)
	defer cancel()

	res, err := s.engine.Ingest(ctx, req.Refs, ingestion.Options{
		Force:     req.Force,
		BatchSize: req.BatchSize,
		Wait:      req.Wait,
	})
	switch {
	case errors.Is(err, ingestion.ErrAllBatchesFailed):
		log.Warn("ingest: every batch failed", slog.Int("batches", res.Batches))
		writeJSON(w, http.StatusBadGateway, res, log)
	case err != nil:
		log.Error("ingest failed", slog.Any("error", err))
		writeError(w, statusFor(err), err.Error())
	default:
		writeJSON(w, http.StatusOK, res, log)
	}
}

// handleRetrieve handles POST /api/retrieve.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req retrieveRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	contexts, err := s.engine.Retrieve(r.Context(), req.Query, retrieval.Options{
		TopK:              req.TopK,
		DistanceThreshold: req.DistanceThreshold,
		UseReranking:      req.UseReranking,
		RerankerModel:     req.RerankerModel,
	})
	if err != nil {
		log.Error("retrieve failed", slog.Any("error", err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	if contexts == nil {
		contexts = []rag.RetrievedContext{}
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Contexts: contexts}, log)
}

// handleAnswer handles POST /api/answer. The answer runs under a deadline;
// on timeout the response is 504 and carries the contexts retrieved so far.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req answerRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	timeout := s.cfg.AnswerTimeout
	if req.TimeoutSeconds > 0 {
		if t := time.Duration(req.TimeoutSeconds) * time.Second; t < timeout {
			timeout = t
		}
	}

	res := s.engine.AnswerWithin(r.Context(), req.Query, timeout, engine.AnswerOptions{Direct: req.Direct})

	outcome := "ok"
	defer func() {
		s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if res.TimedOut {
		outcome = "timeout"
		log.Warn("answer timed out", slog.Duration("timeout", timeout), slog.Int("steps", len(res.Steps)))
		writeJSON(w, http.StatusGatewayTimeout, answerResponse{
			Contexts: partialContexts(res.Steps),
			TimedOut: true,
		}, log)
		return
	}
	if res.Err != nil {
		outcome = "error"
		log.Error("answer failed", slog.Any("error", res.Err))
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}

	resp := answerResponse{
		Answer:   res.Value.Text,
		Strategy: res.Value.Strategy,
		Contexts: res.Value.Contexts,
	}
	if resp.Contexts == nil {
		resp.Contexts = []rag.RetrievedContext{}
	}
	if req.Citations {
		resp.Citations = answer.Citations(res.Value.Contexts)
	}
	writeJSON(w, http.StatusOK, resp, log)
}

// partialContexts returns the contexts published by the retrieve step.
func partialContexts(steps []task.Step) []rag.RetrievedContext {
	for _, st := range steps {
		if st.Name != engine.StepRetrieve {
			continue
		}
		if c, ok := st.Output.([]rag.RetrievedContext); ok && c != nil {
			return c
		}
	}
	return []rag.RetrievedContext{}
}

// handleFiles handles GET /api/files.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	files, err := s.engine.Files(r.Context())
	if err != nil {
		log.Error("list files failed", slog.Any("error", err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	if files == nil {
		files = []rag.FileInfo{}
	}
	writeJSON(w, http.StatusOK, filesResponse{Files: files}, log)
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	st, err := s.engine.Status(r.Context())
	if err != nil {
		log.Error("status failed", slog.Any("error", err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st, log)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logging.FromContext(r.Context()))
}

// decodeBody decodes a JSON body into v, writing 400 on failure. An empty
// body is accepted when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case rag.IsQuotaOrPermission(err):
		return http.StatusServiceUnavailable
	case rag.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
