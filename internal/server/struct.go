package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/scout-go/internal/answer"
	"github.com/54b3r/scout-go/internal/engine"
	"github.com/54b3r/scout-go/internal/ingestion"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/retrieval"
	"github.com/54b3r/scout-go/internal/task"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed IngestTimeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AnswerTimeout bounds POST /api/answer unless the request asks for less.
	AnswerTimeout time.Duration
	// IngestTimeout bounds POST /api/ingest.
	IngestTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Pingers are probed in order by GET /api/ready.
	Pingers []Pinger
	// RateLimit is the sustained per-IP rate on POST endpoints (requests/second).
	RateLimit float64
	// RateBurst is the per-IP burst on POST endpoints.
	RateBurst int
	// APIKey is the Bearer token required on /api/* routes other than health
	// and readiness. Empty disables authentication.
	APIKey string
	// MetricsRegistry receives the server metrics (default: prometheus.DefaultRegisterer).
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics (default: prometheus.DefaultGatherer).
	MetricsGatherer prometheus.Gatherer
}

// backend is the part of the engine the handlers call. *engine.Engine
// satisfies it; tests inject a fake.
type backend interface {
	Ingest(ctx context.Context, refs []string, opts ingestion.Options) (*ingestion.Result, error)
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]rag.RetrievedContext, error)
	AnswerWithin(ctx context.Context, query string, timeout time.Duration, opts engine.AnswerOptions) task.Result[*answer.Result]
	Files(ctx context.Context) ([]rag.FileInfo, error)
	Status(ctx context.Context) (engine.Status, error)
}

// Server exposes the engine over a JSON API.
type Server struct {
	engine     backend
	cfg        *Config
	httpServer *http.Server
	log        *slog.Logger
	pingers    []Pinger
	metrics    *serverMetrics
	stopRL     func()

	// ingestMu admits one ingestion job at a time.
	ingestMu sync.Mutex
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Refs are gs:// references. Empty ingests the configured prefixes.
	Refs      []string `json:"refs"`
	Force     bool     `json:"force"`
	BatchSize int      `json:"batch_size"`
	Wait      bool     `json:"wait"`
}

// retrieveRequest is the JSON body for POST /api/retrieve.
type retrieveRequest struct {
	Query             string  `json:"query"`
	TopK              int     `json:"top_k"`
	DistanceThreshold float64 `json:"distance_threshold"`
	UseReranking      *bool   `json:"use_reranking"`
	RerankerModel     string  `json:"reranker_model"`
}

// retrieveResponse is the JSON response for POST /api/retrieve.
type retrieveResponse struct {
	Contexts []rag.RetrievedContext `json:"contexts"`
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	Query string `json:"query"`
	// Direct tries grounded generation first.
	Direct bool `json:"direct"`
	// Citations appends a sources block to the answer.
	Citations bool `json:"citations"`
	// TimeoutSeconds shortens the configured answer timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// answerResponse is the JSON response for POST /api/answer. On timeout
// Answer is empty and Contexts holds whatever was retrieved in time.
type answerResponse struct {
	Answer    string                 `json:"answer"`
	Strategy  answer.Strategy        `json:"strategy,omitempty"`
	Contexts  []rag.RetrievedContext `json:"contexts"`
	Citations string                 `json:"citations,omitempty"`
	TimedOut  bool                   `json:"timed_out"`
}

// filesResponse is the JSON response for GET /api/files.
type filesResponse struct {
	Files []rag.FileInfo `json:"files"`
}

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error string `json:"error"`
}
