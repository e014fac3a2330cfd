// Package retrieval queries the corpus and normalises whatever the service
// returns into a flat list of contexts. When an optional rerank stage is
// refused for quota or permission reasons the query is re-issued without it.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/scout-go/internal/metrics"
	"github.com/54b3r/scout-go/internal/rag"
)

// Retriever runs a query against the bound corpus.
type Retriever interface {
	Retrieve(ctx context.Context, req rag.RetrievalRequest) (json.RawMessage, error)
}

// Config holds the defaults and collaborators of an Engine.
type Config struct {
	// Corpus runs queries. Required.
	Corpus Retriever

	// TopK is the default number of contexts.
	TopK int

	// DistanceThreshold is the default vector distance cutoff.
	DistanceThreshold float64

	// UseReranking enables the rerank stage by default.
	UseReranking bool

	// RerankerModel is the default rerank model.
	RerankerModel string

	// Metrics records requests. Nil disables recording.
	Metrics *metrics.Engine

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Options override the configured defaults for one query. Zero values
// keep the default.
type Options struct {
	TopK              int
	DistanceThreshold float64

	// UseReranking overrides Config.UseReranking when non-nil.
	UseReranking *bool

	RerankerModel string
}

// Engine retrieves contexts. It is safe for concurrent use.
type Engine struct {
	corpus  Retriever
	defs    Config
	metrics *metrics.Engine
	log     *slog.Logger
}

// New constructs an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Corpus == nil {
		return nil, errors.New("retrieval: corpus is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{corpus: cfg.Corpus, defs: cfg, metrics: cfg.Metrics, log: log}, nil
}

// Retrieve returns the contexts relevant to query, possibly none.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) ([]rag.RetrievedContext, error) {
	raw, degraded, err := e.RetrieveRaw(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	contexts := Normalize(raw, e.log)
	e.log.Debug("retrieval: done",
		slog.Int("contexts", len(contexts)),
		slog.Bool("rerank_dropped", degraded),
	)
	return contexts, nil
}

// RetrieveRaw returns the unnormalised service payload. degraded reports
// that the rerank stage was requested but dropped.
func (e *Engine) RetrieveRaw(ctx context.Context, query string, opts Options) (raw json.RawMessage, degraded bool, err error) {
	start := time.Now()
	req := e.request(query, opts)

	defer func() {
		outcome := metrics.OutcomeOK
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case degraded:
			outcome = metrics.OutcomeDegraded
		}
		e.metrics.Retrieval(outcome, time.Since(start))
	}()

	raw, err = e.corpus.Retrieve(ctx, req)
	if err != nil && req.RerankerModel != "" && rerankRefused(err) {
		e.log.Warn("retrieval: rerank unavailable, retrying without it",
			slog.String("reranker_model", req.RerankerModel),
			slog.Any("error", err),
		)
		degraded = true
		req.RerankerModel = ""
		raw, err = e.corpus.Retrieve(ctx, req)
	}
	if err != nil {
		return nil, degraded, fmt.Errorf("retrieval: %w", err)
	}
	return raw, degraded, nil
}

// request resolves opts against the defaults.
func (e *Engine) request(query string, opts Options) rag.RetrievalRequest {
	req := rag.RetrievalRequest{
		Query:             query,
		TopK:              e.defs.TopK,
		DistanceThreshold: e.defs.DistanceThreshold,
	}
	if opts.TopK > 0 {
		req.TopK = opts.TopK
	}
	if opts.DistanceThreshold > 0 {
		req.DistanceThreshold = opts.DistanceThreshold
	}

	rerank := e.defs.UseReranking
	if opts.UseReranking != nil {
		rerank = *opts.UseReranking
	}
	if rerank {
		req.RerankerModel = e.defs.RerankerModel
		if opts.RerankerModel != "" {
			req.RerankerModel = opts.RerankerModel
		}
	}
	return req
}

// rerankRefused reports whether err means the rerank stage cannot be used.
func rerankRefused(err error) bool {
	return rag.IsQuotaOrPermission(err) || rag.IsUnsupportedArgument(err)
}
