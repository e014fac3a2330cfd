// Package engine assembles the ingestion, tracking, retrieval and answer
// components into the single facade used by the CLI and the HTTP server.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/scout-go/internal/answer"
	"github.com/54b3r/scout-go/internal/corpus"
	"github.com/54b3r/scout-go/internal/ingestion"
	"github.com/54b3r/scout-go/internal/metrics"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/retrieval"
	"github.com/54b3r/scout-go/internal/storage"
	"github.com/54b3r/scout-go/internal/task"
	"github.com/54b3r/scout-go/internal/tracking"
)

// Deps are the external clients an Engine runs on. New builds them from
// Settings; tests supply fakes to Assemble.
type Deps struct {
	// Objects is the document bucket. Required.
	Objects storage.ObjectStore

	// Service is the corpus backend. Required.
	Service rag.CorpusService

	// Chat answers on the manual path. Required.
	Chat model.BaseChatModel

	// Grounded enables direct answers. Optional.
	Grounded answer.GroundedGenerator

	// Primary and Fallback are the tracking backends. Both optional.
	Primary  tracking.Backend
	Fallback tracking.Backend

	// Closers run on Close in reverse order.
	Closers []func() error
}

// Options are the behaviour settings of an Engine.
type Options struct {
	CorpusName        string
	EmbeddingModel    string
	Prefixes          []string
	Chunking          rag.ChunkingConfig
	BatchSize         int
	RequestsPerMinute int
	TopK              int
	DistanceThreshold float64
	UseReranking      bool
	RerankerModel     string
	MaxContextTokens  int
	Metrics           *metrics.Engine
	Logger            *slog.Logger
}

// Engine is the orchestration facade. It is safe for concurrent queries;
// ingestion and corpus lifecycle calls are expected to run one at a time.
type Engine struct {
	objects   storage.ObjectStore
	corpus    *corpus.Manager
	tracking  *tracking.Store
	batcher   *ingestion.Batcher
	retrieval *retrieval.Engine
	direct    *answer.Synthesizer
	manual    *answer.Synthesizer
	metrics   *metrics.Engine
	closers   []func() error
	log       *slog.Logger
}

// Assemble wires an Engine from deps.
func Assemble(deps Deps, opts Options) (*Engine, error) {
	if deps.Objects == nil {
		return nil, errors.New("engine: object store is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	mgr, err := corpus.New(corpus.Config{
		Service:        deps.Service,
		DisplayName:    opts.CorpusName,
		Description:    "Document corpus managed by scout",
		EmbeddingModel: opts.EmbeddingModel,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	store := tracking.New(tracking.Config{
		Primary:  deps.Primary,
		Fallback: deps.Fallback,
		Live:     mgr,
		Metrics:  opts.Metrics,
		Logger:   log,
	})

	batcher, err := ingestion.NewBatcher(ingestion.Config{
		Corpus:            mgr,
		Tracking:          store,
		Objects:           deps.Objects,
		Prefixes:          opts.Prefixes,
		Chunking:          opts.Chunking,
		BatchSize:         opts.BatchSize,
		RequestsPerMinute: opts.RequestsPerMinute,
		Metrics:           opts.Metrics,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	ret, err := retrieval.New(retrieval.Config{
		Corpus:            mgr,
		TopK:              opts.TopK,
		DistanceThreshold: opts.DistanceThreshold,
		UseReranking:      opts.UseReranking,
		RerankerModel:     opts.RerankerModel,
		Metrics:           opts.Metrics,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	manual, err := answer.New(answer.Config{
		Retriever:        ret,
		Chat:             deps.Chat,
		MaxContextTokens: opts.MaxContextTokens,
		Metrics:          opts.Metrics,
		Logger:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	direct := manual
	if deps.Grounded != nil {
		direct, err = answer.New(answer.Config{
			Retriever:        ret,
			Chat:             deps.Chat,
			Grounded:         deps.Grounded,
			Corpus:           mgr,
			MaxContextTokens: opts.MaxContextTokens,
			Metrics:          opts.Metrics,
			Logger:           log,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	return &Engine{
		objects:   deps.Objects,
		corpus:    mgr,
		tracking:  store,
		batcher:   batcher,
		retrieval: ret,
		direct:    direct,
		manual:    manual,
		metrics:   opts.Metrics,
		closers:   deps.Closers,
		log:       log,
	}, nil
}

// Ingest imports refs, or everything under the configured prefixes when
// refs is empty.
func (e *Engine) Ingest(ctx context.Context, refs []string, opts ingestion.Options) (*ingestion.Result, error) {
	return e.batcher.Ingest(ctx, refs, opts)
}

// UploadAndIngest uploads every file under localDir to prefix in the bucket
// and ingests the uploaded references.
func (e *Engine) UploadAndIngest(ctx context.Context, localDir, prefix string, opts ingestion.Options) (*ingestion.Result, error) {
	refs, err := e.objects.UploadDir(ctx, localDir, prefix)
	if err != nil {
		return nil, fmt.Errorf("engine: upload %s: %w", localDir, err)
	}
	e.log.Info("engine: uploaded local documents",
		slog.String("dir", localDir),
		slog.String("prefix", prefix),
		slog.Int("files", len(refs)),
	)
	if len(refs) == 0 {
		return &ingestion.Result{Status: ingestion.StatusSkipped}, nil
	}
	return e.batcher.Ingest(ctx, refs, opts)
}

// Retrieve returns the normalized contexts for query.
func (e *Engine) Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]rag.RetrievedContext, error) {
	return e.retrieval.Retrieve(ctx, query, opts)
}

// RetrieveRaw returns the service payload for query and whether the
// reranker had to be dropped.
func (e *Engine) RetrieveRaw(ctx context.Context, query string, opts retrieval.Options) (json.RawMessage, bool, error) {
	return e.retrieval.RetrieveRaw(ctx, query, opts)
}

// AnswerOptions tune one Answer call.
type AnswerOptions struct {
	// Direct tries grounded generation first when it is configured.
	Direct bool

	// Contexts, when non-nil, are answered from instead of retrieving.
	Contexts []rag.RetrievedContext
}

// Answer answers query.
func (e *Engine) Answer(ctx context.Context, query string, opts AnswerOptions) (*answer.Result, error) {
	return e.synthesizer(opts.Direct).Answer(ctx, query, opts.Contexts)
}

func (e *Engine) synthesizer(direct bool) *answer.Synthesizer {
	if direct {
		return e.direct
	}
	return e.manual
}

// Step names published by AnswerWithin.
const (
	StepRetrieve = "retrieve"
	StepAnswer   = "answer"
)

// AnswerWithin answers query under timeout. The retrieved contexts are
// published as a step, so a timed-out call still returns them.
func (e *Engine) AnswerWithin(ctx context.Context, query string, timeout time.Duration, opts AnswerOptions) task.Result[*answer.Result] {
	return task.Run(ctx, timeout, func(ctx context.Context, emit func(task.Step)) (*answer.Result, error) {
		contexts := opts.Contexts
		if contexts == nil {
			got, err := e.retrieval.Retrieve(ctx, query, retrieval.Options{})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.log.Warn("engine: retrieval failed, answering without context", slog.Any("error", err))
				// Non-nil marks the contexts as fetched so the synthesizer does not retrieve again.
				contexts = []rag.RetrievedContext{}
			} else {
				contexts = got
				emit(task.Step{Name: StepRetrieve, Output: got})
			}
		}
		res, err := e.synthesizer(opts.Direct).Answer(ctx, query, contexts)
		if err != nil {
			return nil, err
		}
		emit(task.Step{Name: StepAnswer, Output: res.Strategy})
		return res, nil
	})
}

// Files lists the files indexed in the corpus. It binds to an existing
// corpus but never creates one.
func (e *Engine) Files(ctx context.Context) ([]rag.FileInfo, error) {
	if _, err := e.corpus.Lookup(ctx); err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return e.corpus.ListFiles(ctx)
}

// Status summarises the corpus binding and the tracking record.
type Status struct {
	CorpusName       string `json:"corpus_name"`
	CorpusID         string `json:"corpus_id,omitempty"`
	CorpusExists     bool   `json:"corpus_exists"`
	TrackedDocuments int    `json:"tracked_documents"`
	TrackedCorpusID  string `json:"tracked_corpus_id,omitempty"`
}

// Status reports the corpus and tracking state without creating anything.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	st := Status{CorpusName: e.corpus.DisplayName()}
	c, err := e.corpus.Lookup(ctx)
	switch {
	case err == nil:
		st.CorpusID, st.CorpusExists = c.ID, true
	case errors.Is(err, corpus.ErrNotFound):
	default:
		return st, err
	}
	rec := e.tracking.Peek(ctx)
	st.TrackedDocuments = rec.Len()
	st.TrackedCorpusID = rec.CorpusID
	return st, nil
}

// RecreateCorpus deletes the corpus, clears tracking and creates a fresh
// corpus.
func (e *Engine) RecreateCorpus(ctx context.Context) (rag.Corpus, error) {
	return e.corpus.Recreate(ctx, e.tracking)
}

// DeleteCorpus deletes the corpus and clears the tracking record bound to it.
func (e *Engine) DeleteCorpus(ctx context.Context) error {
	if err := e.corpus.Delete(ctx); err != nil {
		return err
	}
	if err := e.tracking.Clear(ctx); err != nil {
		return fmt.Errorf("engine: corpus deleted but tracking not cleared: %w", err)
	}
	return nil
}

// Objects returns the document bucket.
func (e *Engine) Objects() storage.ObjectStore { return e.objects }

// Close releases the underlying clients.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
