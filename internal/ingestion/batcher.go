// Package ingestion moves documents from object storage into the corpus.
// Batcher deduplicates against the tracking record, submits imports in
// bounded, rate-limited batches and records what succeeded. Metadata
// extraction from document names lives in metadata.go.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/scout-go/internal/metrics"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/tracking"
)

// MaxBatchSize is the largest number of documents the corpus service
// accepts in one import call.
const MaxBatchSize = 25

// ErrAllBatchesFailed is returned when every submitted batch failed.
var ErrAllBatchesFailed = errors.New("ingestion: all batches failed")

// ErrListingFailed is returned when no refs were given and every configured
// prefix failed to list.
var ErrListingFailed = errors.New("ingestion: no document prefix could be listed")

// Status summarises an ingestion job.
type Status string

const (
	// StatusSkipped means every requested document was already ingested.
	StatusSkipped Status = "skipped"
	// StatusCompleted means every batch succeeded.
	StatusCompleted Status = "completed"
	// StatusPartial means some batches failed.
	StatusPartial Status = "partial"
	// StatusFailed means every batch failed.
	StatusFailed Status = "failed"
)

// Corpus is the part of the corpus manager the batcher needs.
type Corpus interface {
	GetOrCreate(ctx context.Context) (rag.Corpus, error)
	Import(ctx context.Context, req rag.ImportRequest) (rag.ImportHandle, error)
}

// Tracker loads and saves the ingestion record.
type Tracker interface {
	Load(ctx context.Context) *tracking.Record
	Save(ctx context.Context, rec *tracking.Record) (tracking.WriteResult, error)
}

// Lister enumerates object references under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config holds the collaborators and defaults of a Batcher.
type Config struct {
	// Corpus receives the imports. Required.
	Corpus Corpus

	// Tracking is the ingestion record. Required.
	Tracking Tracker

	// Objects lists Prefixes when Ingest is called without references.
	Objects Lister

	// Prefixes are listed when no references are given.
	Prefixes []string

	// Chunking is passed through to every import.
	Chunking rag.ChunkingConfig

	// BatchSize is the default batch size, capped at MaxBatchSize.
	BatchSize int

	// RequestsPerMinute limits import calls. Zero or less means unlimited.
	RequestsPerMinute int

	// Now returns the extraction time for metadata. Defaults to time.Now.
	Now func() time.Time

	// Metrics records batches and documents. Nil disables recording.
	Metrics *metrics.Engine

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Options tune a single Ingest call.
type Options struct {
	// Force re-ingests documents that are already tracked.
	Force bool

	// BatchSize overrides Config.BatchSize when positive.
	BatchSize int

	// Wait blocks on each accepted import until the service finishes it.
	Wait bool
}

// Result describes the outcome of an Ingest call.
type Result struct {
	Status            Status   `json:"status"`
	TotalRequested    int      `json:"total_requested"`
	Skipped           int      `json:"skipped"`
	Batches           int      `json:"batches"`
	SuccessfulBatches int      `json:"successful_batches"`
	FailedBatches     int      `json:"failed_batches"`
	Ingested          []string `json:"ingested,omitempty"`
	Errors            []string `json:"errors,omitempty"`
	MetadataDisabled  bool     `json:"metadata_disabled,omitempty"`
	TrackingPersisted bool     `json:"tracking_persisted"`
}

// Batcher runs ingestion jobs. Jobs are expected to run one at a time; the
// tracking record has a single writer.
type Batcher struct {
	corpus    Corpus
	tracking  Tracker
	objects   Lister
	prefixes  []string
	chunking  rag.ChunkingConfig
	batchSize int
	limiter   *rate.Limiter
	now       func() time.Time
	metrics   *metrics.Engine
	log       *slog.Logger
}

// NewBatcher constructs a Batcher.
func NewBatcher(cfg Config) (*Batcher, error) {
	if cfg.Corpus == nil {
		return nil, errors.New("ingestion: corpus is required")
	}
	if cfg.Tracking == nil {
		return nil, errors.New("ingestion: tracking is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Batcher{
		corpus:    cfg.Corpus,
		tracking:  cfg.Tracking,
		objects:   cfg.Objects,
		prefixes:  cfg.Prefixes,
		chunking:  cfg.Chunking,
		batchSize: cfg.BatchSize,
		limiter:   rate.NewLimiter(limit, 1),
		now:       now,
		metrics:   cfg.Metrics,
		log:       log,
	}, nil
}

// Ingest imports refs into the corpus. With no refs, every object under the
// configured prefixes is considered. Already-tracked references are skipped
// unless opts.Force is set. A batch failure does not stop the job; only
// when every batch fails is ErrAllBatchesFailed returned, alongside the
// result.
func (b *Batcher) Ingest(ctx context.Context, refs []string, opts Options) (*Result, error) {
	var listErrs []error
	if len(refs) == 0 {
		refs, listErrs = b.listPrefixes(ctx)
	}
	refs = dedupe(refs)
	res := &Result{TotalRequested: len(refs)}
	for _, err := range listErrs {
		res.Errors = append(res.Errors, err.Error())
	}
	if len(listErrs) > 0 && len(listErrs) == len(b.prefixes) {
		res.Status = StatusFailed
		return res, fmt.Errorf("%w: %w", ErrListingFailed, errors.Join(listErrs...))
	}

	corpus, err := b.corpus.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	rec := b.tracking.Load(ctx)
	pending := refs
	if !opts.Force {
		pending = make([]string, 0, len(refs))
		for _, ref := range refs {
			if rec.Has(ref) {
				res.Skipped++
				continue
			}
			pending = append(pending, ref)
		}
	}
	b.metrics.Documents(metrics.OutcomeSkipped, res.Skipped)

	if len(pending) == 0 {
		res.Status = StatusSkipped
		b.log.Info("ingestion: nothing to ingest",
			slog.Int("requested", res.TotalRequested),
			slog.Int("skipped", res.Skipped),
		)
		return res, nil
	}

	now := b.now()
	metadata := make(map[string]rag.DocumentMetadata, len(pending))
	for _, ref := range pending {
		metadata[ref] = Extract(ref, now)
	}

	size := b.effectiveBatchSize(opts.BatchSize)
	batches := split(pending, size)
	res.Batches = len(batches)
	sendMetadata := true

	b.log.Info("ingestion: starting",
		slog.String("corpus_id", corpus.ID),
		slog.Int("documents", len(pending)),
		slog.Int("batches", len(batches)),
		slog.Int("batch_size", size),
	)

	for i, batch := range batches {
		if err := b.limiter.Wait(ctx); err != nil {
			remaining := len(batches) - i
			res.FailedBatches += remaining
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %v", i+1, err))
			b.log.Warn("ingestion: stopped before all batches were submitted",
				slog.Int("remaining", remaining),
				slog.Any("error", err),
			)
			break
		}

		var batchMD map[string]rag.DocumentMetadata
		if sendMetadata {
			batchMD = subset(metadata, batch)
		}
		disabled, err := b.submit(ctx, i+1, batch, batchMD, opts.Wait)
		if disabled {
			sendMetadata = false
			res.MetadataDisabled = true
		}
		if err != nil {
			res.FailedBatches++
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %v", i+1, err))
			b.metrics.Batch(metrics.OutcomeError)
			b.metrics.Documents(metrics.OutcomeError, len(batch))
			b.log.Warn("ingestion: batch failed",
				slog.Int("batch", i+1),
				slog.Int("documents", len(batch)),
				slog.Any("error", err),
			)
			continue
		}
		res.SuccessfulBatches++
		res.Ingested = append(res.Ingested, batch...)
		b.metrics.Batch(metrics.OutcomeOK)
		b.metrics.Documents(metrics.OutcomeIngested, len(batch))
	}

	switch {
	case res.SuccessfulBatches == 0:
		res.Status = StatusFailed
	case res.FailedBatches > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusCompleted
	}

	if len(res.Ingested) > 0 {
		rec.CorpusID = corpus.ID
		for _, ref := range res.Ingested {
			md := metadata[ref]
			rec.Add(ref, &md)
		}
		wr, err := b.tracking.Save(ctx, rec)
		res.TrackingPersisted = err == nil && wr.Persisted()
		if err != nil {
			b.log.Warn("ingestion: tracking may be stale", slog.Any("error", err))
		}
	}

	b.log.Info("ingestion: finished",
		slog.String("status", string(res.Status)),
		slog.Int("ingested", len(res.Ingested)),
		slog.Int("failed_batches", res.FailedBatches),
	)

	if res.Status == StatusFailed {
		return res, ErrAllBatchesFailed
	}
	return res, nil
}

// submit sends one batch. A metadata rejection is retried without metadata
// and reported through disabled so later batches omit it. An "already
// exists" rejection counts as success.
func (b *Batcher) submit(ctx context.Context, n int, refs []string, md map[string]rag.DocumentMetadata, wait bool) (disabled bool, err error) {
	req := rag.ImportRequest{Refs: refs, Metadata: md, Chunking: b.chunking}
	h, err := b.corpus.Import(ctx, req)
	if err != nil && md != nil && rag.IsUnsupportedArgument(err) {
		b.log.Warn("ingestion: corpus service rejected document metadata, continuing without it",
			slog.Int("batch", n),
			slog.Any("error", err),
		)
		disabled = true
		req.Metadata = nil
		h, err = b.corpus.Import(ctx, req)
	}
	if err != nil {
		if rag.IsAlreadyExists(err) {
			b.log.Info("ingestion: batch already present in corpus", slog.Int("batch", n))
			return disabled, nil
		}
		return disabled, err
	}

	b.log.Debug("ingestion: batch accepted",
		slog.Int("batch", n),
		slog.Int("documents", len(refs)),
	)
	if wait && h != nil {
		if err := h.Wait(ctx); err != nil {
			return disabled, fmt.Errorf("wait for import %s: %w", h.Name(), err)
		}
	}
	return disabled, nil
}

// listPrefixes lists every configured prefix. A failing prefix is logged,
// reported in the returned errors, and the others are still listed.
func (b *Batcher) listPrefixes(ctx context.Context) ([]string, []error) {
	if b.objects == nil {
		return nil, nil
	}
	var (
		refs []string
		errs []error
	)
	for _, prefix := range b.prefixes {
		found, err := b.objects.List(ctx, prefix)
		if err != nil {
			b.log.Warn("ingestion: could not list prefix",
				slog.String("prefix", prefix),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Errorf("list %s: %w", prefix, err))
			continue
		}
		refs = append(refs, found...)
	}
	return refs, errs
}

// effectiveBatchSize resolves the batch size for one call.
func (b *Batcher) effectiveBatchSize(override int) int {
	size := b.batchSize
	if override > 0 {
		size = override
	}
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	return size
}

// dedupe removes repeated references, keeping first occurrences in order.
func dedupe(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// split partitions refs into consecutive batches of at most size.
func split(refs []string, size int) [][]string {
	batches := make([][]string, 0, (len(refs)+size-1)/size)
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		batches = append(batches, refs[start:end])
	}
	return batches
}

// subset selects the metadata entries for refs.
func subset(all map[string]rag.DocumentMetadata, refs []string) map[string]rag.DocumentMetadata {
	out := make(map[string]rag.DocumentMetadata, len(refs))
	for _, ref := range refs {
		out[ref] = all[ref]
	}
	return out
}
