package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/54b3r/scout-go/internal/metrics"
	"github.com/54b3r/scout-go/internal/rag"
)

// LiveSource enumerates the currently bound corpus.
type LiveSource interface {
	// CurrentID returns the bound corpus ID, or "" when none is bound.
	CurrentID() string

	// ListFiles enumerates the files of the bound corpus.
	ListFiles(ctx context.Context) ([]rag.FileInfo, error)
}

// Config holds the collaborators of a Store. Every field is optional.
type Config struct {
	// Primary is the durable backend (object storage).
	Primary Backend

	// Fallback is the local backend used when the primary is unavailable.
	Fallback Backend

	// Live enumerates the bound corpus for reconciliation.
	Live LiveSource

	// Metrics records backend writes. Nil disables recording.
	Metrics *metrics.Engine

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store loads, saves and clears the tracking record. Loading never fails:
// every failure degrades to the next source and is logged. Store is safe
// for concurrent use, but ingestion jobs are expected to be the only writer.
type Store struct {
	primary  Backend
	fallback Backend
	live     LiveSource
	metrics  *metrics.Engine
	log      *slog.Logger

	mu  sync.Mutex
	mem *Record
}

// New constructs a Store.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		primary:  cfg.Primary,
		fallback: cfg.Fallback,
		live:     cfg.Live,
		metrics:  cfg.Metrics,
		log:      log,
	}
}

// SetLive attaches the live source after construction, for callers whose
// corpus manager is built after the store.
func (s *Store) SetLive(live LiveSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Load returns the best available record, in order of trust:
//  1. the live corpus enumeration, when it succeeds and is non-empty
//     (saved back as the new persisted record)
//  2. the persisted backends, unioned when both describe the same corpus
//  3. the in-process record from the last load or save
//  4. an empty record
//
// A record bound to a different corpus than the live one is rebound, and
// entries that name files inside the old corpus are dropped.
func (s *Store) Load(ctx context.Context) *Record {
	return s.load(ctx, true)
}

// Peek resolves the record the same way Load does but never writes: the
// reconciled live record is not saved and the in-process record is left
// untouched. Use it for read-only reporting outside the ingest lock.
func (s *Store) Peek(ctx context.Context) *Record {
	return s.load(ctx, false)
}

func (s *Store) load(ctx context.Context, persist bool) *Record {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()

	currentID := ""
	if live != nil {
		currentID = live.CurrentID()
	}

	persisted := s.readPersisted(ctx)

	if currentID != "" {
		if rec, ok := s.fromLive(ctx, live, currentID, persisted, persist); ok {
			return rec
		}
	}

	if persisted != nil {
		s.reconcile(persisted, currentID)
		if persist {
			s.remember(persisted)
		}
		return persisted
	}

	s.mu.Lock()
	mem := s.mem
	s.mu.Unlock()
	if mem != nil {
		rec := mem.Clone()
		s.reconcile(rec, currentID)
		return rec
	}

	return NewRecord(currentID)
}

// fromLive builds the record from the corpus enumeration. It reports false
// when no listed file carries a usable ref, so the caller falls back.
func (s *Store) fromLive(ctx context.Context, live LiveSource, corpusID string, persisted *Record, persist bool) (*Record, bool) {
	files, err := live.ListFiles(ctx)
	if err != nil {
		s.log.Warn("tracking: live corpus enumeration failed, using persisted record",
			slog.String("corpus_id", corpusID),
			slog.Any("error", err),
		)
		return nil, false
	}
	if len(files) == 0 {
		return nil, false
	}

	rec := NewRecord(corpusID)
	for _, f := range files {
		ref := f.SourceURI
		if ref == "" {
			ref = f.ID
		}
		if ref == "" {
			continue
		}
		var md *rag.DocumentMetadata
		if persisted != nil {
			if m, ok := persisted.Metadata[ref]; ok {
				md = &m
			}
		}
		rec.Add(ref, md)
	}
	if rec.Len() == 0 {
		s.log.Warn("tracking: live corpus files carry no source refs, using persisted record",
			slog.String("corpus_id", corpusID),
			slog.Int("files", len(files)),
		)
		return nil, false
	}

	s.log.Debug("tracking: reconciled with live corpus",
		slog.String("corpus_id", corpusID),
		slog.Int("documents", rec.Len()),
	)
	if !persist {
		return rec, true
	}
	if _, err := s.Save(ctx, rec); err != nil {
		s.log.Warn("tracking: could not persist reconciled record", slog.Any("error", err))
	}
	return rec.Clone(), true
}

// readPersisted reads both backends and combines them.
func (s *Store) readPersisted(ctx context.Context) *Record {
	primary := s.read(ctx, s.primary)
	fallback := s.read(ctx, s.fallback)

	switch {
	case primary != nil && fallback != nil:
		if primary.CorpusID == fallback.CorpusID {
			primary.Union(fallback)
		}
		return primary
	case primary != nil:
		return primary
	default:
		return fallback
	}
}

// read loads one backend, degrading failures to nil.
func (s *Store) read(ctx context.Context, b Backend) *Record {
	if b == nil {
		return nil
	}
	rec, found, err := b.Read(ctx)
	if err != nil {
		s.log.Warn("tracking: backend read failed",
			slog.String("backend", b.Name()),
			slog.Any("error", err),
		)
		return nil
	}
	if !found {
		return nil
	}
	return rec
}

// reconcile rebinds rec to currentID when it belongs to another corpus.
func (s *Store) reconcile(rec *Record, currentID string) {
	if currentID == "" || rec.CorpusID == currentID {
		return
	}
	previous := rec.CorpusID
	dropped := rec.Rebind(currentID)
	s.log.Warn("tracking: record belongs to a different corpus, rebinding",
		slog.String("record_corpus_id", previous),
		slog.String("current_corpus_id", currentID),
		slog.Int("dropped", dropped),
	)
}

// remember replaces the in-process record.
func (s *Store) remember(rec *Record) {
	s.mu.Lock()
	s.mem = rec.Clone()
	s.mu.Unlock()
}

// Save persists rec to both backends. The in-process record is updated
// even when neither write succeeds; the error then wraps ErrNotPersisted.
func (s *Store) Save(ctx context.Context, rec *Record) (WriteResult, error) {
	s.remember(rec)
	res, err := writeBoth(ctx, s.primary, s.fallback, rec)
	if s.primary != nil {
		s.metrics.TrackingWrite(s.primary.Name(), res.PrimaryOK)
	}
	if s.fallback != nil {
		s.metrics.TrackingWrite(s.fallback.Name(), res.FallbackOK)
	}
	if err != nil {
		return res, err
	}
	if !res.PrimaryOK && s.primary != nil {
		s.log.Warn("tracking: durable backend write failed, record saved locally only",
			slog.String("backend", s.primary.Name()),
		)
	}
	return res, nil
}

// Clear resets both backends and forgets the in-process record. Absent
// backends are skipped; failures of present backends are returned.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.mem = nil
	s.mu.Unlock()

	var errs []error
	for _, b := range []Backend{s.primary, s.fallback} {
		if b == nil {
			continue
		}
		if err := b.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("tracking: clear: %w", err)
	}
	return nil
}
