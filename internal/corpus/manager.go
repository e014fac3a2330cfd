// Package corpus manages the lifecycle of the single named corpus the
// engine works against. The manager is either bound to a corpus (active) or
// not (absent); every operation that needs a corpus binds one first.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/54b3r/scout-go/internal/rag"
)

// ErrNotFound is returned by Lookup when no corpus has the display name.
var ErrNotFound = errors.New("corpus: not found")

// Clearer resets state that is only valid for a specific corpus.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Config holds the parameters of a Manager.
type Config struct {
	// Service is the remote corpus service. Required.
	Service rag.CorpusService

	// DisplayName is the corpus lookup key. Required.
	DisplayName string

	// Description is attached to newly created corpora.
	Description string

	// EmbeddingModel overrides the service's default embedding model on create.
	EmbeddingModel string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager owns the binding to the configured corpus. It is safe for
// concurrent use.
type Manager struct {
	svc         rag.CorpusService
	displayName string
	description string
	model       string
	log         *slog.Logger

	mu      sync.Mutex
	current *rag.Corpus
}

// New constructs a Manager in the absent state.
func New(cfg Config) (*Manager, error) {
	if cfg.Service == nil {
		return nil, errors.New("corpus: service is required")
	}
	if cfg.DisplayName == "" {
		return nil, errors.New("corpus: display name is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		svc:         cfg.Service,
		displayName: cfg.DisplayName,
		description: cfg.Description,
		model:       cfg.EmbeddingModel,
		log:         log,
	}, nil
}

// DisplayName returns the configured corpus display name.
func (m *Manager) DisplayName() string { return m.displayName }

// CurrentID returns the bound corpus ID, or "" when absent.
func (m *Manager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// Current returns the bound corpus and whether one is bound.
func (m *Manager) Current() (rag.Corpus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return rag.Corpus{}, false
	}
	return *m.current, true
}

// GetOrCreate returns the bound corpus, binding to an existing corpus with
// the configured display name or creating one.
func (m *Manager) GetOrCreate(ctx context.Context) (rag.Corpus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return *m.current, nil
	}

	c, found, err := m.find(ctx)
	if err != nil {
		return rag.Corpus{}, err
	}
	if found {
		m.log.Debug("corpus: bound existing corpus",
			slog.String("display_name", c.DisplayName),
			slog.String("corpus_id", c.ID),
		)
		m.current = &c
		return c, nil
	}

	c, err = m.create(ctx)
	if err != nil {
		return rag.Corpus{}, err
	}
	m.current = &c
	return c, nil
}

// Lookup binds to an existing corpus without creating one. It returns
// ErrNotFound when no corpus has the configured display name.
func (m *Manager) Lookup(ctx context.Context) (rag.Corpus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return *m.current, nil
	}
	c, found, err := m.find(ctx)
	if err != nil {
		return rag.Corpus{}, err
	}
	if !found {
		return rag.Corpus{}, fmt.Errorf("%w: %s", ErrNotFound, m.displayName)
	}
	m.current = &c
	return c, nil
}

// find enumerates corpora for the configured display name. Caller holds mu.
func (m *Manager) find(ctx context.Context) (rag.Corpus, bool, error) {
	corpora, err := m.svc.ListCorpora(ctx)
	if err != nil {
		return rag.Corpus{}, false, fmt.Errorf("corpus: list: %w", err)
	}
	for _, c := range corpora {
		if c.DisplayName == m.displayName {
			return c, true, nil
		}
	}
	return rag.Corpus{}, false, nil
}

// create creates the corpus, retrying once without the embedding model
// override when the service rejects it. Caller holds mu.
func (m *Manager) create(ctx context.Context) (rag.Corpus, error) {
	spec := rag.CorpusSpec{
		DisplayName:    m.displayName,
		Description:    m.description,
		EmbeddingModel: m.model,
	}
	c, err := m.svc.CreateCorpus(ctx, spec)
	if err != nil && spec.EmbeddingModel != "" && rag.IsUnsupportedEmbeddingModel(err) {
		m.log.Warn("corpus: embedding model rejected, creating with service default",
			slog.String("embedding_model", spec.EmbeddingModel),
			slog.Any("error", err),
		)
		spec.EmbeddingModel = ""
		c, err = m.svc.CreateCorpus(ctx, spec)
	}
	if err != nil {
		return rag.Corpus{}, fmt.Errorf("corpus: create %s: %w", m.displayName, err)
	}
	m.log.Info("corpus: created",
		slog.String("display_name", c.DisplayName),
		slog.String("corpus_id", c.ID),
	)
	return c, nil
}

// Delete deletes the corpus and transitions to absent. In a fresh process
// the corpus is looked up first; deleting an absent corpus is a no-op.
func (m *Manager) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(ctx)
}

func (m *Manager) deleteLocked(ctx context.Context) error {
	if m.current == nil {
		c, found, err := m.find(ctx)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		m.current = &c
	}

	id := m.current.ID
	if err := m.svc.DeleteCorpus(ctx, id); err != nil && !rag.IsNotFound(err) {
		return fmt.Errorf("corpus: delete %s: %w", id, err)
	}
	m.log.Info("corpus: deleted", slog.String("corpus_id", id))
	m.current = nil
	return nil
}

// Recreate deletes the corpus, clears the state bound to it and creates a
// fresh corpus. A clear failure aborts before the new corpus is created so
// that no stale record can be bound to it.
func (m *Manager) Recreate(ctx context.Context, clearer Clearer) (rag.Corpus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldID := ""
	if m.current != nil {
		oldID = m.current.ID
	}
	if err := m.deleteLocked(ctx); err != nil {
		return rag.Corpus{}, err
	}
	if clearer != nil {
		if err := clearer.Clear(ctx); err != nil {
			return rag.Corpus{}, fmt.Errorf("corpus: recreate: clear tracking: %w", err)
		}
	}

	c, err := m.create(ctx)
	if err != nil {
		return rag.Corpus{}, err
	}
	if oldID != "" && c.ID == oldID {
		return rag.Corpus{}, fmt.Errorf("corpus: recreate: service returned the deleted corpus id %s", oldID)
	}
	m.current = &c
	return c, nil
}

// Import binds the corpus and submits one import batch.
func (m *Manager) Import(ctx context.Context, req rag.ImportRequest) (rag.ImportHandle, error) {
	c, err := m.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	h, err := m.svc.ImportFiles(ctx, c.ID, req)
	if err != nil {
		return nil, fmt.Errorf("corpus: import into %s: %w", c.ID, err)
	}
	return h, nil
}

// ListFiles enumerates the bound corpus. It does not bind or create.
func (m *Manager) ListFiles(ctx context.Context) ([]rag.FileInfo, error) {
	id := m.CurrentID()
	if id == "" {
		return nil, nil
	}
	files, err := m.svc.ListFiles(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("corpus: list files of %s: %w", id, err)
	}
	return files, nil
}

// Retrieve binds the corpus and runs req against it. req.CorpusID is
// overwritten with the bound ID.
func (m *Manager) Retrieve(ctx context.Context, req rag.RetrievalRequest) (json.RawMessage, error) {
	c, err := m.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	req.CorpusID = c.ID
	raw, err := m.svc.Retrieve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("corpus: retrieve from %s: %w", c.ID, err)
	}
	return raw, nil
}
