package tracking

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/storage"
)

// Backend is one persisted copy of the tracking record.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Read returns the persisted record. found is false when nothing has
	// been persisted yet.
	Read(ctx context.Context) (rec *Record, found bool, err error)

	// Write replaces the persisted record.
	Write(ctx context.Context, rec *Record) error

	// Reset removes the persisted record. Resetting an empty backend is
	// not an error.
	Reset(ctx context.Context) error
}

// DefaultMetadataPath returns the metadata file path that sits next to
// trackingPath.
func DefaultMetadataPath(trackingPath string) string {
	return path.Join(path.Dir(trackingPath), "document_metadata.json")
}

// ObjectBackend persists the record as two JSON objects in object storage:
// the tracking file and the metadata file.
type ObjectBackend struct {
	store        storage.ObjectStore
	trackingPath string
	metadataPath string
}

// NewObjectBackend constructs an ObjectBackend. An empty metadataPath
// defaults to DefaultMetadataPath(trackingPath).
func NewObjectBackend(store storage.ObjectStore, trackingPath, metadataPath string) *ObjectBackend {
	if metadataPath == "" {
		metadataPath = DefaultMetadataPath(trackingPath)
	}
	return &ObjectBackend{store: store, trackingPath: trackingPath, metadataPath: metadataPath}
}

// Name implements Backend.
func (b *ObjectBackend) Name() string { return "object-storage" }

// Read implements Backend. A missing or unreadable metadata file yields
// an empty metadata map rather than an error; the document set is what
// deduplication depends on.
func (b *ObjectBackend) Read(ctx context.Context) (*Record, bool, error) {
	var f fileRecord
	found, err := b.store.ReadJSON(ctx, b.trackingPath, &f)
	if err != nil {
		return nil, false, fmt.Errorf("tracking: read %s: %w", b.trackingPath, err)
	}
	if !found {
		return nil, false, nil
	}

	md := make(map[string]rag.DocumentMetadata)
	if _, err := b.store.ReadJSON(ctx, b.metadataPath, &md); err != nil {
		md = make(map[string]rag.DocumentMetadata)
	}
	return fromFile(f, md), true, nil
}

// Write implements Backend.
func (b *ObjectBackend) Write(ctx context.Context, rec *Record) error {
	if err := b.store.WriteJSON(ctx, b.trackingPath, rec.toFile()); err != nil {
		return fmt.Errorf("tracking: write %s: %w", b.trackingPath, err)
	}
	if err := b.store.WriteJSON(ctx, b.metadataPath, rec.Metadata); err != nil {
		return fmt.Errorf("tracking: write %s: %w", b.metadataPath, err)
	}
	return nil
}

// Reset implements Backend.
func (b *ObjectBackend) Reset(ctx context.Context) error {
	return errors.Join(
		b.store.Delete(ctx, b.trackingPath),
		b.store.Delete(ctx, b.metadataPath),
	)
}
