package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/storage"
)

// ObjectStorePinger probes the document bucket with a metadata lookup of a
// single object. A missing object still proves the bucket is reachable.
type ObjectStorePinger struct {
	store storage.ObjectStore
	probe string
}

// NewObjectStorePinger probes store by looking up the object named probe.
func NewObjectStorePinger(store storage.ObjectStore, probe string) *ObjectStorePinger {
	return &ObjectStorePinger{store: store, probe: probe}
}

// Name returns the dependency label used in readiness responses.
func (p *ObjectStorePinger) Name() string { return "object-storage" }

// Ping looks up the probe object.
func (p *ObjectStorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.Exists(ctx, p.probe); err != nil {
		return fmt.Errorf("bucket lookup failed: %w", err)
	}
	return nil
}

// CorpusPinger probes the corpus service by listing corpora.
type CorpusPinger struct {
	svc  rag.CorpusService
	name string
}

// NewCorpusPinger constructs a CorpusPinger labelled name (e.g. "vertex-rag").
func NewCorpusPinger(svc rag.CorpusService, name string) *CorpusPinger {
	return &CorpusPinger{svc: svc, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *CorpusPinger) Name() string { return p.name }

// Ping lists corpora.
func (p *CorpusPinger) Ping(ctx context.Context) error {
	if _, err := p.svc.ListCorpora(ctx); err != nil {
		return fmt.Errorf("list corpora failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
