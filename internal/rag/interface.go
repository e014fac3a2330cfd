// Package rag defines the contracts shared by every stage of the retrieval
// pipeline: the remote corpus service, the embedding model used by backends
// that index locally, and the value types that flow between ingestion,
// tracking and retrieval.
// Concrete implementations (Vertex AI RAG Engine, Qdrant) satisfy
// [CorpusService] so the orchestration layer never depends on a specific backend.
package rag

import (
	"context"
	"encoding/json"
	"time"
)

// Corpus is a handle to a remote vector corpus.
type Corpus struct {
	// ID is the fully qualified resource name assigned by the service.
	ID string `json:"id"`

	// DisplayName is the human-chosen name used for lookup.
	DisplayName string `json:"display_name"`
}

// CorpusSpec describes a corpus to be created.
type CorpusSpec struct {
	// DisplayName is the lookup key for the corpus.
	DisplayName string

	// Description is optional free text.
	Description string

	// EmbeddingModel overrides the service default embedding model.
	// Empty means "let the service decide".
	EmbeddingModel string
}

// FileInfo is one entry of a live corpus enumeration.
type FileInfo struct {
	// ID is the service-assigned file resource name.
	ID string `json:"id"`

	// DisplayName is the file's display name, usually the object basename.
	DisplayName string `json:"display_name"`

	// SourceURI is the object-storage reference the file was imported from.
	SourceURI string `json:"source_uri"`

	// State is the service-reported processing state, if any.
	State string `json:"state,omitempty"`
}

// DocumentMetadata is derived from a document reference at ingestion time.
type DocumentMetadata struct {
	// Source is the document reference the metadata describes.
	Source string `json:"source"`

	// IngestionTimestamp is a Unix timestamp: the publication date when one
	// was recognised, the extraction time otherwise.
	IngestionTimestamp int64 `json:"ingestion_timestamp"`

	// PublicationDate is the recognised date formatted at its precision
	// (YYYY-MM-DD, YYYY-MM or YYYY).
	PublicationDate string `json:"publication_date,omitempty"`

	PublicationYear  int `json:"publication_year,omitempty"`
	PublicationMonth int `json:"publication_month,omitempty"`
	PublicationDay   int `json:"publication_day,omitempty"`

	// FileType is the lowercased extension without the leading dot.
	FileType string `json:"file_type,omitempty"`
}

// Map flattens the metadata into string key-value pairs for backends that
// store metadata as a flat payload.
func (m DocumentMetadata) Map() map[string]string {
	out := map[string]string{
		"source":              m.Source,
		"ingestion_timestamp": time.Unix(m.IngestionTimestamp, 0).UTC().Format(time.RFC3339),
	}
	if m.PublicationDate != "" {
		out["publication_date"] = m.PublicationDate
	}
	if m.FileType != "" {
		out["file_type"] = m.FileType
	}
	return out
}

// RetrievedContext is one retrieved passage.
type RetrievedContext struct {
	// Text is the passage content.
	Text string `json:"text"`

	// SourceURI is the document reference the passage came from.
	SourceURI string `json:"source_uri,omitempty"`

	// SourceDisplayName is a human-readable label for the source.
	SourceDisplayName string `json:"source_display_name,omitempty"`

	// Score is the relevance or distance reported by the service.
	// Nil means the service did not report one.
	Score *float64 `json:"score,omitempty"`
}

// ChunkingConfig controls how the service splits imported documents.
type ChunkingConfig struct {
	// Size is the target chunk size in tokens.
	Size int

	// Overlap is the number of tokens shared between consecutive chunks.
	Overlap int
}

// ImportRequest is a single batch import submitted to the corpus service.
type ImportRequest struct {
	// Refs are the object-storage references to import. At most 25 per call.
	Refs []string

	// Metadata optionally carries per-reference metadata. Backends that
	// cannot attach metadata return an error matching [ErrUnsupportedArgument].
	Metadata map[string]DocumentMetadata

	// Chunking configures the service-side splitter.
	Chunking ChunkingConfig
}

// ImportHandle represents an accepted import. Imports are asynchronous on
// some backends; Wait blocks until the service reports completion.
type ImportHandle interface {
	// Name is the service's operation identifier, empty for synchronous backends.
	Name() string

	// Wait blocks until the import completes or ctx is done.
	Wait(ctx context.Context) error
}

// RetrievalRequest is a single query against a corpus.
type RetrievalRequest struct {
	// CorpusID is the fully qualified corpus to query.
	CorpusID string

	// Query is the free-text query.
	Query string

	// TopK is the maximum number of contexts to return.
	TopK int

	// DistanceThreshold excludes results with a vector distance above it.
	DistanceThreshold float64

	// RerankerModel, when non-empty, attaches an LLM rerank stage.
	RerankerModel string
}

// CorpusService is the remote vector corpus. Implementations must be safe to
// call from multiple goroutines.
type CorpusService interface {
	// ListCorpora enumerates every corpus visible to the caller.
	ListCorpora(ctx context.Context) ([]Corpus, error)

	// CreateCorpus creates a corpus and returns its handle.
	CreateCorpus(ctx context.Context, spec CorpusSpec) (Corpus, error)

	// DeleteCorpus removes the corpus and everything indexed in it.
	DeleteCorpus(ctx context.Context, corpusID string) error

	// ImportFiles submits one batch of documents to the corpus.
	ImportFiles(ctx context.Context, corpusID string, req ImportRequest) (ImportHandle, error)

	// ListFiles enumerates the files currently indexed in the corpus.
	ListFiles(ctx context.Context, corpusID string) ([]FileInfo, error)

	// Retrieve runs a query and returns the raw service payload. The payload
	// shape is not fixed; callers normalise it.
	Retrieve(ctx context.Context, req RetrievalRequest) (json.RawMessage, error)
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// completedImport is the handle returned by synchronous backends.
type completedImport struct{}

func (completedImport) Name() string                 { return "" }
func (completedImport) Wait(_ context.Context) error { return nil }
