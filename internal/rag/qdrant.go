package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/tmc/langchaingo/textsplitter"
)

// ObjectReader fetches document bytes for backends that index locally.
type ObjectReader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// QdrantConfig holds connection parameters for a Qdrant-backed corpus service.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// VectorSize is the dimensionality of the embeddings stored in new collections.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Embedder embeds chunks at import time and queries at retrieval time.
	Embedder Embedder

	// Objects reads source documents referenced by import requests.
	Objects ObjectReader

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// QdrantCorpusService implements CorpusService on Qdrant. Each corpus is a
// collection whose display name is kept in the collection metadata; import
// reads, chunks and embeds documents locally.
type QdrantCorpusService struct {
	client   *qdrant.Client
	cfg      *QdrantConfig
	embedder Embedder
	objects  ObjectReader
	log      *slog.Logger
}

// Payload keys written on every point.
const (
	payloadText        = "text"
	payloadSource      = "source"
	payloadDisplayName = "display_name"
	payloadChunkIndex  = "chunk_index"

	// collectionDisplayKey is the collection metadata key holding the display name.
	collectionDisplayKey = "display_name"

	// approxCharsPerToken converts the token-denominated chunk size into
	// characters for the local splitter.
	approxCharsPerToken = 4

	scrollPageSize = 256
)

var unsafeCollectionChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// NewQdrantCorpusService connects to Qdrant.
func NewQdrantCorpusService(cfg *QdrantConfig) (*QdrantCorpusService, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("qdrant: embedder must not be nil")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("qdrant: object reader must not be nil")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantCorpusService{
		client:   client,
		cfg:      cfg,
		embedder: cfg.Embedder,
		objects:  cfg.Objects,
		log:      log,
	}, nil
}

// Client exposes the underlying client for health checks.
func (s *QdrantCorpusService) Client() *qdrant.Client { return s.client }

// ListCorpora enumerates collections and reads their display names.
func (s *QdrantCorpusService) ListCorpora(ctx context.Context) ([]Corpus, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant: list collections: %w: %w", ErrTransientIO, err)
	}
	corpora := make([]Corpus, 0, len(names))
	for _, name := range names {
		display := name
		if i := strings.LastIndex(name, "__"); i > 0 {
			display = name[:i]
		}
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err == nil {
			if v, ok := info.GetConfig().GetMetadata()[collectionDisplayKey]; ok && v.GetStringValue() != "" {
				display = v.GetStringValue()
			}
		}
		corpora = append(corpora, Corpus{ID: name, DisplayName: display})
	}
	return corpora, nil
}

// CreateCorpus creates a new collection. The name carries a random suffix
// so a recreated corpus never reuses the previous ID.
func (s *QdrantCorpusService) CreateCorpus(ctx context.Context, spec CorpusSpec) (Corpus, error) {
	slug := strings.Trim(unsafeCollectionChars.ReplaceAllString(spec.DisplayName, "_"), "_")
	if slug == "" {
		slug = "corpus"
	}
	name := slug + "__" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
		Metadata: qdrant.NewValueMap(map[string]any{
			collectionDisplayKey: spec.DisplayName,
			"description":        spec.Description,
		}),
	})
	if err != nil {
		return Corpus{}, fmt.Errorf("qdrant: create collection %q: %w", name, err)
	}
	s.log.Info("qdrant: created collection", slog.String("collection", name))
	return Corpus{ID: name, DisplayName: spec.DisplayName}, nil
}

// DeleteCorpus drops the collection.
func (s *QdrantCorpusService) DeleteCorpus(ctx context.Context, corpusID string) error {
	if err := s.client.DeleteCollection(ctx, corpusID); err != nil {
		return fmt.Errorf("qdrant: delete collection %q: %w", corpusID, err)
	}
	return nil
}

// ImportFiles reads, splits, embeds and upserts every reference. Point IDs
// derive from the reference and chunk index, so re-importing a document
// overwrites its chunks instead of duplicating them. The batch fails as a
// whole if any document fails.
func (s *QdrantCorpusService) ImportFiles(ctx context.Context, corpusID string, req ImportRequest) (ImportHandle, error) {
	size := req.Chunking.Size * approxCharsPerToken
	if size <= 0 {
		size = 512 * approxCharsPerToken
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(req.Chunking.Overlap*approxCharsPerToken),
	)

	for _, ref := range req.Refs {
		data, err := s.objects.Read(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("qdrant: read %s: %w: %w", ref, ErrTransientIO, err)
		}
		text, err := ExtractText(ref, data)
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		chunks, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("qdrant: split %s: %w", ref, err)
		}
		if len(chunks) == 0 {
			s.log.Warn("qdrant: document has no extractable text", slog.String("ref", ref))
			continue
		}

		vectors, err := s.embedder.Embed(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("qdrant: embed %s: %w", ref, err)
		}

		points := make([]*qdrant.PointStruct, 0, len(chunks))
		for i, chunk := range chunks {
			payload := map[string]any{
				payloadText:        chunk,
				payloadSource:      ref,
				payloadDisplayName: path.Base(ref),
				payloadChunkIndex:  int64(i),
			}
			if md, ok := req.Metadata[ref]; ok {
				for k, v := range md.Map() {
					if _, reserved := payload[k]; !reserved {
						payload[k] = v
					}
				}
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(ref, i)),
				Vectors: qdrant.NewVectorsDense(vectors[i]),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		wait := true
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: corpusID,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return nil, fmt.Errorf("qdrant: upsert %s: %w", ref, err)
		}
		s.log.Debug("qdrant: indexed document",
			slog.String("ref", ref),
			slog.Int("chunks", len(chunks)),
		)
	}
	return completedImport{}, nil
}

// ListFiles scrolls the collection and returns one entry per source document.
func (s *QdrantCorpusService) ListFiles(ctx context.Context, corpusID string) ([]FileInfo, error) {
	seen := make(map[string]bool)
	var files []FileInfo
	var offset *qdrant.PointId
	limit := uint32(scrollPageSize)

	for {
		points, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: corpusID,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayloadInclude(payloadSource, payloadDisplayName),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: scroll %q: %w: %w", corpusID, ErrTransientIO, err)
		}
		for _, p := range points {
			src := p.GetPayload()[payloadSource].GetStringValue()
			if src == "" || seen[src] {
				continue
			}
			seen[src] = true
			files = append(files, FileInfo{
				ID:          corpusID + "/" + src,
				DisplayName: p.GetPayload()[payloadDisplayName].GetStringValue(),
				SourceURI:   src,
				State:       "ACTIVE",
			})
		}
		if next == nil || len(points) == 0 {
			return files, nil
		}
		offset = next
	}
}

// qdrantContext mirrors the managed service's context shape so both
// backends flow through the same response adapter.
type qdrantContext struct {
	SourceURI         string  `json:"sourceUri"`
	SourceDisplayName string  `json:"sourceDisplayName"`
	Text              string  `json:"text"`
	Score             float64 `json:"score"`
}

// Retrieve embeds the query and runs a cosine similarity search. Qdrant
// scores are similarities, so the distance threshold d maps to a minimum
// score of 1-d. Qdrant has no rerank stage; a reranker request is rejected
// with ErrUnsupportedArgument.
func (s *QdrantCorpusService) Retrieve(ctx context.Context, req RetrievalRequest) (json.RawMessage, error) {
	if req.RerankerModel != "" {
		return nil, fmt.Errorf("qdrant: reranking with %q: %w", req.RerankerModel, ErrUnsupportedArgument)
	}

	embeddings, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("qdrant: embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("qdrant: embedder returned empty result for query")
	}

	limit := uint64(req.TopK)
	if limit == 0 {
		limit = 5
	}
	query := &qdrant.QueryPoints{
		CollectionName: req.CorpusID,
		Query:          qdrant.NewQuery(embeddings[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if req.DistanceThreshold > 0 && req.DistanceThreshold < 1 {
		minScore := float32(1 - req.DistanceThreshold)
		query.ScoreThreshold = &minScore
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	contexts := make([]qdrantContext, 0, len(results))
	for _, r := range results {
		p := r.GetPayload()
		contexts = append(contexts, qdrantContext{
			SourceURI:         p[payloadSource].GetStringValue(),
			SourceDisplayName: p[payloadDisplayName].GetStringValue(),
			Text:              p[payloadText].GetStringValue(),
			Score:             float64(r.GetScore()),
		})
	}

	var body struct {
		Contexts struct {
			Contexts []qdrantContext `json:"contexts"`
		} `json:"contexts"`
	}
	body.Contexts.Contexts = contexts
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("qdrant: encode results: %w", err)
	}
	return raw, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantCorpusService) Close() error {
	return s.client.Close()
}

// pointID derives a stable UUID for a document chunk.
func pointID(ref string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", ref, index))).String()
}
