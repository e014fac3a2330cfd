package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Corpus backends.
const (
	BackendVertex = "vertex"
	BackendQdrant = "qdrant"
)

// TrackingDBDisabled turns the local SQLite fallback off when used as
// SCOUT_TRACKING_DB.
const TrackingDBDisabled = "disabled"

// Built-in defaults, overridden by .env, YAML and the environment.
const (
	DefaultLocation          = "us-central1"
	DefaultCorpusName        = "scout_corpus"
	DefaultEmbeddingModel    = "gemini-embedding-001"
	DefaultGenerativeModel   = "gemini-2.5-flash"
	DefaultTopK              = 5
	DefaultDistanceThreshold = 0.6
	DefaultTemperature       = 0.2
	DefaultRerankerModel     = "gemini-2.5-flash"
	DefaultChunkSize         = 512
	DefaultChunkOverlap      = 100
	DefaultCloudTrackingPath = "tracking/ingested_docs.json"
	DefaultBatchSize         = 25
	DefaultRequestsPerMinute = 60
	DefaultMaxContextTokens  = 24000
	DefaultQdrantPort        = 6334
)

// DefaultDocumentPrefixes are the bucket prefixes scanned when an ingest
// names no documents.
var DefaultDocumentPrefixes = []string{"arxiv_security_papers/", "uploaded_papers/", "cves/"}

// ConfigurationError reports a missing or invalid setting. It is fatal at
// construction time.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Settings is the resolved engine configuration. Build it once with FromEnv
// and pass it by value to constructors.
type Settings struct {
	ProjectID         string
	Location          string
	CredentialsFile   string
	CorpusBackend     string
	CorpusName        string
	EmbeddingModel    string
	GenerativeModel   string
	TopK              int
	DistanceThreshold float64
	Temperature       float32
	RerankerModel     string
	UseReranking      bool
	MaxContextTokens  int
	Bucket            string
	DocumentPrefixes  []string
	UseCloudTracking  bool
	CloudTrackingPath string
	// TrackingDBPath is the SQLite fallback path. Empty selects the default
	// location; TrackingDBDisabled turns the fallback off.
	TrackingDBPath    string
	ChunkSize         int
	ChunkOverlap      int
	BatchSize         int
	RequestsPerMinute int

	Qdrant    QdrantSettings
	Embedding EmbeddingSettings
}

// QdrantSettings configures the qdrant corpus backend.
type QdrantSettings struct {
	Host   string
	Port   int
	APIKey string
	TLS    bool
}

// EmbeddingSettings configures client-side embedding for the qdrant backend.
type EmbeddingSettings struct {
	Provider   string
	Model      string
	Dimensions int
	APIKey     string
	Endpoint   string
}

// FromEnv reads Settings from the process environment, applying built-in
// defaults for unset or unparsable values.
func FromEnv() Settings {
	s := Settings{
		ProjectID:         os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location:          envOr("GOOGLE_CLOUD_LOCATION", DefaultLocation),
		CredentialsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		CorpusBackend:     strings.ToLower(envOr("CORPUS_BACKEND", BackendVertex)),
		CorpusName:        envOr("RAG_CORPUS_NAME", DefaultCorpusName),
		EmbeddingModel:    envOr("RAG_EMBEDDING_MODEL", DefaultEmbeddingModel),
		GenerativeModel:   envOr("RAG_GENERATIVE_MODEL", DefaultGenerativeModel),
		TopK:              envInt("RAG_TOP_K", DefaultTopK),
		DistanceThreshold: envFloat("RAG_DISTANCE_THRESHOLD", DefaultDistanceThreshold),
		Temperature:       float32(envFloat("RAG_TEMPERATURE", DefaultTemperature)),
		RerankerModel:     envOr("RAG_RERANKER_MODEL", DefaultRerankerModel),
		UseReranking:      envBool("RAG_USE_RERANKING", false),
		MaxContextTokens:  envInt("MODEL_MAX_CONTEXT_TOKENS", DefaultMaxContextTokens),
		Bucket:            os.Getenv("GCS_BUCKET"),
		DocumentPrefixes:  envList("DOCUMENT_PREFIXES", DefaultDocumentPrefixes),
		UseCloudTracking:  envBool("USE_CLOUD_TRACKING", true),
		CloudTrackingPath: envOr("CLOUD_TRACKING_PATH", DefaultCloudTrackingPath),
		TrackingDBPath:    os.Getenv("SCOUT_TRACKING_DB"),
		ChunkSize:         envInt("RAG_CHUNK_SIZE", DefaultChunkSize),
		ChunkOverlap:      envInt("RAG_CHUNK_OVERLAP", DefaultChunkOverlap),
		BatchSize:         envInt("RAG_BATCH_SIZE", DefaultBatchSize),
		RequestsPerMinute: envInt("RAG_IMPORT_RPM", DefaultRequestsPerMinute),
		Qdrant: QdrantSettings{
			Host:   envOr("QDRANT_HOST", "localhost"),
			Port:   envInt("QDRANT_PORT", DefaultQdrantPort),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			TLS:    envBool("QDRANT_TLS", false),
		},
		Embedding: EmbeddingSettings{
			Provider:   envOr("EMBEDDING_PROVIDER", "ollama"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		},
	}
	return s
}

// Validate checks the settings required to construct the engine.
func (s Settings) Validate() error {
	switch s.CorpusBackend {
	case BackendVertex:
		if s.ProjectID == "" {
			return &ConfigurationError{Field: "GOOGLE_CLOUD_PROJECT", Reason: "required for the vertex corpus backend"}
		}
		if s.Location == "" {
			return &ConfigurationError{Field: "GOOGLE_CLOUD_LOCATION", Reason: "must not be empty"}
		}
	case BackendQdrant:
		if s.Qdrant.Host == "" {
			return &ConfigurationError{Field: "QDRANT_HOST", Reason: "required for the qdrant corpus backend"}
		}
	default:
		return &ConfigurationError{Field: "CORPUS_BACKEND", Reason: fmt.Sprintf("unknown backend %q (valid: vertex, qdrant)", s.CorpusBackend)}
	}
	if s.Bucket == "" {
		return &ConfigurationError{Field: "GCS_BUCKET", Reason: "required"}
	}
	if s.CorpusName == "" {
		return &ConfigurationError{Field: "RAG_CORPUS_NAME", Reason: "must not be empty"}
	}
	if s.TopK <= 0 {
		return &ConfigurationError{Field: "RAG_TOP_K", Reason: "must be positive"}
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return &ConfigurationError{Field: "RAG_CHUNK_OVERLAP", Reason: "must be smaller than RAG_CHUNK_SIZE"}
	}
	return nil
}

// LocalTrackingEnabled reports whether the SQLite fallback is configured.
func (s Settings) LocalTrackingEnabled() bool {
	return !strings.EqualFold(s.TrackingDBPath, TrackingDBDisabled)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
