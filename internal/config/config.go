// Package config provides layered configuration for scout.
// Precedence, lowest first: built-in defaults → .env file → YAML file → env
// vars. The .env and YAML layers are applied onto the process environment
// without overwriting variables that are already set, so the environment
// always wins. FromEnv then reads the environment into an immutable Settings.
//
// YAML file search order:
//  1. --config CLI flag (explicit path)
//  2. SCOUT_CONFIG environment variable
//  3. ~/.scout/config.yaml
//  4. ./scout.yaml
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type File struct {
	GCP        GCPConfig        `yaml:"gcp"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// GCPConfig holds Google Cloud settings.
type GCPConfig struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	// CredentialsFile is a service account key. Empty means application
	// default credentials.
	CredentialsFile string `yaml:"credentials_file"`
}

// CorpusConfig holds corpus settings.
type CorpusConfig struct {
	// Backend selects the corpus service: vertex or qdrant.
	Backend        string `yaml:"backend"`
	Name           string `yaml:"name"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
}

// RetrievalConfig holds retrieval defaults.
type RetrievalConfig struct {
	TopK              int     `yaml:"top_k"`
	DistanceThreshold float64 `yaml:"distance_threshold"`
	UseReranking      *bool   `yaml:"use_reranking"`
	RerankerModel     string  `yaml:"reranker_model"`
}

// GenerationConfig holds answer model settings.
type GenerationConfig struct {
	// Provider selects the chat backend: vertex, gemini, ollama, openai, azure, ark.
	Provider         string       `yaml:"provider"`
	Model            string       `yaml:"model"`
	Temperature      float32      `yaml:"temperature"`
	MaxTokens        int          `yaml:"max_tokens"`
	MaxContextTokens int          `yaml:"max_context_tokens"`
	Ollama           OllamaConfig `yaml:"ollama"`
	OpenAI           OpenAIConfig `yaml:"openai"`
	Azure            AzureConfig  `yaml:"azure"`
	Gemini           GeminiConfig `yaml:"gemini"`
	Ark              ArkConfig    `yaml:"ark"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// GeminiConfig holds Gemini API provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ArkConfig holds Ark provider settings.
type ArkConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// StorageConfig holds object storage and tracking settings.
type StorageConfig struct {
	Bucket            string   `yaml:"bucket"`
	DocumentPrefixes  []string `yaml:"document_prefixes"`
	UseCloudTracking  *bool    `yaml:"use_cloud_tracking"`
	CloudTrackingPath string   `yaml:"cloud_tracking_path"`
	// TrackingDBPath is the local SQLite fallback. Set to "disabled" to disable.
	TrackingDBPath string `yaml:"tracking_db_path"`
}

// IngestionConfig holds ingestion pacing.
type IngestionConfig struct {
	BatchSize         int `yaml:"batch_size"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// EmbeddingConfig holds embedding settings for the Qdrant backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant settings.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var SCOUT_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*File) string
}{
	{"GOOGLE_CLOUD_PROJECT", func(c *File) string { return c.GCP.Project }},
	{"GOOGLE_CLOUD_LOCATION", func(c *File) string { return c.GCP.Location }},
	{"GOOGLE_APPLICATION_CREDENTIALS", func(c *File) string { return c.GCP.CredentialsFile }},
	{"CORPUS_BACKEND", func(c *File) string { return c.Corpus.Backend }},
	{"RAG_CORPUS_NAME", func(c *File) string { return c.Corpus.Name }},
	{"RAG_EMBEDDING_MODEL", func(c *File) string { return c.Corpus.EmbeddingModel }},
	{"RAG_CHUNK_SIZE", func(c *File) string { return intStr(c.Corpus.ChunkSize) }},
	{"RAG_CHUNK_OVERLAP", func(c *File) string { return intStr(c.Corpus.ChunkOverlap) }},
	{"RAG_TOP_K", func(c *File) string { return intStr(c.Retrieval.TopK) }},
	{"RAG_DISTANCE_THRESHOLD", func(c *File) string { return float64Str(c.Retrieval.DistanceThreshold) }},
	{"RAG_USE_RERANKING", func(c *File) string { return boolPtrStr(c.Retrieval.UseReranking) }},
	{"RAG_RERANKER_MODEL", func(c *File) string { return c.Retrieval.RerankerModel }},
	{"MODEL_PROVIDER", func(c *File) string { return c.Generation.Provider }},
	{"RAG_GENERATIVE_MODEL", func(c *File) string { return c.Generation.Model }},
	{"RAG_TEMPERATURE", func(c *File) string { return float32Str(c.Generation.Temperature) }},
	{"MODEL_MAX_TOKENS", func(c *File) string { return intStr(c.Generation.MaxTokens) }},
	{"MODEL_MAX_CONTEXT_TOKENS", func(c *File) string { return intStr(c.Generation.MaxContextTokens) }},
	{"OLLAMA_HOST", func(c *File) string { return c.Generation.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *File) string { return c.Generation.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *File) string { return c.Generation.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *File) string { return c.Generation.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *File) string { return c.Generation.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *File) string { return c.Generation.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *File) string { return c.Generation.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *File) string { return c.Generation.Azure.APIVersion }},
	{"GOOGLE_API_KEY", func(c *File) string { return c.Generation.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *File) string { return c.Generation.Gemini.Model }},
	{"ARK_API_KEY", func(c *File) string { return c.Generation.Ark.APIKey }},
	{"ARK_BASE_URL", func(c *File) string { return c.Generation.Ark.BaseURL }},
	{"ARK_MODEL", func(c *File) string { return c.Generation.Ark.Model }},
	{"GCS_BUCKET", func(c *File) string { return c.Storage.Bucket }},
	{"DOCUMENT_PREFIXES", func(c *File) string { return strings.Join(c.Storage.DocumentPrefixes, ",") }},
	{"USE_CLOUD_TRACKING", func(c *File) string { return boolPtrStr(c.Storage.UseCloudTracking) }},
	{"CLOUD_TRACKING_PATH", func(c *File) string { return c.Storage.CloudTrackingPath }},
	{"SCOUT_TRACKING_DB", func(c *File) string { return c.Storage.TrackingDBPath }},
	{"RAG_BATCH_SIZE", func(c *File) string { return intStr(c.Ingestion.BatchSize) }},
	{"RAG_IMPORT_RPM", func(c *File) string { return intStr(c.Ingestion.RequestsPerMinute) }},
	{"EMBEDDING_PROVIDER", func(c *File) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *File) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *File) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *File) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *File) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *File) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *File) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *File) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *File) string { return boolStr(c.Qdrant.TLS) }},
	{"SCOUT_HOST", func(c *File) string { return c.Server.Host }},
	{"SCOUT_PORT", func(c *File) string { return intStr(c.Server.Port) }},
	{"SCOUT_API_KEY", func(c *File) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *File) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *File) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *File) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *File) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *File) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if _, set := os.LookupEnv(m.envKey); set {
			continue
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("SCOUT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".scout", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("scout.yaml"); err == nil {
		return "scout.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// boolPtrStr converts an optional bool, returning "" when unset so an
// explicit false in YAML still reaches the environment.
func boolPtrStr(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "true"
	}
	return "false"
}
