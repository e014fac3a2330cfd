package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/scout-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "gemini-embedding-001"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ: override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGeminiDimensions is the full output dimension of gemini-embedding-001.
	defaultGeminiDimensions = 3072
)

// Config selects and configures an embedding backend. It is only consulted
// by corpus backends that index locally (Qdrant); managed corpora embed
// server-side.
type Config struct {
	// Provider is one of: ollama, openai, azure, gemini, vertex.
	Provider string
	// Model overrides the backend's default embedding model.
	Model string
	// Dimensions overrides the default vector size (0 = backend default).
	Dimensions int
	// APIKey authenticates openai, azure and gemini.
	APIKey string
	// Endpoint is the Ollama host, OpenAI base URL or Azure resource endpoint.
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Project and Location select the Vertex AI project for the vertex backend.
	Project  string
	Location string
}

// DefaultDimensions returns the embedding vector size for cfg. Callers that
// need to pre-configure a vector store (e.g. Qdrant collection creation)
// should use this rather than hardcoding a value.
func DefaultDimensions(cfg Config) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	switch cfg.Provider {
	case "ollama", "":
		return defaultOllamaDimensions
	case "gemini", "vertex":
		return defaultGeminiDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs a rag.Embedder for cfg.Provider.
func New(ctx context.Context, cfg Config) (rag.Embedder, error) {
	switch cfg.Provider {
	case "ollama", "":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: orDefault(cfg.Model, defaultOllamaModel),
		}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    orDefault(cfg.Endpoint, "https://api.openai.com/v1"),
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultOpenAIModel),
			Dimensions: DefaultDimensions(cfg),
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultOpenAIModel),
			Dimensions: DefaultDimensions(cfg),
			Azure:      true,
			APIVersion: orDefault(cfg.APIVersion, "2025-04-01-preview"),
		}), nil

	case "gemini", "vertex":
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Vertex:     cfg.Provider == "vertex",
			Project:    cfg.Project,
			Location:   cfg.Location,
			Model:      orDefault(cfg.Model, defaultGeminiModel),
			Dimensions: cfg.Dimensions,
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid: ollama, openai, azure, gemini, vertex)", cfg.Provider)
	}
}

// orDefault returns v, or fallback when v is empty.
func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
