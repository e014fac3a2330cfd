package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama-3",
	"mistral",
	"mixtral",
	"gemma",
	"phi3",
	"claude",
	"deepseek",
	"qwen",
	"gemini-2",
	"gemini-1.5",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check for locally indexed corpora. It returns an
// error when cfg is clearly broken and logs a warning when the model looks
// like a chat model, so operators see a clear message at startup rather
// than a failure on the first import.
func Validate(cfg Config, log *slog.Logger) error {
	switch cfg.Provider {
	case "ollama", "":
	case "openai", "gemini":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: %s embedding requires an API key (EMBEDDING_API_KEY)", cfg.Provider)
		}
	case "azure":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: azure embedding requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("embedder: azure embedding requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "vertex":
		if cfg.Project == "" {
			return fmt.Errorf("embedder: vertex embedding requires GOOGLE_CLOUD_PROJECT")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q", cfg.Provider)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, gemini-embedding-001"),
		)
	}
	return nil
}
