// Package provider constructs the generative models used to answer queries:
// an eino chat model for context-in-prompt answers, and a grounded
// generator that lets Gemini on Vertex AI retrieve from the corpus itself.
// Supported chat backends: Vertex AI Gemini, Gemini API, Ollama, OpenAI,
// Azure OpenAI, Ark.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported chat model providers.
type Backend string

const (
	// BackendVertex selects Gemini on Vertex AI with application default credentials.
	BackendVertex Backend = "vertex"
	// BackendGemini selects Gemini through the Gemini API with an API key.
	BackendGemini Backend = "gemini"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark runtime.
	BackendArk Backend = "ark"
)

// Config holds provider configuration resolved from environment variables or
// explicit caller-supplied values. Only the block matching Backend is read.
type Config struct {
	Backend Backend

	Vertex      ProviderVertex
	Gemini      ProviderGemini
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk

	Tuning SharedTuning
}

// ProviderVertex holds Gemini-on-Vertex settings.
type ProviderVertex struct {
	Project  string
	Location string
	Model    string
}

// ProviderGemini holds Gemini API settings.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	APIKey string
	Model  string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderArk holds Ark settings.
type ProviderArk struct {
	APIKey  string
	BaseURL string
	Model   string
}

// SharedTuning holds generation parameters common to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Validate reports the first missing setting for the selected backend,
// naming the env var that supplies it.
func (c *Config) Validate() error {
	var missing string
	switch c.Backend {
	case BackendVertex:
		switch {
		case c.Vertex.Project == "":
			missing = "GOOGLE_CLOUD_PROJECT"
		case c.Vertex.Location == "":
			missing = "GOOGLE_CLOUD_LOCATION"
		case c.Vertex.Model == "":
			missing = "RAG_GENERATIVE_MODEL"
		}
	case BackendGemini:
		switch {
		case c.Gemini.APIKey == "":
			missing = "GOOGLE_API_KEY"
		case c.Gemini.Model == "":
			missing = "GEMINI_MODEL"
		}
	case BackendOllama:
		if c.Ollama.Model == "" {
			missing = "OLLAMA_MODEL"
		}
	case BackendOpenAI:
		switch {
		case c.OpenAI.APIKey == "":
			missing = "OPENAI_API_KEY"
		case c.OpenAI.Model == "":
			missing = "OPENAI_MODEL"
		}
	case BackendAzure:
		switch {
		case c.AzureOpenAI.APIKey == "":
			missing = "AZURE_OPENAI_API_KEY"
		case c.AzureOpenAI.Endpoint == "":
			missing = "AZURE_OPENAI_ENDPOINT"
		case c.AzureOpenAI.Deployment == "":
			missing = "AZURE_OPENAI_DEPLOYMENT"
		}
	case BackendArk:
		switch {
		case c.Ark.APIKey == "":
			missing = "ARK_API_KEY"
		case c.Ark.Model == "":
			missing = "ARK_MODEL"
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: %s", c.Backend, strings.Join(backendNames(), ", "))
	}
	if missing != "" {
		return fmt.Errorf("provider: %s is required for %s backend", missing, c.Backend)
	}
	return nil
}

// ModelName returns the model or deployment the selected backend will use.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendVertex:
		return c.Vertex.Model
	case BackendGemini:
		return c.Gemini.Model
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	}
	return ""
}

func backendNames() []string {
	return []string{
		string(BackendVertex), string(BackendGemini), string(BackendOllama),
		string(BackendOpenAI), string(BackendAzure), string(BackendArk),
	}
}
