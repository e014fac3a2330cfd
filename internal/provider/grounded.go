package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GroundedConfig holds the parameters of a GroundedGenerator.
type GroundedConfig struct {
	// Project and Location address the Vertex AI endpoint.
	Project  string
	Location string

	// Model is the Gemini model, e.g. "gemini-2.5-flash".
	Model string

	// Temperature controls response randomness.
	Temperature float32

	// TopK and DistanceThreshold configure the retrieval tool.
	TopK              int
	DistanceThreshold float64

	// Client overrides the genai client, mainly for tests.
	Client *genai.Client
}

// GroundedGenerator answers prompts with Gemini on Vertex AI while giving
// the model a retrieval tool bound to a RAG corpus, so the service grounds
// the answer itself.
type GroundedGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	topK        int32
	threshold   float64
}

// NewGroundedGenerator constructs a GroundedGenerator.
func NewGroundedGenerator(ctx context.Context, cfg GroundedConfig) (*GroundedGenerator, error) {
	if cfg.Model == "" {
		return nil, errors.New("provider: grounded generator: model is required")
	}
	client := cfg.Client
	if client == nil {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, errors.New("provider: grounded generator: GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_LOCATION are required")
		}
		var err error
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		})
		if err != nil {
			return nil, fmt.Errorf("provider: grounded generator: create client: %w", err)
		}
	}
	return &GroundedGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topK:        int32(cfg.TopK),
		threshold:   cfg.DistanceThreshold,
	}, nil
}

// Generate sends prompt with a retrieval tool bound to corpusID and returns
// the response text.
func (g *GroundedGenerator) Generate(ctx context.Context, corpusID, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		g.config(corpusID),
	)
	if err != nil {
		return "", fmt.Errorf("provider: grounded generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("provider: grounded generate: empty response")
	}
	return text, nil
}

// config builds the generation config carrying the retrieval tool.
func (g *GroundedGenerator) config(corpusID string) *genai.GenerateContentConfig {
	store := &genai.VertexRAGStore{
		RAGResources: []*genai.VertexRAGStoreRAGResource{{RAGCorpus: corpusID}},
	}
	if g.topK > 0 {
		k := g.topK
		store.SimilarityTopK = &k
	}
	if g.threshold > 0 {
		d := g.threshold
		store.VectorDistanceThreshold = &d
	}
	temp := g.temperature
	return &genai.GenerateContentConfig{
		Temperature: &temp,
		Tools: []*genai.Tool{{
			Retrieval: &genai.Retrieval{VertexRAGStore: store},
		}},
	}
}
