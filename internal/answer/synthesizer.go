// Package answer turns a query and its retrieved contexts into an answer.
//
// Two strategies exist. The direct strategy hands the prompt to a grounded
// generator that retrieves from the corpus itself; the manual strategy
// embeds the contexts in the prompt and calls a plain chat model. Direct
// failures fall back to manual. With no contexts at all, neither model is
// called and a fixed answer is returned.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/scout-go/internal/budget"
	"github.com/54b3r/scout-go/internal/metrics"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/retrieval"
)

// NoInformation is returned as the answer when no context was found.
const NoInformation = "No relevant information found."

// ErrEmptyReply is returned when the chat model answers with blank text,
// as it does when a reply is blocked.
var ErrEmptyReply = errors.New("answer: chat model returned an empty reply")

// Strategy names the path that produced an answer.
type Strategy string

const (
	// StrategyDirect means the grounded generator answered.
	StrategyDirect Strategy = "direct"
	// StrategyManual means the chat model answered from embedded contexts.
	StrategyManual Strategy = "manual"
	// StrategyNoContext means nothing was retrieved and no model was called.
	StrategyNoContext Strategy = "no_context"
)

// Retriever fetches contexts for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]rag.RetrievedContext, error)
}

// GroundedGenerator answers a prompt with retrieval bound to a corpus.
type GroundedGenerator interface {
	Generate(ctx context.Context, corpusID, prompt string) (string, error)
}

// Corpus resolves the corpus the grounded generator retrieves from.
type Corpus interface {
	GetOrCreate(ctx context.Context) (rag.Corpus, error)
}

// Config holds the collaborators of a Synthesizer.
type Config struct {
	// Retriever fetches contexts when the caller supplies none. Required.
	Retriever Retriever

	// Chat answers on the manual path. Required.
	Chat model.BaseChatModel

	// Grounded enables the direct path when non-nil.
	Grounded GroundedGenerator

	// Corpus is required when Grounded is set.
	Corpus Corpus

	// MaxContextTokens bounds the manual prompt. Defaults to
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// Metrics records answers by strategy. Nil disables recording.
	Metrics *metrics.Engine

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is a synthesized answer.
type Result struct {
	Text     string                 `json:"text"`
	Strategy Strategy               `json:"strategy"`
	Contexts []rag.RetrievedContext `json:"contexts"`
}

// Synthesizer produces answers. It is safe for concurrent use when its
// collaborators are.
type Synthesizer struct {
	retriever Retriever
	chat      model.BaseChatModel
	grounded  GroundedGenerator
	corpus    Corpus
	maxTokens int
	metrics   *metrics.Engine
	log       *slog.Logger
}

// New constructs a Synthesizer.
func New(cfg Config) (*Synthesizer, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("answer: retriever is required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("answer: chat model is required")
	}
	if cfg.Grounded != nil && cfg.Corpus == nil {
		return nil, errors.New("answer: corpus is required with a grounded generator")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}
	return &Synthesizer{
		retriever: cfg.Retriever,
		chat:      cfg.Chat,
		grounded:  cfg.Grounded,
		corpus:    cfg.Corpus,
		maxTokens: maxTokens,
		metrics:   cfg.Metrics,
		log:       log,
	}, nil
}

// Answer answers query. contexts, when non-nil, are used instead of
// retrieving; an empty non-nil slice means "nothing was found".
func (s *Synthesizer) Answer(ctx context.Context, query string, contexts []rag.RetrievedContext) (*Result, error) {
	fetched := contexts != nil

	if s.grounded != nil {
		if !fetched {
			got, err := s.retriever.Retrieve(ctx, query, retrieval.Options{})
			if err != nil {
				s.log.Warn("answer: retrieval failed on the direct path", slog.Any("error", err))
			} else {
				contexts, fetched = got, true
			}
		}
		if fetched && len(contexts) == 0 {
			return s.noContext(), nil
		}
		if fetched {
			res, err := s.direct(ctx, query, contexts)
			if err == nil {
				return res, nil
			}
			s.log.Warn("answer: direct generation failed, falling back to manual", slog.Any("error", err))
		}
	}

	return s.manual(ctx, query, contexts, fetched)
}

// direct asks the grounded generator.
func (s *Synthesizer) direct(ctx context.Context, query string, contexts []rag.RetrievedContext) (*Result, error) {
	corpus, err := s.corpus.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	text, err := s.grounded.Generate(ctx, corpus.ID, Prompt(query, contexts))
	if err != nil {
		return nil, err
	}
	s.metrics.Answer(string(StrategyDirect))
	return &Result{Text: text, Strategy: StrategyDirect, Contexts: contexts}, nil
}

// manual embeds the contexts in the prompt and asks the chat model.
func (s *Synthesizer) manual(ctx context.Context, query string, contexts []rag.RetrievedContext, fetched bool) (*Result, error) {
	if !fetched {
		got, err := s.retriever.Retrieve(ctx, query, retrieval.Options{})
		if err != nil {
			s.log.Warn("answer: retrieval failed, answering without context", slog.Any("error", err))
		}
		contexts = got
	}
	if len(contexts) == 0 {
		return s.noContext(), nil
	}

	fixed := budget.Estimate(Prompt(query, nil))
	trimmed := budget.TrimContexts(fixed, contexts, s.maxTokens)
	if len(trimmed) < len(contexts) {
		s.log.Warn("answer: contexts trimmed to fit the context window",
			slog.Int("kept", len(trimmed)),
			slog.Int("dropped", len(contexts)-len(trimmed)),
			slog.Int("max_tokens", s.maxTokens),
		)
	}

	msg, err := s.chat.Generate(ctx, []*schema.Message{schema.UserMessage(Prompt(query, trimmed))})
	if err != nil {
		return nil, fmt.Errorf("answer: generate: %w", err)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return nil, ErrEmptyReply
	}
	s.metrics.Answer(string(StrategyManual))
	return &Result{Text: text, Strategy: StrategyManual, Contexts: trimmed}, nil
}

func (s *Synthesizer) noContext() *Result {
	s.metrics.Answer(string(StrategyNoContext))
	return &Result{Text: NoInformation, Strategy: StrategyNoContext, Contexts: []rag.RetrievedContext{}}
}

// Prompt builds the answer prompt around the context texts.
func Prompt(query string, contexts []rag.RetrievedContext) string {
	texts := make([]string, 0, len(contexts))
	for _, c := range contexts {
		texts = append(texts, c.Text)
	}
	var b strings.Builder
	b.WriteString("Use the following information to answer the question. ")
	b.WriteString(`If you don't know the answer, just say "I don't have enough information to answer that."`)
	b.WriteString("\n\nContext: ")
	b.WriteString(strings.Join(texts, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
