// Package budget estimates prompt sizes and trims retrieved contexts so a
// context-in-prompt answer fits the model's input window. Chat backends use
// different tokenizers, so estimation uses a conservative character
// heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/scout-go/internal/rag"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models while leaving room for the output.
	DefaultMaxContextTokens = 6000

	// contextSeparatorTokens accounts for the separator between contexts.
	contextSeparatorTokens = 1
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Per-message overhead is about 4 tokens in most APIs.
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// EstimateContexts returns the estimated token count of the context texts.
func EstimateContexts(contexts []rag.RetrievedContext) int {
	total := 0
	for _, c := range contexts {
		total += Estimate(c.Text) + contextSeparatorTokens
	}
	return total
}

// TrimContexts drops contexts from the end of the list (lowest ranked
// first) until fixedTokens plus the remaining contexts fit within
// maxTokens. The first context is always kept.
func TrimContexts(fixedTokens int, contexts []rag.RetrievedContext, maxTokens int) []rag.RetrievedContext {
	if len(contexts) <= 1 {
		return contexts
	}
	used := fixedTokens
	for i, c := range contexts {
		used += Estimate(c.Text) + contextSeparatorTokens
		if used > maxTokens {
			return contexts[:max(i, 1)]
		}
	}
	return contexts
}
