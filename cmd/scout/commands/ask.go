package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/scout-go/internal/answer"
	"github.com/54b3r/scout-go/internal/engine"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/task"
)

// NewAskCmd constructs the `scout ask` command, which answers a question
// from the corpus.
func NewAskCmd() *cobra.Command {
	var (
		direct      bool
		showContext bool
		citations   bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the corpus",
		Long: `Answer a question using the documents in the corpus.

By default the answer is generated by the chat model from the retrieved
passages. --direct first asks the corpus-grounded model and falls back to
that path when it fails.

If --timeout elapses before the answer is ready, the passages retrieved so
far are printed.

Examples:
  scout ask "what techniques do recent papers propose against prompt injection?"
  scout ask --direct --citations "summarise CVE-2024-3094"
  scout ask --show-context --timeout 30s "how is ransomware initial access changing?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			eng, _, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			res := eng.AnswerWithin(cmd.Context(), question, timeout, engine.AnswerOptions{Direct: direct})

			out := cmd.OutOrStdout()
			if res.TimedOut {
				fmt.Fprintf(cmd.ErrOrStderr(), "answer not ready after %s\n", timeout)
				if contexts := retrievedContexts(res.Steps); len(contexts) > 0 {
					fmt.Fprintln(out, "Retrieved so far:")
					printContexts(out, contexts)
				}
				return fmt.Errorf("ask: %w", res.Err)
			}
			if res.Err != nil {
				return fmt.Errorf("ask: %w", res.Err)
			}

			if showContext {
				printContexts(out, res.Value.Contexts)
			}
			fmt.Fprintln(out, res.Value.Text)
			if citations {
				if block := answer.Citations(res.Value.Contexts); block != "" {
					fmt.Fprintln(out)
					fmt.Fprintln(out, block)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&direct, "direct", false, "Try the corpus-grounded model first")
	cmd.Flags().BoolVar(&showContext, "show-context", false, "Print the retrieved passages before the answer")
	cmd.Flags().BoolVar(&citations, "citations", false, "Append the answer's sources")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")

	return cmd
}

// retrievedContexts returns the contexts published by the retrieve step.
func retrievedContexts(steps []task.Step) []rag.RetrievedContext {
	for _, st := range steps {
		if c, ok := st.Output.([]rag.RetrievedContext); ok && st.Name == engine.StepRetrieve {
			return c
		}
	}
	return nil
}
