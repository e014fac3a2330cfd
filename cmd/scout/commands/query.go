package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/scout-go/internal/retrieval"
)

// NewQueryCmd constructs the `scout query` command, which retrieves the
// passages most relevant to a query without generating an answer.
func NewQueryCmd() *cobra.Command {
	var (
		topK          int
		threshold     float64
		rerank        bool
		rerankerModel string
		raw           bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Retrieve relevant passages from the corpus",
		Long: `Retrieve the passages most relevant to a query.

--raw prints the retrieval payload exactly as the service returned it.

Examples:
  scout query "lateral movement via kerberoasting"
  scout query --top-k 10 --rerank "supply chain attacks on build systems"
  scout query --raw "CVE-2024-3094"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			eng, _, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			opts := retrieval.Options{
				TopK:              topK,
				DistanceThreshold: threshold,
				RerankerModel:     rerankerModel,
			}
			if cmd.Flags().Changed("rerank") {
				opts.UseReranking = &rerank
			}

			out := cmd.OutOrStdout()
			if raw {
				payload, degraded, err := eng.RetrieveRaw(ctx, query, opts)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				if degraded {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: reranking was refused; results are unranked")
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}

			contexts, err := eng.Retrieve(ctx, query, opts)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			if asJSON {
				return printJSON(out, contexts)
			}
			printContexts(out, contexts)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of passages to retrieve (default: RAG_TOP_K)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Vector distance threshold (default: RAG_DISTANCE_THRESHOLD)")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Rerank results with the reranker model (default: RAG_USE_RERANKING)")
	cmd.Flags().StringVar(&rerankerModel, "reranker-model", "", "Reranker model (default: RAG_RERANKER_MODEL)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw service payload")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the passages as JSON")

	return cmd
}
