package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd constructs the `scout status` command, which reports the
// corpus binding and the number of tracked documents.
func NewStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the corpus and ingestion tracking state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, s, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			st, err := eng.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, st)
			}
			corpus := "not created"
			if st.CorpusExists {
				corpus = st.CorpusID
			}
			fmt.Fprintf(out, "Backend:    %s\n", s.CorpusBackend)
			fmt.Fprintf(out, "Corpus:     %s (%s)\n", st.CorpusName, corpus)
			fmt.Fprintf(out, "Bucket:     gs://%s\n", s.Bucket)
			fmt.Fprintf(out, "Tracked:    %d documents\n", st.TrackedDocuments)
			if st.TrackedCorpusID != "" && st.TrackedCorpusID != st.CorpusID {
				fmt.Fprintf(out, "Note:       tracking is bound to %s; the next ingest starts fresh\n", st.TrackedCorpusID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")

	return cmd
}
