package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errAborted is returned when the user declines a confirmation prompt.
var errAborted = errors.New("aborted")

// NewCorpusCmd constructs the `scout corpus` command group.
func NewCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the RAG corpus",
	}
	cmd.AddCommand(newCorpusRecreateCmd(), newCorpusDeleteCmd())
	return cmd
}

func newCorpusRecreateCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "recreate",
		Short: "Delete the corpus, clear tracking and create an empty corpus",
		Long: `Delete the corpus and every file in it, clear the ingestion tracking record
and create a fresh empty corpus with the configured embedding model.

Run 'scout ingest' afterwards to import the documents again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, s, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Recreate corpus %q? Every indexed file will be removed", s.CorpusName)) {
				return errAborted
			}

			c, err := eng.RecreateCorpus(cmd.Context())
			if err != nil {
				return fmt.Errorf("corpus recreate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created corpus %s (%s)\n", c.DisplayName, c.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCorpusDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the corpus and clear tracking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, s, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Delete corpus %q?", s.CorpusName)) {
				return errAborted
			}

			if err := eng.DeleteCorpus(cmd.Context()); err != nil {
				return fmt.Errorf("corpus delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted corpus %s\n", s.CorpusName)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
