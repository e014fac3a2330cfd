package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewFilesCmd constructs the `scout files` command, which lists the files
// indexed in the corpus.
func NewFilesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the files indexed in the corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			files, err := eng.Files(cmd.Context())
			if err != nil {
				return fmt.Errorf("files: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, files)
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "The corpus has no files.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE\tSTATE")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.DisplayName, f.SourceURI, f.State)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the files as JSON")

	return cmd
}
