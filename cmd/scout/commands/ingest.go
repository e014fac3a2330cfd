package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/54b3r/scout-go/internal/ingestion"
)

// NewIngestCmd constructs the `scout ingest` command, which imports new
// documents from the bucket into the corpus.
func NewIngestCmd() *cobra.Command {
	var (
		uploadDir string
		prefix    string
		force     bool
		wait      bool
		batchSize int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [gs://bucket/object ...]",
		Short: "Import documents from Cloud Storage into the corpus",
		Long: `Import documents into the RAG corpus.

With no arguments every object under the configured DOCUMENT_PREFIXES is
listed and imported. Explicit gs:// references ingest just those objects.
With --upload-dir the files of a local directory are first uploaded under
--prefix and then ingested.

Documents already recorded as ingested into the current corpus are skipped
unless --force is given. Imports are sent in batches of at most 25.

Examples:
  scout ingest
  scout ingest gs://my-bucket/cves/CVE-2024-3094.pdf
  scout ingest --upload-dir ./papers --prefix uploaded_papers/
  scout ingest --force --wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, _, err := openEngine(cmd, nil)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			opts := ingestion.Options{Force: force, Wait: wait, BatchSize: batchSize}

			var res *ingestion.Result
			if uploadDir != "" {
				res, err = eng.UploadAndIngest(ctx, uploadDir, prefix, opts)
			} else {
				res, err = eng.Ingest(ctx, args, opts)
			}
			if err != nil && !errors.Is(err, ingestion.ErrAllBatchesFailed) && !errors.Is(err, ingestion.ErrListingFailed) {
				return fmt.Errorf("ingest: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if perr := printJSON(out, res); perr != nil {
					return perr
				}
			} else {
				printIngestResult(out, res)
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&uploadDir, "upload-dir", "", "Upload the files of this local directory before ingesting them")
	cmd.Flags().StringVar(&prefix, "prefix", "uploaded_papers/", "Bucket prefix for --upload-dir")
	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest documents that are already tracked")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for each import to finish on the service")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Documents per import request (default: RAG_BATCH_SIZE, at most 25)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func printIngestResult(w io.Writer, res *ingestion.Result) {
	fmt.Fprintf(w, "Status:     %s\n", res.Status)
	fmt.Fprintf(w, "Requested:  %d\n", res.TotalRequested)
	fmt.Fprintf(w, "Skipped:    %d (already ingested)\n", res.Skipped)
	fmt.Fprintf(w, "Batches:    %d ok, %d failed of %d\n", res.SuccessfulBatches, res.FailedBatches, res.Batches)
	fmt.Fprintf(w, "Ingested:   %d\n", len(res.Ingested))
	if res.MetadataDisabled {
		fmt.Fprintln(w, "Note:       the service rejected document metadata; later batches were sent without it")
	}
	if !res.TrackingPersisted && len(res.Ingested) > 0 {
		fmt.Fprintln(w, "Warning:    the tracking record could not be saved; these documents may be imported again")
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "Error:      %s\n", e)
	}
}
