package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
)

func newIngestCmd() *cobra.Command {
	var keep, asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest [folder]",
		Short: "Rebuild the index from a folder of documents",
		Long: `Walk the folder, extract text from every supported file (text and
structured text, PDF, Word, PNG/JPEG/TIFF/BMP images), split it into chunks
and replace the collection with the result.

Extraction finishes before the collection is touched, so a run that fails
leaves the previous index in place. Per-file failures are reported and
skipped.

Examples:
  # Ingest the configured data folder (rag_data_source)
  ragctl ingest

  # Append a second folder without clearing
  ragctl ingest ./more-specs --keep`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			svc, err := a.ingestService()
			if err != nil {
				return err
			}
			report, err := svc.Ingest(ctx, a.folderArg(args), keep)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "append to the existing collection instead of rebuilding it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		topK      int
		threshold float64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Print the chunks most relevant to a query",
		Long: `Embed the query and print up to --top-k chunks whose distance is below
--threshold, closest first. Distance is 2*(1-cosine similarity), so 0 is
identical and 2 is opposite.

Examples:
  ragctl query "password reset flow"
  ragctl query "checkout validation" --top-k 10 --threshold 0.9`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			text := strings.Join(args, " ")
			results, err := a.engine.Query(ctx, text, topK, threshold)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no relevant documents found.")
				return nil
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "maximum results (default: vectorstore.top_k)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "distance cutoff (default: vectorstore.distance_threshold)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk from the collection",
		Long: `Delete and recreate the collection. This also resolves an embedding model
mismatch after changing embeddings.model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.engine.Clear(ctx); err != nil {
				return err
			}
			a.publisher.IndexCleared(ctx, a.cfg.VectorStore.Collection)
			cmd.Printf("Cleared collection %s\n", a.cfg.VectorStore.Collection)
			return nil
		},
	}
}

func printReport(w io.Writer, r *ingestion.RunReport) {
	fmt.Fprintf(w, "Ingested %s in %s\n", r.Root, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  files:   %d extracted, %d skipped, %d failed\n", r.FilesExtracted, r.FilesSkipped, r.FilesFailed)
	fmt.Fprintf(w, "  records: %d (%d duplicates dropped)\n", r.Records, r.Duplicates)
	fmt.Fprintf(w, "  chunks:  %d\n", r.Chunks)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  failed %s [%s]: %s\n", f.Path, f.Reason, f.Error)
	}
}

func printResults(w io.Writer, results []document.QueryResult) {
	for i, r := range results {
		meta := r.Chunk.Metadata
		fmt.Fprintf(w, "[%d] %s", i+1, meta.Source())
		if page := meta.Page(); page > 0 {
			fmt.Fprintf(w, " p.%d", page)
		}
		fmt.Fprintf(w, " (%s, distance %.4f)\n%s\n\n", meta.RecordType(), r.Distance, r.Chunk.Content)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
