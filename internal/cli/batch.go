package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/ppiankov/citecheck/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchDir     string
	batchMD      bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [list-file]",
	Short: "Check many documents in parallel",
	Long: `Batch checks many documents concurrently:
- Read document paths from a list file (one per line, # for comments),
  or collect every .txt/.md document under --dir
- Process documents in parallel with a configurable worker count
- Citations within each document are verified concurrently as well
- Write one JSON report per document plus a summary table

Example:
  citecheck batch briefs.txt
  citecheck batch --dir ./filings --output-dir ./reports --md
  citecheck batch briefs.txt --concurrency 4 --timeout 30m`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "documents processed at once (default: concurrency.document_workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./citecheck-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "check every document under this directory")
	batchCmd.Flags().BoolVar(&batchMD, "md", false, "also write a Markdown report per document")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (batchDir == "") {
		return fmt.Errorf("give either a list file or --dir")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var paths []string
	source := batchDir
	if batchDir != "" {
		paths, err = worker.CollectDocuments(batchDir)
	} else {
		source = args[0]
		paths, err = worker.ReadPathsFromFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}

	workers := concurrency
	if workers <= 0 {
		workers = s.cfg.Concurrency.DocumentWorkers
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  citecheck batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s (%d documents)\n", source, len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(s.newPipeline(), workers)
	results := processor.ProcessPaths(ctx, paths)

	renderer := pipeline.NewRenderer(verbose)
	failures := 0
	var reports []*model.Report

	for i, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		base := filepath.Join(outputDir, fmt.Sprintf("%03d-%s", i+1, sanitizeFilename(result.Path)))
		md := ""
		if batchMD {
			md = base + ".md"
		}
		if err := renderReport(renderer, result.Report, base+".json", md, ""); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}
		reports = append(reports, result.Report)
	}

	printBatchTable(reports)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", len(reports))
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")
	return nil
}

// printBatchTable prints one row per document, to stdout
func printBatchTable(reports []*model.Report) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DOCUMENT\tCITATIONS\tVERIFIED\tUNVERIFIED\tCLUSTERS")
	for _, r := range reports {
		s := r.Summary
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", r.Source, s.TotalCitations, s.Verified, s.Unverified, s.Clusters)
	}
	_ = tw.Flush()
}

// renderReport writes every requested format and prints the summary
func renderReport(r *pipeline.Renderer, report *model.Report, jsonPath, mdPath, htmlPath string) error {
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}
	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}
	if htmlPath != "" {
		if err := r.RenderHTML(report, htmlPath); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote HTML: %s\n", htmlPath)
		}
	}

	r.RenderSummary(report)
	return nil
}

// sanitizeFilename turns a document path into a report file stem
func sanitizeFilename(path string) string {
	s := filepath.Base(path)
	s = strings.TrimSuffix(s, filepath.Ext(s))

	s = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	).Replace(s)

	if s == "" || s == "." {
		s = "document"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
