package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citecheck/internal/pipeline"
)

var (
	outJSON      string
	outMD        string
	outHTML      string
	checkTimeout time.Duration
	failOnMiss   bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Extract and verify the citations in one document",
	Long: `Check reads plain document text and:
- Extracts reporter, Westlaw and LEXIS citations
- Recovers the case name and decision date each citation is cited with
- Groups parallel citations of one case
- Verifies each citation (landmark table, CourtListener, legal web search)
- Writes a JSON report and prints unverified citations first

Use "-" to read the document from stdin.

Example:
  citecheck check brief.txt
  citecheck check brief.txt --json report.json --md report.md --html report.html
  pdftotext brief.pdf - | citecheck check - --fail-on-unverified`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path (empty to skip)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	checkCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path (optional)")

	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "overall timeout; citations not reached are reported unverified")
	checkCmd.Flags().BoolVar(&failOnMiss, "fail-on-unverified", false, "exit non-zero when any citation is unverified")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", path)
		fmt.Fprintf(os.Stderr, "Cache tiers: %v\n", cacheTiers(s))
		fmt.Fprintln(os.Stderr)
	}

	report, err := s.newPipeline().ProcessFile(ctx, path)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if err := renderReport(pipeline.NewRenderer(verbose), report, outJSON, outMD, outHTML); err != nil {
		return err
	}

	if failOnMiss && report.Summary.Unverified > 0 {
		return fmt.Errorf("%d of %d citations unverified", report.Summary.Unverified, report.Summary.TotalCitations)
	}
	return nil
}

func cacheTiers(s *session) []string {
	if s.store == nil {
		return nil
	}
	return s.store.Tiers()
}
