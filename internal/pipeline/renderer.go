package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/citecheck/internal/model"
)

// Renderer writes reports as JSON, Markdown or HTML and prints summaries
type Renderer struct {
	out     io.Writer
	verbose bool
}

// NewRenderer creates a renderer printing summaries to stdout
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{out: os.Stdout, verbose: verbose}
}

// WithOutput redirects summary output
func (r *Renderer) WithOutput(w io.Writer) *Renderer {
	r.out = w
	return r
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(Markdown(report)))
}

// RenderHTML converts the Markdown report into a standalone HTML page
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	page, err := HTML(report)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(page))
}

// Markdown formats the report: summary, unverified citations, every
// citation in text order, then clusters
func Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Citation report: %s\n\n", mdEscape(report.Source))
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Processed: %s\n", report.ProcessedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Citations: %d (verified %d, unverified %d)\n", s.TotalCitations, s.Verified, s.Unverified)
	fmt.Fprintf(&b, "- Clusters: %d\n\n", s.Clusters)

	if unverified := report.Unverified(); len(unverified) > 0 {
		b.WriteString("## Unverified citations\n\n")
		for _, c := range unverified {
			name := c.ExtractedCaseName
			if name == "" {
				name = "unknown case"
			}
			fmt.Fprintf(&b, "- **%s** (%s), offset %d\n", mdEscape(c.Text), mdEscape(name), c.Span.Start)
		}
		b.WriteString("\n")
	}

	if len(report.Citations) > 0 {
		b.WriteString("## Citations\n\n")
		b.WriteString("| ID | Citation | Extracted name | Year | Canonical name | Date | Source | Confidence |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, c := range report.Citations {
			canonical := mdEscape(c.CanonicalName)
			if c.CanonicalURL != "" && canonical != "" {
				canonical = fmt.Sprintf("[%s](%s)", canonical, c.CanonicalURL)
			}
			year := ""
			if y := c.ExtractedDate.Year(); y > 0 {
				year = fmt.Sprintf("%d", y)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %.2f |\n",
				c.ID, mdEscape(c.Text), mdEscape(c.ExtractedCaseName), year,
				canonical, c.CanonicalDate, c.Source, c.Confidence)
		}
		b.WriteString("\n")
	}

	if len(report.Clusters) > 0 {
		b.WriteString("## Parallel citations\n\n")
		for _, cl := range report.Clusters {
			var texts []string
			for _, id := range cl.Members {
				if c := report.CitationByID(id); c != nil {
					texts = append(texts, mdEscape(c.Text))
				}
			}
			name := cl.CanonicalName
			if name == "" {
				name = "unnamed"
			}
			fmt.Fprintf(&b, "- %s: %s (%s)", cl.ID, mdEscape(name), strings.Join(texts, ", "))
			if !cl.CanonicalDate.IsZero() {
				fmt.Fprintf(&b, ", %s", cl.CanonicalDate)
			}
			fmt.Fprintf(&b, ", confidence %.2f\n", cl.Confidence)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders the Markdown report with goldmark
func HTML(report *model.Report) (string, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(report)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>Citation report: " +
		html.EscapeString(report.Source) + "</title>" +
		"<style>body{font-family:sans-serif;max-width:1100px;margin:1rem auto;} " +
		"table{border-collapse:collapse;width:100%;font-size:0.85rem;} " +
		"th,td{border:1px solid #ccc;padding:0.3rem 0.4rem;text-align:left;}</style>" +
		"</head><body>" + content.String() + "</body></html>\n", nil
}

// RenderSummary prints a short summary, unverified citations first
func (r *Renderer) RenderSummary(report *model.Report) {
	s := report.Summary
	fmt.Fprintf(r.out, "%s: %d citations, %d verified, %d unverified, %d clusters\n",
		report.Source, s.TotalCitations, s.Verified, s.Unverified, s.Clusters)

	for _, c := range report.Unverified() {
		name := c.ExtractedCaseName
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(r.out, "  ✗ %-24s %s\n", c.Text, name)
	}

	if !r.verbose {
		return
	}
	for _, c := range report.Citations {
		if !c.Verified {
			continue
		}
		fmt.Fprintf(r.out, "  ✓ %-24s %s", c.Text, c.CanonicalName)
		if !c.CanonicalDate.IsZero() {
			fmt.Fprintf(r.out, " (%s)", c.CanonicalDate)
		}
		fmt.Fprintf(r.out, " [%s %.2f]\n", c.Source, c.Confidence)
	}
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`").Replace(s)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
