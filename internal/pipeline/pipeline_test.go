package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/verify"
)

// recordingVerifier answers from a fixed table and records every query
type recordingVerifier struct {
	mu      sync.Mutex
	queries []verify.Query
	answers map[string]model.VerificationResult
}

func (v *recordingVerifier) Verify(_ context.Context, q verify.Query) model.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queries = append(v.queries, q)
	if r, ok := v.answers[q.Citation]; ok {
		return r
	}
	return model.FallbackResult()
}

func (v *recordingVerifier) query(citation string) (verify.Query, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, q := range v.queries {
		if q.Citation == citation {
			return q, true
		}
	}
	return verify.Query{}, false
}

func TestProcess_BrownEndToEnd(t *testing.T) {
	cascade := verify.NewCascade([]verify.Stage{verify.NewLandmarkStage()}, nil, time.Second, nil)
	p := New(cascade, 2, nil)

	report := p.Process(context.Background(), "brief.txt",
		"Brown v. Board of Education, 347 U.S. 483 (1954), held that separate is inherently unequal.")

	if len(report.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(report.Citations))
	}
	c := report.Citations[0]
	if c.Text != "347 U.S. 483" {
		t.Errorf("unexpected text %q", c.Text)
	}
	if c.ExtractedCaseName != "Brown v. Board of Education" {
		t.Errorf("unexpected extracted name %q", c.ExtractedCaseName)
	}
	if c.ExtractedDate.Year() != 1954 {
		t.Errorf("expected extracted year 1954, got %d", c.ExtractedDate.Year())
	}
	if !c.Verified || c.Source != model.SourceLandmark || c.CanonicalName != "Brown v. Board of Education" {
		t.Errorf("expected landmark verification, got %+v", c)
	}

	if report.RunID == "" || report.Source != "brief.txt" {
		t.Errorf("unexpected report header %q %q", report.RunID, report.Source)
	}
	if report.Summary.TotalCitations != 1 || report.Summary.Verified != 1 || report.Summary.BySource[model.SourceLandmark] != 1 {
		t.Errorf("unexpected summary %+v", report.Summary)
	}
}

func TestProcess_ParallelsShareQueries(t *testing.T) {
	text := "State v. Smith, 100 Wn.2d 1, 5 P.3d 2 (2000). " +
		"Doe v. Roe, 150 Wn. App. 10, 210 P.3d 40 (2009). " +
		"Jones v. Acme Corp., 200 Wn.2d 300, 400 P.3d 500 (2015)."

	verifier := &recordingVerifier{answers: map[string]model.VerificationResult{
		"5 P.3d 2": {
			Verified:      true,
			CanonicalName: "State v. Smith",
			CanonicalDate: model.ParseDate("2000-06-01"),
			Source:        model.SourcePrimaryLookup,
			Confidence:    0.9,
		},
	}}
	report := New(verifier, 3, nil).Process(context.Background(), "doc", text)

	if len(report.Citations) != 6 || len(report.Clusters) != 3 {
		t.Fatalf("expected 6 citations in 3 clusters, got %d and %d", len(report.Citations), len(report.Clusters))
	}

	q, ok := verifier.query("100 Wn.2d 1")
	if !ok {
		t.Fatal("citation was not verified")
	}
	if q.CaseName != "State v. Smith" {
		t.Errorf("unexpected case name %q", q.CaseName)
	}
	if len(q.Parallels) != 1 || q.Parallels[0] != "5 P.3d 2" {
		t.Errorf("expected parallel 5 P.3d 2, got %v", q.Parallels)
	}

	// The cluster takes its canonical fields from the verified member
	first := report.Clusters[0]
	if first.CanonicalName != "State v. Smith" || first.CanonicalDate.String() != "2000-06-01" {
		t.Errorf("cluster not refreshed from verified member: %+v", first)
	}
	for _, id := range first.Members {
		if c := report.CitationByID(id); c.ParallelOf != first.ID {
			t.Errorf("citation %s not linked to %s", id, first.ID)
		}
	}

	if report.Summary.Verified != 1 || report.Summary.Unverified != 5 {
		t.Errorf("unexpected summary %+v", report.Summary)
	}
	for _, c := range report.Unverified() {
		if c.Source != model.SourceFallback {
			t.Errorf("unverified citation %s has source %q", c.Text, c.Source)
		}
	}
}

func TestProcess_CancelledKeepsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	verifier := &recordingVerifier{}
	report := New(verifier, 1, nil).Process(ctx, "doc", "Brown v. Board of Education, 347 U.S. 483 (1954).")

	if len(report.Citations) != 1 {
		t.Fatalf("expected extraction to complete, got %d citations", len(report.Citations))
	}
	if c := report.Citations[0]; c.Verified || c.Source != model.SourceFallback {
		t.Errorf("expected fallback, got %+v", c)
	}
}

func TestProcess_NoCitations(t *testing.T) {
	report := New(&recordingVerifier{}, 1, nil).Process(context.Background(), "doc", "Nothing to see here.")
	if report.Citations == nil || len(report.Citations) != 0 || report.Summary.TotalCitations != 0 {
		t.Errorf("expected empty citation list, got %+v", report)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"citations":[]`) {
		t.Errorf("expected empty JSON array, got %s", data)
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.txt")
	if err := os.WriteFile(path, []byte("See Miranda v. Arizona, 384 U.S. 436 (1966)."), 0o644); err != nil {
		t.Fatal(err)
	}

	cascade := verify.NewCascade([]verify.Stage{verify.NewLandmarkStage()}, nil, time.Second, nil)
	report, err := New(cascade, 1, nil).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if report.Source != path || len(report.Citations) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := New(cascade, 1, nil).ProcessFile(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func sampleReport() *model.Report {
	cascade := verify.NewCascade([]verify.Stage{verify.NewLandmarkStage()}, nil, time.Second, nil)
	return New(cascade, 1, nil).Process(context.Background(), "brief.txt",
		"Brown v. Board of Education, 347 U.S. 483 (1954). State v. Smith, 100 Wn.2d 1, 5 P.3d 2 (2000).")
}

func TestRenderer_WritesFiles(t *testing.T) {
	report := sampleReport()
	dir := t.TempDir()
	r := NewRenderer(false)

	jsonPath := filepath.Join(dir, "out", "report.json")
	if err := r.RenderJSON(report, jsonPath); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Citations) != 3 || decoded.Citations[0].ExtractedDate.Year() != 1954 {
		t.Errorf("unexpected decoded report %+v", decoded.Citations)
	}

	mdPath := filepath.Join(dir, "report.md")
	if err := r.RenderMarkdown(report, mdPath); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	md, _ := os.ReadFile(mdPath)
	for _, want := range []string{"# Citation report: brief.txt", "## Unverified citations", "100 Wn.2d 1", "## Parallel citations"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	htmlPath := filepath.Join(dir, "report.html")
	if err := r.RenderHTML(report, htmlPath); err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	page, _ := os.ReadFile(htmlPath)
	if !strings.Contains(string(page), "<table>") || !strings.Contains(string(page), "<h1>Citation report: brief.txt</h1>") {
		t.Errorf("unexpected HTML output: %s", page)
	}
}

func TestRenderer_SummaryListsUnverifiedFirst(t *testing.T) {
	report := sampleReport()
	var out bytes.Buffer
	NewRenderer(true).WithOutput(&out).RenderSummary(report)

	text := out.String()
	unverified := strings.Index(text, "✗ 100 Wn.2d 1")
	verified := strings.Index(text, "✓ 347 U.S. 483")
	if unverified < 0 || verified < 0 {
		t.Fatalf("summary missing entries:\n%s", text)
	}
	if unverified > verified {
		t.Errorf("unverified citations should come first:\n%s", text)
	}
	if !strings.HasPrefix(text, "brief.txt: 3 citations, 1 verified, 2 unverified, 1 clusters") {
		t.Errorf("unexpected headline:\n%s", text)
	}
}
