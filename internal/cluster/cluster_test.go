package cluster

import (
	"testing"

	"github.com/ppiankov/citecheck/internal/associate"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/model"
)

func cite(id string, start, end int, name string, year int) *model.Citation {
	c := &model.Citation{
		ID:                id,
		Span:              model.Span{Start: start, End: end},
		ExtractedCaseName: name,
		NameConfidence:    0.9,
	}
	if year != 0 {
		c.ExtractedDate = model.YearDate(year)
	}
	return c
}

func TestBuildInText_ThreeStatements(t *testing.T) {
	text := "State v. Smith, 100 Wn.2d 1, 5 P.3d 2 (2000). " +
		"Doe v. Roe, 150 Wn. App. 10, 210 P.3d 40 (2009). " +
		"Jones v. Acme Corp., 200 Wn.2d 300, 400 P.3d 500 (2015)."

	citations := extract.NewExtractor(nil, nil).Extract(text)
	if len(citations) != 6 {
		t.Fatalf("expected 6 citations, got %d", len(citations))
	}
	associate.NewEngine(nil).Apply(text, citations)

	clusters := NewBuilder().BuildInText(text, citations)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(clusters))
	}

	want := [][2]string{
		{"100 Wn.2d 1", "5 P.3d 2"},
		{"150 Wn. App. 10", "210 P.3d 40"},
		{"200 Wn.2d 300", "400 P.3d 500"},
	}
	names := []string{"State v. Smith", "Doe v. Roe", "Jones v. Acme Corp."}
	report := &model.Report{Citations: citations}

	for i, cl := range clusters {
		if len(cl.Members) != 2 {
			t.Errorf("cluster %d: expected 2 members, got %d", i, len(cl.Members))
			continue
		}
		for j, id := range cl.Members {
			if got := report.CitationByID(id).Text; got != want[i][j] {
				t.Errorf("cluster %d member %d: expected %q, got %q", i, j, want[i][j], got)
			}
		}
		if cl.CanonicalName != names[i] {
			t.Errorf("cluster %d: expected canonical name %q, got %q", i, names[i], cl.CanonicalName)
		}
	}
}

func TestBuild_RejectsNameMismatch(t *testing.T) {
	citations := []*model.Citation{
		cite("cite-1", 0, 10, "State v. Smith", 2000),
		cite("cite-2", 12, 20, "Luis v. United States", 2000),
	}
	if clusters := NewBuilder().Build(citations); len(clusters) != 0 {
		t.Errorf("expected no clusters for different names, got %d", len(clusters))
	}
}

func TestBuild_RejectsYearMismatch(t *testing.T) {
	citations := []*model.Citation{
		cite("cite-1", 0, 10, "State v. Smith", 2000),
		cite("cite-2", 12, 20, "State v. Smith", 2001),
	}
	if clusters := NewBuilder().Build(citations); len(clusters) != 0 {
		t.Errorf("expected no clusters for different years, got %d", len(clusters))
	}
}

func TestBuild_InconsistentGroupRejectedWhole(t *testing.T) {
	citations := []*model.Citation{
		cite("cite-1", 0, 10, "State v. Smith", 2000),
		cite("cite-2", 15, 25, "State v. Smith", 2000),
		cite("cite-3", 30, 40, "State v. Smith", 2001),
	}
	if clusters := NewBuilder().Build(citations); len(clusters) != 0 {
		t.Errorf("expected the whole group to be rejected, got %d clusters with members %v", len(clusters), clusters[0].Members)
	}

	citations[2] = cite("cite-3", 30, 40, "Luis v. United States", 2000)
	if clusters := NewBuilder().Build(citations); len(clusters) != 0 {
		t.Errorf("expected the whole group to be rejected on a name mismatch, got %d clusters", len(clusters))
	}
}

func TestBuild_CanonicalDateFromFirstMember(t *testing.T) {
	first := cite("cite-1", 0, 10, "State v. Smith", 2000)
	second := cite("cite-2", 12, 20, "State v. Smith", 0)
	second.ExtractedDate = model.ParseDate("2000-06-01")

	clusters := NewBuilder().Build([]*model.Citation{first, second})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if got := clusters[0].CanonicalDate.String(); got != "2000" {
		t.Errorf("expected the first member's date 2000, got %s", got)
	}

	undated := cite("cite-1", 0, 10, "State v. Smith", 0)
	clusters = NewBuilder().Build([]*model.Citation{undated, second})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if got := clusters[0].CanonicalDate.String(); got != "2000-06-01" {
		t.Errorf("expected the date to fall back to the next member, got %s", got)
	}
}

func TestBuild_GapTooLarge(t *testing.T) {
	citations := []*model.Citation{
		cite("cite-1", 0, 10, "State v. Smith", 2000),
		cite("cite-2", 111, 120, "State v. Smith", 2000),
	}
	if clusters := NewBuilder().Build(citations); len(clusters) != 0 {
		t.Errorf("expected no clusters beyond the gap limit, got %d", len(clusters))
	}
}

func TestBuild_UnnamedMembersJoin(t *testing.T) {
	citations := []*model.Citation{
		cite("cite-2", 12, 20, "", 0),
		cite("cite-1", 0, 10, "State v. Smith", 2000),
		cite("cite-3", 22, 30, "State v. Smith", 0),
	}

	clusters := NewBuilder().Build(citations)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}

	cl := clusters[0]
	if len(cl.Members) != 3 || cl.Members[0] != "cite-1" || cl.Members[2] != "cite-3" {
		t.Errorf("expected members in text order, got %v", cl.Members)
	}
	if cl.CanonicalName != "State v. Smith" || cl.CanonicalDate.Year() != 2000 {
		t.Errorf("unexpected canonical fields: %q %d", cl.CanonicalName, cl.CanonicalDate.Year())
	}
	if cl.ID != "cluster-1" {
		t.Errorf("expected cluster-1, got %s", cl.ID)
	}
	if citations[0].ID != "cite-2" {
		t.Error("expected input order to be left untouched")
	}
}

func TestLinkAndRefresh(t *testing.T) {
	first := cite("cite-1", 0, 10, "State v. Smith", 2000)
	second := cite("cite-2", 12, 20, "State v. Smith", 2000)
	citations := []*model.Citation{first, second}

	clusters := NewBuilder().Build(citations)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	Link(clusters, citations)
	if first.ParallelOf != "cluster-1" || second.ParallelOf != "cluster-1" {
		t.Errorf("expected back-references, got %q / %q", first.ParallelOf, second.ParallelOf)
	}

	first.ApplyVerification(model.FallbackResult())
	second.ApplyVerification(model.VerificationResult{
		Verified:      true,
		CanonicalName: "State v. Smith",
		CanonicalDate: model.ParseDate("2000-06-01"),
		Source:        model.SourcePrimaryLookup,
		Confidence:    0.9,
	})

	Refresh(clusters, citations)
	cl := clusters[0]
	if cl.CanonicalDate.String() != "2000-06-01" {
		t.Errorf("expected canonical date from the verified member, got %s", cl.CanonicalDate)
	}
	if cl.Confidence != 0.45 {
		t.Errorf("expected mean confidence 0.45, got %f", cl.Confidence)
	}
	if first.Verified {
		t.Error("verification must not propagate to siblings")
	}
}
