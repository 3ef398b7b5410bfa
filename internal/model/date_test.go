package model

import (
	"encoding/json"
	"testing"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in          string
		want        string
		specificity DateSpecificity
	}{
		{"", "", SpecificityNone},
		{"1954", "1954", SpecificityYear},
		{"2011-05", "2011-05", SpecificityMonth},
		{"2011-05-12", "2011-05-12", SpecificityDay},
		{"2011-05-12T00:00:00Z", "2011-05-12", SpecificityDay},
		{"May 2011", "", SpecificityNone},
		{"0000", "", SpecificityNone},
	}

	for _, tt := range tests {
		d := ParseDate(tt.in)
		if d.String() != tt.want {
			t.Errorf("ParseDate(%q).String() = %q, want %q", tt.in, d.String(), tt.want)
		}
		if d.Specificity != tt.specificity {
			t.Errorf("ParseDate(%q) specificity = %d, want %d", tt.in, d.Specificity, tt.specificity)
		}
	}
}

func TestSafeUpdateDate_MonotoneInSpecificity(t *testing.T) {
	writes := []string{"", "2011", "2011-05-12", "", "2011"}

	stored := ""
	for _, w := range writes {
		stored = SafeUpdateDate(stored, w)
	}
	if stored != "2011-05-12" {
		t.Errorf("expected 2011-05-12, got %q", stored)
	}
}

func TestSafeUpdate_EqualSpecificityKeepsFirst(t *testing.T) {
	d := ParseDate("1999")
	if d.SafeUpdate(ParseDate("2001")) {
		t.Error("expected equal specificity update to be rejected")
	}
	if d.Year() != 1999 {
		t.Errorf("expected 1999 to be kept, got %d", d.Year())
	}

	if !d.SafeUpdate(ParseDate("2001-03-04")) {
		t.Error("expected more specific update to be applied")
	}
	if d.String() != "2001-03-04" {
		t.Errorf("expected 2001-03-04, got %s", d)
	}
}

func TestDate_JSON(t *testing.T) {
	c := Citation{ExtractedDate: YearDate(1954)}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Citation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ExtractedDate != c.ExtractedDate {
		t.Errorf("expected %v, got %v", c.ExtractedDate, decoded.ExtractedDate)
	}
	if !decoded.CanonicalDate.IsZero() {
		t.Error("expected empty canonical date to stay zero")
	}
}

func TestSummarize(t *testing.T) {
	citations := []*Citation{
		{ID: "cite-1", Verified: true, Source: SourceLandmark},
		{ID: "cite-2", Verified: false, Source: SourceFallback},
		{ID: "cite-3", Verified: true, Source: SourcePrimaryLookup},
	}
	clusters := []*Cluster{{ID: "cluster-1", Members: []string{"cite-1", "cite-3"}}}

	s := Summarize(citations, clusters)
	if s.TotalCitations != 3 || s.Verified != 2 || s.Unverified != 1 || s.Clusters != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.BySource[SourceFallback] != 1 {
		t.Errorf("expected one fallback, got %d", s.BySource[SourceFallback])
	}

	r := &Report{Citations: citations}
	if got := r.Unverified(); len(got) != 1 || got[0].ID != "cite-2" {
		t.Errorf("unexpected unverified list: %+v", got)
	}
	if r.CitationByID("cite-3") == nil || r.CitationByID("missing") != nil {
		t.Error("CitationByID lookup mismatch")
	}
}
