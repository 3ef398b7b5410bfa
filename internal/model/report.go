package model

import "time"

// Report is the per-document output of the citation pipeline
type Report struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"` // File path or "-" for stdin
	ProcessedAt time.Time `json:"processed_at"`

	Citations []*Citation `json:"citations"` // Ordered by span start
	Clusters  []*Cluster  `json:"clusters"`  // Ordered by first member

	Summary Summary `json:"summary"`
}

// Summary holds the headline counts of a report
type Summary struct {
	TotalCitations int            `json:"total_citations"`
	Verified       int            `json:"verified"`
	Unverified     int            `json:"unverified"`
	Clusters       int            `json:"clusters"`
	BySource       map[string]int `json:"by_source,omitempty"`
}

// Summarize computes the summary counts from citations and clusters
func Summarize(citations []*Citation, clusters []*Cluster) Summary {
	summary := Summary{
		TotalCitations: len(citations),
		Clusters:       len(clusters),
		BySource:       make(map[string]int),
	}
	for _, c := range citations {
		if c.Verified {
			summary.Verified++
		} else {
			summary.Unverified++
		}
		if c.Source != "" {
			summary.BySource[c.Source]++
		}
	}
	return summary
}

// Unverified returns the citations no source could confirm
func (r *Report) Unverified() []*Citation {
	var out []*Citation
	for _, c := range r.Citations {
		if !c.Verified {
			out = append(out, c)
		}
	}
	return out
}

// CitationByID looks up a citation by its ID
func (r *Report) CitationByID(id string) *Citation {
	for _, c := range r.Citations {
		if c.ID == id {
			return c
		}
	}
	return nil
}
