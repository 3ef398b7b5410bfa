// Package cluster groups parallel citations that refer to one case.
package cluster

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/similarity"
)

// Defaults for the proximity and consistency rules
const (
	DefaultMaxGap        = 100
	DefaultNameThreshold = 0.8
)

// Text between two citations that starts a new statement rather than
// continuing a parallel citation
var statementBreakRe = regexp.MustCompile(`;|[.!?]\)?\s+[A-Z]|\sv\.\s`)

// Builder groups citations by proximity and consistency
type Builder struct {
	MaxGap        int
	NameThreshold float64
}

// NewBuilder creates a builder with the default rules
func NewBuilder() *Builder {
	return &Builder{
		MaxGap:        DefaultMaxGap,
		NameThreshold: DefaultNameThreshold,
	}
}

// Build groups citations using proximity and name/year consistency only
func (b *Builder) Build(citations []*model.Citation) []*model.Cluster {
	return b.BuildInText("", citations)
}

// BuildInText groups citations from one document. When text is non-empty a
// statement break in the gap between two citations also ends a group.
// Input is not modified; clusters are numbered in text order.
func (b *Builder) BuildInText(text string, citations []*model.Citation) []*model.Cluster {
	ordered := make([]*model.Citation, len(citations))
	copy(ordered, citations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Span.Start < ordered[j].Span.Start
	})

	var clusters []*model.Cluster
	var group []*model.Citation

	// A finished group that fails the consistency check is dropped whole
	flush := func() {
		if len(group) >= 2 && b.consistent(group) {
			clusters = append(clusters, newCluster(fmt.Sprintf("cluster-%d", len(clusters)+1), group))
		}
		group = nil
	}

	for _, c := range ordered {
		if len(group) > 0 && !b.joins(text, group, c) {
			flush()
		}
		group = append(group, c)
	}
	flush()

	return clusters
}

// joins reports whether c continues the running group. Only proximity and
// statement breaks decide membership.
func (b *Builder) joins(text string, group []*model.Citation, c *model.Citation) bool {
	prev := group[len(group)-1]
	gap := c.Span.Start - prev.Span.End
	if gap < 0 || gap > b.MaxGap {
		return false
	}
	if text != "" && c.Span.Start <= len(text) && statementBreakRe.MatchString(text[prev.Span.End:c.Span.Start]) {
		return false
	}
	return true
}

// consistent checks that every pair of named members agrees on the name and
// every dated member agrees on the year
func (b *Builder) consistent(members []*model.Citation) bool {
	year := 0
	for i, a := range members {
		if y := a.ExtractedDate.Year(); y != 0 {
			if year != 0 && y != year {
				return false
			}
			year = y
		}
		if !a.HasName() {
			continue
		}
		for _, other := range members[i+1:] {
			if other.HasName() && similarity.Score(a.ExtractedCaseName, other.ExtractedCaseName) < b.NameThreshold {
				return false
			}
		}
	}
	return true
}

func newCluster(id string, members []*model.Citation) *model.Cluster {
	cl := &model.Cluster{ID: id}
	for _, m := range members {
		cl.Members = append(cl.Members, m.ID)
	}

	// Canonical fields come from the first member; later members only fill
	// a field the first one lacks
	first := members[0]
	cl.CanonicalName = first.ExtractedCaseName
	cl.CanonicalDate = first.ExtractedDate
	for _, m := range members[1:] {
		if cl.CanonicalName == "" {
			cl.CanonicalName = m.ExtractedCaseName
		}
		if cl.CanonicalDate.IsZero() {
			cl.CanonicalDate = m.ExtractedDate
		}
	}
	cl.Confidence = meanConfidence(members)
	return cl
}

// Link sets each member's ParallelOf back-reference
func Link(clusters []*model.Cluster, citations []*model.Citation) {
	byID := index(citations)
	for _, cl := range clusters {
		for _, id := range cl.Members {
			if c, ok := byID[id]; ok {
				c.ParallelOf = cl.ID
			}
		}
	}
}

// Refresh takes each cluster's canonical name and date from its earliest
// verified member and recomputes the confidence after verification
func Refresh(clusters []*model.Cluster, citations []*model.Citation) {
	byID := index(citations)
	for _, cl := range clusters {
		var members []*model.Citation
		for _, id := range cl.Members {
			if c, ok := byID[id]; ok {
				members = append(members, c)
			}
		}
		for _, m := range members {
			if m.Verified && m.CanonicalName != "" {
				cl.CanonicalName = m.CanonicalName
				if !m.CanonicalDate.IsZero() {
					cl.CanonicalDate = m.CanonicalDate
				}
				break
			}
		}
		if len(members) > 0 {
			cl.Confidence = meanConfidence(members)
		}
	}
}

// meanConfidence averages verification confidence once the cascade has run,
// and association confidence before that
func meanConfidence(members []*model.Citation) float64 {
	if len(members) == 0 {
		return 0
	}
	total := 0.0
	for _, m := range members {
		if m.Source != "" {
			total += m.Confidence
		} else {
			total += m.NameConfidence
		}
	}
	return total / float64(len(members))
}

func index(citations []*model.Citation) map[string]*model.Citation {
	byID := make(map[string]*model.Citation, len(citations))
	for _, c := range citations {
		byID[c.ID] = c
	}
	return byID
}
