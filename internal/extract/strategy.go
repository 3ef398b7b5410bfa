package extract

import (
	"fmt"
	"sync"

	"github.com/ppiankov/citecheck/internal/model"
)

// Strategy finds candidate citations in raw text.
// Implementations must be deterministic, perform no I/O on the hot path,
// and be safe for concurrent use.
type Strategy interface {
	// Name returns the strategy name recorded on each citation
	Name() string

	// Extract returns candidate citations with Text and Span set
	Extract(text string) ([]model.Citation, error)
}

// Registry holds extraction strategies in priority order.
// When two strategies report overlapping spans the earlier one wins.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
}

// NewRegistry creates a registry with the built-in strategies
func NewRegistry() *Registry {
	r := &Registry{}
	_ = r.Register(NewReporterStrategy(DefaultRules()))
	_ = r.Register(NewBluebookStrategy())
	return r
}

// Register appends a strategy; names must be unique
func (r *Registry) Register(strategy Strategy) error {
	if strategy == nil {
		return fmt.Errorf("strategy cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.strategies {
		if existing.Name() == strategy.Name() {
			return fmt.Errorf("strategy %q already registered", strategy.Name())
		}
	}
	r.strategies = append(r.strategies, strategy)
	return nil
}

// Strategies returns a snapshot of registered strategies in priority order
func (r *Registry) Strategies() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// ReporterStrategy applies the ordered rule families
type ReporterStrategy struct {
	rules []Rule
}

// NewReporterStrategy creates a strategy over the given rules
func NewReporterStrategy(rules []Rule) *ReporterStrategy {
	return &ReporterStrategy{rules: rules}
}

// Name returns the strategy name
func (s *ReporterStrategy) Name() string {
	return "reporter"
}

// Extract runs every rule over the full text. A span already claimed by an
// earlier rule is not reported again by a later one.
func (s *ReporterStrategy) Extract(text string) ([]model.Citation, error) {
	var citations []model.Citation
	var claimed []model.Span

	for _, rule := range s.rules {
		volumeIdx := rule.Pattern.SubexpIndex("volume")
		reporterIdx := rule.Pattern.SubexpIndex("reporter")
		pageIdx := rule.Pattern.SubexpIndex("page")

		for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			span := model.Span{Start: m[0], End: m[1]}
			if overlapsAny(span, claimed) {
				continue
			}
			claimed = append(claimed, span)

			citations = append(citations, model.Citation{
				Text:     text[span.Start:span.End],
				Span:     span,
				Volume:   group(text, m, volumeIdx),
				Reporter: group(text, m, reporterIdx),
				Page:     group(text, m, pageIdx),
				Rule:     rule.Name,
				Strategy: s.Name(),
			})
		}
	}

	return citations, nil
}

// group returns the text of submatch idx, or "" when absent
func group(text string, m []int, idx int) string {
	if idx < 0 || 2*idx+1 >= len(m) || m[2*idx] < 0 {
		return ""
	}
	return text[m[2*idx]:m[2*idx+1]]
}

func overlapsAny(span model.Span, spans []model.Span) bool {
	for _, other := range spans {
		if span.Start < other.End && other.Start < span.End {
			return true
		}
	}
	return false
}
