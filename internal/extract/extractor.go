// Package extract finds legal citations in raw document text.
package extract

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/model"
)

// Extractor merges the candidates of every registered strategy into one
// ordered, deduplicated citation list
type Extractor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExtractor creates an extractor over the given registry.
// A nil registry means the built-in strategies; a nil logger disables logging.
func NewExtractor(registry *Registry, logger *zap.Logger) *Extractor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		registry: registry,
		logger:   logger.Named("extract"),
	}
}

type dedupeKey struct {
	normalized string
	start      int
	end        int
}

// Extract returns the citations found in text ordered by span start, with
// IDs "cite-1", "cite-2", ... assigned in that order. A strategy that fails
// or returns spans inconsistent with text is logged and skipped; Extract
// itself never fails.
func (e *Extractor) Extract(text string) []*model.Citation {
	seen := make(map[dedupeKey]bool)
	var accepted []*model.Citation

	for _, strategy := range e.registry.Strategies() {
		candidates, err := runStrategy(strategy, text)
		if err != nil {
			e.logger.Warn("extraction strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.Error(err))
			continue
		}

		for i := range candidates {
			c := candidates[i]
			if !validSpan(text, c) {
				e.logger.Debug("dropping candidate with inconsistent span",
					zap.String("strategy", strategy.Name()),
					zap.String("text", c.Text),
					zap.Int("start", c.Span.Start),
					zap.Int("end", c.Span.End))
				continue
			}

			if IsStatute(c.Text) {
				e.logger.Debug("dropping statute reference",
					zap.String("strategy", strategy.Name()),
					zap.String("text", c.Text))
				continue
			}

			key := dedupeKey{normalized: NormalizeCitation(c.Text), start: c.Span.Start, end: c.Span.End}
			if seen[key] {
				continue
			}
			seen[key] = true

			if overlapsAccepted(c.Span, accepted) {
				continue
			}
			if c.Strategy == "" {
				c.Strategy = strategy.Name()
			}
			if c.Volume == "" {
				c.Volume = VolumeOf(c.Text)
			}
			accepted = append(accepted, &c)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Span.Start < accepted[j].Span.Start
	})
	for i, c := range accepted {
		c.ID = fmt.Sprintf("cite-%d", i+1)
	}

	e.logger.Debug("extraction complete", zap.Int("citations", len(accepted)))
	return accepted
}

// runStrategy shields the extractor from panicking third-party strategies
func runStrategy(strategy Strategy, text string) (citations []model.Citation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()
	return strategy.Extract(text)
}

func validSpan(text string, c model.Citation) bool {
	if c.Span.Start < 0 || c.Span.End > len(text) || c.Span.Start >= c.Span.End {
		return false
	}
	return text[c.Span.Start:c.Span.End] == c.Text
}

func overlapsAccepted(span model.Span, accepted []*model.Citation) bool {
	for _, c := range accepted {
		if span.Start < c.Span.End && c.Span.Start < span.End {
			return true
		}
	}
	return false
}
