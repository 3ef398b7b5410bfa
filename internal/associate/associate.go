// Package associate recovers the case name and decision date that the prose
// around a citation attributes to it.
package associate

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/model"
)

// Window sizes, in bytes, around the citation span
const (
	contextBefore  = 200
	contextAfter   = 50
	fallbackRadius = 200
)

// Name methods
const (
	MethodAnchored = "anchored" // Reporter-qualified shape whose volume matches the citation
	MethodContext  = "context"  // Unanchored shape in the context window
	MethodFallback = "fallback" // Quality-scored shape in the widened window
	MethodNone     = "none"
)

// Name confidences by method
const (
	ConfidenceAnchored = 0.95
	ConfidenceContext  = 0.85
	ConfidenceFallback = 0.7
)

// Result is what association recovered for one citation
type Result struct {
	CaseName   string
	Date       model.Date
	Confidence float64
	Method     string
}

// Shape is one named case-name pattern. Lower Priority wins ties.
// Anchored shapes capture a "volume" group that must equal the citation's
// own volume.
type Shape struct {
	Name     string
	Priority int
	Anchored bool
	Pattern  *regexp.Regexp
}

// DefaultShapes returns the ordered case-name shapes
func DefaultShapes() []Shape {
	caption := `(?:` + specialForm + `|` + party + `\s+v\.\s+` + party + `)`
	return []Shape{
		{
			Name:     "reporter-qualified",
			Priority: 0,
			Anchored: true,
			Pattern:  regexp.MustCompile(`(?P<name>` + caption + `),\s+(?P<volume>\d{1,4})\s+[A-Z]`),
		},
		{
			Name:     "versus",
			Priority: 1,
			Pattern:  regexp.MustCompile(`(?P<name>` + party + `\s+v\.\s+` + party + `)`),
		},
		{
			Name:     "special-form",
			Priority: 2,
			Pattern:  regexp.MustCompile(`(?P<name>` + specialForm + `)`),
		},
	}
}

// Engine associates citations with case names and dates. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	shapes []Shape
	logger *zap.Logger
}

// NewEngine creates an engine with the default shapes
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		shapes: DefaultShapes(),
		logger: logger.Named("associate"),
	}
}

type candidate struct {
	name     string
	end      int // Absolute offset where the name ends
	distance int
	priority int
	anchored bool
	shape    string
}

// Associate recovers the case name and date for the citation at c.Span in text
func (e *Engine) Associate(text string, c *model.Citation) Result {
	result := Result{Method: MethodNone}
	if c.Span.Start < 0 || c.Span.End > len(text) || c.Span.Start >= c.Span.End {
		return result
	}

	volume := c.Volume
	if volume == "" {
		volume = leadingVolume(c.Text)
	}

	if best, ok := e.contextPhase(text, c.Span, volume); ok {
		result.CaseName = best.name
		if best.anchored {
			result.Method = MethodAnchored
			result.Confidence = ConfidenceAnchored
		} else {
			result.Method = MethodContext
			result.Confidence = ConfidenceContext
		}
		e.logger.Debug("case name from context window",
			zap.String("citation", c.Text),
			zap.String("name", best.name),
			zap.String("shape", best.shape))
	} else if best, ok := e.fallbackPhase(text, c.Span); ok {
		result.CaseName = best.name
		result.Method = MethodFallback
		result.Confidence = ConfidenceFallback
		e.logger.Debug("case name from fallback window",
			zap.String("citation", c.Text),
			zap.String("name", best.name))
	}

	result.Date = ExtractDate(text, c.Span)
	return result
}

// Apply associates every citation in place. Names are only written when
// found; dates go through the safe-update rule.
func (e *Engine) Apply(text string, citations []*model.Citation) {
	for _, c := range citations {
		r := e.Associate(text, c)
		if r.CaseName != "" {
			c.ExtractedCaseName = r.CaseName
			c.NameMethod = r.Method
			c.NameConfidence = r.Confidence
		} else if c.NameMethod == "" {
			c.NameMethod = MethodNone
		}
		c.ExtractedDate.SafeUpdate(r.Date)
	}
}

func (e *Engine) contextPhase(text string, span model.Span, volume string) (candidate, bool) {
	ws := alignRune(text, max(0, span.Start-contextBefore))
	we := alignRune(text, min(len(text), span.End+contextAfter))
	window := text[ws:we]

	var candidates []candidate
	for _, shape := range e.shapes {
		nameIdx := shape.Pattern.SubexpIndex("name")
		volumeIdx := shape.Pattern.SubexpIndex("volume")

		for _, m := range shape.Pattern.FindAllStringSubmatchIndex(window, -1) {
			if shape.Anchored {
				if volume == "" || volumeIdx < 0 || window[m[2*volumeIdx]:m[2*volumeIdx+1]] != volume {
					continue
				}
				// The anchor must be this citation, not an earlier one with
				// the same volume
				if ws+m[2*volumeIdx] != span.Start {
					continue
				}
			}

			raw := window[m[2*nameIdx]:m[2*nameIdx+1]]
			name := cleanName(raw)
			if !validName(name) {
				continue
			}

			end := ws + m[2*nameIdx+1]
			if off := strings.LastIndex(raw, lastToken(name)); off >= 0 {
				end = ws + m[2*nameIdx] + off + len(lastToken(name))
			}
			candidates = append(candidates, candidate{
				name:     name,
				end:      end,
				distance: abs(span.Start - end),
				priority: shape.Priority,
				anchored: shape.Anchored,
				shape:    shape.Name,
			})
		}
	}

	if len(candidates) == 0 {
		return candidate{}, false
	}
	sortCandidates(candidates)
	return candidates[0], true
}

func (e *Engine) fallbackPhase(text string, span model.Span) (candidate, bool) {
	ws := alignRune(text, max(0, span.Start-fallbackRadius))
	we := alignRune(text, min(len(text), span.End+fallbackRadius))
	window := text[ws:we]

	var candidates []candidate
	for _, shape := range e.shapes {
		if shape.Anchored {
			continue
		}
		nameIdx := shape.Pattern.SubexpIndex("name")

		for _, m := range shape.Pattern.FindAllStringSubmatchIndex(window, -1) {
			name := cleanName(window[m[2*nameIdx]:m[2*nameIdx+1]])
			if !validName(name) || quality(name) < minFallbackRank {
				continue
			}

			start, end := ws+m[2*nameIdx], ws+m[2*nameIdx+1]
			if start < span.End && span.Start < end {
				continue
			}
			dist := abs(span.Start - end)
			if start >= span.End {
				dist = start - span.End
			}
			candidates = append(candidates, candidate{
				name:     name,
				end:      end,
				distance: dist,
				priority: shape.Priority,
				shape:    shape.Name,
			})
		}
	}

	if len(candidates) == 0 {
		return candidate{}, false
	}
	sortCandidates(candidates)
	return candidates[0], true
}

// sortCandidates orders by volume anchor, then distance to the citation,
// then shape priority
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.anchored != b.anchored {
			return a.anchored
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.priority < b.priority
	})
}

var leadingVolumeRe = regexp.MustCompile(`^\s*(\d{1,4})\s`)

func leadingVolume(citation string) string {
	m := leadingVolumeRe.FindStringSubmatch(citation)
	if m == nil {
		return ""
	}
	return m[1]
}

func lastToken(name string) string {
	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		return name[i+1:]
	}
	return name
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// alignRune moves i forward to the next UTF-8 sequence boundary
func alignRune(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
