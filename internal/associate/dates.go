package associate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
)

const (
	parenthetical = 50  // Max distance after the citation for "(1954)"
	dateWindow    = 200 // Radius of the widest year search
)

var (
	// The parenthetical may be preceded by a pin cite or a parallel
	// citation but not by another parenthetical or a ";"
	parenYearRe = regexp.MustCompile(`^[^();]{0,45}?\(([^()]{0,60})\)`)
	yearRe      = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`)
	fullDateRe  = regexp.MustCompile(`\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},\s+(?:1[6-9]|20)\d{2}|(?:1[6-9]|20)\d{2}-\d{2}-\d{2})\b`)
	endYearRe   = regexp.MustCompile(`(?:^|\s)((?:1[6-9]|20)\d{2})$`)

	monthLayouts = []string{"January 2, 2006", "Jan. 2, 2006", "Jan 2, 2006", "2006-01-02"}
)

// ExtractDate finds the decision date for the citation at span, trying in
// order: a parenthetical right after the citation, the same sentence, and
// the wider window. Years that fall inside the citation itself are ignored.
func ExtractDate(text string, span model.Span) model.Date {
	if d := parenDate(text, span); !d.IsZero() {
		return d
	}

	start, end := sentenceBounds(text, span)
	if d := closestDate(text, start, end, span); !d.IsZero() {
		return d
	}

	start = alignRune(text, max(0, span.Start-dateWindow))
	end = alignRune(text, min(len(text), span.End+dateWindow))
	return closestDate(text, start, end, span)
}

func parenDate(text string, span model.Span) model.Date {
	after := text[span.End:alignRune(text, min(len(text), span.End+parenthetical+60))]
	m := parenYearRe.FindStringSubmatchIndex(after)
	if m == nil || m[2]-1 > parenthetical {
		return model.Date{}
	}

	inner := strings.TrimSpace(after[m[2]:m[3]])
	if full := fullDateRe.FindString(inner); full != "" {
		if d := parseFullDate(full); !d.IsZero() {
			return d
		}
	}
	if ym := endYearRe.FindStringSubmatch(inner); ym != nil {
		year, _ := strconv.Atoi(ym[1])
		return model.YearDate(year)
	}
	return model.Date{}
}

// closestDate returns the full date, else the year, nearest to span within
// text[start:end]
func closestDate(text string, start, end int, span model.Span) model.Date {
	region := text[start:end]

	if d, ok := nearest(fullDateRe, region, start, span); ok {
		if parsed := parseFullDate(d); !parsed.IsZero() {
			return parsed
		}
	}
	if y, ok := nearest(yearRe, region, start, span); ok {
		year, _ := strconv.Atoi(y)
		return model.YearDate(year)
	}
	return model.Date{}
}

func nearest(re *regexp.Regexp, region string, offset int, span model.Span) (string, bool) {
	best := ""
	bestDist := -1
	for _, m := range re.FindAllStringSubmatchIndex(region, -1) {
		s, e := offset+m[2], offset+m[3]
		if s < span.End && span.Start < e {
			continue
		}
		dist := distance(s, e, span)
		if bestDist < 0 || dist < bestDist {
			best = region[m[2]:m[3]]
			bestDist = dist
		}
	}
	return best, bestDist >= 0
}

func distance(s, e int, span model.Span) int {
	if e <= span.Start {
		return span.Start - e
	}
	return s - span.End
}

func parseFullDate(s string) model.Date {
	s = strings.Replace(s, "Sept.", "Sep.", 1)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Date{Time: t, Specificity: model.SpecificityDay}
		}
	}
	return model.Date{}
}

// sentenceBounds returns the byte range of the sentence containing span
func sentenceBounds(text string, span model.Span) (int, int) {
	start := 0
	for _, m := range sentenceBreakRe.FindAllStringSubmatchIndex(text[:span.Start], -1) {
		if isSentenceEnd(text[m[2]:m[3]], text[m[3]]) && text[m[3]] != ':' && text[m[3]] != ';' {
			start = m[1]
		}
	}

	end := len(text)
	tail := text[span.End:]
	for _, m := range sentenceBreakRe.FindAllStringSubmatchIndex(tail, -1) {
		if isSentenceEnd(tail[m[2]:m[3]], tail[m[3]]) && tail[m[3]] != ':' && tail[m[3]] != ';' {
			end = span.End + m[3] + 1
			break
		}
	}
	return start, end
}
