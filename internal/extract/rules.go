package extract

import (
	"regexp"
	"strings"
)

// Rule is one named citation pattern. Patterns expose the named groups
// "volume", "reporter" and "page".
type Rule struct {
	Name    string
	Family  string
	Pattern *regexp.Regexp
}

// Reporter abbreviations, longest alternatives first within each group
const (
	supremeReporters = `U\.\s?S\.|US|S\.\s?Ct\.|L\.\s?Ed\.\s?2d|L\.\s?Ed\.`

	federalReporters = `F\.\s?Supp\.\s?(?:2d|3d)|F\.\s?Supp\.|F\.\s?App(?:'|’)x|Fed\.\s?Appx\.?|` +
		`F\.\s?(?:2d|3d|4th)|F\.R\.D\.|B\.R\.|Fed\.\s?Cl\.|F\.`

	regionalReporters = `Cal\.\s?Rptr\.\s?(?:2d|3d)|Cal\.\s?Rptr\.|N\.Y\.S\.\s?(?:2d|3d)|N\.Y\.S\.|` +
		`(?:N\.E|N\.W|S\.E|S\.W|So|A|P)\.\s?(?:2d|3d|4th)|(?:N\.E|N\.W|S\.E|S\.W|So|A|P)\.`

	stateReporters = `Wn\.\s?App\.\s?2d|Wn\.\s?App\.|Wn\.\s?2d|Wn\.|Wash\.\s?App\.|Wash\.\s?2d|Wash\.|` +
		`Cal\.\s?App\.\s?(?:2d|3d|4th|5th)|Cal\.\s?(?:2d|3d|4th|5th)|Cal\.|` +
		`N\.Y\.\s?(?:2d|3d)|N\.Y\.|Ill\.\s?App\.\s?(?:2d|3d)|Ill\.\s?2d|Ill\.|` +
		`Mass\.\s?App\.\s?Ct\.|Mass\.|Or\.\s?App\.|Or\.|Ariz\.\s?App\.|Ariz\.|Mich\.\s?App\.|Mich\.|` +
		`Ohio\s?St\.\s?(?:2d|3d)|Pa\.\s?Super\.|Pa\.|N\.J\.\s?Super\.|N\.J\.|Wis\.\s?2d|` +
		`Colo\.|Conn\.|Minn\.|Tex\.|Haw\.|Idaho|Mont\.|Nev\.|Utah\s?2d|Alaska|Vt\.|Me\.|Kan\.\s?App\.\s?2d|Kan\.`
)

// reporterRule builds a "volume REPORTER page" rule over a reporter alternation
func reporterRule(name, family, reporters string) Rule {
	return Rule{
		Name:    name,
		Family:  family,
		Pattern: regexp.MustCompile(`\b(?P<volume>\d{1,4})\s+(?P<reporter>` + reporters + `)\s+(?P<page>\d{1,5})\b`),
	}
}

// DefaultRules returns the ordered rule families. Earlier rules claim a span
// before later ones see it, so specific reporters precede the generic shape.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "westlaw",
			Family:  "database",
			Pattern: regexp.MustCompile(`\b(?P<volume>(?:1[89]|20)\d{2})\s+(?P<reporter>WL)\s+(?P<page>\d{1,8})\b`),
		},
		{
			Name:   "lexis",
			Family: "database",
			Pattern: regexp.MustCompile(`\b(?P<volume>(?:1[89]|20)\d{2})\s+(?P<reporter>` +
				`(?:U\.S\.\s+(?:Dist\.\s+|App\.\s+)?|[A-Z][A-Za-z.]*\s+(?:App\.\s+)?)?LEXIS)\s+(?P<page>\d{1,8})\b`),
		},
		reporterRule("supreme-court", "supreme", supremeReporters),
		reporterRule("federal", "federal", federalReporters),
		reporterRule("regional", "regional", regionalReporters),
		reporterRule("state", "state", stateReporters),
		{
			Name:   "generic",
			Family: "generic",
			Pattern: regexp.MustCompile(`\b(?P<volume>\d{1,4})\s+(?P<reporter>(?:[A-Z][A-Za-z']{0,8}\.\s?){1,4}(?:\d(?:d|th))?)` +
				`\s+(?P<page>\d{1,6})\b`),
		},
	}
}

// statuteRe matches code and session-law references ("42 U.S.C. 1983",
// "29 C.F.R. 1910", "120 Stat. 2000") that share the volume-reporter-page
// shape but never name a case
var statuteRe = regexp.MustCompile(`^\d{1,4}\s+(?:U\.\s?S\.\s?C\.(?:\s?[AS]\.)?|USC[AS]?|C\.\s?F\.\s?R\.|CFR|Stat\.|Fed\.\s?Reg\.|Pub\.\s?L\.)(?:\s|$)`)

// IsStatute reports whether a candidate citation is a statute or regulation
// reference rather than a case citation
func IsStatute(text string) bool {
	return statuteRe.MatchString(text)
}

var (
	citeSpaceRe     = regexp.MustCompile(`\s+`)
	reporterGapRe   = regexp.MustCompile(`\.\s+(\d+(?:d|th)\b|[a-z])`)
	bareUSReporter  = regexp.MustCompile(`\bus\b`)
	leadingVolumeRe = regexp.MustCompile(`^\s*(\d+)`)
)

// NormalizeCitation lower-cases a citation and collapses reporter punctuation
// variants ("U. S." / "U.S." / "US", "F. 3d" / "F.3d") into one form. It is
// used for dedupe and cache keys, never to rewrite stored citation text.
func NormalizeCitation(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = citeSpaceRe.ReplaceAllString(s, " ")
	s = reporterGapRe.ReplaceAllString(s, ".$1")
	s = bareUSReporter.ReplaceAllString(s, "u.s.")
	return s
}

// VolumeOf returns the leading volume number of a citation string
func VolumeOf(text string) string {
	m := leadingVolumeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ReporterPattern matches any reporter abbreviation the rule families know.
// Association uses it to spot reporter text embedded in candidate names.
var ReporterPattern = regexp.MustCompile(`(?:^|\s)(?:` + supremeReporters + `|` + federalReporters + `|` +
	regionalReporters + `|` + stateReporters + `|WL|LEXIS)(?:\s|$)`)

// ReporterAlternation exposes the combined reporter alternation for
// reporter-qualified case-name shapes
func ReporterAlternation() string {
	return supremeReporters + `|` + federalReporters + `|` + regionalReporters + `|` + stateReporters
}
