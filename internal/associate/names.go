package associate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/citecheck/internal/extract"
)

const (
	minNameLength   = 10
	maxNameLength   = 200
	longNameLength  = 100
	minFallbackRank = 0.5
)

// entitySuffix is a comma-separated business form that stays part of a
// party name ("Smith, Inc.", "Campbell & Gwinn, L.L.C.")
const entitySuffix = `(?:,\s+(?:Inc\.|L\.L\.C\.|LLC|L\.L\.P\.|LLP|L\.P\.|Corp\.|Co\.|Ltd\.|N\.A\.|P\.C\.|P\.A\.|P\.S\.))?`

// party is one side of a case caption: capitalised tokens joined by
// spaces, allowing the lower-case connectors found in agency and
// organisation names ("Board of Education", "Friends of the Earth")
const party = `[A-Z][A-Za-z0-9.'’&\-]*(?:\s+(?:of|the|and|for|de|del|la|du|ex rel\.|on|to|&|[A-Z][A-Za-z0-9.'’&\-]*))*` + entitySuffix

// specialForm captions that have no " v. "
const specialForm = `(?:In re(?: the)? Marriage of|In the Matter of|In re|Matter of|Estate of|Ex parte|Guardianship of|Adoption of)\s+` + party

var specialPrefixes = []string{
	"In re the Marriage of ",
	"In re Marriage of ",
	"In the Matter of ",
	"In re ",
	"Matter of ",
	"Estate of ",
	"Ex parte ",
	"Guardianship of ",
	"Adoption of ",
}

// Citation signals and lead-ins that the party pattern swallows because
// they are capitalised
var leadingSignals = []string{
	"See also ", "See, e.g., ", "See ", "Cf. ", "But see ", "Accord ", "Compare ", "Contra ", "E.g., ", "Also ",
}

// Tokens that start sentences rather than captions
var sentenceStarters = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "but": true, "or": true, "nor": true,
	"this": true, "that": true, "these": true, "those": true, "however": true, "although": true,
	"because": true, "since": true, "here": true, "there": true, "when": true, "where": true,
	"while": true, "thus": true, "therefore": true, "accordingly": true, "moreover": true,
	"furthermore": true, "further": true, "similarly": true, "finally": true, "under": true,
	"as": true, "if": true, "it": true, "we": true, "our": true, "id.": true, "following": true,
	"citing": true, "quoting": true, "affirmed": true, "reversed": true,
}

// Procedural phrases that only show up when the pattern has run into the
// surrounding prose
var contaminationPhrases = []string{
	"de novo",
	"reviews",
	"questions of law",
	"question of law",
	"certified",
	"abuse of discretion",
	"we hold",
	"held that",
	"holding that",
	"standard of review",
}

// Abbreviations that end in a period inside case names. A period after
// any other word longer than two letters ends a sentence.
var nameAbbreviations = map[string]bool{
	"ass'n": true, "dep't": true, "nat'l": true, "int'l": true, "comm'n": true, "gov't": true,
	"fed'n": true, "educ": true, "indep": true, "corp": true, "dist": true, "univ": true,
	"hosp": true, "auth": true, "admin": true, "transp": true, "elec": true, "prods": true,
	"servs": true, "mgmt": true, "bros": true, "cnty": true, "twp": true, "envtl": true,
	"mach": true, "mfrs": true, "sav": true, "mktg": true, "pharm": true, "tech": true,
	"wash": true, "cal": true, "mich": true, "mass": true, "conn": true, "minn": true,
	"tex": true, "ariz": true, "colo": true, "okla": true, "tenn": true, "penn": true,
	"supp": true, "rptr": true, "ohio": true, "misc": true, "mont": true, "wis": true,
	"inc": true, "sch": true, "ins": true, "mfg": true, "tel": true, "sys": true, "ctr": true,
	"med": true, "fin": true, "mut": true, "bus": true, "ave": true, "dev": true, "gen": true,
	"res": true, "soc": true, "sec": true, "inv": true, "ent": true, "cmty": true, "cas": true,
	"hous": true, "dir": true, "org": true, "adm": true, "pub": true, "bur": true, "div": true,
	"app": true, "cir": true, "ind": true, "ill": true, "nev": true, "ore": true, "fla": true,
}

var (
	sentenceBreakRe   = regexp.MustCompile(`([A-Za-z0-9'’)\]"]+)[.!?:;]\s+`)
	trailingYearRe    = regexp.MustCompile(`\(\s*(?:1[6-9]|20)\d{2}\s*\)\s*$`)
	trailingConnector = regexp.MustCompile(`(?:\s+(?:of|the|and|for|de|del|la|du|on|to|&))+$`)
	innerSpaceRe      = regexp.MustCompile(`\s+`)
)

// cleanName strips citation signals, trims text that belongs to a
// neighbouring sentence, and tidies whitespace. The returned name is a
// substring of raw after whitespace collapsing.
func cleanName(raw string) string {
	name := innerSpaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")

	left, right, versus := strings.Cut(name, " v. ")
	if versus {
		left = afterLastSentenceBreak(left)
		right = beforeFirstSentenceBreak(right)
		right = trailingConnector.ReplaceAllString(right, "")
		name = left + " v. " + right
	} else {
		name = afterLastSentenceBreak(name)
		name = trailingConnector.ReplaceAllString(name, "")
	}

	for changed := true; changed; {
		changed = false
		for _, signal := range leadingSignals {
			if strings.HasPrefix(name, signal) {
				name = strings.TrimPrefix(name, signal)
				changed = true
			}
		}
		// "In" is a signal unless it opens "In re" or "In the Matter of"
		if strings.HasPrefix(name, "In ") && !strings.HasPrefix(name, "In re ") && !strings.HasPrefix(name, "In the Matter of ") {
			name = strings.TrimPrefix(name, "In ")
			changed = true
		}
	}

	name = strings.TrimRight(strings.TrimSpace(name), ",;:")
	return trimSentencePeriod(name)
}

// trimSentencePeriod drops a final period that ends the sentence rather
// than an abbreviation ("Wade." but not "Educ." or "U.S.")
func trimSentencePeriod(name string) string {
	if !strings.HasSuffix(name, ".") {
		return name
	}
	word := strings.TrimSuffix(lastToken(name), ".")
	if word == "" || strings.Contains(word, ".") || !isSentenceEnd(word, '.') {
		return name
	}
	return strings.TrimSuffix(name, ".")
}

// afterLastSentenceBreak keeps the text after the last real sentence end
func afterLastSentenceBreak(s string) string {
	cut := 0
	for _, m := range sentenceBreakRe.FindAllStringSubmatchIndex(s, -1) {
		if isSentenceEnd(s[m[2]:m[3]], s[m[3]]) {
			cut = m[1]
		}
	}
	return s[cut:]
}

// beforeFirstSentenceBreak keeps the text before the first real sentence end
func beforeFirstSentenceBreak(s string) string {
	for _, m := range sentenceBreakRe.FindAllStringSubmatchIndex(s, -1) {
		if isSentenceEnd(s[m[2]:m[3]], s[m[3]]) {
			return s[:m[3]]
		}
	}
	return s
}

func isSentenceEnd(word string, punct byte) bool {
	if punct != '.' {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(word)
	if unicode.IsDigit(last) || strings.ContainsRune(`)]"`, last) {
		return true
	}
	lower := strings.ToLower(word)
	if nameAbbreviations[lower] {
		return false
	}
	return utf8.RuneCountInString(word) > 2
}

// validName applies the caption checks every accepted name must pass
func validName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return false
	}
	if startsWithSentenceStarter(name) || contaminated(name) {
		return false
	}

	if rest, ok := specialRemainder(name); ok {
		return startsUpper(rest)
	}

	sides := strings.Split(name, " v. ")
	if len(sides) != 2 {
		return false
	}
	return startsUpper(sides[0]) && startsUpper(sides[1])
}

// specialRemainder returns the party after a special-form prefix
func specialRemainder(name string) (string, bool) {
	if strings.Contains(name, " v. ") {
		return "", false
	}
	for _, prefix := range specialPrefixes {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix), true
		}
	}
	return "", false
}

func startsUpper(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func startsWithSentenceStarter(name string) bool {
	first, _, _ := strings.Cut(name, " ")
	return sentenceStarters[strings.ToLower(strings.TrimRight(first, ","))]
}

func contaminated(name string) bool {
	lower := strings.ToLower(name)
	for _, phrase := range contaminationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func hasEmbeddedReporter(name string) bool {
	return extract.ReporterPattern.MatchString(name)
}

// quality scores a fallback candidate in [0, 1]
func quality(name string) float64 {
	score := 0.5
	if strings.Contains(name, " v. ") {
		score += 0.3
	}
	if _, ok := specialRemainder(name); ok {
		score += 0.2
	}
	if hasEmbeddedReporter(name) {
		score -= 0.3
	}
	if trailingYearRe.MatchString(name) {
		score -= 0.2
	}
	if utf8.RuneCountInString(name) > longNameLength {
		score -= 0.3
	}
	return max(0, min(1, score))
}
