package extract

import (
	"regexp"

	"github.com/ppiankov/citecheck/internal/model"
)

// BluebookStrategy recognises full case citations of the form
// "Brown v. Board of Education, 347 U.S. 483 (1954)" and reports only the
// "volume reporter page" core. It finds reporters the rule families do not
// list as long as the surrounding case shape is unambiguous.
type BluebookStrategy struct {
	casePattern *regexp.Regexp
}

// NewBluebookStrategy creates the full-citation strategy
func NewBluebookStrategy() *BluebookStrategy {
	return &BluebookStrategy{
		casePattern: regexp.MustCompile(
			`[A-Z][A-Za-z.'&\-]*(?:\s+[A-Za-z.'&\-]+){0,8}\s+v\.\s+[A-Z][A-Za-z.'&\-]*(?:\s+[A-Za-z.'&\-]+){0,8},\s+` +
				`(?P<volume>\d{1,4})\s+(?P<reporter>[A-Z][A-Za-z.']*(?:\s?[A-Z][A-Za-z.']*){0,3}(?:\s?\d(?:d|th))?)\s+(?P<page>\d{1,5})` +
				`(?:,\s*\d{1,5}(?:-\d{1,5})?)?\s*\((?:[^()]{0,40}\s)?(?:1[6-9]|20)\d{2}\)`),
	}
}

// Name returns the strategy name
func (s *BluebookStrategy) Name() string {
	return "bluebook"
}

// Extract returns the core citation span of each full case citation
func (s *BluebookStrategy) Extract(text string) ([]model.Citation, error) {
	volumeIdx := s.casePattern.SubexpIndex("volume")
	reporterIdx := s.casePattern.SubexpIndex("reporter")
	pageIdx := s.casePattern.SubexpIndex("page")

	var citations []model.Citation
	for _, m := range s.casePattern.FindAllStringSubmatchIndex(text, -1) {
		span := model.Span{Start: m[2*volumeIdx], End: m[2*pageIdx+1]}
		citations = append(citations, model.Citation{
			Text:     text[span.Start:span.End],
			Span:     span,
			Volume:   group(text, m, volumeIdx),
			Reporter: group(text, m, reporterIdx),
			Page:     group(text, m, pageIdx),
			Rule:     "bluebook-case",
			Strategy: s.Name(),
		})
	}
	return citations, nil
}
