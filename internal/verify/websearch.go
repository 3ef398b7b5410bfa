package verify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/citecheck/internal/model"
)

const (
	DefaultSearchEndpoint = "https://html.duckduckgo.com/html/"

	canonicalSiteConfidence = 0.75
	webSearchConfidence     = 0.6
)

// DefaultLegalSites are the legal-reference domains queried by the
// canonical-site stage, in order
var DefaultLegalSites = []string{
	"courtlistener.com",
	"law.justia.com",
	"casetext.com",
	"law.cornell.edu",
	"leagle.com",
}

var (
	// Citation or parenthetical trailing the name in a result title
	titleTailRe  = regexp.MustCompile(`,?\s+\d{1,4}\s+[A-Z]|\s+\(`)
	caseShapeRe  = regexp.MustCompile(`^(?:(?:In re|Ex parte|In the Matter of|Matter of)\s+\S|[A-Z0-9].*\svs?\.\s+[A-Z0-9])`)
	resultYearRe = regexp.MustCompile(`\((?:[^()]*?\s)?(1[6-9]\d\d|20\d\d)\)`)
)

// SearchResult is one organic result from the web search engine
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchEngine queries an HTML web search endpoint and parses its results
type SearchEngine struct {
	client   *Client
	endpoint string
}

// NewSearchEngine creates a search engine client. An empty endpoint uses
// the DuckDuckGo HTML endpoint.
func NewSearchEngine(client *Client, endpoint string) *SearchEngine {
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	return &SearchEngine{client: client, endpoint: endpoint}
}

// Search runs query and returns the organic results in rank order
func (e *SearchEngine) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)

	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")

	body, err := e.client.Get(ctx, e.endpoint+"?"+q.Encode(), h)
	if err != nil {
		return nil, err
	}
	return parseSearchResults(body)
}

// parseSearchResults reads DuckDuckGo-style result markup: a.result__a links
// with .result__snippet text, inside .result blocks
func parseSearchResults(body []byte) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").Each(func(_ int, sel *goquery.Selection) {
		if sel.HasClass("result--ad") {
			return
		}
		link := sel.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		target := resolveResultURL(href)
		if target == "" {
			return
		}
		results = append(results, SearchResult{
			Title:   collapseSpace(link.Text()),
			URL:     target,
			Snippet: collapseSpace(sel.Find(".result__snippet").Text()),
		})
	})
	return results, nil
}

// resolveResultURL unwraps redirect links ("//duckduckgo.com/l/?uddg=...")
func resolveResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// caseNameFromTitle extracts a case-name-shaped prefix from a result title,
// e.g. "Brown v. Board of Education, 347 U.S. 483 (1954) - Justia"
func caseNameFromTitle(title string) string {
	name := collapseSpace(title)
	for _, sep := range []string{" | ", " - ", " – ", " :: "} {
		if i := strings.Index(name, sep); i > 0 {
			name = name[:i]
		}
	}
	if loc := titleTailRe.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	name = strings.TrimRight(strings.TrimSpace(name), " ,;:")
	if !caseShapeRe.MatchString(name) {
		return ""
	}
	return name
}

// yearFromText reads a parenthetical decision year, e.g. "(1954)" or "(9th Cir. 2011)"
func yearFromText(text string) model.Date {
	m := resultYearRe.FindStringSubmatch(text)
	if m == nil {
		return model.Date{}
	}
	return model.ParseDate(m[1])
}

// containsCitation reports whether text contains the citation, ignoring
// case, whitespace and reporter punctuation spacing
func containsCitation(text, citation string) bool {
	squash := func(s string) string {
		var b strings.Builder
		for _, r := range strings.ToLower(s) {
			if unicode.IsSpace(r) {
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	}
	needle := squash(citation)
	return needle != "" && strings.Contains(squash(text), needle)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hostMatches reports whether host is domain or a subdomain of it
func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// isLegalHost reports whether rawURL is on a known legal-reference site or a
// court/government domain
func isLegalHost(rawURL string, sites []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	for _, site := range sites {
		if hostMatches(u.Host, site) {
			return true
		}
	}
	host := strings.ToLower(u.Hostname())
	return strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".us") || strings.HasSuffix(host, ".uscourts.gov")
}

// acceptResult checks a result against the citation and builds a verified
// result when it names a case. The citation must appear in the result text
// or, when a confirmer is given, on the result page itself.
func acceptResult(ctx context.Context, r SearchResult, citation string, confirm *PageConfirmer) (model.VerificationResult, bool, error) {
	name := caseNameFromTitle(r.Title)
	if name == "" {
		return model.VerificationResult{}, false, nil
	}

	if !containsCitation(r.Title+" "+r.Snippet, citation) {
		if confirm == nil {
			return model.VerificationResult{}, false, nil
		}
		ok, err := confirm.Confirm(ctx, r.URL, citation)
		if err != nil || !ok {
			return model.VerificationResult{}, false, err
		}
	}

	return model.VerificationResult{
		Verified:      true,
		CanonicalName: name,
		CanonicalDate: yearFromText(r.Title + " " + r.Snippet),
		URL:           r.URL,
	}, true, nil
}

// SiteStage searches known legal-reference sites one at a time
type SiteStage struct {
	engine  *SearchEngine
	sites   []string
	confirm *PageConfirmer
}

// NewSiteStage creates the canonical-site stage. confirm may be nil.
func NewSiteStage(engine *SearchEngine, sites []string, confirm *PageConfirmer) *SiteStage {
	if len(sites) == 0 {
		sites = DefaultLegalSites
	}
	return &SiteStage{engine: engine, sites: sites, confirm: confirm}
}

// Name returns the stage name
func (s *SiteStage) Name() string {
	return model.SourceCanonicalSite
}

// Verify queries each site with a site: restriction and accepts the first
// result on that site that names a case and contains the citation
func (s *SiteStage) Verify(ctx context.Context, q Query) (model.VerificationResult, error) {
	var lastErr error
	for _, site := range s.sites {
		if ctx.Err() != nil {
			return model.VerificationResult{}, ctx.Err()
		}

		results, err := s.engine.Search(ctx, fmt.Sprintf(`"%s" site:%s`, q.Citation, site))
		if err != nil {
			lastErr = fmt.Errorf("search %s: %w", site, err)
			continue
		}

		for _, r := range results {
			if !isLegalHost(r.URL, []string{site}) {
				continue
			}
			result, ok, err := acceptResult(ctx, r, q.Citation, s.confirm)
			if err != nil {
				lastErr = err
			}
			if !ok {
				continue
			}
			result.Source = model.SourceCanonicalSite
			result.Confidence = canonicalSiteConfidence
			return result, nil
		}
	}
	if lastErr != nil {
		return model.VerificationResult{}, lastErr
	}
	return model.VerificationResult{}, ErrNoMatch
}

// WebStage is the generic web search fallback
type WebStage struct {
	engine  *SearchEngine
	sites   []string
	confirm *PageConfirmer
}

// NewWebStage creates the generic web search stage. Results are limited to
// sites and court/government domains.
func NewWebStage(engine *SearchEngine, sites []string, confirm *PageConfirmer) *WebStage {
	if len(sites) == 0 {
		sites = DefaultLegalSites
	}
	return &WebStage{engine: engine, sites: sites, confirm: confirm}
}

// Name returns the stage name
func (s *WebStage) Name() string {
	return model.SourceWebSearch
}

// Verify runs one unrestricted query, adding the extracted name when known
func (s *WebStage) Verify(ctx context.Context, q Query) (model.VerificationResult, error) {
	query := fmt.Sprintf(`"%s"`, q.Citation)
	if q.CaseName != "" {
		query = fmt.Sprintf(`"%s" %s`, q.Citation, q.CaseName)
	}

	results, err := s.engine.Search(ctx, query)
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("web search: %w", err)
	}

	for _, r := range results {
		if !isLegalHost(r.URL, s.sites) {
			continue
		}
		result, ok, err := acceptResult(ctx, r, q.Citation, s.confirm)
		if err != nil && ctx.Err() != nil {
			return model.VerificationResult{}, err
		}
		if !ok {
			continue
		}
		result.Source = model.SourceWebSearch
		result.Confidence = webSearchConfidence
		return result, nil
	}
	return model.VerificationResult{}, ErrNoMatch
}
