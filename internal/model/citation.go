package model

// Span is a half-open [Start, End) byte range into the source text
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Citation is one recognized citation occurrence in a document.
// Text and Span are fixed at extraction; association and verification
// fill in the remaining fields in place.
type Citation struct {
	ID       string `json:"id"`
	Text     string `json:"text"` // Exact substring: source[Span.Start:Span.End]
	Span     Span   `json:"span"`
	Volume   string `json:"volume,omitempty"`
	Reporter string `json:"reporter,omitempty"`
	Page     string `json:"page,omitempty"`
	Rule     string `json:"rule"`     // Extraction rule that matched (e.g., "supreme-court")
	Strategy string `json:"strategy"` // Extraction strategy (e.g., "reporter", "bluebook")

	ExtractedCaseName string  `json:"extracted_case_name"`
	ExtractedDate     Date    `json:"extracted_date"`
	NameMethod        string  `json:"name_method,omitempty"`
	NameConfidence    float64 `json:"name_confidence"`

	CanonicalName string `json:"canonical_name,omitempty"`
	CanonicalDate Date   `json:"canonical_date"`
	CanonicalURL  string `json:"canonical_url,omitempty"`

	Verified   bool    `json:"verified"`
	Source     string  `json:"source"`     // Cascade stage that verified it, or "fallback"
	Confidence float64 `json:"confidence"` // 0.0 - 1.0

	ParallelOf string `json:"parallel_of,omitempty"` // Cluster ID, never an owning reference
}

// HasName reports whether association recovered a case name
func (c *Citation) HasName() bool {
	return c.ExtractedCaseName != ""
}

// ApplyVerification copies a cascade result onto the citation
func (c *Citation) ApplyVerification(result VerificationResult) {
	c.Verified = result.Verified
	c.Source = result.Source
	c.Confidence = result.Confidence
	if !result.Verified {
		return
	}
	c.CanonicalName = result.CanonicalName
	c.CanonicalDate = result.CanonicalDate
	c.CanonicalURL = result.URL
}

// Cluster is a set of citations believed to cite the same case
type Cluster struct {
	ID            string   `json:"id"`
	Members       []string `json:"members"` // Citation IDs in first-seen-in-text order
	CanonicalName string   `json:"canonical_name"`
	CanonicalDate Date     `json:"canonical_date"`
	Confidence    float64  `json:"confidence"` // Mean of member confidences
}

// Verification sources
const (
	SourceLandmark      = "landmark"
	SourcePrimaryLookup = "primary-lookup"
	SourcePrimarySearch = "primary-search"
	SourceCanonicalSite = "canonical-site"
	SourceWebSearch     = "web-search"
	SourceFallback      = "fallback"
)

// VerificationResult is the outcome of one cascade run for a citation
type VerificationResult struct {
	Verified      bool    `json:"verified"`
	CanonicalName string  `json:"canonical_name,omitempty"`
	CanonicalDate Date    `json:"canonical_date"`
	URL           string  `json:"url,omitempty"`
	Source        string  `json:"source"`
	Confidence    float64 `json:"confidence"`
}

// FallbackResult is returned when no cascade stage confirms a citation
func FallbackResult() VerificationResult {
	return VerificationResult{
		Verified:   false,
		Source:     SourceFallback,
		Confidence: 0.0,
	}
}

// CacheRecord is the unit stored by every cache tier, keyed by normalized citation text
type CacheRecord struct {
	CaseName          string             `json:"case_name"`
	Year              string             `json:"year,omitempty"`
	ParallelCitations []string           `json:"parallel_citations,omitempty"`
	Verification      VerificationResult `json:"verification"`
}
