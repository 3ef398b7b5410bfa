package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/similarity"
)

const (
	DefaultCourtListenerURL = "https://www.courtlistener.com"

	lookupPath = "/api/rest/v4/citation-lookup/"
	searchPath = "/api/rest/v4/search/"

	lookupConfidence        = 0.9
	lookupWeakConfidence    = 0.75 // Several clusters and none resembled the extracted name
	primarySearchConfidence = 0.8
)

// CourtListener talks to the case-law service behind the primary lookup and
// primary search stages
type CourtListener struct {
	client  *Client
	baseURL string
	token   string
}

// NewCourtListener creates a service client. An empty baseURL uses the public service.
func NewCourtListener(client *Client, baseURL, token string) *CourtListener {
	if baseURL == "" {
		baseURL = DefaultCourtListenerURL
	}
	return &CourtListener{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// candidate is one case record returned by the service
type candidate struct {
	name string
	date string
	url  string
}

func (cl *CourtListener) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if cl.token != "" {
		h.Set("Authorization", "Token "+cl.token)
	}
	return h
}

func (cl *CourtListener) absolute(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return cl.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Lookup posts citation text to the citation-lookup endpoint and returns
// every cluster from every matched citation in the response
func (cl *CourtListener) Lookup(ctx context.Context, citation string) ([]candidate, error) {
	body, err := cl.client.PostForm(ctx, cl.baseURL+lookupPath, url.Values{"text": {citation}}, cl.header())
	if err != nil {
		// The lookup endpoint answers 404 for citations it cannot resolve
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("citation lookup: invalid JSON response")
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("citation lookup: expected array, got %s", parsed.Type)
	}

	var candidates []candidate
	parsed.ForEach(func(_, entry gjson.Result) bool {
		if status := entry.Get("status"); status.Exists() && status.Int() != http.StatusOK {
			return true
		}
		entry.Get("clusters").ForEach(func(_, cluster gjson.Result) bool {
			c := candidate{
				name: strings.TrimSpace(cluster.Get("case_name").String()),
				date: cluster.Get("date_filed").String(),
				url:  cl.absolute(cluster.Get("absolute_url").String()),
			}
			if c.name == "" {
				c.name = strings.TrimSpace(cluster.Get("case_name_full").String())
			}
			candidates = append(candidates, c)
			return true
		})
		return true
	})
	return candidates, nil
}

// Search runs a quoted full-text opinion search and returns the results in rank order
func (cl *CourtListener) Search(ctx context.Context, citation string) ([]candidate, error) {
	q := url.Values{}
	q.Set("q", `"`+citation+`"`)
	q.Set("type", "o")

	body, err := cl.client.Get(ctx, cl.baseURL+searchPath+"?"+q.Encode(), cl.header())
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search: invalid JSON response")
	}

	var candidates []candidate
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		candidates = append(candidates, candidate{
			name: strings.TrimSpace(r.Get("caseName").String()),
			date: r.Get("dateFiled").String(),
			url:  cl.absolute(r.Get("absolute_url").String()),
		})
		return true
	})
	return candidates, nil
}

// LookupStage is the primary lookup stage
type LookupStage struct {
	service *CourtListener
}

// NewLookupStage creates the primary lookup stage
func NewLookupStage(service *CourtListener) *LookupStage {
	return &LookupStage{service: service}
}

// Name returns the stage name
func (s *LookupStage) Name() string {
	return model.SourcePrimaryLookup
}

// Verify resolves the citation. With several candidate clusters and an
// extracted name, the candidate whose name is most similar wins.
func (s *LookupStage) Verify(ctx context.Context, q Query) (model.VerificationResult, error) {
	candidates, err := s.service.Lookup(ctx, q.Citation)
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("citation lookup: %w", err)
	}
	if len(candidates) == 0 {
		return model.VerificationResult{}, ErrNoMatch
	}

	idx, confidence := 0, lookupConfidence
	if len(candidates) > 1 && q.CaseName != "" {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.name
		}
		var score float64
		idx, score = similarity.SelectBest(names, q.CaseName, similarity.DefaultThreshold)
		if score < similarity.DefaultThreshold {
			confidence = lookupWeakConfidence
		}
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("candidates", len(candidates)),
			attribute.Float64("best_score", score))
	}

	best := candidates[idx]
	if best.name == "" {
		return model.VerificationResult{}, ErrNoMatch
	}
	return model.VerificationResult{
		Verified:      true,
		CanonicalName: best.name,
		CanonicalDate: model.ParseDate(best.date),
		URL:           best.url,
		Source:        model.SourcePrimaryLookup,
		Confidence:    confidence,
	}, nil
}

// SearchStage is the primary search stage, used when lookup gave nothing usable
type SearchStage struct {
	service *CourtListener
}

// NewSearchStage creates the primary search stage
func NewSearchStage(service *CourtListener) *SearchStage {
	return &SearchStage{service: service}
}

// Name returns the stage name
func (s *SearchStage) Name() string {
	return model.SourcePrimarySearch
}

// Verify accepts the first search result
func (s *SearchStage) Verify(ctx context.Context, q Query) (model.VerificationResult, error) {
	candidates, err := s.service.Search(ctx, q.Citation)
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("search: %w", err)
	}
	if len(candidates) == 0 || candidates[0].name == "" {
		return model.VerificationResult{}, ErrNoMatch
	}

	first := candidates[0]
	return model.VerificationResult{
		Verified:      true,
		CanonicalName: first.name,
		CanonicalDate: model.ParseDate(first.date),
		URL:           first.url,
		Source:        model.SourcePrimarySearch,
		Confidence:    primarySearchConfidence,
	}, nil
}
