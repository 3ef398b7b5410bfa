package verify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/citecheck/internal/util"
)

// PageConfirmer fetches a search result page, robots.txt permitting, and
// checks that the citation appears in the page text
type PageConfirmer struct {
	client *Client
	robots *util.RobotsChecker
	logger *zap.Logger

	mu      sync.Mutex
	delayed map[string]bool // Hosts whose crawl delay was applied to the limiter
}

// NewPageConfirmer creates a confirmer sharing client's transport and limiter
func NewPageConfirmer(client *Client, userAgent string, logger *zap.Logger) *PageConfirmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageConfirmer{
		client:  client,
		robots:  util.NewRobotsChecker(client.HTTPClient(), userAgent, logger),
		logger:  logger.Named("confirm"),
		delayed: make(map[string]bool),
	}
}

// Confirm reports whether citation occurs in the text of the page at rawURL.
// A page robots.txt disallows is never fetched and never confirms.
func (p *PageConfirmer) Confirm(ctx context.Context, rawURL, citation string) (bool, error) {
	allowed, crawlDelay, err := p.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return false, err
	}
	if !allowed {
		p.logger.Debug("robots.txt disallows result page", zap.String("url", rawURL))
		return false, nil
	}
	p.applyCrawlDelay(rawURL, crawlDelay)

	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	body, err := p.client.Get(ctx, rawURL, h)
	if err != nil {
		return false, err
	}

	text, err := pageText(body)
	if err != nil {
		return false, err
	}
	return containsCitation(text, citation), nil
}

func (p *PageConfirmer) applyCrawlDelay(rawURL string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delayed[u.Host] {
		return
	}
	p.delayed[u.Host] = true
	p.client.Limiter().SetHostDelay(u.Host, delay)
}

// pageText returns the visible text of an HTML document with script and
// style content dropped
func pageText(body []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return b.String(), nil
			}
			return b.String(), z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if isHiddenTag(name) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isHiddenTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHiddenTag(name []byte) bool {
	switch string(name) {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}
