package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/util"
	"github.com/ppiankov/citecheck/internal/worker"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Client is the HTTP client shared by every network stage. Each request
// waits on the per-host limiter first.
type Client struct {
	httpClient *http.Client
	limiter    *worker.Limiter
	userAgent  string
	maxBytes   int64
}

// NewClient creates a client from HTTP configuration. A nil limiter means
// no rate limiting.
func NewClient(cfg model.HTTPConfig, limiter *worker.Limiter) *Client {
	if limiter == nil {
		limiter = worker.NewLimiter(0)
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		limiter:   limiter,
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}
}

// HTTPClient exposes the underlying client for collaborators such as the
// robots.txt checker
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Limiter returns the per-host limiter requests wait on
func (c *Client) Limiter() *worker.Limiter {
	return c.limiter
}

// Get fetches rawURL and returns at most maxBytes of the body
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.do(req)
}

// PostForm posts form values to rawURL
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context(), req.URL.String()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: req.URL.String(), Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
