package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&fetches, 1)
		_, _ = w.Write([]byte("User-agent: citecheck\nDisallow: /private/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer srv.Close()

	checker := NewRobotsChecker(srv.Client(), "citecheck/0.1 (+https://example.com)", nil)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, srv.URL+"/opinion/1/brown/")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected /opinion/ to be allowed for citecheck")
	}
	if delay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(ctx, srv.URL+"/private/x")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if allowed {
		t.Error("expected /private/ to be disallowed")
	}

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", n)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	checker := NewRobotsChecker(srv.Client(), "citecheck", nil)
	allowed, _, err := checker.CanFetch(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected allow when robots.txt is missing")
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	checker := NewRobotsChecker(&http.Client{Timeout: time.Second}, "citecheck", nil)
	allowed, _, err := checker.CanFetch(context.Background(), addr+"/x")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected allow when robots.txt is unreachable")
	}

	if _, _, err := checker.CanFetch(context.Background(), "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"citecheck/0.1 (+https://github.com/ppiankov/citecheck)": "citecheck",
		"citecheck":   "citecheck",
		"Mozilla/5.0": "Mozilla",
		"":            "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure-proxy.local:3128", "internal.example")

	req := &http.Request{URL: mustParse(t, "https://www.courtlistener.com/api/")}
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "secure-proxy.local:3128" {
		t.Errorf("expected https proxy, got %v", got)
	}

	req = &http.Request{URL: mustParse(t, "http://law.justia.com/cases/")}
	got, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "proxy.local:3128" {
		t.Errorf("expected http proxy, got %v", got)
	}

	req = &http.Request{URL: mustParse(t, "http://internal.example/x")}
	got, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no proxy for excluded host, got %v", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandHome("~/.citecheck/cache"); got != filepath.Join(home, ".citecheck/cache") {
		t.Errorf("unexpected expansion: %s", got)
	}
	if got := ExpandHome("~"); got != home {
		t.Errorf("expected %s, got %s", home, got)
	}
	if got := ExpandHome("/var/lib/citecheck"); got != "/var/lib/citecheck" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := ExpandHome("~other/x"); got != "~other/x" {
		t.Errorf("~user form should be untouched: %s", got)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}
