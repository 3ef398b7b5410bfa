package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(10 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://www.courtlistener.com/api/"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host has its own slot
	if err := limiter.Wait(ctx, "https://law.justia.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_MinDelay(t *testing.T) {
	limiter := NewLimiter(50 * time.Millisecond)
	ctx := context.Background()
	url := "https://example.com/a"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, url); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected second request to wait about 50ms, waited %v", elapsed)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(time.Hour)
	url := "https://example.com"

	if !limiter.Allow(url) {
		t.Errorf("first request should pass")
	}
	if limiter.Allow(url) {
		t.Errorf("expected second request to be held back")
	}
	if !limiter.Allow("https://other.com") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_SetHostDelay(t *testing.T) {
	limiter := NewLimiter(0) // unlimited default
	limiter.SetHostDelay("slow.com", time.Hour)

	if !limiter.Allow("http://slow.com") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("http://slow.com") {
		t.Errorf("second request should fail")
	}

	for i := 0; i < 5; i++ {
		if !limiter.Allow("http://fast.com") {
			t.Fatalf("unlimited host should always pass")
		}
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(time.Hour)
	url := "https://example.com"
	_ = limiter.Wait(context.Background(), url)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, url); err == nil {
		t.Errorf("expected error when context expires before the slot")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://example.com/foo")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com" {
		t.Errorf("expected example.com, got %s", host)
	}

	if _, err := hostOf("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
	if _, err := hostOf("/relative/path"); err == nil {
		t.Errorf("expected error for URL without host")
	}
}
