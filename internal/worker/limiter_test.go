package worker

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 1 {
		t.Errorf("expected default burst 1 for negative input, got %d", l2.defaultBurst)
	}

	l3 := NewLimiter(0, 1)
	if l3.defaultRate != rate.Inf {
		t.Errorf("expected unlimited rate for 0 rps, got %v", l3.defaultRate)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://hearthstonejson.com/json/AllSets.json"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "https://mirror.example.com/cards.json"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	url := "http://example.com/cards.json"

	if err := limiter.Wait(context.Background(), url); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	if limiter.Allow(url) {
		t.Errorf("expected allow to fail with exhausted tokens")
	}
	if !limiter.Allow("http://other.com/cards.json") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_ApplyCrawlDelay(t *testing.T) {
	limiter := NewLimiter(100, 10)
	url := "http://slow.com/cards.json"

	if err := limiter.ApplyCrawlDelay(url, 10*time.Second); err != nil {
		t.Fatalf("ApplyCrawlDelay failed: %v", err)
	}
	if !limiter.Allow(url) {
		t.Errorf("first request should pass")
	}
	if limiter.Allow(url) {
		t.Errorf("second request should wait for the crawl delay")
	}
	if !limiter.Allow("http://fast.com/cards.json") {
		t.Errorf("other host should pass")
	}

	// a looser delay never relaxes the limit
	if err := limiter.ApplyCrawlDelay(url, time.Millisecond); err != nil {
		t.Fatalf("ApplyCrawlDelay failed: %v", err)
	}
	if got := limiter.forHost("slow.com").Limit(); got != rate.Every(10*time.Second) {
		t.Errorf("expected limit to stay at 0.1 rps, got %v", got)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "http://example.com"
	_ = limiter.Allow(url)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx, url); err == nil {
		t.Errorf("expected error from cancelled context")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://example.com:8080/foo")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}

	if _, err := hostOf("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
