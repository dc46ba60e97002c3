package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker_Check(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: cardpricer\nDisallow: /private/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "cardpricer/0.1 (+https://example.com)")
	ctx := context.Background()

	allowed, delay, err := checker.Check(ctx, server.URL+"/json/AllSets.json")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !allowed {
		t.Errorf("Expected /json/AllSets.json to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	allowed, _, _ = checker.Check(ctx, server.URL+"/private/cards.json")
	if allowed {
		t.Errorf("Expected /private/ to be disallowed")
	}

	if robotsHits.Load() != 1 {
		t.Errorf("Expected robots.txt fetched once, got %d", robotsHits.Load())
	}
}

func TestRobotsChecker_Missing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "cardpricer/0.1")
	allowed, delay, err := checker.Check(context.Background(), server.URL+"/cards.json")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !allowed || delay != 0 {
		t.Errorf("Expected missing robots.txt to allow everything, got allowed=%v delay=%v", allowed, delay)
	}
}

func TestProductToken(t *testing.T) {
	tests := map[string]string{
		"cardpricer/0.1 (+https://example.com)": "cardpricer",
		"curl/8.0":                              "curl",
		"plain":                                 "plain",
		"":                                      "",
	}
	for in, want := range tests {
		if got := ProductToken(in); got != want {
			t.Errorf("ProductToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3128", "internal.example.com")

	req := &http.Request{URL: mustParse(t, "https://hearthstonejson.com/json/AllSets.json")}
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "secure.local:3128" {
		t.Errorf("Expected https proxy, got %v", got)
	}

	req = &http.Request{URL: mustParse(t, "http://internal.example.com/cards.json")}
	got, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected no proxy for NO_PROXY host, got %v", got)
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
