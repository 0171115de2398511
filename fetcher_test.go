package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcherFetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != browserUserAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		if !strings.HasPrefix(r.Header.Get("Accept-Language"), "ko-KR") {
			t.Errorf("Accept-Language = %q", r.Header.Get("Accept-Language"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><div id="article-view">본문</div></body></html>`))
	}))
	defer server.Close()

	page, err := NewHTTPFetcher(5*time.Second).FetchPage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if !strings.Contains(page, "본문") {
		t.Errorf("FetchPage() = %q", page)
	}
}

func TestHTTPFetcherHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewHTTPFetcher(5*time.Second).FetchPage(context.Background(), server.URL)
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("FetchPage() error = %v, want *HTTPError", err)
			}
			if httpErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, tt.status)
			}
			if httpErr.URL != server.URL {
				t.Errorf("URL = %q, want %q", httpErr.URL, server.URL)
			}
		})
	}
}

func TestHTTPFetcherFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved here"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	page, err := NewHTTPFetcher(5*time.Second).FetchPage(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if page != "moved here" {
		t.Errorf("FetchPage() = %q", page)
	}
}

func TestHTTPFetcherCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPFetcher(5*time.Second).FetchPage(ctx, server.URL); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestDebugLogToggle(t *testing.T) {
	SetDebugMode(true)
	if !debugEnabled {
		t.Error("SetDebugMode(true) did not enable debug logging")
	}
	SetDebugMode(false)
	if debugEnabled {
		t.Error("SetDebugMode(false) did not disable debug logging")
	}
}
