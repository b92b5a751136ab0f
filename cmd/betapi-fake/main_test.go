package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ugandavote/betclient/internal/fakeapi"
)

func TestHealth(t *testing.T) {
	r := newRouter(fakeapi.New(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("expected 200 OK, got %d %q", w.Code, w.Body.String())
	}
}

func TestRouter_ServesBothUpstreams(t *testing.T) {
	fake := fakeapi.New()
	_, token := fake.SeedUser("0700000001", "1234", 100)
	r := newRouter(fake, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/elections", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /elections: expected 200, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/balance: expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(fakeapi.New(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"any origin", nil, "https://shop.example", "*"},
		{"allowed origin", []string{"https://shop.example"}, "https://shop.example", "https://shop.example"},
		{"other origin", []string{"https://shop.example"}, "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(fakeapi.New(), tt.origins)
			req := httptest.NewRequest(http.MethodOptions, "/api/balance", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusNoContent {
				t.Errorf("preflight: expected 204, got %d", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
