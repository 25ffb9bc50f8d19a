package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tu "github.com/desertthunder/mediasync/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", "", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Defaults", func(t *testing.T) {
			srv := NewAPIService("", "", nil)

			if srv.baseURL != DefaultBaseURL {
				t.Errorf("expected default baseURL %s, got %s", DefaultBaseURL, srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("URL", func(t *testing.T) {
		tests := []struct {
			base, path, want string
		}{
			{"http://nas:5000", TransfersPath, "http://nas:5000/api/transfers"},
			{"http://nas:5000/", ActiveTransfersPath, "http://nas:5000/api/transfers/active"},
			{"https://nas/sync/v1", TransfersPath, "https://nas/sync/v1/api/transfers"},
		}

		for _, tt := range tests {
			got, err := NewAPIService(tt.base, "", nil).URL(tt.path)
			if err != nil {
				t.Fatalf("%s + %s: unexpected error %v", tt.base, tt.path, err)
			}
			if got != tt.want {
				t.Errorf("%s + %s = %s, want %s", tt.base, tt.path, got, tt.want)
			}
		}

		if _, err := NewAPIService("://bad", "", nil).URL("/x"); err == nil {
			t.Error("expected error for malformed base URL")
		}
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != ActiveTransfersPath {
					t.Errorf("expected path %s, got %s", ActiveTransfersPath, r.URL.Path)
				}
				if r.Header.Get("Accept") != "application/json" {
					t.Errorf("expected JSON Accept header, got %q", r.Header.Get("Accept"))
				}

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Write([]byte(`{"active":true,"count":2}`))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, "", nil).Get(context.Background(), ActiveTransfersPath)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.OK() {
				t.Errorf("expected 2xx, got %d", resp.StatusCode)
			}
			if !resp.IsJSON() {
				t.Error("expected response to be labelled JSON")
			}

			var body struct {
				Count int `json:"count"`
			}
			if err := resp.Decode(&body); err != nil || body.Count != 2 {
				t.Errorf("expected count 2, got %d (%v)", body.Count, err)
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("rsync worker down"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, "", nil).Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.OK() {
				t.Error("expected non-2xx response")
			}
			if resp.IsJSON() {
				t.Error("expected text/plain not to be JSON")
			}
			if string(resp.Body) != "rsync worker down" {
				t.Errorf("unexpected body %q", resp.Body)
			}
			if err := resp.Decode(&struct{}{}); err == nil {
				t.Error("expected decode error for plain text")
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			rt := tu.NewMockRoundTripper(nil, errors.New("connection failed"))
			client := &http.Client{Transport: rt}

			_, err := NewAPIService("http://example.com", "", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
			if paths := rt.Paths(); len(paths) != 1 || paths[0] != "/test" {
				t.Errorf("expected one request to /test, got %v", paths)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			_, err := NewAPIService("http://example.com", "", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("Oversized Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(strings.Repeat("x", maxResponseBytes+1)))
			}))
			defer server.Close()

			_, err := NewAPIService(server.URL, "", nil).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "exceeds") {
				t.Errorf("expected size error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := NewAPIService(server.URL, "", nil).Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Authorization", func(t *testing.T) {
		t.Run("Sends Bearer Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("expected bearer token, got %q", got)
				}
			}))
			defer server.Close()

			if _, err := NewAPIService(server.URL, "secret", nil).Get(context.Background(), "/test"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Omits Header Without Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "" {
					t.Errorf("expected no Authorization header, got %q", got)
				}
			}))
			defer server.Close()

			if _, err := NewAPIService(server.URL, "", nil).Get(context.Background(), "/test"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("SetEndpoint Applies To Later Requests", func(t *testing.T) {
			var oldHits, newHits []string
			oldServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				oldHits = append(oldHits, r.Header.Get("Authorization"))
			}))
			defer oldServer.Close()
			newServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				newHits = append(newHits, r.Header.Get("Authorization"))
			}))
			defer newServer.Close()

			api := NewAPIService(oldServer.URL, "old", nil)
			if _, err := api.Get(context.Background(), "/test"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			api.SetEndpoint(newServer.URL, "new")
			if _, err := api.Get(context.Background(), "/test"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(oldHits) != 1 || oldHits[0] != "Bearer old" {
				t.Errorf("expected one request with old token on old server, got %v", oldHits)
			}
			if len(newHits) != 1 || newHits[0] != "Bearer new" {
				t.Errorf("expected one request with new token on new server, got %v", newHits)
			}
		})

		t.Run("SetEndpoint Defaults Empty Base URL", func(t *testing.T) {
			api := NewAPIService("http://example.com", "tok", nil)
			api.SetEndpoint("", "")

			got, err := api.URL("/x")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != DefaultBaseURL+"/x" {
				t.Errorf("expected %s/x, got %s", DefaultBaseURL, got)
			}
		})
	})
}
