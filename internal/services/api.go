// API service for making raw HTTP requests to the transfer service
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sync"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000"

	// maxResponseBytes bounds a single response body.
	maxResponseBytes = 4 << 20
)

// APIService issues read-only requests against the transfer service.
type APIService struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	token   string
}

// NewAPIService creates a new API service instance for the transfer service.
//
// A non-empty token is sent as a bearer Authorization header on every request.
func NewAPIService(baseURL, token string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		token:      token,
		httpClient: client,
	}
}

// SetEndpoint replaces the base URL and bearer token used by subsequent requests.
// Requests already in flight keep the values they started with.
func (a *APIService) SetEndpoint(baseURL, token string) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	a.mu.Lock()
	a.baseURL = baseURL
	a.token = token
	a.mu.Unlock()
}

func (a *APIService) endpoint() (string, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.baseURL, a.token
}

// APIResponse is a buffered response.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the response carries a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the server labelled the body as JSON.
func (r *APIResponse) IsJSON() bool {
	if r.Headers == nil {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// URL joins path onto the base URL.
func (a *APIService) URL(path string) (string, error) {
	base, _ := a.endpoint()
	return joinURL(base, path)
}

func joinURL(base, path string) (string, error) {
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q + %q: %w", base, path, err)
	}
	return joined, nil
}

// Get performs a GET request to path and buffers the response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	base, token := a.endpoint()
	target, err := joinURL(base, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", path, maxResponseBytes)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}
