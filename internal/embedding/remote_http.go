package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RemoteHTTPBackend talks to an embedding service reachable over HTTP. A
// 2xx-4xx response to the health probe counts as reachable; only a network
// error or a 5xx proves the service is down.
type RemoteHTTPBackend struct {
	healthURL string
	embedURL  string
	client    *http.Client
}

// NewRemoteHTTPBackend builds a backend against baseURL + "/health" and
// baseURL + "/embed".
func NewRemoteHTTPBackend(baseURL string) *RemoteHTTPBackend {
	return &RemoteHTTPBackend{
		healthURL: baseURL + "/health",
		embedURL:  baseURL + "/embed",
		client:    &http.Client{},
	}
}

// HealthCheck issues a GET against the health endpoint using ctx's deadline.
func (b *RemoteHTTPBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.healthURL, nil)
	if err != nil {
		return fmt.Errorf("embedding: build health request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding: remote health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("embedding: remote health check returned %d", resp.StatusCode)
	}
	return nil
}

type remoteEmbedRequest struct {
	Texts []string `json:"texts"`
}

type remoteEmbedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embed posts texts to the embed endpoint and expects one vector back per
// input, in order.
func (b *RemoteHTTPBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(remoteEmbedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.embedURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: remote embed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding: remote embed returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response body: %w", err)
	}

	var parsed remoteEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(parsed.Vectors) != len(texts) {
		return nil, fmt.Errorf("embedding: remote returned %d vectors for %d texts", len(parsed.Vectors), len(texts))
	}
	return parsed.Vectors, nil
}
