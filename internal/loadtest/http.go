package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// errThrottled marks a 429 from the service.
var errThrottled = errors.New("throttled")

// httpClient wraps http.Client with the service base URL.
type httpClient struct {
	client  *http.Client
	baseURL string
	runID   string
}

func newHTTPClient(cfg *Config, runID string) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		runID:   runID,
	}
}

// do sends a request and decodes a JSON response into out when out is not
// nil. Any status other than want is an error.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any, want int) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", c.runID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, path, errThrottled)
	}
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *httpClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
}

func (c *httpClient) controls(ctx context.Context) (controls, error) {
	var out controls
	err := c.do(ctx, http.MethodGet, "/api/options", nil, &out, http.StatusOK)
	return out, err
}

func (c *httpClient) createSession(ctx context.Context) (string, error) {
	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *httpClient) submit(ctx context.Context, id string, in inputsBody) (uint64, error) {
	var out submitResponse
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+id+"/inputs", in, &out, http.StatusAccepted)
	return out.Version, err
}

func (c *httpClient) figures(ctx context.Context, id string) (figuresResponse, error) {
	var out figuresResponse
	err := c.do(ctx, http.MethodGet, "/api/sessions/"+id+"/figures", nil, &out, http.StatusOK)
	return out, err
}

func (c *httpClient) endSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+id, nil, nil, http.StatusNoContent)
}
