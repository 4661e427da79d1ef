package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/asrq/internal/api"
	"github.com/phrazzld/asrq/internal/api/shared"
)

// apiClient talks to a running asrq server.
type apiClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func newAPIClient(baseURL, token string) (*apiClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	return &apiClient{
		baseURL:    u,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Submit posts file (a server-side path or a URL) for recognition.
func (c *apiClient) Submit(ctx context.Context, file string) (*api.RecognizeResponse, error) {
	body, err := json.Marshal(api.RecognizeRequest{File: file})
	if err != nil {
		return nil, err
	}
	var resp api.RecognizeResponse
	if err := c.do(ctx, http.MethodPost, "/recognize", body, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the state of a task.
func (c *apiClient) Status(ctx context.Context, taskID string) (*api.TaskStatusResponse, error) {
	var resp api.TaskStatusResponse
	if err := c.do(ctx, http.MethodGet, "/status/"+taskID, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	target := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, shared.MaxRequestBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		var errResp shared.ErrorResponse
		_ = json.Unmarshal(data, &errResp)
		return &apiError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
