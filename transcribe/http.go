// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quarryhq/quarry/core"
)

// Ensure HTTPClient implements the interface.
var _ Client = (*HTTPClient)(nil)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 64 << 20 // transcripts can be large, but bounded
)

// Config holds configuration for the HTTP transcription client.
type Config struct {
	// BaseURL is the transcription service root, e.g. http://localhost:8085.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// HTTPClient implements Client against the transcription service's REST API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

type submitRequest struct {
	SourceRef string `json:"source_ref"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type pollResponse struct {
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewHTTPClient creates a transcription client for the given service.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcription service base URL cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  slog.Default().With("component", "transcribe-client"),
	}, nil
}

// SubmitJob starts a transcription of sourceRef.
func (c *HTTPClient) SubmitJob(ctx context.Context, sourceRef string) (string, error) {
	if sourceRef == "" {
		return "", core.Permanent(core.ErrEmptySourceRef)
	}

	body, err := json.Marshal(submitRequest{SourceRef: sourceRef})
	if err != nil {
		return "", fmt.Errorf("encoding submit request: %w", err)
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transcriptions", body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", core.Transient(fmt.Errorf("transcription service returned no job id"))
	}

	c.logger.Debug("submitted transcription job",
		"source_ref", sourceRef, "external_job_id", resp.JobID)
	return resp.JobID, nil
}

// PollJob reports the state of an external transcription job.
func (c *HTTPClient) PollJob(ctx context.Context, externalID string) (*PollResult, error) {
	if externalID == "" {
		return nil, core.Permanent(fmt.Errorf("external job id cannot be empty"))
	}

	var resp pollResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transcriptions/"+externalID, nil, &resp); err != nil {
		return nil, err
	}

	switch Status(resp.Status) {
	case StatusPending, StatusReady, StatusFailed:
		return &PollResult{
			Status:  Status(resp.Status),
			Text:    resp.Text,
			Message: resp.Error,
		}, nil
	default:
		return nil, core.Transient(fmt.Errorf("unknown transcription status %q", resp.Status))
	}
}

// do performs one request and decodes the JSON response. HTTP 5xx and
// transport failures are transient, 4xx are permanent.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return core.Transient(fmt.Errorf("transcription request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.Transient(fmt.Errorf("reading transcription response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return core.Transient(fmt.Errorf("transcription service error: %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.Transient(fmt.Errorf("transcription service throttled: %s", resp.Status))
	case resp.StatusCode >= 400:
		return core.Permanent(fmt.Errorf("transcription request rejected: %s: %s",
			resp.Status, strings.TrimSpace(string(data))))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return core.Transient(fmt.Errorf("decoding transcription response: %w", err))
	}
	return nil
}
