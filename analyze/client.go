// Package analyze talks to the remote face-analysis endpoint. The endpoint
// is an untrusted boundary: its response shape has varied across deployments,
// so everything it returns goes through explicit classification and
// normalization.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"face-analyze-pipeline/demographics"
)

// Classified submission failures.
var (
	// ErrNetwork wraps transport-level failures.
	ErrNetwork = errors.New("analysis request failed")
	// ErrTimeout distinguishes a slow network from a server rejection.
	ErrTimeout = errors.New("analysis request timed out")
	// ErrMalformedResponse covers bodies that do not parse as JSON or carry
	// no recognized demographic keys.
	ErrMalformedResponse = errors.New("analysis response not understood")
)

// RejectedError reports a server-side rejection: a non-2xx status, or a 2xx
// body that signals an application-level error.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("analysis rejected (status %d): %s", e.Status, e.Message)
}

// Client is the analysis endpoint client.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Image string `json:"image"`
}

// Analyze posts a data-URL-encoded photo and returns the normalized
// demographic predictions.
func (c *Client) Analyze(ctx context.Context, imageDataURL string) (demographics.Analysis, error) {
	payload, err := json.Marshal(analyzeRequest{Image: imageDataURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RejectedError{Status: resp.StatusCode, Message: errorText(body)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: body is not JSON: %.100s", ErrMalformedResponse, string(body))
	}

	// A 2xx body can still signal an application-level error.
	if message, failed := applicationError(decoded); failed {
		return nil, &RejectedError{Status: resp.StatusCode, Message: message}
	}

	analysis, err := demographics.Normalize(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return analysis, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// applicationError detects error-shaped success bodies: an explicit error
// field, or the service's known "no data" message.
func applicationError(decoded map[string]any) (string, bool) {
	if msg, ok := decoded["error"].(string); ok && msg != "" {
		return msg, true
	}
	if msg, ok := decoded["message"].(string); ok && msg == "No analysis data available" {
		return msg, true
	}
	return "", false
}

// errorText extracts a readable message from a JSON or plain-text error body.
func errorText(body []byte) string {
	var shaped struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		if shaped.Message != "" {
			return shaped.Message
		}
		if shaped.Error != "" {
			return shaped.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "unknown error"
	}
	return text
}
