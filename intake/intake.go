// Package intake collects and submits the name/city profile that precedes the
// analysis flow.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/apex/log"
)

// validInput accepts letters, spaces, hyphens and apostrophes only.
var validInput = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)

// Profile is the name/city pair sent to the intake endpoint. It is consumed
// by a single submission and not retained afterwards.
type Profile struct {
	Name string `json:"name"`
	City string `json:"city"`
}

// ValidationError reports a rejected field. Validation failures are resolved
// at the form boundary and never reach the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func validateField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "cannot be empty."}
	}
	if !validInput.MatchString(value) {
		return &ValidationError{Field: field, Reason: "can only contain letters, spaces, hyphens, or apostrophes."}
	}
	return nil
}

// Validate checks both profile fields.
func Validate(profile Profile) error {
	if err := validateField("Name", profile.Name); err != nil {
		return err
	}
	return validateField("City", profile.City)
}

// Client submits intake profiles to the remote endpoint.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates an intake client with the given request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// intakeRequest is the wire payload; the endpoint calls the city "location".
type intakeRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Submit validates the profile and posts it. The response body is not
// consumed beyond error reporting.
func (c *Client) Submit(ctx context.Context, profile Profile) error {
	if err := Validate(profile); err != nil {
		return err
	}

	payload, err := json.Marshal(intakeRequest{Name: profile.Name, Location: profile.City})
	if err != nil {
		return fmt.Errorf("failed to marshal intake payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create intake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("intake request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read intake response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("intake rejected (status %d): %s", resp.StatusCode, errorText(body))
	}

	log.WithField("name", profile.Name).Info("intake profile submitted")
	return nil
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
	return strings.TrimSpace(string(body))
}
