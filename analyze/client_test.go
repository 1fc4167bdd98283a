package analyze

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"face-analyze-pipeline/demographics"
)

func newTestClient(handler http.HandlerFunc) (*Client, func()) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, 2*time.Second), server.Close
}

func TestAnalyzeTopLevelShape(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"age": {"20-29": 0.8}, "gender": {"female": 0.9}, "race": {"asian": 0.6}}`))
	})
	defer done()

	analysis, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if analysis[demographics.CategorySex]["female"] != 0.9 {
		t.Errorf("gender must map to sex, got %v", analysis)
	}
}

func TestAnalyzeNestedShapeMatchesTopLevel(t *testing.T) {
	shapes := []string{
		`{"age": {"20-29": 0.8}, "gender": {"female": 0.9}, "race": {"asian": 0.6}}`,
		`{"data": {"age": {"20-29": 0.8}, "gender": {"female": 0.9}, "race": {"asian": 0.6}}}`,
	}

	var results []demographics.Analysis
	for _, shape := range shapes {
		body := shape
		client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		analysis, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")
		done()
		if err != nil {
			t.Fatalf("Analyze(%s) error: %v", shape, err)
		}
		results = append(results, analysis)
	}

	for category, labels := range results[0] {
		for label, confidence := range labels {
			if results[1][category][label] != confidence {
				t.Errorf("nested shape must normalize identically: %s/%s %v vs %v",
					category, label, confidence, results[1][category][label])
			}
		}
	}
}

func TestAnalyzeServerRejected(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "too dark"}`))
	})
	defer done()

	_, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rejected.Status)
	}
	if !strings.Contains(rejected.Message, "too dark") {
		t.Errorf("message must include the server text, got %q", rejected.Message)
	}
}

func TestAnalyzePlainTextErrorBody(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	})
	defer done()

	_, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if !strings.Contains(rejected.Message, "upstream exploded") {
		t.Errorf("plain-text body must be captured, got %q", rejected.Message)
	}
}

func TestAnalyzeErrorShapedSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"explicit error field", `{"error": "face not detected"}`},
		{"no data message", `{"message": "No analysis data available"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			defer done()

			_, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")

			var rejected *RejectedError
			if !errors.As(err, &rejected) {
				t.Errorf("error-shaped 2xx must fail as rejection, got %v", err)
			}
		})
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not JSON", `<html>oops</html>`},
		{"no demographic keys", `{"status": "ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			defer done()

			_, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 50*time.Millisecond)
	_, err := client.Analyze(context.Background(), "data:image/jpeg;base64,Zm9v")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
