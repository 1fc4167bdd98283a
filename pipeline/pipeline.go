// Package pipeline runs one photo submission end to end: local payload
// validation, image preparation, the remote analysis call and the result
// handoff. It is the sole writer of the result store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"face-analyze-pipeline/analyze"
	"face-analyze-pipeline/demographics"
	"face-analyze-pipeline/imageprep"
	"face-analyze-pipeline/metrics"
	"face-analyze-pipeline/store"
)

var (
	// ErrInvalidPayload rejects empty or implausibly small payloads before
	// any network round trip is spent on them.
	ErrInvalidPayload = errors.New("invalid image payload")
	// ErrSubmitInFlight rejects a second submission while one is
	// outstanding. Retry is a user action, never an overlap.
	ErrSubmitInFlight = errors.New("a submission is already in flight")
)

// Analyzer is the remote analysis boundary, satisfied by *analyze.Client.
type Analyzer interface {
	Analyze(ctx context.Context, imageDataURL string) (demographics.Analysis, error)
}

// Publisher emits completed analyses to interested consumers. A nil
// publisher disables publishing.
type Publisher interface {
	PublishAnalysis(sessionID string, analysis demographics.Analysis) error
}

// Options tune payload validation and image preparation.
type Options struct {
	MinImageBytes     int
	MaxImageDimension int
	JPEGQuality       int
}

// Pipeline coordinates submissions. At most one submission is in flight at a
// time.
type Pipeline struct {
	analyzer  Analyzer
	results   *store.ResultStore
	publisher Publisher
	opts      Options
	inFlight  atomic.Bool
}

// New creates a pipeline. publisher may be nil.
func New(analyzer Analyzer, results *store.ResultStore, publisher Publisher, opts Options) *Pipeline {
	if opts.MinImageBytes <= 0 {
		opts.MinImageBytes = 512
	}
	if opts.MaxImageDimension <= 0 {
		opts.MaxImageDimension = 1024
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 90
	}
	return &Pipeline{
		analyzer:  analyzer,
		results:   results,
		publisher: publisher,
		opts:      opts,
	}
}

// Submit uploads one photo and stores the normalized result. On any failure
// the result store is left untouched. sessionID ties logs and published
// events to the capture session; it may be empty for gallery uploads.
func (p *Pipeline) Submit(ctx context.Context, sessionID string, imageBytes []byte) (demographics.Analysis, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.SubmissionsTotal.WithLabelValues("in_flight").Inc()
		return nil, ErrSubmitInFlight
	}
	defer p.inFlight.Store(false)

	started := time.Now()
	analysis, err := p.submit(ctx, sessionID, imageBytes)
	result := resultLabel(err)
	metrics.SubmissionsTotal.WithLabelValues(result).Inc()
	metrics.SubmissionDurationSeconds.WithLabelValues(result).Observe(time.Since(started).Seconds())
	return analysis, err
}

func (p *Pipeline) submit(ctx context.Context, sessionID string, imageBytes []byte) (demographics.Analysis, error) {
	if len(imageBytes) < p.opts.MinImageBytes {
		return nil, fmt.Errorf("%w: %d bytes is below the %d byte minimum", ErrInvalidPayload, len(imageBytes), p.opts.MinImageBytes)
	}
	if _, _, err := imageprep.Check(imageBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	prepared, err := imageprep.Prepare(imageBytes, p.opts.MaxImageDimension, p.opts.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	analysis, err := p.analyzer.Analyze(ctx, imageprep.EncodeDataURL(prepared))
	if err != nil {
		log.WithFields(log.Fields{
			"session": sessionID,
			"bytes":   len(prepared),
		}).WithError(err).Error("analysis submission failed")
		return nil, err
	}

	p.results.Set(analysis)
	log.WithFields(log.Fields{
		"session":    sessionID,
		"categories": len(analysis),
	}).Info("analysis stored")

	if p.publisher != nil {
		if err := p.publisher.PublishAnalysis(sessionID, analysis); err != nil {
			log.WithError(err).Warn("failed to publish analysis")
		}
	}
	return analysis, nil
}

// resultLabel buckets an error into a low-cardinality metric label.
func resultLabel(err error) string {
	var rejected *analyze.RejectedError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, analyze.ErrTimeout):
		return "timeout"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, analyze.ErrMalformedResponse):
		return "malformed"
	default:
		return "network_error"
	}
}
