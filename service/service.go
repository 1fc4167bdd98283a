// Package service orchestrates the capture-to-summary flow: camera lifecycle,
// photo submission and the summary read side. Handlers call into it; it holds
// no transport concerns of its own.
package service

import (
	"context"
	"errors"

	"github.com/apex/log"

	"face-analyze-pipeline/camera"
	"face-analyze-pipeline/demographics"
	"face-analyze-pipeline/metrics"
	"face-analyze-pipeline/pipeline"
	"face-analyze-pipeline/store"
)

// ErrNoData means no analysis result is available yet; the caller should send
// the user back to the capture step instead of rendering an empty summary.
var ErrNoData = errors.New("no analysis data available")

// Summary is the read model for the result view: every available category
// ranked for display, plus the initial highlighted entry.
type Summary struct {
	Rankings  map[string][]demographics.Prediction `json:"rankings"`
	Selection demographics.Selection               `json:"selection"`
}

// Service wires the capture controller, the submission pipeline and the
// result store into the user-facing flow.
type Service struct {
	controller *camera.Controller
	pipeline   *pipeline.Pipeline
	results    *store.ResultStore
}

// New creates the flow service.
func New(controller *camera.Controller, p *pipeline.Pipeline, results *store.ResultStore) *Service {
	return &Service{
		controller: controller,
		pipeline:   p,
		results:    results,
	}
}

// CaptureState exposes the camera lifecycle state for status reporting.
func (s *Service) CaptureState() camera.State {
	return s.controller.State()
}

// StartCapture begins a camera session. Valid when idle or after a failure,
// where it acts as the retry.
func (s *Service) StartCapture(ctx context.Context) error {
	if err := s.controller.Initialize(ctx); err != nil {
		metrics.CaptureSessionsTotal.WithLabelValues("acquisition_failed").Inc()
		return err
	}
	return nil
}

// TakePhoto captures one still from the live feed.
func (s *Service) TakePhoto(ctx context.Context) (camera.Frame, error) {
	return s.controller.Capture(ctx)
}

// Retake discards the captured frame and restarts the feed for another
// attempt.
func (s *Service) Retake(ctx context.Context) error {
	s.controller.Release()
	return s.controller.Initialize(ctx)
}

// SwitchFacing flips between the front and back camera while live.
func (s *Service) SwitchFacing(ctx context.Context) error {
	return s.controller.SwitchFacing(ctx)
}

// SubmitCapture uploads the captured frame. On success the camera is released
// and the result is stored; on failure the session moves to its error state so
// the user can retry or cancel.
func (s *Service) SubmitCapture(ctx context.Context) (demographics.Analysis, error) {
	frame, err := s.controller.BeginUpload()
	if err != nil {
		return nil, err
	}

	analysis, err := s.pipeline.Submit(ctx, s.controller.SessionID(), frame.Data)
	if err != nil {
		if errors.Is(err, pipeline.ErrSubmitInFlight) {
			// The pipeline never accepted the frame; roll the session back to
			// captured so the user can retry once the other upload finishes.
			s.controller.UploadAborted()
			return nil, err
		}
		s.controller.UploadFailed(err)
		metrics.CaptureSessionsTotal.WithLabelValues("upload_failed").Inc()
		return nil, err
	}

	s.controller.Release()
	metrics.CaptureSessionsTotal.WithLabelValues("completed").Inc()
	return analysis, nil
}

// SubmitPhoto runs a gallery upload through the same pipeline, bypassing the
// camera entirely.
func (s *Service) SubmitPhoto(ctx context.Context, imageBytes []byte) (demographics.Analysis, error) {
	return s.pipeline.Submit(ctx, "", imageBytes)
}

// CancelCapture abandons the session and releases the device.
func (s *Service) CancelCapture() {
	if s.controller.State() != camera.StateIdle {
		metrics.CaptureSessionsTotal.WithLabelValues("cancelled").Inc()
	}
	s.controller.Release()
}

// GetSummary builds the result view from the stored analysis. A result with
// no usable categories reports ErrNoData the same as an empty store.
func (s *Service) GetSummary() (Summary, error) {
	analysis, _, ok := s.results.Get()
	if !ok || analysis.IsEmpty() {
		return Summary{}, ErrNoData
	}

	rankings := make(map[string][]demographics.Prediction)
	for _, category := range demographics.Categories {
		if ranked := analysis.RankedList(category); ranked != nil {
			rankings[category] = ranked
		}
	}

	selection, _ := demographics.DefaultSelection(analysis)
	return Summary{Rankings: rankings, Selection: selection}, nil
}

// SelectEntry resolves a display label against the stored analysis and
// returns the updated selection. Labels round-trip case-insensitively, so a
// title-cased display value recovers its original confidence.
func (s *Service) SelectEntry(category, label string) (demographics.Selection, error) {
	analysis, _, ok := s.results.Get()
	if !ok || analysis.IsEmpty() {
		return demographics.Selection{}, ErrNoData
	}

	raw, confidence, found := analysis.MatchLabel(category, label)
	if !found {
		return demographics.Selection{}, errors.New("no such entry in the stored analysis")
	}

	var selection demographics.Selection
	selection.Pick(category, demographics.FormatLabel(raw), confidence)
	return selection, nil
}

// ResetSummary clears the stored result and its session fallback.
func (s *Service) ResetSummary() {
	s.results.Clear()
	log.Info("analysis result cleared")
}
