// Package handlers exposes the capture, intake and summary flow over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"face-analyze-pipeline/analyze"
	"face-analyze-pipeline/camera"
	"face-analyze-pipeline/imageprep"
	"face-analyze-pipeline/intake"
	"face-analyze-pipeline/metrics"
	"face-analyze-pipeline/pipeline"
	"face-analyze-pipeline/service"
)

// Broker reports whether the analysis-event publisher still holds a live
// connection, satisfied by *rabbitmq.Publisher.
type Broker interface {
	IsConnected() bool
}

// Handlers represents the HTTP handlers
type Handlers struct {
	svc    *service.Service
	intake *intake.Client
	broker Broker
}

// NewHandlers creates new HTTP handlers. broker may be nil when publishing is
// disabled.
func NewHandlers(svc *service.Service, intakeClient *intake.Client, broker Broker) *Handlers {
	return &Handlers{svc: svc, intake: intakeClient, broker: broker}
}

// Register mounts all routes on the router group.
func (h *Handlers) Register(api *gin.RouterGroup) {
	api.GET("/health", h.HealthCheck)
	api.GET("/status", h.GetStatus)
	api.POST("/intake", h.SubmitIntake)
	api.POST("/capture/start", h.StartCapture)
	api.POST("/capture/photo", h.TakePhoto)
	api.POST("/capture/retake", h.Retake)
	api.POST("/capture/switch", h.SwitchFacing)
	api.POST("/capture/submit", h.SubmitCapture)
	api.POST("/capture/cancel", h.CancelCapture)
	api.POST("/analyze", h.AnalyzePhoto)
	api.GET("/summary", h.GetSummary)
	api.POST("/summary/selection", h.SelectEntry)
	api.POST("/summary/reset", h.ResetSummary)
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "face-analyze-pipeline",
	})
}

// GetStatus reports the capture lifecycle state and result availability.
func (h *Handlers) GetStatus(c *gin.Context) {
	summaryReady := true
	if _, err := h.svc.GetSummary(); err != nil {
		summaryReady = false
	}
	status := gin.H{
		"capture_state": h.svc.CaptureState().String(),
		"summary_ready": summaryReady,
		"service":       "face-analyze-pipeline",
	}
	if h.broker != nil {
		status["publisher_connected"] = h.broker.IsConnected()
	}
	c.JSON(http.StatusOK, status)
}

// SubmitIntake validates and forwards the name/city profile.
func (h *Handlers) SubmitIntake(c *gin.Context) {
	var profile intake.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.intake.Submit(c.Request.Context(), profile); err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			metrics.IntakeTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
			return
		}
		metrics.IntakeTotal.WithLabelValues("failed").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	metrics.IntakeTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "submitted"})
}

// StartCapture begins (or retries) a camera session.
func (h *Handlers) StartCapture(c *gin.Context) {
	if err := h.svc.StartCapture(c.Request.Context()); err != nil {
		if errors.Is(err, camera.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "Capture already in progress"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     camera.UserMessage(err),
			"retryable": camera.Retryable(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"capture_state": h.svc.CaptureState().String()})
}

// TakePhoto captures a still from the live feed.
func (h *Handlers) TakePhoto(c *gin.Context) {
	frame, err := h.svc.TakePhoto(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, camera.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "No live camera feed"})
		case errors.Is(err, camera.ErrFeedNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "Camera not loaded yet. Please wait."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"capture_state": h.svc.CaptureState().String(),
		"width":         frame.Width,
		"height":        frame.Height,
	})
}

// Retake discards the captured frame and restarts the feed.
func (h *Handlers) Retake(c *gin.Context) {
	if err := h.svc.Retake(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     camera.UserMessage(err),
			"retryable": camera.Retryable(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"capture_state": h.svc.CaptureState().String()})
}

// SwitchFacing flips between the front and back camera.
func (h *Handlers) SwitchFacing(c *gin.Context) {
	if err := h.svc.SwitchFacing(c.Request.Context()); err != nil {
		if errors.Is(err, camera.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "No live camera feed"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     camera.UserMessage(err),
			"retryable": camera.Retryable(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"capture_state": h.svc.CaptureState().String()})
}

// SubmitCapture uploads the captured frame for analysis.
func (h *Handlers) SubmitCapture(c *gin.Context) {
	analysis, err := h.svc.SubmitCapture(c.Request.Context())
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// CancelCapture abandons the session and releases the device.
func (h *Handlers) CancelCapture(c *gin.Context) {
	h.svc.CancelCapture()
	c.JSON(http.StatusOK, gin.H{"capture_state": h.svc.CaptureState().String()})
}

type analyzeRequest struct {
	Image string `json:"image" binding:"required"`
}

// AnalyzePhoto runs a direct (gallery) upload through the pipeline. The image
// arrives as a data URL or raw base64.
func (h *Handlers) AnalyzePhoto(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	imageBytes, err := imageprep.DecodeDataURL(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image must be a base64-encoded photo"})
		return
	}

	analysis, err := h.svc.SubmitPhoto(c.Request.Context(), imageBytes)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// GetSummary returns the ranked result view.
func (h *Handlers) GetSummary(c *gin.Context) {
	summary, err := h.svc.GetSummary()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No analysis data available"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type selectionRequest struct {
	Category string `json:"category" binding:"required"`
	Label    string `json:"label" binding:"required"`
}

// SelectEntry highlights one entry of the stored analysis.
func (h *Handlers) SelectEntry(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	selection, err := h.svc.SelectEntry(req.Category, req.Label)
	if err != nil {
		if errors.Is(err, service.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No analysis data available"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, selection)
}

// ResetSummary clears the stored result.
func (h *Handlers) ResetSummary(c *gin.Context) {
	h.svc.ResetSummary()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// writeSubmitError maps classified submission failures onto HTTP statuses.
func (h *Handlers) writeSubmitError(c *gin.Context, err error) {
	var rejected *analyze.RejectedError
	switch {
	case errors.Is(err, camera.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "No captured photo to submit"})
	case errors.Is(err, pipeline.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "A submission is already in progress"})
	case errors.Is(err, pipeline.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image payload is empty or not a valid photo"})
	case errors.Is(err, analyze.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Analysis timed out. Please try again."})
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": rejected.Message})
	case errors.Is(err, analyze.ErrMalformedResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis service returned an unreadable response"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis request failed. Please check your connection."})
	}
}
