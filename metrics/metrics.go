package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SubmissionsTotal counts analysis submissions by outcome.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceanalyze",
		Subsystem: "pipeline",
		Name:      "submissions_total",
		Help:      "Total number of analysis submissions, labeled by result.",
	}, []string{"result"})

	// SubmissionDurationSeconds is end-to-end submission time including image
	// preparation and the remote call.
	SubmissionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceanalyze",
		Subsystem: "pipeline",
		Name:      "submission_duration_seconds",
		Help:      "End-to-end time to prepare, upload and normalize one submission.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"result"})

	// CaptureSessionsTotal counts capture-session outcomes.
	CaptureSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceanalyze",
		Subsystem: "camera",
		Name:      "capture_sessions_total",
		Help:      "Total number of capture sessions, labeled by outcome.",
	}, []string{"outcome"})

	// IntakeTotal counts intake submissions by outcome.
	IntakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceanalyze",
		Subsystem: "intake",
		Name:      "submissions_total",
		Help:      "Total number of intake submissions, labeled by result.",
	}, []string{"result"})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			SubmissionDurationSeconds,
			CaptureSessionsTotal,
			IntakeTotal,
		)
	})
}
