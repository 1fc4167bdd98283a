package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// State is the capture-session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateLive
	StateCaptured
	StateUploading
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateLive:
		return "live"
	case StateCaptured:
		return "captured"
	case StateUploading:
		return "uploading"
	case StateError:
		return "error"
	}
	return "unknown"
}

var (
	// ErrInvalidState rejects an operation not valid in the current state.
	ErrInvalidState = errors.New("operation not valid in current capture state")
	// ErrFeedNotReady rejects a capture while the feed still reports zero
	// dimensions (device not yet warmed up).
	ErrFeedNotReady = errors.New("camera feed not loaded")
	// ErrSuperseded signals that a newer initialize or a teardown raced this
	// operation; its completion was discarded.
	ErrSuperseded = errors.New("capture session superseded")
)

// Controller owns the lifecycle of one camera interaction: it acquires a
// stream, produces a single still frame per capture cycle and guarantees the
// device is released exactly once on every exit path.
type Controller struct {
	provider Provider
	warmup   time.Duration

	mu          sync.Mutex
	constraints Constraints
	sessionID   string
	state       State
	stream      Stream
	frame       *Frame
	lastErr     error
	generation  uint64
}

// NewController creates an idle controller. The warmup duration is a floor on
// perceived loading time, overlapped with stream acquisition; zero disables
// it.
func NewController(provider Provider, constraints Constraints, warmup time.Duration) *Controller {
	return &Controller{
		provider:    provider,
		constraints: constraints,
		warmup:      warmup,
		sessionID:   uuid.New().String(),
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID identifies this capture session in logs and published events.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// LastError returns the classified failure that moved the session to the
// error state, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Facing returns the facing mode of the current constraints.
func (c *Controller) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.constraints.Facing
}

// Frame returns the captured still, valid in the captured and uploading
// states.
func (c *Controller) Frame() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return Frame{}, false
	}
	return *c.frame, true
}

// Initialize acquires a camera stream and moves the session to live. Valid
// from idle and from error (the user-initiated retry path). A cancellation
// while the request is pending abandons the grant: a late-arriving stream is
// closed, never leaked.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateError {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateRequesting
	c.lastErr = nil
	c.frame = nil
	c.generation++
	generation := c.generation
	constraints := c.constraints
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"session": c.sessionID,
		"facing":  string(constraints.Facing),
	}).Info("requesting camera stream")

	type grant struct {
		stream Stream
		err    error
	}
	granted := make(chan grant, 1)
	go func() {
		stream, err := c.provider.Open(ctx, constraints)
		granted <- grant{stream: stream, err: err}
	}()

	// The warmup floor runs concurrently with acquisition so a fast grant
	// still surfaces after a minimum perceived-loading duration.
	var floor <-chan time.Time
	if c.warmup > 0 {
		timer := time.NewTimer(c.warmup)
		defer timer.Stop()
		floor = timer.C
	}

	var result grant
	select {
	case result = <-granted:
		if floor != nil {
			select {
			case <-floor:
			case <-ctx.Done():
				// Cancelled while waiting out the warmup floor; the granted
				// stream is abandoned the same as a cancelled request.
				if result.stream != nil {
					result.stream.Close()
				}
				c.fail(generation, ctx.Err())
				return ctx.Err()
			}
		}
	case <-ctx.Done():
		go func() {
			if late := <-granted; late.stream != nil {
				late.stream.Close()
			}
		}()
		c.fail(generation, ctx.Err())
		return ctx.Err()
	}

	c.mu.Lock()
	if c.generation != generation || c.state != StateRequesting {
		c.mu.Unlock()
		if result.stream != nil {
			result.stream.Close()
		}
		return ErrSuperseded
	}
	if result.err != nil {
		c.state = StateError
		c.lastErr = result.err
		c.mu.Unlock()
		log.WithField("session", c.sessionID).WithError(result.err).Error("camera acquisition failed")
		return result.err
	}
	c.stream = result.stream
	c.state = StateLive
	c.mu.Unlock()

	log.WithField("session", c.sessionID).Info("camera stream live")
	return nil
}

// Capture pulls one still frame from the live feed, pauses (but does not
// stop) the stream and moves the session to captured.
func (c *Controller) Capture(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	if c.state != StateLive || c.stream == nil {
		c.mu.Unlock()
		return Frame{}, ErrInvalidState
	}
	stream := c.stream
	generation := c.generation
	c.mu.Unlock()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return Frame{}, err
	}
	if frame.Width == 0 || frame.Height == 0 {
		return Frame{}, ErrFeedNotReady
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation || c.state != StateLive {
		return Frame{}, ErrSuperseded
	}
	stream.Pause()
	c.frame = &frame
	c.state = StateCaptured

	log.WithFields(log.Fields{
		"session": c.sessionID,
		"width":   frame.Width,
		"height":  frame.Height,
	}).Info("frame captured")
	return frame, nil
}

// SwitchFacing tears down the current stream and re-initializes with the
// opposite facing mode. The old handle is fully released before the new
// request so two device handles are never held concurrently.
func (c *Controller) SwitchFacing(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLive {
		c.mu.Unlock()
		return ErrInvalidState
	}
	stream := c.stream
	c.stream = nil
	c.frame = nil
	c.state = StateIdle
	c.constraints.Facing = c.constraints.Facing.Opposite()
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	return c.Initialize(ctx)
}

// BeginUpload hands the captured frame to the submission pipeline.
func (c *Controller) BeginUpload() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCaptured || c.frame == nil {
		return Frame{}, ErrInvalidState
	}
	c.state = StateUploading
	return *c.frame, nil
}

// UploadAborted returns an uploading session to captured. For submissions
// that were never accepted (another upload holds the pipeline); the frame and
// the paused stream are kept so the user can retry.
func (c *Controller) UploadAborted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUploading {
		c.state = StateCaptured
	}
}

// UploadFailed records a submission failure. The stream is released and the
// session moves to error, from where Initialize retries.
func (c *Controller) UploadFailed(err error) {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.frame = nil
	c.state = StateError
	c.lastErr = err
	c.generation++
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
}

// Release stops the stream and returns the session to idle. It is idempotent
// and is the single exit path for successful handoff, cancel and teardown.
func (c *Controller) Release() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.frame = nil
	c.lastErr = nil
	c.state = StateIdle
	c.generation++
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
		log.WithField("session", c.sessionID).Info("camera stream released")
	}
}

func (c *Controller) fail(generation uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation || c.state != StateRequesting {
		return
	}
	c.state = StateError
	c.lastErr = err
}
