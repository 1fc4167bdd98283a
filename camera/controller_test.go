package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStream struct {
	mu         sync.Mutex
	frame      Frame
	frameErr   error
	paused     bool
	closeCount int
	events     *eventLog
}

func (s *fakeStream) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return Frame{}, s.frameErr
	}
	return s.frame, nil
}

func (s *fakeStream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closeCount++
	s.mu.Unlock()
	if s.events != nil {
		s.events.add("close")
	}
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	gate    chan struct{}
	events  *eventLog
	streams []*fakeStream
}

func (p *fakeProvider) Open(ctx context.Context, constraints Constraints) (Stream, error) {
	if p.gate != nil {
		<-p.gate
	}
	if p.events != nil {
		p.events.add("open")
	}
	if p.err != nil {
		return nil, p.err
	}
	stream := &fakeStream{
		frame:  Frame{Width: 1280, Height: 720, Data: []byte("jpeg-bytes")},
		events: p.events,
	}
	p.mu.Lock()
	p.streams = append(p.streams, stream)
	p.mu.Unlock()
	return stream, nil
}

func (p *fakeProvider) lastStream() *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return nil
	}
	return p.streams[len(p.streams)-1]
}

func defaultConstraints() Constraints {
	return Constraints{
		Width:  Dimension{Ideal: 1280},
		Height: Dimension{Ideal: 720},
		Facing: FacingFront,
	}
}

func TestInitializeAndCapture(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if controller.State() != StateLive {
		t.Fatalf("state = %v, want live", controller.State())
	}

	frame, err := controller.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if frame.Width != 1280 || frame.Height != 720 {
		t.Errorf("captured frame %dx%d, want 1280x720", frame.Width, frame.Height)
	}
	if controller.State() != StateCaptured {
		t.Errorf("state = %v, want captured", controller.State())
	}

	stream := provider.lastStream()
	if !stream.paused {
		t.Error("capture must pause the stream")
	}
	if stream.closeCount != 0 {
		t.Error("capture must not stop the stream")
	}
}

func TestCaptureRequiresLiveState(t *testing.T) {
	controller := NewController(&fakeProvider{}, defaultConstraints(), 0)

	if _, err := controller.Capture(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Capture() in idle = %v, want ErrInvalidState", err)
	}
}

func TestCaptureRejectsZeroDimensions(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	stream := provider.lastStream()
	stream.mu.Lock()
	stream.frame = Frame{Width: 0, Height: 0}
	stream.mu.Unlock()

	if _, err := controller.Capture(context.Background()); !errors.Is(err, ErrFeedNotReady) {
		t.Errorf("Capture() with zero dimensions = %v, want ErrFeedNotReady", err)
	}
	if controller.State() != StateLive {
		t.Errorf("a not-ready feed must keep the session live, state = %v", controller.State())
	}
}

func TestReleaseExactlyOnce(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	controller.Release()
	controller.Release()

	stream := provider.lastStream()
	if stream.closeCount != 1 {
		t.Errorf("stream closed %d times, want exactly once", stream.closeCount)
	}
	if controller.State() != StateIdle {
		t.Errorf("state after release = %v, want idle", controller.State())
	}
}

func TestInitializeFailureClassified(t *testing.T) {
	provider := &fakeProvider{err: ErrPermissionDenied}
	controller := NewController(provider, defaultConstraints(), 0)

	err := controller.Initialize(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Initialize() = %v, want ErrPermissionDenied", err)
	}
	if controller.State() != StateError {
		t.Errorf("state = %v, want error", controller.State())
	}
	if Retryable(err) {
		t.Error("permission denial must not be retried automatically")
	}
}

func TestRetryFromErrorState(t *testing.T) {
	provider := &fakeProvider{err: ErrDeviceNotFound}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err == nil {
		t.Fatal("expected initialize failure")
	}

	provider.err = nil
	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("retry Initialize() error: %v", err)
	}
	if controller.State() != StateLive {
		t.Errorf("state after retry = %v, want live", controller.State())
	}
}

func TestCancelDuringRequestClosesLateGrant(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{gate: gate}
	controller := NewController(provider, defaultConstraints(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- controller.Initialize(ctx)
	}()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Initialize() = %v, want context.Canceled", err)
	}

	// Let the grant arrive after the cancellation.
	close(gate)

	deadline := time.After(2 * time.Second)
	for {
		stream := provider.lastStream()
		if stream != nil {
			stream.mu.Lock()
			closed := stream.closeCount == 1
			stream.mu.Unlock()
			if closed {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("late-arriving stream was never closed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if controller.State() != StateError {
		t.Errorf("state after cancelled request = %v, want error", controller.State())
	}
}

func TestSwitchFacingReleasesBeforeReopen(t *testing.T) {
	events := &eventLog{}
	provider := &fakeProvider{events: events}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if err := controller.SwitchFacing(context.Background()); err != nil {
		t.Fatalf("SwitchFacing() error: %v", err)
	}

	if controller.Facing() != FacingBack {
		t.Errorf("facing = %v, want back", controller.Facing())
	}

	sequence := events.snapshot()
	expected := []string{"open", "close", "open"}
	if len(sequence) != len(expected) {
		t.Fatalf("event sequence %v, want %v", sequence, expected)
	}
	for i := range expected {
		if sequence[i] != expected[i] {
			t.Fatalf("old stream must be released before the new request: %v", sequence)
		}
	}
}

func TestUploadFailedMovesToErrorAndReleases(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if _, err := controller.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if _, err := controller.BeginUpload(); err != nil {
		t.Fatalf("BeginUpload() error: %v", err)
	}
	if controller.State() != StateUploading {
		t.Fatalf("state = %v, want uploading", controller.State())
	}

	controller.UploadFailed(errors.New("server rejected"))

	if controller.State() != StateError {
		t.Errorf("state = %v, want error", controller.State())
	}
	if provider.lastStream().closeCount != 1 {
		t.Error("upload failure must release the stream")
	}

	// Retry path: error -> requesting -> live.
	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("retry after upload failure: %v", err)
	}
}

func TestUploadAbortedReturnsToCaptured(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 0)

	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if _, err := controller.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if _, err := controller.BeginUpload(); err != nil {
		t.Fatalf("BeginUpload() error: %v", err)
	}

	controller.UploadAborted()

	if controller.State() != StateCaptured {
		t.Fatalf("state after abort = %v, want captured", controller.State())
	}
	if provider.lastStream().closeCount != 0 {
		t.Error("aborting an unaccepted upload must not release the stream")
	}
	if _, ok := controller.Frame(); !ok {
		t.Error("the captured frame must survive an aborted upload")
	}

	// The session is retryable: uploading again works.
	if _, err := controller.BeginUpload(); err != nil {
		t.Errorf("BeginUpload() after abort = %v, want success", err)
	}
}

func TestCancelDuringWarmupAbandonsSession(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- controller.Initialize(ctx)
	}()

	// Let the instant grant arrive, then cancel inside the warmup window.
	deadline := time.Now().Add(2 * time.Second)
	for provider.lastStream() == nil {
		if time.Now().After(deadline) {
			t.Fatal("stream grant never arrived")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Initialize() = %v, want context.Canceled", err)
	}
	if controller.State() != StateError {
		t.Errorf("state = %v, want error", controller.State())
	}
	if provider.lastStream().closeCount != 1 {
		t.Error("the granted stream must be closed when cancelled during warmup")
	}
}

func TestWarmupFloor(t *testing.T) {
	provider := &fakeProvider{}
	controller := NewController(provider, defaultConstraints(), 60*time.Millisecond)

	start := time.Now()
	if err := controller.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("initialize resolved in %v, want at least the 60ms warmup floor", elapsed)
	}
}
