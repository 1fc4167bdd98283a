package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"sync"
)

// FileProvider serves frames from a fixed list of image files. It stands in
// for real camera hardware in headless deployments and keeps the controller
// exercisable end to end without a device.
type FileProvider struct {
	Sources []string
}

// NewFileProvider creates a provider over the given image files.
func NewFileProvider(sources []string) *FileProvider {
	return &FileProvider{Sources: sources}
}

// Open validates the configured sources and returns a stream cycling through
// them. No sources behaves like a missing device; unreadable or undecodable
// sources map onto the classified failure set.
func (p *FileProvider) Open(ctx context.Context, constraints Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.Sources) == 0 {
		return nil, ErrDeviceNotFound
	}

	frames := make([]Frame, 0, len(p.Sources))
	for _, source := range p.Sources {
		data, err := os.ReadFile(source)
		if err != nil {
			if os.IsPermission(err) {
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, source)
			}
			if _, ok := err.(*fs.PathError); ok && os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, source)
			}
			return nil, fmt.Errorf("reading frame source %s: %w", source, err)
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a decodable image", ErrDeviceUnsupported, source)
		}
		frames = append(frames, Frame{Width: cfg.Width, Height: cfg.Height, Data: data})
	}

	return &fileStream{frames: frames}, nil
}

type fileStream struct {
	mu     sync.Mutex
	frames []Frame
	next   int
	paused bool
	closed bool
}

func (s *fileStream) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, fmt.Errorf("stream closed")
	}
	if s.paused {
		return Frame{}, fmt.Errorf("stream paused")
	}

	frame := s.frames[s.next%len(s.frames)]
	s.next++
	return frame, nil
}

func (s *fileStream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
