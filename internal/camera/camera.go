package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// State is the lifecycle state of a capture session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateNoPermission
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateNoPermission:
		return "no_permission"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Device opens a live video stream. Implementations report a refused
// permission with an error wrapping core.ErrPermissionDenied.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open live feed. Snapshot may be called from several
// goroutines at once (sampler and recorder share the stream).
type Stream interface {
	Snapshot(ctx context.Context) (image.Image, error)
	Close() error
}

// Session owns the single camera stream of the process.
type Session struct {
	device Device
	logger *slog.Logger

	mu     sync.Mutex
	stream Stream
	state  State
	err    error
}

// NewSession creates an idle session over device.
func NewSession(device Device, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{device: device, logger: logger}
}

// Start opens the device. It is a no-op while a stream is active.
// A refused permission moves the session to StateNoPermission; calling Start
// again retries.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}
	if s.device == nil {
		s.state = StateNoPermission
		s.err = fmt.Errorf("%w: no camera device", core.ErrPermissionDenied)
		return s.err
	}

	stream, err := s.device.Open(ctx)
	if err != nil {
		if errors.Is(err, core.ErrPermissionDenied) {
			s.state = StateNoPermission
		} else {
			s.state = StateIdle
		}
		s.err = fmt.Errorf("camera start: %w", err)
		s.logger.Warn("Camera start failed", "error", err)
		return s.err
	}

	s.stream = stream
	s.state = StateActive
	s.err = nil
	s.logger.Info("Camera started")
	return nil
}

// Stop releases the stream. Safe to call in any state.
func (s *Session) Stop() error {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	if s.state == StateActive {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	s.logger.Info("Camera stopped")
	if err := stream.Close(); err != nil {
		return fmt.Errorf("camera stop: %w", err)
	}
	return nil
}

// Active reports whether a stream is open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed Start.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stream returns the open stream, if any.
func (s *Session) Stream() (Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream, s.stream != nil
}

// Snapshot grabs the current frame of the open stream.
func (s *Session) Snapshot(ctx context.Context) (image.Image, error) {
	stream, ok := s.Stream()
	if !ok {
		return nil, core.ErrCameraNotReady
	}
	img, err := stream.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return img, nil
}
