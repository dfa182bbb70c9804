package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/camera"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/session"
	"github.com/CelestinFernandes/geo-pot/pkg/core"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CameraState reports the capture session lifecycle.
type CameraState interface {
	State() camera.State
	Err() error
}

// LocationState reports the latest location sample.
type LocationState interface {
	Current() (core.LatLng, bool)
	UpdatedAt() time.Time
	Err() error
}

// LiveState reports live sampling progress.
type LiveState interface {
	Active() bool
	Overlay() core.Overlay
	Pending() (core.VideoArtifact, bool)
}

// GalleryState reports what the map currently shows.
type GalleryState interface {
	Counts() reconcile.Counts
}

// CaptureState reports whether a single-shot capture is running.
type CaptureState interface {
	InProgress() bool
}

// StatusWriter persists status snapshots.
type StatusWriter interface {
	WriteStatus(fields map[string]any, at time.Time) error
}

// Dependencies holds all dependencies for the monitor service.
// Any state source may be nil and is then reported as its zero value.
type Dependencies struct {
	Session    *session.Context
	Camera     CameraState
	Location   LocationState
	Live       LiveState
	Gallery    GalleryState
	Capture    CaptureState
	Writer     StatusWriter
	StatusFile string
	Logger     *slog.Logger
	// QueuedCommands reports commands waiting to run, if known.
	QueuedCommands func() int
}

// Status is a point-in-time view of the whole pipeline.
type Status struct {
	Time              time.Time     `json:"time"`
	SessionID         string        `json:"sessionId"`
	Mode              session.Mode  `json:"mode"`
	Uptime            time.Duration `json:"uptime"`
	CameraState       string        `json:"cameraState"`
	CameraError       string        `json:"cameraError,omitempty"`
	HasLocation       bool          `json:"hasLocation"`
	Location          core.LatLng   `json:"location"`
	LocationAge       time.Duration `json:"locationAge"`
	LocationError     string        `json:"locationError,omitempty"`
	LiveActive        bool          `json:"liveActive"`
	OverlaySeq        uint64        `json:"overlaySeq"`
	PendingVideo      string        `json:"pendingVideo,omitempty"`
	PendingFrames     int           `json:"pendingFrames"`
	Photos            int           `json:"photos"`
	Markers           int           `json:"markers"`
	CaptureInProgress bool          `json:"captureInProgress"`
	QueuedCommands    int           `json:"queuedCommands"`
}

// Fields flattens the status into telemetry fields.
func (s Status) Fields() map[string]any {
	return map[string]any{
		"mode":                string(s.Mode),
		"uptime_s":            s.Uptime.Seconds(),
		"camera_state":        s.CameraState,
		"has_location":        s.HasLocation,
		"location_age_s":      s.LocationAge.Seconds(),
		"live_active":         s.LiveActive,
		"overlay_seq":         int64(s.OverlaySeq),
		"pending_frames":      s.PendingFrames,
		"photos":              s.Photos,
		"markers":             s.Markers,
		"capture_in_progress": s.CaptureInProgress,
		"queued_commands":     s.QueuedCommands,
	}
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	now       func() time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status collects the current program status.
func (s *Service) Status() Status {
	now := s.now()
	st := Status{Time: now, CameraState: camera.StateIdle.String()}

	if sc := s.deps.Session; sc != nil {
		st.SessionID = sc.ID()
		st.Mode = sc.Mode()
		st.Uptime = now.Sub(sc.StartedAt())
	}
	if c := s.deps.Camera; c != nil {
		st.CameraState = c.State().String()
		st.CameraError = errString(c.Err())
	}
	if l := s.deps.Location; l != nil {
		st.Location, st.HasLocation = l.Current()
		if st.HasLocation {
			st.LocationAge = now.Sub(l.UpdatedAt())
		}
		st.LocationError = errString(l.Err())
	}
	if lv := s.deps.Live; lv != nil {
		st.LiveActive = lv.Active()
		st.OverlaySeq = lv.Overlay().Seq
		if v, ok := lv.Pending(); ok {
			st.PendingVideo = v.ID
			st.PendingFrames = v.Frames
		}
	}
	if g := s.deps.Gallery; g != nil {
		counts := g.Counts()
		st.Photos, st.Markers = counts.Photos, counts.Markers
	}
	if c := s.deps.Capture; c != nil {
		st.CaptureInProgress = c.InProgress()
	}
	if q := s.deps.QueuedCommands; q != nil {
		st.QueuedCommands = q()
	}
	return st
}

// Report collects the status once and writes it to the status file and
// the status writer. Failures are logged.
func (s *Service) Report() Status {
	st := s.Status()
	logger := s.deps.Logger

	logger.Debug("Status",
		"mode", st.Mode,
		"camera", st.CameraState,
		"live", st.LiveActive,
		"photos", st.Photos,
		"markers", st.Markers)

	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Writer != nil {
		if err := s.deps.Writer.WriteStatus(st.Fields(), st.Time); err != nil {
			logger.Error("Error writing status point", "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine, reporting every interval
// until Stop or ctx is done.
func (s *Service) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	<-done
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
