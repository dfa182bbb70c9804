package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/geocode"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/monitor"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/session"
	"github.com/CelestinFernandes/geo-pot/internal/sink"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// DefaultSearchPinTTL is how long a search result stays pinned on the map.
const DefaultSearchPinTTL = 5 * time.Second

// CameraControl starts and stops the capture session.
type CameraControl interface {
	Start(ctx context.Context) error
	Stop() error
	Active() bool
}

// LocationControl restarts location tracking.
type LocationControl interface {
	Start(ctx context.Context)
	Running() bool
}

// Capturer takes a single annotated photo.
type Capturer interface {
	CapturePhoto(ctx context.Context) (core.PhotoRecord, error)
}

// LiveControl drives live sampling and its pending recording.
type LiveControl interface {
	Start(ctx context.Context) error
	Stop() (core.VideoArtifact, error)
	Active() bool
	SaveVideoFile(dir string) (string, error)
	DiscardVideo() bool
}

// Gallery edits the photo and marker collections.
type Gallery interface {
	DeletePhoto(id string) bool
	DeleteMarker(id string) bool
	DeleteLast() (reconcile.Deleted, bool)
	ClearMarkers() int
	ClearPhotos() int
	PlaceMarker(pos core.LatLng, typ core.MarkerType) (core.MapMarker, error)
	PinTransient(m core.MapMarker, ttl time.Duration) bool
}

// StatusSource reports the current pipeline status.
type StatusSource interface {
	Status() monitor.Status
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Session      *session.Context
	Camera       CameraControl
	Location     LocationControl
	Capture      Capturer
	Live         LiveControl
	Gallery      Gallery
	Geocoder     geocode.Geocoder
	Status       StatusSource
	Sink         sink.Backend
	IDs          *ids.Generator
	VideoDir     string
	SearchPinTTL time.Duration
	Logger       *slog.Logger
}

// Manager turns user commands into pipeline operations.
type Manager struct {
	deps Dependencies
	// ctx bounds every command; cancelling it aborts in-progress work.
	ctx context.Context
	now func() time.Time
}

// NewManager creates a new worker manager
func NewManager(ctx context.Context, deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SearchPinTTL <= 0 {
		deps.SearchPinTTL = DefaultSearchPinTTL
	}
	if deps.IDs == nil {
		deps.IDs = ids.New()
	}
	return &Manager{
		deps: deps,
		ctx:  ctx,
		now:  time.Now,
	}
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		return "No results found"
	case errors.Is(err, geocode.ErrEmptyQuery):
		return "Please enter a place to search"
	default:
		return core.UserMessage(err)
	}
}

// ensureLocation restarts tracking if it stopped on a permanent error.
// Reports whether a restart happened.
func (m *Manager) ensureLocation() bool {
	if m.deps.Location == nil || m.deps.Location.Running() {
		return false
	}
	m.deps.Location.Start(m.ctx)
	return true
}

func (m *Manager) notify(level core.NoticeLevel, msg string) {
	if err := m.deps.Sink.Notify(core.Notice{Level: level, Message: msg}); err != nil {
		m.deps.Logger.Warn("Notice not delivered", "message", msg, "error", err)
	}
}

// fail shows err to the user and returns it for the dispatcher to log.
func (m *Manager) fail(err error) (any, error) {
	m.notify(core.NoticeError, UserMessage(err))
	return nil, err
}

// syncMode derives the session mode from what is running.
func (m *Manager) syncMode() {
	if m.deps.Session == nil {
		return
	}
	switch {
	case m.deps.Live.Active():
		m.deps.Session.SetMode(session.ModeLive)
	case m.deps.Camera.Active():
		m.deps.Session.SetMode(session.ModeCamera)
	default:
		m.deps.Session.SetMode(session.ModeIdle)
	}
}
