// Package capture implements the single-shot photo pipeline:
// snapshot, encode, detect, record and place markers.
package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/camera"
	"github.com/CelestinFernandes/geo-pot/internal/detection"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/metrics"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/sink"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// FlyToZoom is the map zoom used after a successful capture.
const FlyToZoom = 16

// Locator yields the latest location sample.
type Locator interface {
	Current() (core.LatLng, bool)
}

// Camera is the live preview a frame is taken from.
type Camera interface {
	Active() bool
	Snapshot(ctx context.Context) (image.Image, error)
}

// Deps are the collaborators of a Flow.
type Deps struct {
	Location   Locator
	Camera     Camera
	Encoder    camera.Encoder
	Detector   detection.Detector
	Reconciler *reconcile.Reconciler
	Sink       sink.Backend
	IDs        *ids.Generator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Flow runs one capture at a time.
type Flow struct {
	deps       Deps
	offsetStep float64
	now        func() time.Time
	inProgress atomic.Bool
}

// New creates a Flow. A non-positive offsetStep uses DefaultOffsetStep.
func New(deps Deps, offsetStep float64) *Flow {
	if offsetStep <= 0 {
		offsetStep = DefaultOffsetStep
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IDs == nil {
		deps.IDs = ids.New()
	}
	if deps.Encoder == nil {
		deps.Encoder = camera.JPEGEncoder{}
	}
	return &Flow{deps: deps, offsetStep: offsetStep, now: time.Now}
}

// InProgress reports whether a capture is running.
func (f *Flow) InProgress() bool {
	return f.inProgress.Load()
}

// CapturePhoto takes one photo at the current location and sends it for
// detection. Nothing is recorded unless every step succeeds. Missing
// preconditions fail before any network call.
func (f *Flow) CapturePhoto(ctx context.Context) (core.PhotoRecord, error) {
	if !f.inProgress.CompareAndSwap(false, true) {
		return core.PhotoRecord{}, core.ErrCaptureInProgress
	}
	defer f.inProgress.Store(false)

	loc, ok := f.deps.Location.Current()
	if !ok {
		return core.PhotoRecord{}, core.ErrNoLocation
	}
	if !f.deps.Camera.Active() {
		return core.PhotoRecord{}, core.ErrCameraNotReady
	}

	at := f.now()
	img, err := f.deps.Camera.Snapshot(ctx)
	if err != nil {
		return core.PhotoRecord{}, fmt.Errorf("capture: %w", err)
	}
	frame, err := f.deps.Encoder.Encode(img)
	if err != nil {
		return core.PhotoRecord{}, fmt.Errorf("capture: %w", err)
	}

	res, err := f.deps.Detector.Detect(ctx, frame)
	if err != nil {
		f.deps.Logger.Warn("Detection failed", "error", err)
		return core.PhotoRecord{}, fmt.Errorf("capture: %w", err)
	}

	record, markers := Assemble(f.deps.IDs.Photo(), loc, frame, res, core.SourceCamera, at, f.offsetStep)
	if f.deps.Reconciler.Submit(record, markers) {
		f.deps.Metrics.PhotoAdded(ctx, core.SourceCamera)
	}

	if f.deps.Sink != nil {
		if err := f.deps.Sink.FlyTo(loc, FlyToZoom); err != nil {
			f.deps.Logger.Warn("Sink update failed", "op", "fly_to", "error", err)
		}
	}

	f.deps.Logger.Info("Photo captured",
		"id", record.ID,
		"detections", len(res.Detections),
		"markers", len(markers),
	)
	return record, nil
}
