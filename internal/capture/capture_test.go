package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/sink/memory"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

var mumbai = core.LatLng{Lat: 19.0760, Lng: 72.8777}

type fixedLocator struct {
	loc core.LatLng
	ok  bool
}

func (l fixedLocator) Current() (core.LatLng, bool) { return l.loc, l.ok }

type fakeCamera struct {
	active bool
	err    error
}

func (c fakeCamera) Active() bool { return c.active }

func (c fakeCamera) Snapshot(ctx context.Context) (image.Image, error) {
	if c.err != nil {
		return nil, c.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img, nil
}

type fakeDetector struct {
	calls atomic.Int32
	res   core.DetectionResult
	err   error
	gate  chan struct{}
}

func (d *fakeDetector) Detect(ctx context.Context, frame []byte) (core.DetectionResult, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	return d.res, d.err
}

type harness struct {
	flow *Flow
	rec  *reconcile.Reconciler
	sink *memory.Backend
	det  *fakeDetector
}

func newHarness(loc fixedLocator, cam fakeCamera, det *fakeDetector) harness {
	s := memory.New()
	gen := ids.New()
	rec := reconcile.New(s, gen, nil)
	flow := New(Deps{
		Location:   loc,
		Camera:     cam,
		Detector:   det,
		Reconciler: rec,
		Sink:       s,
		IDs:        gen,
	}, 0)
	return harness{flow: flow, rec: rec, sink: s, det: det}
}

func TestCapturePhoto_NoLocation(t *testing.T) {
	h := newHarness(fixedLocator{}, fakeCamera{active: true}, &fakeDetector{})

	_, err := h.flow.CapturePhoto(context.Background())

	assert.ErrorIs(t, err, core.ErrNoLocation)
	assert.ErrorIs(t, err, core.ErrCaptureNotReady)
	assert.NotEmpty(t, core.UserMessage(err))
	assert.Empty(t, h.rec.Photos())
	assert.Zero(t, h.det.calls.Load(), "no network call without a location")
	assert.False(t, h.flow.InProgress())
}

func TestCapturePhoto_CameraInactive(t *testing.T) {
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{}, &fakeDetector{})

	_, err := h.flow.CapturePhoto(context.Background())

	assert.ErrorIs(t, err, core.ErrCameraNotReady)
	assert.Equal(t, "Camera not ready. Please try again.", core.UserMessage(err))
	assert.Empty(t, h.rec.Photos())
	assert.Zero(t, h.det.calls.Load())
}

func TestCapturePhoto_SinglePothole(t *testing.T) {
	det := &fakeDetector{res: core.DetectionResult{
		Detections:     []core.Detection{{Type: core.Pothole, Label: "pothole", Confidence: 0.91}},
		AnnotatedImage: []byte("annotated"),
	}}
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true}, det)

	rec, err := h.flow.CapturePhoto(context.Background())
	require.NoError(t, err)

	assert.False(t, rec.ShowMarker)
	assert.Equal(t, []byte("annotated"), rec.Image)
	assert.Equal(t, core.SourceCamera, rec.Source)

	markers := h.rec.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, core.MarkerPothole, markers[0].Type)
	assert.Equal(t, mumbai, markers[0].Position)
	assert.Equal(t, rec.ID, markers[0].PhotoID)
	assert.NotEqual(t, rec.ID, markers[0].ID)

	photos := h.rec.Photos()
	require.Len(t, photos, 1)
	assert.False(t, photos[0].ShowMarker)

	flights := h.sink.Flights()
	require.Len(t, flights, 1)
	assert.Equal(t, memory.FlyTo{Location: mumbai, Zoom: FlyToZoom}, flights[0])
}

func TestCapturePhoto_NoDetectionsShowsCameraMarker(t *testing.T) {
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true}, &fakeDetector{})

	rec, err := h.flow.CapturePhoto(context.Background())
	require.NoError(t, err)

	assert.True(t, rec.ShowMarker)
	assert.NotEmpty(t, rec.Image, "raw frame is kept without an annotated image")
	assert.Empty(t, h.rec.Markers())
}

func TestCapturePhoto_MarkersOffsetPerRecognisedDetection(t *testing.T) {
	det := &fakeDetector{res: core.DetectionResult{Detections: []core.Detection{
		{Type: core.Longitudinal},
		{Type: "Shadow"},
		{Type: core.Alligator},
		{Type: core.Transverse},
	}}}
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true}, det)

	rec, err := h.flow.CapturePhoto(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.ShowMarker)
	assert.Len(t, rec.Detections, 4, "unrecognised detections are kept on the record")

	markers := h.rec.Markers()
	require.Len(t, markers, 3)
	wantTypes := []core.MarkerType{core.MarkerLongitudinal, core.MarkerAlligator, core.MarkerTransverse}
	for i, m := range markers {
		assert.Equal(t, wantTypes[i], m.Type)
		assert.InDelta(t, mumbai.Lat+float64(i)*0.0001, m.Position.Lat, 1e-9)
		assert.InDelta(t, mumbai.Lng+float64(i)*0.0001, m.Position.Lng, 1e-9)
	}
}

func TestCapturePhoto_DetectionFailureRecordsNothing(t *testing.T) {
	det := &fakeDetector{err: core.ErrNetworkFailure}
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true}, det)

	_, err := h.flow.CapturePhoto(context.Background())

	assert.ErrorIs(t, err, core.ErrNetworkFailure)
	assert.Equal(t, "Failed to send photo for detection.", core.UserMessage(err))
	assert.Empty(t, h.rec.Photos())
	assert.Empty(t, h.rec.Markers())
	assert.Empty(t, h.sink.Flights())
	assert.False(t, h.flow.InProgress())
}

func TestCapturePhoto_SnapshotFailure(t *testing.T) {
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true, err: errors.New("sensor glitch")}, &fakeDetector{})

	_, err := h.flow.CapturePhoto(context.Background())

	assert.ErrorContains(t, err, "sensor glitch")
	assert.Zero(t, h.det.calls.Load())
	assert.Empty(t, h.rec.Photos())
}

func TestCapturePhoto_RejectsConcurrentCapture(t *testing.T) {
	det := &fakeDetector{gate: make(chan struct{})}
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true}, det)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.flow.CapturePhoto(context.Background())
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return det.calls.Load() == 1 }, time.Second, time.Millisecond)
	_, err := h.flow.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, core.ErrCaptureInProgress)

	close(det.gate)
	wg.Wait()
	assert.False(t, h.flow.InProgress())
	assert.Len(t, h.rec.Photos(), 1)
}

func TestCapturePhoto_IDsNeverRepeat(t *testing.T) {
	det := &fakeDetector{res: core.DetectionResult{Detections: []core.Detection{{Type: core.Pothole}}}}
	h := newHarness(fixedLocator{loc: mumbai, ok: true}, fakeCamera{active: true}, det)

	for i := 0; i < 20; i++ {
		_, err := h.flow.CapturePhoto(context.Background())
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, p := range h.rec.Photos() {
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
	}
	assert.Len(t, seen, 20)
	assert.Len(t, h.rec.Markers(), 20)
}

func TestAssemble(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	res := core.DetectionResult{Detections: []core.Detection{{Type: core.Pothole}, {Type: core.Pothole}}}

	rec, markers := Assemble("video-1", mumbai, []byte("raw"), res, core.SourceVideo, at, 0.001)

	assert.Equal(t, "video-1", rec.ID)
	assert.Equal(t, core.SourceVideo, rec.Source)
	assert.Equal(t, at, rec.Timestamp)
	require.Len(t, markers, 2)
	assert.Equal(t, "video-1-m1", markers[1].ID)
	assert.True(t, math.Abs(markers[1].Position.Lat-(mumbai.Lat+0.001)) < 1e-9)
}
