package live

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CelestinFernandes/geo-pot/internal/camera"
	"github.com/CelestinFernandes/geo-pot/internal/detection"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/sink/memory"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

var mumbai = core.LatLng{Lat: 19.0760, Lng: 72.8777}

type fixedLocator struct{}

func (fixedLocator) Current() (core.LatLng, bool) { return mumbai, true }

type result struct {
	res core.DetectionResult
	err error
}

type pendingCall struct {
	release chan result
}

// scriptedDetector parks every call until the test releases it.
type scriptedDetector struct {
	arrived chan *pendingCall
}

func newScriptedDetector() *scriptedDetector {
	return &scriptedDetector{arrived: make(chan *pendingCall, 16)}
}

func (d *scriptedDetector) Detect(ctx context.Context, frame []byte) (core.DetectionResult, error) {
	c := &pendingCall{release: make(chan result, 1)}
	d.arrived <- c
	select {
	case r := <-c.release:
		return r.res, r.err
	case <-ctx.Done():
		return core.DetectionResult{}, ctx.Err()
	}
}

func (d *scriptedDetector) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-d.arrived:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("detection call not issued")
		return nil
	}
}

type instantDetector struct{ calls atomic.Int32 }

func (d *instantDetector) Detect(ctx context.Context, frame []byte) (core.DetectionResult, error) {
	d.calls.Add(1)
	return core.DetectionResult{Detections: []core.Detection{{Type: core.Pothole}}}, nil
}

func annotated(tag string) result {
	return result{res: core.DetectionResult{
		Detections:     []core.Detection{{Type: core.Transverse, Label: tag}},
		AnnotatedImage: []byte(tag),
	}}
}

type harness struct {
	sampler *Sampler
	cam     *camera.Session
	rec     *reconcile.Reconciler
	sink    *memory.Backend
}

func newHarness(t *testing.T, det detection.Detector, interval time.Duration) harness {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.White)

	s := memory.New()
	gen := ids.New()
	rec := reconcile.New(s, gen, nil)
	cam := camera.NewSession(camera.StillDevice{Image: img}, nil)

	sampler := New(Deps{
		Location:   fixedLocator{},
		Camera:     cam,
		Detector:   det,
		Reconciler: rec,
		Sink:       s,
		IDs:        gen,
	}, Config{Interval: interval, RecordFPS: 50})
	t.Cleanup(func() { _ = sampler.Close() })

	return harness{sampler: sampler, cam: cam, rec: rec, sink: s}
}

func (h harness) epoch() uint64 {
	h.sampler.mu.Lock()
	defer h.sampler.mu.Unlock()
	return h.sampler.epoch
}

func TestOutOfOrderCompletionKeepsNewest(t *testing.T) {
	det := newScriptedDetector()
	h := newHarness(t, det, time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	epoch := h.epoch()

	h.sampler.tick(epoch)
	first := det.next(t)
	h.sampler.tick(epoch)
	second := det.next(t)

	second.release <- annotated("t2")
	require.Eventually(t, func() bool { return h.sampler.Overlay().Seq == 2 }, time.Second, time.Millisecond)

	first.release <- annotated("t1")
	require.NoError(t, h.sampler.Wait(context.Background()))

	overlay := h.sampler.Overlay()
	assert.Equal(t, uint64(2), overlay.Seq)
	assert.Equal(t, []byte("t2"), overlay.AnnotatedImage)
	assert.Equal(t, []byte("t2"), h.sink.Overlay().AnnotatedImage)

	photos := h.rec.Photos()
	require.Len(t, photos, 1, "the superseded completion must not add a photo")
	assert.Equal(t, core.SourceVideo, photos[0].Source)
	assert.Contains(t, photos[0].ID, "video-")
	assert.False(t, photos[0].ShowMarker)
	assert.Len(t, h.rec.Markers(), 1)
}

func TestInOrderCompletionsBothApply(t *testing.T) {
	det := newScriptedDetector()
	h := newHarness(t, det, time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	epoch := h.epoch()

	h.sampler.tick(epoch)
	det.next(t).release <- annotated("t1")
	require.NoError(t, h.sampler.Wait(context.Background()))

	h.sampler.tick(epoch)
	det.next(t).release <- annotated("t2")
	require.NoError(t, h.sampler.Wait(context.Background()))

	assert.Equal(t, uint64(2), h.sampler.Overlay().Seq)
	assert.Len(t, h.rec.Photos(), 2)
}

func TestCompletionAfterStopIsDiscarded(t *testing.T) {
	det := newScriptedDetector()
	h := newHarness(t, det, time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))

	h.sampler.tick(h.epoch())
	inflight := det.next(t)

	_, err := h.sampler.Stop()
	require.NoError(t, err)
	callsAtStop := len(h.sink.Calls())

	inflight.release <- annotated("late")
	require.NoError(t, h.sampler.Wait(context.Background()))

	assert.Empty(t, h.rec.Photos())
	assert.Empty(t, h.rec.Markers())
	assert.Equal(t, core.Overlay{}, h.sampler.Overlay())
	assert.Equal(t, core.Overlay{}, h.sink.Overlay())
	assert.Len(t, h.sink.Calls(), callsAtStop, "no sink traffic after stop")
}

func TestCompletionFromEarlierActivationIsDiscarded(t *testing.T) {
	det := newScriptedDetector()
	h := newHarness(t, det, time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))

	h.sampler.tick(h.epoch())
	old := det.next(t)

	_, err := h.sampler.Stop()
	require.NoError(t, err)
	require.NoError(t, h.sampler.Start(context.Background()))

	old.release <- annotated("old")
	require.NoError(t, h.sampler.Wait(context.Background()))

	assert.Empty(t, h.rec.Photos())
	assert.Zero(t, h.sampler.Overlay().Seq)
}

func TestFailedTickIsSkipped(t *testing.T) {
	det := newScriptedDetector()
	h := newHarness(t, det, time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	epoch := h.epoch()

	h.sampler.tick(epoch)
	det.next(t).release <- annotated("ok")
	require.NoError(t, h.sampler.Wait(context.Background()))

	h.sampler.tick(epoch)
	det.next(t).release <- result{err: core.ErrNetworkFailure}
	require.NoError(t, h.sampler.Wait(context.Background()))

	assert.Equal(t, []byte("ok"), h.sampler.Overlay().AnnotatedImage)
	assert.Len(t, h.rec.Photos(), 1)
	assert.True(t, h.sampler.Active())
}

func TestTickerDrivesSampling(t *testing.T) {
	det := &instantDetector{}
	h := newHarness(t, det, 10*time.Millisecond)
	require.NoError(t, h.sampler.Start(context.Background()))

	require.Eventually(t, func() bool { return len(h.rec.Photos()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	_, err := h.sampler.Stop()
	require.NoError(t, err)
	require.NoError(t, h.sampler.Wait(context.Background()))

	calls := det.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, det.calls.Load(), "ticker must stop with Stop")
}

func TestStartOwnsCameraOnlyWhenItOpenedIt(t *testing.T) {
	h := newHarness(t, newScriptedDetector(), time.Hour)

	require.NoError(t, h.sampler.Start(context.Background()))
	assert.True(t, h.cam.Active())
	_, err := h.sampler.Stop()
	require.NoError(t, err)
	assert.False(t, h.cam.Active(), "camera opened by the sampler is released")

	require.NoError(t, h.cam.Start(context.Background()))
	require.NoError(t, h.sampler.Start(context.Background()))
	_, err = h.sampler.Stop()
	require.NoError(t, err)
	assert.True(t, h.cam.Active(), "borrowed camera stays with its owner")
}

// gatedCamera holds its first Stop until release is closed.
type gatedCamera struct {
	*camera.Session
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCamera) Stop() error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Session.Stop()
}

func TestStartDuringStopWaitsForCameraRelease(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	cam := &gatedCamera{
		Session: camera.NewSession(camera.StillDevice{Image: img}, nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := memory.New()
	gen := ids.New()
	sampler := New(Deps{
		Location:   fixedLocator{},
		Camera:     cam,
		Detector:   &instantDetector{},
		Reconciler: reconcile.New(s, gen, nil),
		Sink:       s,
		IDs:        gen,
	}, Config{Interval: time.Hour, RecordFPS: 50})
	t.Cleanup(func() { _ = sampler.Close() })

	require.NoError(t, sampler.Start(context.Background()))

	stopped := make(chan error, 1)
	go func() {
		_, err := sampler.Stop()
		stopped <- err
	}()
	<-cam.entered

	started := make(chan error, 1)
	go func() { started <- sampler.Start(context.Background()) }()

	select {
	case <-started:
		t.Fatal("Start returned while Stop still held the camera")
	case <-time.After(50 * time.Millisecond):
	}

	close(cam.release)
	require.NoError(t, <-stopped)
	require.NoError(t, <-started)

	assert.True(t, sampler.Active())
	assert.True(t, cam.Active(), "restarted sampler reopened the camera")

	sampler.mu.Lock()
	owns := sampler.ownsCamera
	sampler.mu.Unlock()
	assert.True(t, owns)

	_, err := sampler.Stop()
	require.NoError(t, err)
	assert.False(t, cam.Active())
}

func TestStartCanceledWhileStopping(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	cam := &gatedCamera{
		Session: camera.NewSession(camera.StillDevice{Image: img}, nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := memory.New()
	gen := ids.New()
	sampler := New(Deps{
		Location:   fixedLocator{},
		Camera:     cam,
		Detector:   &instantDetector{},
		Reconciler: reconcile.New(s, gen, nil),
		Sink:       s,
		IDs:        gen,
	}, Config{Interval: time.Hour, RecordFPS: 50})

	require.NoError(t, sampler.Start(context.Background()))
	stopped := make(chan struct{})
	go func() {
		_, _ = sampler.Stop()
		close(stopped)
	}()
	<-cam.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sampler.Start(ctx), context.Canceled)

	close(cam.release)
	<-stopped
	assert.False(t, sampler.Active())
	require.NoError(t, sampler.Close())
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, newScriptedDetector(), time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	epoch := h.epoch()
	require.NoError(t, h.sampler.Start(context.Background()))
	assert.Equal(t, epoch, h.epoch())
}

func TestStopIdleIsNoop(t *testing.T) {
	h := newHarness(t, newScriptedDetector(), time.Hour)
	video, err := h.sampler.Stop()
	require.NoError(t, err)
	assert.Empty(t, video.ID)
	_, ok := h.sampler.Pending()
	assert.False(t, ok)
}

func recordedFrames(h harness) int {
	h.sampler.mu.Lock()
	defer h.sampler.mu.Unlock()
	if h.sampler.recorder == nil {
		return 0
	}
	return h.sampler.recorder.Frames()
}

func TestStopKeepsPendingVideoUntilSaved(t *testing.T) {
	h := newHarness(t, newScriptedDetector(), time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	require.Eventually(t, func() bool { return recordedFrames(h) >= 2 }, 2*time.Second, 5*time.Millisecond)

	video, err := h.sampler.Stop()
	require.NoError(t, err)
	assert.Contains(t, video.ID, "rec-")
	assert.GreaterOrEqual(t, video.Frames, 2)
	assert.NotEmpty(t, video.Data)

	pending, ok := h.sampler.Pending()
	require.True(t, ok)
	assert.Equal(t, video.ID, pending.ID)

	var buf bytes.Buffer
	saved, err := h.sampler.SaveVideo(&buf)
	require.NoError(t, err)
	assert.Equal(t, video.ID, saved.ID)
	assert.Equal(t, video.Data, buf.Bytes())

	_, err = h.sampler.SaveVideo(&buf)
	assert.ErrorIs(t, err, ErrNoPendingVideo)
}

func TestDiscardVideo(t *testing.T) {
	h := newHarness(t, newScriptedDetector(), time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	_, err := h.sampler.Stop()
	require.NoError(t, err)

	assert.True(t, h.sampler.DiscardVideo())
	assert.False(t, h.sampler.DiscardVideo())
	_, ok := h.sampler.Pending()
	assert.False(t, ok)
}

func TestSaveVideoFile(t *testing.T) {
	h := newHarness(t, newScriptedDetector(), time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))
	require.Eventually(t, func() bool { return recordedFrames(h) >= 1 }, 2*time.Second, 5*time.Millisecond)
	video, err := h.sampler.Stop()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "videos")
	path, err := h.sampler.SaveVideoFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, video.ID+".mjpeg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, video.Data, data)

	_, err = h.sampler.SaveVideoFile(dir)
	assert.ErrorIs(t, err, ErrNoPendingVideo)
}

func TestCloseCancelsInflightCalls(t *testing.T) {
	det := newScriptedDetector()
	h := newHarness(t, det, time.Hour)
	require.NoError(t, h.sampler.Start(context.Background()))

	h.sampler.tick(h.epoch())
	det.next(t)

	require.NoError(t, h.sampler.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, h.sampler.Wait(ctx))
	assert.Error(t, h.sampler.Start(context.Background()))
}
