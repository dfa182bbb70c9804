// Package live runs periodic detection on the camera feed while recording it.
//
// Every tick gets a sequence number. A completion is applied only while the
// sampler is still in the activation (epoch) that issued it and only when
// its sequence number is above the last applied one, so a slow response can
// never overwrite a newer one and nothing lands after Stop.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/camera"
	"github.com/CelestinFernandes/geo-pot/internal/capture"
	"github.com/CelestinFernandes/geo-pot/internal/detection"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/metrics"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/sink"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// ErrNoPendingVideo is returned when there is no finished recording to save.
var ErrNoPendingVideo = errors.New("no recorded video to save")

// Camera is the shared capture session.
type Camera interface {
	Active() bool
	Start(ctx context.Context) error
	Stop() error
	Stream() (camera.Stream, bool)
}

// Config holds sampler timing and placement settings.
type Config struct {
	Interval   time.Duration
	RecordFPS  int
	OffsetStep float64
}

// Deps are the collaborators of a Sampler.
type Deps struct {
	Location   capture.Locator
	Camera     Camera
	Encoder    camera.Encoder
	Detector   detection.Detector
	Reconciler *reconcile.Reconciler
	Sink       sink.Backend
	IDs        *ids.Generator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Sampler is the live-sampling flow.
type Sampler struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	// flights outlive Stop; only Close cancels them
	flightCtx    context.Context
	cancelFlight context.CancelFunc

	mu         sync.Mutex
	active     bool
	epoch      uint64
	nextSeq    uint64
	applied    uint64
	overlay    core.Overlay
	ownsCamera bool
	recorder   *camera.Recorder
	pending    *core.VideoArtifact
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
	inflight   int
	idle       chan struct{}
	// stopping is closed once a running Stop has released the camera
	stopping chan struct{}
}

// New creates an idle Sampler.
func New(deps Deps, cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.OffsetStep <= 0 {
		cfg.OffsetStep = capture.DefaultOffsetStep
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
	flightCtx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		deps:         deps,
		cfg:          cfg,
		now:          time.Now,
		flightCtx:    flightCtx,
		cancelFlight: cancel,
	}
}

// Start begins recording and periodic detection. An already active camera
// stream is reused; otherwise the sampler opens the camera and releases it
// again on Stop. A Start issued while a Stop is still tearing down waits for
// it to finish.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	for s.stopping != nil {
		stopping := s.stopping
		s.mu.Unlock()
		select {
		case <-stopping:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.active {
		return nil
	}
	if s.flightCtx.Err() != nil {
		return fmt.Errorf("live sampler closed")
	}

	owns := false
	if !s.deps.Camera.Active() {
		if err := s.deps.Camera.Start(ctx); err != nil {
			return err
		}
		owns = true
	}
	stream, ok := s.deps.Camera.Stream()
	if !ok {
		if owns {
			_ = s.deps.Camera.Stop()
		}
		return core.ErrCameraNotReady
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.recorder = camera.StartRecording(loopCtx, stream, s.deps.Encoder, s.cfg.RecordFPS, s.deps.Logger)
	s.epoch++
	s.applied = 0
	s.active = true
	s.ownsCamera = owns
	s.cancelLoop = cancel
	s.loopDone = make(chan struct{})

	go s.loop(loopCtx, s.epoch, s.loopDone)

	s.deps.Logger.Info("Live sampling started", "epoch", s.epoch, "interval", s.cfg.Interval, "ownsCamera", owns)
	return nil
}

func (s *Sampler) loop(ctx context.Context, epoch uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(epoch)
		}
	}
}

// tick issues one sample for epoch. The detection call runs on its own
// goroutine so a slow response never delays the cadence.
func (s *Sampler) tick(epoch uint64) {
	loc, ok := s.deps.Location.Current()

	s.mu.Lock()
	if !s.active || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.nextSeq++
	seq := s.nextSeq
	if !ok {
		s.mu.Unlock()
		s.deps.Logger.Debug("Live tick skipped, no location sample", "seq", seq)
		return
	}
	stream, streamOK := s.deps.Camera.Stream()
	if !streamOK {
		s.mu.Unlock()
		s.deps.Logger.Debug("Live tick skipped, camera not ready", "seq", seq)
		return
	}
	s.beginFlightLocked()
	s.mu.Unlock()

	go func() {
		defer s.endFlight()
		s.sample(epoch, seq, loc, stream)
	}()
}

func (s *Sampler) sample(epoch, seq uint64, loc core.LatLng, stream camera.Stream) {
	ctx := s.flightCtx
	at := s.now()

	frame, err := grab(ctx, stream, s.deps.Encoder)
	if err != nil {
		s.deps.Logger.Debug("Live frame skipped", "seq", seq, "error", err)
		return
	}
	res, err := s.deps.Detector.Detect(ctx, frame)
	s.complete(ctx, epoch, seq, loc, frame, at, res, err)
}

func grab(ctx context.Context, stream camera.Stream, enc camera.Encoder) ([]byte, error) {
	img, err := stream.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return enc.Encode(img)
}

// complete applies a finished detection if it is still current.
func (s *Sampler) complete(ctx context.Context, epoch, seq uint64, loc core.LatLng, frame []byte, at time.Time, res core.DetectionResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || epoch != s.epoch || seq <= s.applied {
		s.deps.Metrics.StaleCompletion(ctx)
		s.deps.Logger.Debug("Stale live completion discarded", "seq", seq, "applied", s.applied, "epoch", epoch)
		return
	}
	if err != nil {
		s.deps.Logger.Warn("Live detection failed", "seq", seq, "error", err)
		return
	}

	s.applied = seq
	s.overlay = core.Overlay{
		Seq:            seq,
		AnnotatedImage: res.AnnotatedImage,
		Detections:     res.Detections,
		UpdatedAt:      s.now(),
	}
	if s.deps.Sink != nil {
		if err := s.deps.Sink.UpdateOverlay(s.overlay); err != nil {
			s.deps.Logger.Warn("Sink update failed", "op", "overlay", "error", err)
		}
	}

	record, markers := capture.Assemble(s.deps.IDs.VideoFrame(), loc, frame, res, core.SourceVideo, at, s.cfg.OffsetStep)
	if s.deps.Reconciler.Submit(record, markers) {
		s.deps.Metrics.PhotoAdded(ctx, core.SourceVideo)
	}
}

func (s *Sampler) beginFlightLocked() {
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
}

func (s *Sampler) endFlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// Stop ends sampling and returns the finished recording, which is also
// kept as the pending video until saved or discarded. In-flight detection
// calls may still finish but their results are dropped. Stopping an idle
// sampler is a no-op.
func (s *Sampler) Stop() (core.VideoArtifact, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return core.VideoArtifact{}, nil
	}
	s.active = false
	s.cancelLoop()
	stopping := make(chan struct{})
	s.stopping = stopping
	defer func() {
		s.mu.Lock()
		s.stopping = nil
		s.mu.Unlock()
		close(stopping)
	}()
	loopDone := s.loopDone
	recorder := s.recorder
	owns := s.ownsCamera
	s.recorder = nil
	s.ownsCamera = false
	s.overlay = core.Overlay{}
	s.mu.Unlock()

	<-loopDone

	rec := recorder.Stop()
	video := core.VideoArtifact{
		ID:        s.deps.IDs.Video(),
		Data:      rec.Data,
		MIMEType:  rec.MIMEType,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		Frames:    rec.Frames,
	}

	s.mu.Lock()
	s.pending = &video
	s.mu.Unlock()

	if s.deps.Sink != nil {
		if err := s.deps.Sink.UpdateOverlay(core.Overlay{}); err != nil {
			s.deps.Logger.Warn("Sink update failed", "op", "overlay", "error", err)
		}
	}

	var err error
	if owns {
		err = s.deps.Camera.Stop()
	}
	s.deps.Logger.Info("Live sampling stopped", "video", video.ID, "frames", video.Frames)
	return video, err
}

// Active reports whether sampling is running.
func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Overlay returns the current live overlay. It is empty while idle.
func (s *Sampler) Overlay() core.Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay
}

// Pending returns the recording awaiting save or discard.
func (s *Sampler) Pending() (core.VideoArtifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return core.VideoArtifact{}, false
	}
	return *s.pending, true
}

// SaveVideo writes the pending recording to w. The recording stays pending
// if the write fails.
func (s *Sampler) SaveVideo(w io.Writer) (core.VideoArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(w)
}

func (s *Sampler) saveLocked(w io.Writer) (core.VideoArtifact, error) {
	if s.pending == nil {
		return core.VideoArtifact{}, ErrNoPendingVideo
	}
	if _, err := w.Write(s.pending.Data); err != nil {
		return core.VideoArtifact{}, fmt.Errorf("save video: %w", err)
	}
	video := *s.pending
	s.pending = nil
	return video, nil
}

// SaveVideoFile writes the pending recording into dir and returns its path.
func (s *Sampler) SaveVideoFile(dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return "", ErrNoPendingVideo
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("save video: %w", err)
	}

	path := filepath.Join(dir, s.pending.ID+".mjpeg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save video: %w", err)
	}
	if _, err := s.saveLocked(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save video: %w", err)
	}
	return path, nil
}

// DiscardVideo drops the pending recording. Reports whether one existed.
func (s *Sampler) DiscardVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.pending != nil
	s.pending = nil
	return had
}

// Wait blocks until no detection call is in flight or ctx is done.
func (s *Sampler) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops sampling and cancels any detection call still in flight.
func (s *Sampler) Close() error {
	_, err := s.Stop()
	s.cancelFlight()
	return err
}
