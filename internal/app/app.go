// Package app wires the pipeline together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CelestinFernandes/geo-pot/internal/camera"
	"github.com/CelestinFernandes/geo-pot/internal/capture"
	"github.com/CelestinFernandes/geo-pot/internal/config"
	"github.com/CelestinFernandes/geo-pot/internal/detection"
	"github.com/CelestinFernandes/geo-pot/internal/dispatcher"
	"github.com/CelestinFernandes/geo-pot/internal/geocode"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/influx"
	"github.com/CelestinFernandes/geo-pot/internal/live"
	"github.com/CelestinFernandes/geo-pot/internal/location"
	"github.com/CelestinFernandes/geo-pot/internal/logging"
	"github.com/CelestinFernandes/geo-pot/internal/metrics"
	"github.com/CelestinFernandes/geo-pot/internal/monitor"
	"github.com/CelestinFernandes/geo-pot/internal/reconcile"
	"github.com/CelestinFernandes/geo-pot/internal/session"
	"github.com/CelestinFernandes/geo-pot/internal/sink"
	"github.com/CelestinFernandes/geo-pot/internal/worker"
)

// Options carry what main owns: the logging setup and build information.
type Options struct {
	Version    string
	Session    *session.Context
	LogManager *logging.SlogManager
	// BackupDir receives the InfluxDB backup file when the server is unreachable.
	BackupDir string
}

// App holds every long-lived component of one run.
type App struct {
	Session    *session.Context
	Sink       sink.Backend
	Tracker    *location.Tracker
	Camera     *camera.Session
	Gallery    *reconcile.Reconciler
	Capture    *capture.Flow
	Live       *live.Sampler
	Monitor    *monitor.Service
	Dispatcher *dispatcher.Dispatcher
	Worker     *worker.Manager
	Bridge     *worker.Bridge
	Influx     *influx.Manager

	logger          *slog.Logger
	monitorInterval time.Duration
	cancel          context.CancelFunc
	closeOnce       sync.Once
	closeErr        error
}

// New builds the pipeline from the loaded configuration. Commands run
// under ctx; Close cancels it.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Session == nil {
		opts.Session = session.NewContext()
	}
	if opts.LogManager == nil {
		opts.LogManager = logging.NewSlogManager()
	}
	logs := opts.LogManager

	ctx, cancel := context.WithCancel(ctx)
	a := &App{
		Session: opts.Session,
		logger:  logs.Component("app"),
		cancel:  cancel,
	}

	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	gen := ids.New()

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a.Influx = influx.NewManager(
		config.GetInfluxConfig(),
		a.Session.ID(),
		filepath.Join(opts.BackupDir, fmt.Sprintf("influx_backup.%s.lp.gz", a.Session.StartedAt().Format("20060102_150405"))),
		logs.Component("influx"),
	)

	a.Sink, err = sink.NewBackend(config.GetSinkConfig(), a.Session.ID(), opts.Version, logs.Component("sink"))
	if err != nil {
		return nil, err
	}
	if err := a.Sink.Init(); err != nil {
		return nil, fmt.Errorf("sink init: %w", err)
	}

	locCfg := config.GetLocationConfig()
	locator, err := location.NewLocator(locCfg)
	if err != nil {
		return nil, err
	}
	a.Tracker = location.NewTracker(locator, locCfg.Interval, logs.Component("location"))

	camCfg := config.GetCameraConfig()
	device, err := camera.NewDevice(camCfg)
	if err != nil {
		// a missing device is reported when the user starts the camera
		a.logger.Warn("Camera device unavailable", "device", camCfg.Device, "error", err)
		device = nil
	}
	a.Camera = camera.NewSession(device, logs.Component("camera"))
	encoder := camera.JPEGEncoder{Quality: camCfg.JPEGQuality}

	detCfg := config.GetDetectorConfig()
	detector := metrics.WrapDetector(detection.New(detCfg.URL, detCfg.Timeout), m, a.Influx)

	a.Gallery = reconcile.New(a.Sink, gen, logs.Component("reconcile"))

	sampling := config.GetSamplingConfig()
	a.Capture = capture.New(capture.Deps{
		Location:   a.Tracker,
		Camera:     a.Camera,
		Encoder:    encoder,
		Detector:   detector,
		Reconciler: a.Gallery,
		Sink:       a.Sink,
		IDs:        gen,
		Metrics:    m,
		Logger:     logs.Component("capture"),
	}, sampling.OffsetStep)

	a.Live = live.New(live.Deps{
		Location:   a.Tracker,
		Camera:     a.Camera,
		Encoder:    encoder,
		Detector:   detector,
		Reconciler: a.Gallery,
		Sink:       a.Sink,
		IDs:        gen,
		Metrics:    m,
		Logger:     logs.Component("live"),
	}, live.Config{
		Interval:   sampling.Interval,
		RecordFPS:  camCfg.RecordFPS,
		OffsetStep: sampling.OffsetStep,
	})

	monCfg := config.GetMonitorConfig()
	a.monitorInterval = monCfg.Interval
	a.Monitor = monitor.NewService(monitor.Dependencies{
		Session:    a.Session,
		Camera:     a.Camera,
		Location:   a.Tracker,
		Live:       a.Live,
		Gallery:    a.Gallery,
		Capture:    a.Capture,
		Writer:     a.Influx,
		StatusFile: monCfg.StatusFile,
		Logger:     logs.Component("monitor"),
		QueuedCommands: func() int {
			if a.Bridge == nil {
				return 0
			}
			return a.Bridge.Pending()
		},
	})

	a.Dispatcher, err = dispatcher.New(logs.Component("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	geoCfg := config.GetGeocoderConfig()
	a.Worker = worker.NewManager(ctx, worker.Dependencies{
		Session:  a.Session,
		Camera:   a.Camera,
		Location: a.Tracker,
		Capture:  a.Capture,
		Live:     a.Live,
		Gallery:  a.Gallery,
		Geocoder: geocode.New(geocode.Config{
			BaseURL:   geoCfg.URL,
			UserAgent: geoCfg.UserAgent,
			RPS:       geoCfg.RPS,
		}),
		Status:       a.Monitor,
		Sink:         a.Sink,
		IDs:          gen,
		VideoDir:     config.GetVideoConfig().OutputDir,
		SearchPinTTL: sampling.SearchPinTTL,
		Logger:       logs.Component("worker"),
	})
	a.Worker.RegisterHandlers(a.Dispatcher)

	if c, ok := a.Sink.(sink.Commander); ok {
		a.Bridge = worker.NewBridge(a.Dispatcher, c, logs.Component("bridge"))
	}

	built = true
	return a, nil
}

// Dispatch runs one command as if the display had sent it.
func (a *App) Dispatch(command string) (any, error) {
	return a.Dispatcher.Dispatch(dispatcher.Event{Command: command, Timestamp: time.Now()})
}

// Run starts location tracking, telemetry and the status monitor and blocks
// until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Influx.Connect(gctx); err != nil && !errors.Is(err, influx.ErrDisabled) {
			a.logger.Error("InfluxDB unavailable", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Tracker.Start(gctx)
		<-gctx.Done()
		a.Tracker.Stop()
		return nil
	})

	g.Go(func() error {
		if err := a.Monitor.Start(gctx, a.monitorInterval); err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
		<-gctx.Done()
		a.Monitor.Stop()
		return nil
	})

	a.logger.Info("Pipeline running", "session", a.Session.ID())
	return g.Wait()
}

// Close releases everything in dependency order: command intake, live
// sampling, camera, location, gallery timers, sink, telemetry.
// Safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.cancel()
		var errs []error

		if a.Bridge != nil {
			a.Bridge.Close()
		}
		if a.Dispatcher != nil {
			a.Dispatcher.Close()
		}
		if a.Live != nil {
			if err := a.Live.Close(); err != nil {
				errs = append(errs, fmt.Errorf("live: %w", err))
			}
		}
		if a.Camera != nil {
			if err := a.Camera.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("camera: %w", err))
			}
		}
		if a.Tracker != nil {
			a.Tracker.Stop()
		}
		if a.Monitor != nil {
			a.Monitor.Stop()
		}
		if a.Gallery != nil {
			a.Gallery.Close()
		}
		if a.Sink != nil {
			if err := a.Sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("sink: %w", err))
			}
		}
		if a.Influx != nil {
			if err := a.Influx.Close(); err != nil {
				errs = append(errs, fmt.Errorf("influx: %w", err))
			}
		}

		a.closeErr = errors.Join(errs...)
		a.logger.Info("Pipeline closed", "error", a.closeErr)
	})
	return a.closeErr
}
