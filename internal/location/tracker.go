package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/geo"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// ErrUnsupported is reported when no location source exists on this device.
var ErrUnsupported = errors.New("geolocation is not supported")

// Locator performs a single position request.
type Locator interface {
	Locate(ctx context.Context) (core.LatLng, error)
}

// Tracker keeps the most recent location sample, refreshed on a fixed interval.
// A failed request records an error but keeps the previous sample usable.
type Tracker struct {
	locator  Locator
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	sample    core.LatLng
	hasSample bool
	updatedAt time.Time
	err       error

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker creates a tracker polling locator every interval.
// A nil locator behaves as an unsupported device.
func NewTracker(locator Locator, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		locator:  locator,
		interval: interval,
		timeout:  interval,
		logger:   logger,
	}
}

// Start requests a position immediately and then every interval until Stop
// or ctx is done. Calling Start while running is a no-op; calling it after
// polling stopped on a permanent error retries.
func (t *Tracker) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel != nil {
		if !closed(t.done) {
			return
		}
		t.cancel()
		t.cancel, t.done = nil, nil
	}

	if t.locator == nil {
		t.setErr(fmt.Errorf("%w: %w", core.ErrLocationUnavailable, ErrUnsupported))
		t.logger.Warn("Location tracking unavailable", "error", ErrUnsupported)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(ctx, done)
}

// Stop cancels polling and waits for the loop to exit. Safe to call repeatedly.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the polling loop is active.
func (t *Tracker) Running() bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.done != nil && !closed(t.done)
}

// Current returns the latest sample, which may be stale if later requests failed.
func (t *Tracker) Current() (core.LatLng, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sample, t.hasSample
}

// UpdatedAt returns when the current sample was taken.
func (t *Tracker) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// Err returns the error of the latest request, or nil after a success.
func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Refresh performs one request outside the schedule.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.locator == nil {
		err := fmt.Errorf("%w: %w", core.ErrLocationUnavailable, ErrUnsupported)
		t.setErr(err)
		return err
	}
	return t.poll(ctx)
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := t.poll(ctx); permanent(err) {
		t.logger.Warn("Location tracking stopped", "error", err)
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.poll(ctx); permanent(err) {
				t.logger.Warn("Location tracking stopped", "error", err)
				return
			}
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	p, err := t.locator.Locate(reqCtx)
	if ctx.Err() != nil {
		// stopping; a canceled request is not a location failure
		return ctx.Err()
	}
	if err == nil {
		err = geo.Validate(p)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrLocationUnavailable, err)
		t.setErr(err)
		t.logger.Debug("Location request failed", "error", err)
		return err
	}

	t.mu.Lock()
	t.sample = p
	t.hasSample = true
	t.updatedAt = time.Now()
	t.err = nil
	t.mu.Unlock()

	t.logger.Debug("Location updated", "position", geo.FormatLatLng(p))
	return nil
}

func (t *Tracker) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// permanent reports errors that retrying will not fix.
func permanent(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, core.ErrPermissionDenied)
}
