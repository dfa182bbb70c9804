package metrics

import (
	"context"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/detection"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// DetectionObserver receives every detection round trip, failed or not.
type DetectionObserver interface {
	ObserveDetection(ctx context.Context, res core.DetectionResult, took time.Duration, err error)
}

// Detector wraps a detection.Detector with timing and failure accounting.
type Detector struct {
	next      detection.Detector
	metrics   *Metrics
	observers []DetectionObserver
	now       func() time.Time
}

// WrapDetector instruments next. Observers are called in order after each call.
func WrapDetector(next detection.Detector, m *Metrics, observers ...DetectionObserver) *Detector {
	return &Detector{next: next, metrics: m, observers: observers, now: time.Now}
}

// Detect forwards to the wrapped detector.
func (d *Detector) Detect(ctx context.Context, frame []byte) (core.DetectionResult, error) {
	start := d.now()
	res, err := d.next.Detect(ctx, frame)
	took := d.now().Sub(start)

	// record with a live context so a cancelled caller still gets counted
	rctx := context.WithoutCancel(ctx)
	d.metrics.DetectionDone(rctx, took, err)
	for _, o := range d.observers {
		o.ObserveDetection(rctx, res, took, err)
	}
	return res, err
}
