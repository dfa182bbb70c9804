// Package memory keeps an in-process mirror of everything sent to the display.
// It backs headless runs and the pipeline tests.
package memory

import (
	"sync"

	"github.com/CelestinFernandes/geo-pot/internal/collection"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
)

// FlyTo records one map recentre
type FlyTo struct {
	Location core.LatLng
	Zoom     int
}

// Reply records one command result
type Reply struct {
	ID     string
	Result streaming.ResultPayload
}

// Backend mirrors the display state in memory
type Backend struct {
	mu sync.RWMutex

	photos  *collection.Ordered[core.PhotoRecord]
	markers *collection.Ordered[core.MapMarker]
	overlay core.Overlay
	notices []core.Notice
	flights []FlyTo
	replies []Reply
	calls   []string

	onCommand streaming.CommandFunc
	closed    bool
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		photos:  collection.New(func(p core.PhotoRecord) string { return p.ID }),
		markers: collection.New(func(m core.MapMarker) string { return m.ID }),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	b.record("init")
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.calls = append(b.calls, "close")
	return nil
}

func (b *Backend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *Backend) FlyTo(loc core.LatLng, zoom int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flights = append(b.flights, FlyTo{Location: loc, Zoom: zoom})
	b.calls = append(b.calls, streaming.TypeFlyTo)
	return nil
}

func (b *Backend) AddPhoto(p core.PhotoRecord) error {
	b.photos.Add(p)
	b.record(streaming.TypeAddPhoto)
	return nil
}

func (b *Backend) HidePhotoMarker(photoID string) error {
	b.photos.Update(photoID, func(p *core.PhotoRecord) { p.ShowMarker = false })
	b.record(streaming.TypeHidePhotoMarker)
	return nil
}

func (b *Backend) RemovePhoto(id string) error {
	b.photos.Remove(id)
	b.record(streaming.TypeRemovePhoto)
	return nil
}

func (b *Backend) ClearPhotos() error {
	b.photos.GetAndEmpty()
	b.record(streaming.TypeClearPhotos)
	return nil
}

func (b *Backend) AddDetectionMarker(m core.MapMarker) error {
	b.markers.Add(m)
	b.record(streaming.TypeAddMarker)
	return nil
}

func (b *Backend) RemoveMarker(id string) error {
	b.markers.Remove(id)
	b.record(streaming.TypeRemoveMarker)
	return nil
}

func (b *Backend) ClearMarkers() error {
	b.markers.GetAndEmpty()
	b.record(streaming.TypeClearMarkers)
	return nil
}

func (b *Backend) UpdateOverlay(o core.Overlay) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlay = o
	b.calls = append(b.calls, streaming.TypeOverlay)
	return nil
}

func (b *Backend) Notify(n core.Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
	b.calls = append(b.calls, streaming.TypeNotice)
	return nil
}

// OnCommand registers the handler that Inject delivers to.
func (b *Backend) OnCommand(fn streaming.CommandFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCommand = fn
}

// Inject delivers a command as if the display had sent it. It reports false
// when no handler is registered.
func (b *Backend) Inject(env streaming.Envelope) bool {
	b.mu.RLock()
	fn := b.onCommand
	b.mu.RUnlock()
	if fn == nil {
		return false
	}
	fn(env)
	return true
}

func (b *Backend) Reply(id string, res streaming.ResultPayload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, Reply{ID: id, Result: res})
	b.calls = append(b.calls, streaming.TypeResult)
	return nil
}

// Photos returns the mirrored gallery in insertion order.
func (b *Backend) Photos() []core.PhotoRecord { return b.photos.Snapshot() }

// Markers returns the mirrored markers in insertion order.
func (b *Backend) Markers() []core.MapMarker { return b.markers.Snapshot() }

// Overlay returns the last overlay pushed.
func (b *Backend) Overlay() core.Overlay {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.overlay
}

// Notices returns every notice in order.
func (b *Backend) Notices() []core.Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// Flights returns every FlyTo in order.
func (b *Backend) Flights() []FlyTo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]FlyTo, len(b.flights))
	copy(out, b.flights)
	return out
}

// Replies returns every command result in order.
func (b *Backend) Replies() []Reply {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Reply, len(b.replies))
	copy(out, b.replies)
	return out
}

// Calls returns the message types received, in order.
func (b *Backend) Calls() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
