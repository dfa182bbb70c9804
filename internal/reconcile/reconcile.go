// Package reconcile owns the session's photo gallery and map markers.
//
// Both collections are keyed by id and kept in insertion order. Every change
// is applied under one lock and mirrored to the display sink before the lock
// is released, so the sink observes changes in the same order as the
// collections.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/cache"
	"github.com/CelestinFernandes/geo-pot/internal/collection"
	"github.com/CelestinFernandes/geo-pot/internal/geo"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/internal/sink"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// ErrManualType is returned by PlaceMarker for types a user cannot place.
var ErrManualType = errors.New("marker type cannot be placed manually")

// Deleted describes what DeleteLast removed.
type Deleted struct {
	ID    string
	Photo bool
}

// Counts is a point-in-time size of both collections.
type Counts struct {
	Photos  int `json:"photos"`
	Markers int `json:"markers"`
}

// Reconciler deduplicates and cross-links photos and markers.
type Reconciler struct {
	sink   sink.Backend
	ids    *ids.Generator
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	photos  *collection.Ordered[core.PhotoRecord]
	markers *collection.Ordered[core.MapMarker]
	links   *cache.MarkerIndex
	timers  map[string]*time.Timer
	closed  bool
}

// New creates an empty Reconciler that mirrors into s.
func New(s sink.Backend, gen *ids.Generator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if gen == nil {
		gen = ids.New()
	}
	return &Reconciler{
		sink:    s,
		ids:     gen,
		logger:  logger,
		now:     time.Now,
		photos:  collection.New(func(p core.PhotoRecord) string { return p.ID }),
		markers: collection.New(func(m core.MapMarker) string { return m.ID }),
		links:   cache.NewMarkerIndex(),
		timers:  make(map[string]*time.Timer),
	}
}

// mirror logs sink failures. The collections stay authoritative.
func (r *Reconciler) mirror(op string, err error) {
	if err != nil {
		r.logger.Warn("Sink update failed", "op", op, "error", err)
	}
}

// Submit adds a photo and the detection markers derived from it in one step.
// A photo whose id is already present is dropped silently; its markers still
// go through marker-id dedupe. Reports whether the photo was added.
func (r *Reconciler) Submit(photo core.PhotoRecord, markers []core.MapMarker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := r.photos.Add(photo)
	if added {
		r.mirror("add_photo", r.sink.AddPhoto(photo))
	} else {
		r.logger.Debug("Duplicate photo dropped", "id", photo.ID)
	}

	for _, m := range markers {
		r.addMarkerLocked(m)
	}
	r.syncShowMarkerLocked(photo.ID)
	return added
}

// AddPhoto adds a photo without markers.
func (r *Reconciler) AddPhoto(photo core.PhotoRecord) bool {
	return r.Submit(photo, nil)
}

// AddMarker adds a marker. Reports false for a duplicate id.
func (r *Reconciler) AddMarker(m core.MapMarker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := r.addMarkerLocked(m)
	if added && m.PhotoID != "" {
		r.syncShowMarkerLocked(m.PhotoID)
	}
	return added
}

func (r *Reconciler) addMarkerLocked(m core.MapMarker) bool {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	if !r.markers.Add(m) {
		r.logger.Debug("Duplicate marker dropped", "id", m.ID)
		return false
	}
	if m.PhotoID != "" {
		r.links.Link(m.PhotoID, m.ID)
	}
	r.mirror("add_marker", r.sink.AddDetectionMarker(m))
	return true
}

// syncShowMarkerLocked hides the camera marker of a photo that has detection
// markers. ShowMarker only ever moves from true to false.
func (r *Reconciler) syncShowMarkerLocked(photoID string) {
	if !r.links.HasMarkers(photoID) {
		return
	}
	flipped := false
	r.photos.Update(photoID, func(p *core.PhotoRecord) {
		if p.ShowMarker {
			p.ShowMarker = false
			flipped = true
		}
	})
	if flipped {
		r.mirror("hide_photo_marker", r.sink.HidePhotoMarker(photoID))
	}
}

// DeletePhoto removes a photo. Its detection markers stay on the map.
func (r *Reconciler) DeletePhoto(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletePhotoLocked(id)
}

func (r *Reconciler) deletePhotoLocked(id string) bool {
	if _, ok := r.photos.Remove(id); !ok {
		return false
	}
	r.mirror("remove_photo", r.sink.RemovePhoto(id))
	return true
}

// DeleteMarker removes a marker.
func (r *Reconciler) DeleteMarker(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteMarkerLocked(id)
}

func (r *Reconciler) deleteMarkerLocked(id string) bool {
	if _, ok := r.markers.Remove(id); !ok {
		return false
	}
	r.links.Unlink(id)
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	r.mirror("remove_marker", r.sink.RemoveMarker(id))
	return true
}

// DeleteLast removes the newest photo, or the newest marker when there are
// no photos.
func (r *Reconciler) DeleteLast() (Deleted, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.photos.PopLast(); ok {
		r.mirror("remove_photo", r.sink.RemovePhoto(p.ID))
		return Deleted{ID: p.ID, Photo: true}, true
	}

	snap := r.markers.Snapshot()
	if len(snap) == 0 {
		return Deleted{}, false
	}
	id := snap[len(snap)-1].ID
	r.deleteMarkerLocked(id)
	return Deleted{ID: id}, true
}

// ClearMarkers removes every marker. Photos are untouched.
func (r *Reconciler) ClearMarkers() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.markers.GetAndEmpty()
	r.links.Reset()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.mirror("clear_markers", r.sink.ClearMarkers())
	return len(removed)
}

// ClearPhotos removes every photo. Markers are untouched.
func (r *Reconciler) ClearPhotos() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.photos.GetAndEmpty()
	r.mirror("clear_photos", r.sink.ClearPhotos())
	return len(removed)
}

// PlaceMarker adds a hand-placed crack or pothole marker at pos.
func (r *Reconciler) PlaceMarker(pos core.LatLng, typ core.MarkerType) (core.MapMarker, error) {
	switch typ {
	case core.MarkerCrack, core.MarkerManualPothole:
	default:
		return core.MapMarker{}, fmt.Errorf("%w: %q", ErrManualType, typ)
	}
	if err := geo.Validate(pos); err != nil {
		return core.MapMarker{}, err
	}

	m := core.MapMarker{
		ID:       r.ids.Manual(),
		Position: pos,
		Type:     typ,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m.CreatedAt = r.now()
	r.addMarkerLocked(m)
	return m, nil
}

// PinTransient adds m and removes it again after ttl. Pending removals are
// cancelled by Close.
func (r *Reconciler) PinTransient(m core.MapMarker, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.addMarkerLocked(m) {
		return false
	}

	id := m.ID
	r.timers[id] = time.AfterFunc(ttl, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return
		}
		delete(r.timers, id)
		r.deleteMarkerLocked(id)
	})
	return true
}

// Photos returns a copy of the gallery in insertion order.
func (r *Reconciler) Photos() []core.PhotoRecord {
	return r.photos.Snapshot()
}

// Markers returns a copy of the markers in insertion order.
func (r *Reconciler) Markers() []core.MapMarker {
	return r.markers.Snapshot()
}

// Photo returns a single photo.
func (r *Reconciler) Photo(id string) (core.PhotoRecord, bool) {
	return r.photos.Get(id)
}

// MarkersOf returns the ids of the detection markers linked to a photo.
func (r *Reconciler) MarkersOf(photoID string) []string {
	return r.links.MarkersOf(photoID)
}

// Counts returns the collection sizes.
func (r *Reconciler) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counts{Photos: r.photos.Len(), Markers: r.markers.Len()}
}

// Close stops pending transient-pin timers. The collections remain readable.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
