package location

import (
	"context"
	"errors"
	"sync"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// Static always reports the same position.
type Static struct {
	Position core.LatLng
}

// Locate returns the fixed position.
func (s Static) Locate(ctx context.Context) (core.LatLng, error) {
	if err := ctx.Err(); err != nil {
		return core.LatLng{}, err
	}
	return s.Position, nil
}

// Route walks through waypoints, one per request, wrapping at the end.
// Used to replay a survey drive without a GPS receiver.
type Route struct {
	mu        sync.Mutex
	waypoints []core.LatLng
	next      int
}

// NewRoute creates a Route over waypoints.
func NewRoute(waypoints []core.LatLng) (*Route, error) {
	if len(waypoints) == 0 {
		return nil, errors.New("route has no waypoints")
	}
	cp := make([]core.LatLng, len(waypoints))
	copy(cp, waypoints)
	return &Route{waypoints: cp}, nil
}

// Locate returns the next waypoint.
func (r *Route) Locate(ctx context.Context) (core.LatLng, error) {
	if err := ctx.Err(); err != nil {
		return core.LatLng{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.waypoints[r.next]
	r.next = (r.next + 1) % len(r.waypoints)
	return p, nil
}

// Func adapts a function to Locator.
type Func func(ctx context.Context) (core.LatLng, error)

// Locate calls f.
func (f Func) Locate(ctx context.Context) (core.LatLng, error) {
	return f(ctx)
}
