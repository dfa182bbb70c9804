// Package ids generates identifiers for photos, markers and recordings.
package ids

import (
	"crypto/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces lexicographically sortable ids. Ids generated in the same
// millisecond are still strictly increasing.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (g *Generator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

// Photo returns an id for a single-shot photo.
func (g *Generator) Photo() string { return g.next() }

// VideoFrame returns an id for a photo taken from a live-sampling frame.
func (g *Generator) VideoFrame() string { return "video-" + g.next() }

// Manual returns an id for a hand-placed marker.
func (g *Generator) Manual() string { return "marker-" + g.next() }

// Search returns an id for a geocoder result pin.
func (g *Generator) Search() string { return "search-" + g.next() }

// Video returns an id for a recorded video artifact.
func (g *Generator) Video() string { return "rec-" + g.next() }

// DetectionMarker returns the id of the index-th detection marker of a photo.
// The "-m" infix keeps marker ids disjoint from photo ids.
func DetectionMarker(photoID string, index int) string {
	return photoID + "-m" + strconv.Itoa(index)
}
