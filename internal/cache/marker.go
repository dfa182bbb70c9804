package cache

import "sync"

// MarkerIndex links detection markers to the photo they were derived from.
type MarkerIndex struct {
	mu       sync.RWMutex
	byPhoto  map[string][]string
	byMarker map[string]string
}

// NewMarkerIndex creates a new MarkerIndex
func NewMarkerIndex() *MarkerIndex {
	return &MarkerIndex{
		byPhoto:  make(map[string][]string),
		byMarker: make(map[string]string),
	}
}

// Link records that markerID was derived from photoID. Relinking a marker
// moves it to the new photo.
func (c *MarkerIndex) Link(photoID, markerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byMarker[markerID]; ok {
		if prev == photoID {
			return
		}
		c.removeFromPhoto(prev, markerID)
	}
	c.byMarker[markerID] = photoID
	c.byPhoto[photoID] = append(c.byPhoto[photoID], markerID)
}

// PhotoOf returns the photo a marker belongs to
func (c *MarkerIndex) PhotoOf(markerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byMarker[markerID]
	return id, ok
}

// MarkersOf returns the markers linked to a photo, in link order
func (c *MarkerIndex) MarkersOf(photoID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.byPhoto[photoID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// HasMarkers reports whether any marker is linked to the photo
func (c *MarkerIndex) HasMarkers(photoID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPhoto[photoID]) > 0
}

// Unlink removes a marker from the index
func (c *MarkerIndex) Unlink(markerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	photoID, ok := c.byMarker[markerID]
	if !ok {
		return
	}
	delete(c.byMarker, markerID)
	c.removeFromPhoto(photoID, markerID)
}

// Len returns the number of linked markers
func (c *MarkerIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byMarker)
}

// Reset clears all links
func (c *MarkerIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPhoto = make(map[string][]string)
	c.byMarker = make(map[string]string)
}

func (c *MarkerIndex) removeFromPhoto(photoID, markerID string) {
	ids := c.byPhoto[photoID]
	for i, id := range ids {
		if id == markerID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(c.byPhoto, photoID)
		return
	}
	c.byPhoto[photoID] = ids
}
