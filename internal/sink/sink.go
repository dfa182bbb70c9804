// Package sink defines the display collaborator that mirrors the photo
// gallery, the map markers and the live overlay.
package sink

import (
	"github.com/CelestinFernandes/geo-pot/pkg/core"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
)

// Backend is the interface all display sinks must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Map control
	FlyTo(loc core.LatLng, zoom int) error

	// Gallery
	AddPhoto(p core.PhotoRecord) error
	HidePhotoMarker(photoID string) error
	RemovePhoto(id string) error
	ClearPhotos() error

	// Markers
	AddDetectionMarker(m core.MapMarker) error
	RemoveMarker(id string) error
	ClearMarkers() error

	// Live view. An overlay without an image clears it.
	UpdateOverlay(o core.Overlay) error
	Notify(n core.Notice) error
}

// Commander is implemented by sinks that also carry user commands back into
// the pipeline.
type Commander interface {
	OnCommand(fn streaming.CommandFunc)
	Reply(id string, res streaming.ResultPayload) error
}
