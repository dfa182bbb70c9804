// pkg/core/gallery.go
package core

import "time"

// PhotoSource tells where a photo record came from.
type PhotoSource string

const (
	SourceCamera PhotoSource = "camera"
	SourceVideo  PhotoSource = "video"
)

// PhotoRecord is a captured frame after a successful detection round trip.
// Location is fixed at acquisition time; only ShowMarker may change afterwards,
// and only from true to false.
type PhotoRecord struct {
	ID         string      `json:"id"`
	Image      []byte      `json:"image"`
	Location   LatLng      `json:"location"`
	Timestamp  time.Time   `json:"timestamp"`
	ShowMarker bool        `json:"showMarker"`
	Source     PhotoSource `json:"source"`
	Detections []Detection `json:"detections,omitempty"`
}

// MarkerType is the category a map marker is drawn with.
type MarkerType string

const (
	MarkerLongitudinal  MarkerType = "Longitudinal"
	MarkerTransverse    MarkerType = "Transverse"
	MarkerAlligator     MarkerType = "Alligator"
	MarkerPothole       MarkerType = "Pothole"
	MarkerCrack         MarkerType = "crack"
	MarkerManualPothole MarkerType = "pothole"
	MarkerPhoto         MarkerType = "photo"
	MarkerSearch        MarkerType = "search"
)

// MarkerTypeFor maps a detection type to the marker it is drawn with.
func MarkerTypeFor(t DetectionType) MarkerType {
	return MarkerType(t)
}

// MapMarker is a point placed on the map.
// PhotoID is empty for manual and search markers.
type MapMarker struct {
	ID         string     `json:"id"`
	Position   LatLng     `json:"position"`
	Type       MarkerType `json:"type"`
	PhotoID    string     `json:"photoId,omitempty"`
	Label      string     `json:"label,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// VideoArtifact is a finished live recording awaiting save or discard.
type VideoArtifact struct {
	ID        string    `json:"id"`
	Data      []byte    `json:"-"`
	MIMEType  string    `json:"mimeType"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Frames    int       `json:"frames"`
}

// Place is a geocoder hit.
type Place struct {
	Location    LatLng `json:"location"`
	DisplayName string `json:"displayName"`
}

// NoticeLevel is the severity of a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient message shown to the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}
