// pkg/core/detection.go
package core

import "time"

// LatLng is a WGS84 coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Offset returns the coordinate shifted by d degrees on both axes.
func (p LatLng) Offset(d float64) LatLng {
	return LatLng{Lat: p.Lat + d, Lng: p.Lng + d}
}

// DetectionType is the defect category reported by the detector.
type DetectionType string

const (
	Longitudinal DetectionType = "Longitudinal"
	Transverse   DetectionType = "Transverse"
	Alligator    DetectionType = "Alligator"
	Pothole      DetectionType = "Pothole"
)

// Recognized reports whether the type is one of the categories placed on the map.
func (t DetectionType) Recognized() bool {
	switch t {
	case Longitudinal, Transverse, Alligator, Pothole:
		return true
	}
	return false
}

// Detection is a single detected defect.
// Box is the pixel bounding box [x1, y1, x2, y2] in the submitted frame.
type Detection struct {
	Type       DetectionType `json:"type"`
	Label      string        `json:"label,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Box        [4]int        `json:"box"`
}

// DetectionResult is the response of one detector round trip.
type DetectionResult struct {
	Detections     []Detection
	AnnotatedImage []byte
}

// Recognized returns the detections that get map markers, in response order.
func (r DetectionResult) Recognized() []Detection {
	var out []Detection
	for _, d := range r.Detections {
		if d.Type.Recognized() {
			out = append(out, d)
		}
	}
	return out
}

// Overlay is the annotation currently shown over the live preview.
type Overlay struct {
	Seq            uint64      `json:"seq"`
	AnnotatedImage []byte      `json:"annotatedImage"`
	Detections     []Detection `json:"detections"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}
