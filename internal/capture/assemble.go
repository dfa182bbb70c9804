package capture

import (
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/geo"
	"github.com/CelestinFernandes/geo-pot/internal/ids"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// DefaultOffsetStep separates the pins of several detections in one frame, in degrees.
const DefaultOffsetStep = 0.0001

// Assemble builds the photo record and detection markers for one detected
// frame. Only recognised detections become markers; the i-th of them sits at
// loc offset by i*step on both axes. The record shows its own camera marker
// only when no detection marker was made.
func Assemble(id string, loc core.LatLng, frame []byte, res core.DetectionResult, source core.PhotoSource, at time.Time, step float64) (core.PhotoRecord, []core.MapMarker) {
	recognized := res.Recognized()

	img := res.AnnotatedImage
	if len(img) == 0 {
		img = frame
	}

	record := core.PhotoRecord{
		ID:         id,
		Image:      img,
		Location:   loc,
		Timestamp:  at,
		ShowMarker: len(recognized) == 0,
		Source:     source,
		Detections: res.Detections,
	}

	markers := make([]core.MapMarker, 0, len(recognized))
	for i, d := range recognized {
		markers = append(markers, core.MapMarker{
			ID:         ids.DetectionMarker(id, i),
			Position:   geo.MarkerPosition(loc, i, step),
			Type:       core.MarkerTypeFor(d.Type),
			PhotoID:    id,
			Label:      d.Label,
			Confidence: d.Confidence,
			CreatedAt:  at,
		})
	}
	return record, markers
}
