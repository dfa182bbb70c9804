package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Positions arrive as WGS84 degrees (EPSG:4326). Sink payloads additionally
// carry Web-Mercator (EPSG:3857) metres so tile-based viewers need no projection.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// mercatorMaxLat is the latitude limit of the Web-Mercator projection.
const mercatorMaxLat = 85.05112878

// Validate checks that p is a finite coordinate within WGS84 bounds.
func Validate(p core.LatLng) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// ParseLatLng parses decimal degree strings such as the ones a geocoder returns.
func ParseLatLng(lat, lng string) (core.LatLng, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	p := core.LatLng{Lat: la, Lng: lo}
	if err := Validate(p); err != nil {
		return core.LatLng{}, err
	}
	return p, nil
}

// ParsePair parses a "lat,lng" string.
func ParsePair(s string) (core.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.LatLng{}, ErrInvalidCoordinates
	}
	return ParseLatLng(parts[0], parts[1])
}

// MarkerPosition returns the position of the index-th detection marker of a
// photo taken at base. Markers are spread diagonally so they do not overlap.
func MarkerPosition(base core.LatLng, index int, step float64) core.LatLng {
	return base.Offset(float64(index) * step)
}

// Coords3857From4326 projects a WGS84 coordinate onto Web-Mercator.
func Coords3857From4326(p core.LatLng) (geom.Point, error) {
	if err := Validate(p); err != nil {
		return geom.Point{}, err
	}
	if math.Abs(p.Lat) > mercatorMaxLat {
		return geom.Point{}, fmt.Errorf("latitude %f outside web mercator range: %w", p.Lat, ErrInvalidCoordinates)
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(p.Lng, p.Lat, 0)
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}}), nil
}

// Mercator returns the Web-Mercator XY of p, or zeros when p cannot be projected.
func Mercator(p core.LatLng) [2]float64 {
	pt, err := Coords3857From4326(p)
	if err != nil {
		return [2]float64{}
	}
	xy, ok := pt.XY()
	if !ok {
		return [2]float64{}
	}
	return [2]float64{xy.X, xy.Y}
}

// FormatLatLng renders p with six decimals, the precision shown to users.
func FormatLatLng(p core.LatLng) string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}
