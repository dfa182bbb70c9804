package geo

import (
	"fmt"
	"strings"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParseRoute parses a "lat,lng;lat,lng;..." list of waypoints.
func ParseRoute(input string) ([]core.LatLng, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("route is empty")
	}

	var route []core.LatLng
	for i, pair := range strings.Split(input, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		p, err := ParsePair(pair)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d %q: %w", i, pair, err)
		}
		route = append(route, p)
	}
	if len(route) == 0 {
		return nil, fmt.Errorf("route is empty")
	}
	return route, nil
}

// RouteLine builds a Web-Mercator line string through the waypoints.
// A single waypoint yields an empty line.
func RouteLine(route []core.LatLng) (geom.LineString, error) {
	if len(route) < 2 {
		return geom.LineString{}, nil
	}
	flat := make([]float64, 0, len(route)*2)
	for i, p := range route {
		pt, err := Coords3857From4326(p)
		if err != nil {
			return geom.LineString{}, fmt.Errorf("waypoint %d: %w", i, err)
		}
		xy, _ := pt.XY()
		flat = append(flat, xy.X, xy.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)), nil
}
