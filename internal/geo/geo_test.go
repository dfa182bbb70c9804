package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

func TestParseLatLng_Valid(t *testing.T) {
	p, err := ParseLatLng("19.0760", " 72.8777")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 19.076 || p.Lng != 72.8777 {
		t.Errorf("expected (19.076, 72.8777), got %v", p)
	}
}

func TestParseLatLng_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng string
	}{
		{"empty", "", ""},
		{"letters", "abc", "72.8"},
		{"lat out of range", "91", "72.8"},
		{"lng out of range", "19", "-181"},
		{"nan", "NaN", "72.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLatLng(tt.lat, tt.lng)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("19.125,72.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 19.125 || p.Lng != 72.9 {
		t.Errorf("unexpected point %v", p)
	}

	if _, err := ParsePair("19.125"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
	if _, err := ParsePair("1,2,3"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestMarkerPosition(t *testing.T) {
	base := core.LatLng{Lat: 19.0760, Lng: 72.8777}

	first := MarkerPosition(base, 0, 0.0001)
	if first != base {
		t.Errorf("index 0 should sit on the sample, got %v", first)
	}

	third := MarkerPosition(base, 2, 0.0001)
	if math.Abs(third.Lat-19.0762) > 1e-9 || math.Abs(third.Lng-72.8779) > 1e-9 {
		t.Errorf("unexpected offset position %v", third)
	}
}

func TestCoords3857From4326_Origin(t *testing.T) {
	pt, err := Coords3857From4326(core.LatLng{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xy, ok := pt.XY()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if math.Abs(xy.X) > 1e-6 || math.Abs(xy.Y) > 1e-6 {
		t.Errorf("expected origin, got (%f, %f)", xy.X, xy.Y)
	}
}

func TestCoords3857From4326_Mumbai(t *testing.T) {
	pt, err := Coords3857From4326(core.LatLng{Lat: 19.0760, Lng: 72.8777})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xy, _ := pt.XY()

	// x = R * lng in radians
	wantX := 6378137.0 * 72.8777 * math.Pi / 180
	if math.Abs(xy.X-wantX) > 1 {
		t.Errorf("expected x≈%f, got %f", wantX, xy.X)
	}
	if xy.Y < 2.1e6 || xy.Y > 2.2e6 {
		t.Errorf("expected y around 2.16e6, got %f", xy.Y)
	}
}

func TestCoords3857From4326_OutOfRange(t *testing.T) {
	if _, err := Coords3857From4326(core.LatLng{Lat: 89, Lng: 0}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for polar latitude, got %v", err)
	}
	if m := Mercator(core.LatLng{Lat: 89}); m != [2]float64{} {
		t.Errorf("expected zero mercator for unprojectable point, got %v", m)
	}
}

func TestFormatLatLng(t *testing.T) {
	got := FormatLatLng(core.LatLng{Lat: 19.076, Lng: 72.8777})
	if got != "19.076000, 72.877700" {
		t.Errorf("unexpected format %q", got)
	}
}

func TestParseRoute(t *testing.T) {
	route, err := ParseRoute("19.07,72.87; 19.08,72.88;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route) != 2 {
		t.Fatalf("expected 2 waypoints, got %d", len(route))
	}
	if route[1].Lat != 19.08 {
		t.Errorf("unexpected waypoint %v", route[1])
	}

	if _, err := ParseRoute(""); err == nil {
		t.Error("expected error for empty route")
	}
	if _, err := ParseRoute("19.07,72.87;bad"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestRouteLine(t *testing.T) {
	line, err := RouteLine([]core.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// one degree of longitude at the equator
	if math.Abs(line.Length()-111319.49) > 1 {
		t.Errorf("unexpected length %f", line.Length())
	}

	single, err := RouteLine([]core.LatLng{{Lat: 1, Lng: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !single.IsEmpty() {
		t.Error("expected empty line for single waypoint")
	}
}
