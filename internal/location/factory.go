package location

import (
	"fmt"

	"github.com/CelestinFernandes/geo-pot/internal/config"
	"github.com/CelestinFernandes/geo-pot/internal/geo"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// NewLocator builds the locator selected by cfg.Mode.
// Mode "none" returns a nil locator, which the tracker reports as unsupported.
func NewLocator(cfg config.LocationConfig) (Locator, error) {
	switch cfg.Mode {
	case "static", "":
		pos := core.LatLng{Lat: cfg.Latitude, Lng: cfg.Longitude}
		if err := geo.Validate(pos); err != nil {
			return nil, fmt.Errorf("static location: %w", err)
		}
		return Static{Position: pos}, nil
	case "route":
		waypoints, err := geo.ParseRoute(cfg.Route)
		if err != nil {
			return nil, fmt.Errorf("route location: %w", err)
		}
		return NewRoute(waypoints)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown location mode: %s", cfg.Mode)
	}
}
