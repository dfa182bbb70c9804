package sink

import (
	"fmt"
	"log/slog"

	"github.com/CelestinFernandes/geo-pot/internal/config"
	"github.com/CelestinFernandes/geo-pot/internal/sink/memory"
	"github.com/CelestinFernandes/geo-pot/internal/sink/websocket"
)

// NewBackend creates a display sink based on configuration
func NewBackend(cfg config.SinkConfig, sessionID, version string, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:       cfg.URL,
			Secret:    cfg.Secret,
			SessionID: sessionID,
			Version:   version,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}
