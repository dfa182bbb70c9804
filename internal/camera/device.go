package camera

import (
	"fmt"

	"github.com/CelestinFernandes/geo-pot/internal/config"
)

// NewDevice builds the capture device selected by cfg.Device.
func NewDevice(cfg config.CameraConfig) (Device, error) {
	switch cfg.Device {
	case "dir", "":
		return DirDevice{Dir: cfg.FramesDir}, nil
	case "image":
		return StillFile(cfg.ImagePath)
	case "gocv":
		return NewCaptureDevice(cfg.DeviceID)
	default:
		return nil, fmt.Errorf("unknown camera device: %s", cfg.Device)
	}
}
