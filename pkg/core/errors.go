// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the user or OS refuses location or camera access.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLocationUnavailable is returned when a location request fails or times out.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrCaptureNotReady is returned when a capture is attempted without a location or an active camera.
	ErrCaptureNotReady = errors.New("capture not ready")
	// ErrNetworkFailure is returned when the detector cannot be reached.
	ErrNetworkFailure = errors.New("detector unreachable")
	// ErrProtocolFailure is returned when the detector answers with something unusable.
	ErrProtocolFailure = errors.New("detector protocol failure")
	// ErrCaptureInProgress is returned when a capture is requested while another one runs.
	ErrCaptureInProgress = errors.New("capture already in progress")

	// ErrNoLocation is the not-ready case where no location sample exists yet.
	ErrNoLocation = fmt.Errorf("%w: no location sample", ErrCaptureNotReady)
	// ErrCameraNotReady is the not-ready case where the camera stream is not active.
	ErrCameraNotReady = fmt.Errorf("%w: camera not active", ErrCaptureNotReady)
)

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Permission denied. Please allow camera and location access and try again."
	case errors.Is(err, ErrLocationUnavailable):
		return "Unable to retrieve your location. Please enable location services."
	case errors.Is(err, ErrNoLocation):
		return "Location not available. Please enable location services and try again."
	case errors.Is(err, ErrCameraNotReady), errors.Is(err, ErrCaptureNotReady):
		return "Camera not ready. Please try again."
	case errors.Is(err, ErrCaptureInProgress):
		return "A capture is already in progress."
	case errors.Is(err, ErrNetworkFailure), errors.Is(err, ErrProtocolFailure):
		return "Failed to send photo for detection."
	default:
		return err.Error()
	}
}
