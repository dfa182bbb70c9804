//go:build !gocv

package camera

import "errors"

// ErrNoOpenCV is returned for OpenCV devices in builds without the gocv tag.
var ErrNoOpenCV = errors.New("camera: built without gocv support")

// NewCaptureDevice reports ErrNoOpenCV; build with -tags gocv for local cameras.
func NewCaptureDevice(id int) (Device, error) {
	return nil, ErrNoOpenCV
}
