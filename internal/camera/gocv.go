//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// CaptureDevice reads frames from a local video device through OpenCV.
type CaptureDevice struct {
	ID int
}

// NewCaptureDevice returns a device for the OpenCV camera index id.
func NewCaptureDevice(id int) (Device, error) {
	return CaptureDevice{ID: id}, nil
}

func (d CaptureDevice) Open(ctx context.Context) (Stream, error) {
	vc, err := gocv.VideoCaptureDevice(d.ID)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", d.ID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open capture device %d: not opened", d.ID)
	}
	return &captureStream{vc: vc, mat: gocv.NewMat()}, nil
}

type captureStream struct {
	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (s *captureStream) Snapshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil, fmt.Errorf("capture device closed")
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("capture device returned no frame")
	}
	return s.mat.ToImage()
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil
	}
	s.mat.Close()
	err := s.vc.Close()
	s.vc = nil
	return err
}
