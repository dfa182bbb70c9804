package camera

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// StillDevice serves the same image on every snapshot.
type StillDevice struct {
	Image image.Image
}

// StillFile loads a StillDevice from an image file.
func StillFile(path string) (StillDevice, error) {
	img, err := decodeFile(path)
	if err != nil {
		return StillDevice{}, err
	}
	return StillDevice{Image: img}, nil
}

func (d StillDevice) Open(ctx context.Context) (Stream, error) {
	return &stillStream{img: d.Image}, nil
}

type stillStream struct {
	img    image.Image
	closed atomic.Bool
}

func (s *stillStream) Snapshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, core.ErrCameraNotReady
	}
	return s.img, nil
}

func (s *stillStream) Close() error {
	s.closed.Store(true)
	return nil
}
