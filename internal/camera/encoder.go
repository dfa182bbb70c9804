package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Encoder turns a frame into the bytes sent to the detector.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	MIMEType() string
}

// JPEGEncoder encodes frames as baseline JPEG.
type JPEGEncoder struct {
	Quality int // 1-100, 0 means 90
}

// Encode encodes img.
func (e JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode: nil frame")
	}
	q := e.Quality
	if q <= 0 || q > 100 {
		q = 90
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// MIMEType returns image/jpeg.
func (JPEGEncoder) MIMEType() string { return "image/jpeg" }
