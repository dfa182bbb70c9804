package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxResponseBytes bounds the detector response; annotated frames are a few hundred KB.
const maxResponseBytes = 32 << 20

// Detector submits one encoded frame and returns what was found in it.
type Detector interface {
	Detect(ctx context.Context, frame []byte) (core.DetectionResult, error)
}

// Error is a failed detection round trip. Kind is core.ErrNetworkFailure or
// core.ErrProtocolFailure; StatusCode is set when the detector answered.
type Error struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: status %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

type request struct {
	Image string `json:"image"`
}

// errNoDetections marks a 2xx body without a detections list.
var errNoDetections = errors.New("response has no detections list")

type response struct {
	Detections     *[]core.Detection `json:"detections"`
	AnnotatedImage string            `json:"annotated_image"`
}

// Client talks to the HTTP detection service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a new detection client. A zero timeout means 30s.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Detect posts the frame as base64 JSON. It does not retry; callers decide.
// A missing annotated image is returned as nil so callers can fall back to the raw frame.
func (c *Client) Detect(ctx context.Context, frame []byte) (core.DetectionResult, error) {
	body, err := json.Marshal(request{Image: base64.StdEncoding.EncodeToString(frame)})
	if err != nil {
		return core.DetectionResult{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return core.DetectionResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.DetectionResult{}, &Error{Kind: core.ErrNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.DetectionResult{}, &Error{Kind: core.ErrNetworkFailure, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.DetectionResult{}, &Error{
			Kind:       core.ErrProtocolFailure,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response %q", snippet(raw)),
		}
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return core.DetectionResult{}, &Error{Kind: core.ErrProtocolFailure, StatusCode: resp.StatusCode, Err: err}
	}
	if out.Detections == nil {
		return core.DetectionResult{}, &Error{
			Kind:       core.ErrProtocolFailure,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %q", errNoDetections, snippet(raw)),
		}
	}

	annotated, err := decodeImage(out.AnnotatedImage)
	if err != nil {
		return core.DetectionResult{}, &Error{Kind: core.ErrProtocolFailure, StatusCode: resp.StatusCode, Err: err}
	}

	return core.DetectionResult{
		Detections:     *out.Detections,
		AnnotatedImage: annotated,
	}, nil
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.New("malformed data URL")
		}
		s = s[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("annotated image is not base64: %w", err)
	}
	return img, nil
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
