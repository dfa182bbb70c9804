package detection

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// Compile-time interface check.
var _ Detector = (*Client)(nil)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000/detect/", 0)

	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:5000/detect", c.endpoint)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestDetect_Success(t *testing.T) {
	frame := []byte("raw-jpeg-bytes")
	annotated := []byte("annotated-jpeg-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Image string `json:"image"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, frame, decoded)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"detections": [
				{"box": [10, 20, 110, 220], "label": "Pothole 0.91", "type": "Pothole", "confidence": 0.91},
				{"box": [0, 0, 5, 5], "label": "Longitudinal Crack 0.4", "type": "Longitudinal", "confidence": 0.4}
			],
			"annotated_image": "` + base64.StdEncoding.EncodeToString(annotated) + `"
		}`))
	}))
	defer server.Close()

	c := New(server.URL, time.Second)
	res, err := c.Detect(context.Background(), frame)
	require.NoError(t, err)

	require.Len(t, res.Detections, 2)
	assert.Equal(t, core.Pothole, res.Detections[0].Type)
	assert.Equal(t, "Pothole 0.91", res.Detections[0].Label)
	assert.InDelta(t, 0.91, res.Detections[0].Confidence, 1e-9)
	assert.Equal(t, [4]int{10, 20, 110, 220}, res.Detections[0].Box)
	assert.Equal(t, core.Longitudinal, res.Detections[1].Type)
	assert.Equal(t, annotated, res.AnnotatedImage)
}

func TestDetect_EmptyDetectionsWithoutImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections": []}`))
	}))
	defer server.Close()

	res, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Nil(t, res.AnnotatedImage)
}

func TestDetect_MissingDetectionsListIsProtocolFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"null body", `null`},
		{"null detections", `{"detections": null}`},
		{"error object", `{"error": "model not loaded"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			res, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrProtocolFailure)
			assert.ErrorIs(t, err, errNoDetections)
			assert.Empty(t, res.Detections)

			var derr *Error
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, http.StatusOK, derr.StatusCode)
		})
	}
}

func TestDetect_DataURLAnnotatedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections": [], "annotated_image": "data:image/jpeg;base64,` +
			base64.StdEncoding.EncodeToString([]byte("img")) + `"}`))
	}))
	defer server.Close()

	res, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), res.AnnotatedImage)
}

func TestDetect_UnknownTypePreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections": [{"type": "Manhole", "box": [1,2,3,4]}]}`))
	}))
	defer server.Close()

	res, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, core.DetectionType("Manhole"), res.Detections[0].Type)
	assert.Empty(t, res.Recognized())
}

func TestDetect_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, time.Second).Detect(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNetworkFailure)
	assert.NotErrorIs(t, err, core.ErrProtocolFailure)
}

func TestDetect_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := New(server.URL, 50*time.Millisecond).Detect(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, core.ErrNetworkFailure)
}

func TestDetect_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL, time.Second).Detect(ctx, []byte("x"))
	assert.ErrorIs(t, err, core.ErrNetworkFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetect_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProtocolFailure)

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusInternalServerError, derr.StatusCode)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDetect_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, core.ErrProtocolFailure)
}

func TestDetect_BadBase64(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detections": [], "annotated_image": "!!!not-base64"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Detect(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, core.ErrProtocolFailure)
}
