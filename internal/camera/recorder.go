package camera

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"sync"
	"time"
)

// Recording is a finished in-memory recording.
type Recording struct {
	Data      []byte
	MIMEType  string
	Frames    int
	StartedAt time.Time
	EndedAt   time.Time
}

// Recorder samples a stream into a Motion-JPEG buffer until stopped.
type Recorder struct {
	stream   Stream
	enc      Encoder
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	buf     bytes.Buffer
	mw      *multipart.Writer
	frames  int
	started time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	result Recording
}

// StartRecording begins sampling stream at fps frames per second.
func StartRecording(ctx context.Context, stream Stream, enc Encoder, fps int, logger *slog.Logger) *Recorder {
	if fps <= 0 {
		fps = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &Recorder{
		stream:   stream,
		enc:      enc,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.mw = multipart.NewWriter(&r.buf)

	go r.loop(ctx)
	return r
}

func (r *Recorder) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.capture(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) capture(ctx context.Context) {
	img, err := r.stream.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Debug("Recorder frame skipped", "error", err)
		}
		return
	}
	data, err := r.enc.Encode(img)
	if err != nil {
		r.logger.Debug("Recorder encode failed", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", r.enc.MIMEType())
	h.Set("Content-Length", strconv.Itoa(len(data)))
	part, err := r.mw.CreatePart(h)
	if err != nil {
		r.logger.Debug("Recorder part failed", "error", err)
		return
	}
	if _, err := part.Write(data); err != nil {
		r.logger.Debug("Recorder write failed", "error", err)
		return
	}
	r.frames++
}

// Frames returns the number of frames recorded so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Stop ends sampling and returns the recording. Later calls return the same result.
func (r *Recorder) Stop() Recording {
	r.once.Do(func() {
		r.cancel()
		<-r.done

		r.mu.Lock()
		defer r.mu.Unlock()
		_ = r.mw.Close()
		r.result = Recording{
			Data:      bytes.Clone(r.buf.Bytes()),
			MIMEType:  "multipart/x-mixed-replace; boundary=" + r.mw.Boundary(),
			Frames:    r.frames,
			StartedAt: r.started,
			EndedAt:   time.Now(),
		}
	})
	return r.result
}
