package websocket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/geo"
	"github.com/CelestinFernandes/geo-pot/internal/util"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
)

// Config holds WebSocket sink configuration.
type Config struct {
	URL       string
	Secret    string
	SessionID string
	Version   string
}

// Backend streams gallery, marker and overlay updates to a display client
// over WebSocket and receives its commands on the same connection.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket sink.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the display server, announces the session and waits for
// the server ack.
func (b *Backend) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeHello, "", streaming.HelloPayload{
		SessionID: b.cfg.SessionID,
		Version:   b.cfg.Version,
	})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedHello = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeHello, ackTimeout)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType, id string, payload any) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
	}
	env := streaming.Envelope{Type: msgType, ID: id, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, "", payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

func (b *Backend) FlyTo(loc core.LatLng, zoom int) error {
	return b.sendEnvelope(streaming.TypeFlyTo, streaming.FlyToPayload{Location: loc, Zoom: zoom})
}

func (b *Backend) AddPhoto(p core.PhotoRecord) error {
	return b.sendEnvelope(streaming.TypeAddPhoto, streaming.PhotoPayload{
		ID:         p.ID,
		ImageURL:   util.DataURL("", p.Image),
		Location:   p.Location,
		Mercator:   geo.Mercator(p.Location),
		Timestamp:  p.Timestamp.Format(time.RFC3339),
		ShowMarker: p.ShowMarker,
		Source:     p.Source,
	})
}

func (b *Backend) HidePhotoMarker(photoID string) error {
	return b.sendEnvelope(streaming.TypeHidePhotoMarker, streaming.IDPayload{ID: photoID})
}

func (b *Backend) RemovePhoto(id string) error {
	return b.sendEnvelope(streaming.TypeRemovePhoto, streaming.IDPayload{ID: id})
}

func (b *Backend) ClearPhotos() error {
	return b.sendEnvelope(streaming.TypeClearPhotos, nil)
}

func (b *Backend) AddDetectionMarker(m core.MapMarker) error {
	return b.sendEnvelope(streaming.TypeAddMarker, streaming.MarkerPayload{
		MapMarker: m,
		Mercator:  geo.Mercator(m.Position),
	})
}

func (b *Backend) RemoveMarker(id string) error {
	return b.sendEnvelope(streaming.TypeRemoveMarker, streaming.IDPayload{ID: id})
}

func (b *Backend) ClearMarkers() error {
	return b.sendEnvelope(streaming.TypeClearMarkers, nil)
}

func (b *Backend) UpdateOverlay(o core.Overlay) error {
	return b.sendEnvelope(streaming.TypeOverlay, streaming.OverlayPayload{
		Seq:        o.Seq,
		ImageURL:   util.DataURL("", o.AnnotatedImage),
		Detections: o.Detections,
	})
}

func (b *Backend) Notify(n core.Notice) error {
	return b.sendEnvelope(streaming.TypeNotice, n)
}

// OnCommand registers the handler for command envelopes from the display.
// The handler runs on the read goroutine and must not block.
func (b *Backend) OnCommand(fn streaming.CommandFunc) {
	b.conn.mu.Lock()
	defer b.conn.mu.Unlock()
	b.conn.onCommand = fn
}

// Reply answers the command envelope with the given id.
func (b *Backend) Reply(id string, res streaming.ResultPayload) error {
	data, err := marshalEnvelope(streaming.TypeResult, id, res)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}
