package streaming

import (
	"encoding/json"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

// Outbound message types, sent from the pipeline to the display client.
const (
	TypeHello           = "hello"
	TypeFlyTo           = "fly_to"
	TypeAddPhoto        = "add_photo"
	TypeHidePhotoMarker = "hide_photo_marker"
	TypeRemovePhoto     = "remove_photo"
	TypeAddMarker       = "add_marker"
	TypeRemoveMarker    = "remove_marker"
	TypeClearMarkers    = "clear_markers"
	TypeClearPhotos     = "clear_photos"
	TypeOverlay         = "overlay"
	TypeNotice          = "notice"
	TypeResult          = "result"
)

// Inbound command types, sent by the display client.
const (
	CmdCameraStart   = "camera_start"
	CmdCameraStop    = "camera_stop"
	CmdCapturePhoto  = "capture_photo"
	CmdLiveStart     = "live_start"
	CmdLiveStop      = "live_stop"
	CmdVideoSave     = "video_save"
	CmdVideoDiscard  = "video_discard"
	CmdDeletePhoto   = "delete_photo"
	CmdDeleteMarker  = "delete_marker"
	CmdDeleteLast    = "delete_last"
	CmdClearMarkers  = "clear_markers"
	CmdClearPhotos   = "clear_photos"
	CmdPlaceMarker   = "place_marker"
	CmdSearch        = "search"
	CmdStatus        = "status"
	CmdLocationRetry = "location_retry"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"` // correlates a command with its result
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandFunc handles one inbound command envelope.
type CommandFunc func(env Envelope)

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload announces the session to the display client.
type HelloPayload struct {
	SessionID string `json:"sessionId"`
	Version   string `json:"version"`
}

// FlyToPayload recentres the map.
type FlyToPayload struct {
	Location core.LatLng `json:"location"`
	Zoom     int         `json:"zoom"`
}

// PhotoPayload carries a photo record with its image as a data URL.
type PhotoPayload struct {
	ID         string           `json:"id"`
	ImageURL   string           `json:"imageUrl"`
	Location   core.LatLng      `json:"location"`
	Mercator   [2]float64       `json:"mercator"`
	Timestamp  string           `json:"timestamp"`
	ShowMarker bool             `json:"showMarker"`
	Source     core.PhotoSource `json:"source"`
}

// MarkerPayload carries a map marker with its Web-Mercator projection.
type MarkerPayload struct {
	core.MapMarker
	Mercator [2]float64 `json:"mercator"`
}

// IDPayload references a photo or marker by id.
type IDPayload struct {
	ID string `json:"id"`
}

// OverlayPayload carries the live annotation. An empty ImageURL clears it.
type OverlayPayload struct {
	Seq        uint64           `json:"seq"`
	ImageURL   string           `json:"imageUrl,omitempty"`
	Detections []core.Detection `json:"detections,omitempty"`
}

// ResultPayload answers a command envelope.
type ResultPayload struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PlaceMarkerCommand is the payload of place_marker.
type PlaceMarkerCommand struct {
	Location core.LatLng     `json:"location"`
	Type     core.MarkerType `json:"type"`
}

// SearchCommand is the payload of search.
type SearchCommand struct {
	Query string `json:"query"`
}
