package worker

import (
	"errors"
	"fmt"

	"github.com/CelestinFernandes/geo-pot/internal/capture"
	"github.com/CelestinFernandes/geo-pot/internal/dispatcher"
	"github.com/CelestinFernandes/geo-pot/internal/live"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
)

// ErrUnknownID is returned when a delete names a photo or marker that does not exist.
var ErrUnknownID = errors.New("unknown id")

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Device lifecycle - sync so start and stop stay ordered
	d.Register(streaming.CmdCameraStart, m.handleCameraStart, dispatcher.Logged())
	d.Register(streaming.CmdCameraStop, m.handleCameraStop, dispatcher.Logged())
	d.Register(streaming.CmdLiveStart, m.handleLiveStart, dispatcher.Logged())
	d.Register(streaming.CmdLiveStop, m.handleLiveStop, dispatcher.Logged())
	d.Register(streaming.CmdLocationRetry, m.handleLocationRetry, dispatcher.Logged())

	// Network round trips - buffered
	d.Register(streaming.CmdCapturePhoto, m.handleCapturePhoto, dispatcher.Buffered(8), dispatcher.Logged())
	d.Register(streaming.CmdSearch, m.handleSearch, dispatcher.Buffered(4), dispatcher.Logged())

	// Recording
	d.Register(streaming.CmdVideoSave, m.handleVideoSave, dispatcher.Logged())
	d.Register(streaming.CmdVideoDiscard, m.handleVideoDiscard, dispatcher.Logged())

	// Gallery edits
	d.Register(streaming.CmdDeletePhoto, m.handleDeletePhoto, dispatcher.Logged())
	d.Register(streaming.CmdDeleteMarker, m.handleDeleteMarker, dispatcher.Logged())
	d.Register(streaming.CmdDeleteLast, m.handleDeleteLast, dispatcher.Logged())
	d.Register(streaming.CmdClearMarkers, m.handleClearMarkers, dispatcher.Logged())
	d.Register(streaming.CmdClearPhotos, m.handleClearPhotos, dispatcher.Logged())
	d.Register(streaming.CmdPlaceMarker, m.handlePlaceMarker, dispatcher.Logged())

	d.Register(streaming.CmdStatus, m.handleStatus)
}

func (m *Manager) handleCameraStart(e dispatcher.Event) (any, error) {
	defer m.syncMode()
	// starting the camera is the user's retry for both permissions
	m.ensureLocation()
	if err := m.deps.Camera.Start(m.ctx); err != nil {
		return m.fail(err)
	}
	return nil, nil
}

func (m *Manager) handleCameraStop(e dispatcher.Event) (any, error) {
	defer m.syncMode()
	if m.deps.Live.Active() {
		if _, err := m.deps.Live.Stop(); err != nil {
			m.deps.Logger.Warn("Live sampling did not stop cleanly", "error", err)
		}
	}
	if err := m.deps.Camera.Stop(); err != nil {
		return nil, fmt.Errorf("camera stop: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleLiveStart(e dispatcher.Event) (any, error) {
	defer m.syncMode()
	if err := m.deps.Live.Start(m.ctx); err != nil {
		return m.fail(err)
	}
	return nil, nil
}

func (m *Manager) handleLiveStop(e dispatcher.Event) (any, error) {
	defer m.syncMode()
	video, err := m.deps.Live.Stop()
	if err != nil {
		return m.fail(err)
	}
	if video.ID != "" {
		m.notify(core.NoticeInfo, fmt.Sprintf("Recording ready (%d frames). Save or discard it.", video.Frames))
	}
	return video, nil
}

func (m *Manager) handleLocationRetry(e dispatcher.Event) (any, error) {
	return m.ensureLocation(), nil
}

func (m *Manager) handleCapturePhoto(e dispatcher.Event) (any, error) {
	photo, err := m.deps.Capture.CapturePhoto(m.ctx)
	if err != nil {
		return m.fail(err)
	}
	return streaming.IDPayload{ID: photo.ID}, nil
}

func (m *Manager) handleSearch(e dispatcher.Event) (any, error) {
	var cmd streaming.SearchCommand
	if err := e.Decode(&cmd); err != nil {
		return nil, err
	}

	place, err := m.deps.Geocoder.Search(m.ctx, cmd.Query)
	if err != nil {
		return m.fail(err)
	}

	if err := m.deps.Sink.FlyTo(place.Location, capture.FlyToZoom); err != nil {
		m.deps.Logger.Warn("Sink fly_to failed", "error", err)
	}
	pin := core.MapMarker{
		ID:        m.deps.IDs.Search(),
		Position:  place.Location,
		Type:      core.MarkerSearch,
		Label:     place.DisplayName,
		CreatedAt: m.now(),
	}
	m.deps.Gallery.PinTransient(pin, m.deps.SearchPinTTL)
	return place, nil
}

func (m *Manager) handleVideoSave(e dispatcher.Event) (any, error) {
	path, err := m.deps.Live.SaveVideoFile(m.deps.VideoDir)
	if err != nil {
		if errors.Is(err, live.ErrNoPendingVideo) {
			m.notify(core.NoticeError, "No recorded video to save.")
			return nil, err
		}
		return m.fail(err)
	}
	m.notify(core.NoticeInfo, "Video saved to "+path)
	return path, nil
}

func (m *Manager) handleVideoDiscard(e dispatcher.Event) (any, error) {
	return m.deps.Live.DiscardVideo(), nil
}

func (m *Manager) handleDeletePhoto(e dispatcher.Event) (any, error) {
	var p streaming.IDPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	if !m.deps.Gallery.DeletePhoto(p.ID) {
		return nil, fmt.Errorf("delete photo %q: %w", p.ID, ErrUnknownID)
	}
	return p, nil
}

func (m *Manager) handleDeleteMarker(e dispatcher.Event) (any, error) {
	var p streaming.IDPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	if !m.deps.Gallery.DeleteMarker(p.ID) {
		return nil, fmt.Errorf("delete marker %q: %w", p.ID, ErrUnknownID)
	}
	return p, nil
}

func (m *Manager) handleDeleteLast(e dispatcher.Event) (any, error) {
	deleted, ok := m.deps.Gallery.DeleteLast()
	if !ok {
		return nil, nil
	}
	return deleted, nil
}

func (m *Manager) handleClearMarkers(e dispatcher.Event) (any, error) {
	return m.deps.Gallery.ClearMarkers(), nil
}

func (m *Manager) handleClearPhotos(e dispatcher.Event) (any, error) {
	return m.deps.Gallery.ClearPhotos(), nil
}

func (m *Manager) handlePlaceMarker(e dispatcher.Event) (any, error) {
	var cmd streaming.PlaceMarkerCommand
	if err := e.Decode(&cmd); err != nil {
		return nil, err
	}
	marker, err := m.deps.Gallery.PlaceMarker(cmd.Location, cmd.Type)
	if err != nil {
		return m.fail(err)
	}
	return marker, nil
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	return m.deps.Status.Status(), nil
}
