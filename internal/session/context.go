package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode is what the pipeline is currently doing.
type Mode string

const (
	ModeIdle   Mode = "idle"
	ModeCamera Mode = "camera"
	ModeLive   Mode = "live"
)

// Context holds the identity and current mode of this run.
type Context struct {
	mu        sync.RWMutex
	id        string
	startedAt time.Time
	mode      Mode
}

// NewContext creates a new Context with a fresh session id
func NewContext() *Context {
	return &Context{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		mode:      ModeIdle,
	}
}

// ID returns the session id
func (c *Context) ID() string {
	return c.id
}

// StartedAt returns when the session began
func (c *Context) StartedAt() time.Time {
	return c.startedAt
}

// Mode returns the current mode
func (c *Context) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetMode sets the current mode
func (c *Context) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
}

// LogAttrs returns the attributes added to every log record.
func (c *Context) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("session", c.id),
		slog.String("mode", string(c.Mode())),
	}
}
