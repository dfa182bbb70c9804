package worker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/CelestinFernandes/geo-pot/internal/channel"
	"github.com/CelestinFernandes/geo-pot/internal/dispatcher"
	"github.com/CelestinFernandes/geo-pot/internal/sink"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
)

const bridgeQueueSize = 64

var errQueueFull = errors.New("command queue full")

// Bridge feeds command envelopes from a sink into the dispatcher in arrival
// order and replies to every envelope that carries an id.
type Bridge struct {
	d      *dispatcher.Dispatcher
	c      sink.Commander
	logger *slog.Logger

	queue     channel.Channel[streaming.Envelope]
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewBridge subscribes to c and starts routing its commands into d.
func NewBridge(d *dispatcher.Dispatcher, c sink.Commander, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		d:      d,
		c:      c,
		logger: logger,
		queue:  channel.New[streaming.Envelope](bridgeQueueSize),
		done:   make(chan struct{}),
	}
	go b.run()
	c.OnCommand(b.enqueue)
	return b
}

func (b *Bridge) enqueue(env streaming.Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	if !b.queue.TrySend(env) {
		b.logger.Warn("Command queue full, dropping", "type", env.Type, "id", env.ID)
		b.reply(env.ID, nil, errQueueFull)
	}
}

// Pending returns the number of commands waiting to run.
func (b *Bridge) Pending() int {
	return b.queue.Len()
}

func (b *Bridge) run() {
	defer close(b.done)
	for env := range b.queue.Receive() {
		result, err := b.d.Dispatch(dispatcher.Event{
			Command:   env.Type,
			ID:        env.ID,
			Payload:   env.Payload,
			Timestamp: time.Now(),
		})
		if err != nil {
			b.logger.Debug("Command failed", "type", env.Type, "error", err)
		}
		b.reply(env.ID, result, err)
	}
}

func (b *Bridge) reply(id string, result any, err error) {
	if id == "" {
		return
	}
	res := streaming.ResultPayload{OK: err == nil, Result: result}
	if err != nil {
		res.Error = UserMessage(err)
	}
	if rerr := b.c.Reply(id, res); rerr != nil {
		b.logger.Warn("Reply not delivered", "id", id, "error", rerr)
	}
}

// Close stops accepting commands and waits for queued ones to finish.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.queue.Close()
		b.mu.Unlock()
		<-b.done
	})
}
