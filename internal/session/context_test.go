package session

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	c := NewContext()

	_, err := uuid.Parse(c.ID())
	require.NoError(t, err)
	assert.Equal(t, ModeIdle, c.Mode())
	assert.False(t, c.StartedAt().IsZero())
}

func TestNewContext_UniqueIDs(t *testing.T) {
	assert.NotEqual(t, NewContext().ID(), NewContext().ID())
}

func TestSetMode(t *testing.T) {
	c := NewContext()

	c.SetMode(ModeLive)
	assert.Equal(t, ModeLive, c.Mode())
}

func TestLogAttrs(t *testing.T) {
	c := NewContext()
	c.SetMode(ModeCamera)

	attrs := c.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "session", attrs[0].Key)
	assert.Equal(t, c.ID(), attrs[0].Value.String())
	assert.Equal(t, "mode", attrs[1].Key)
	assert.Equal(t, slog.KindString, attrs[1].Value.Kind())
	assert.Equal(t, "camera", attrs[1].Value.String())
}

func TestContext_ConcurrentAccess(t *testing.T) {
	c := NewContext()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetMode(ModeLive)
		}()
		go func() {
			defer wg.Done()
			_ = c.LogAttrs()
		}()
	}
	wg.Wait()
}
