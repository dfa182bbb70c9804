package worker

import (
	"testing"

	"github.com/CelestinFernandes/geo-pot/internal/dispatcher"
	"github.com/CelestinFernandes/geo-pot/internal/sink/memory"
	"github.com/CelestinFernandes/geo-pot/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_RoutesAndReplies(t *testing.T) {
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	defer d.Close()

	var order []string
	d.Register("ping", func(e dispatcher.Event) (any, error) {
		order = append(order, e.ID)
		return "pong", nil
	})

	sk := memory.New()
	b := NewBridge(d, sk, nil)

	require.True(t, sk.Inject(streaming.Envelope{Type: "ping", ID: "1"}))
	require.True(t, sk.Inject(streaming.Envelope{Type: "ping"}))
	require.True(t, sk.Inject(streaming.Envelope{Type: "missing", ID: "3"}))
	b.Close()

	assert.Equal(t, []string{"1", ""}, order)

	replies := sk.Replies()
	require.Len(t, replies, 2)
	assert.Equal(t, "1", replies[0].ID)
	assert.True(t, replies[0].Result.OK)
	assert.Equal(t, "pong", replies[0].Result.Result)

	assert.Equal(t, "3", replies[1].ID)
	assert.False(t, replies[1].Result.OK)
	assert.Contains(t, replies[1].Result.Error, "unknown command")
}

func TestBridge_DropsAfterClose(t *testing.T) {
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	defer d.Close()

	sk := memory.New()
	b := NewBridge(d, sk, nil)
	b.Close()
	b.Close()

	sk.Inject(streaming.Envelope{Type: streaming.CmdStatus, ID: "late"})
	assert.Empty(t, sk.Replies())
}
