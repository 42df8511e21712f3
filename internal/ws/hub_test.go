package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	t.Run("broadcast reaches every socket of the user only", func(t *testing.T) {
		h := NewHub()
		a1, a2, b := NewClient(1), NewClient(1), NewClient(2)
		h.Register(a1)
		h.Register(a2)
		h.Register(b)
		assert.Equal(t, 3, h.ClientCount())

		assert.Equal(t, 2, h.BroadcastToUser(1, map[string]string{"type": "notification"}))
		for _, c := range []*Client{a1, a2} {
			select {
			case msg := <-c.Messages():
				assert.JSONEq(t, `{"type":"notification"}`, string(msg))
			default:
				t.Fatal("expected a queued message")
			}
		}
		assert.Len(t, b.Messages(), 0)
	})

	t.Run("closed clients are unregistered", func(t *testing.T) {
		h := NewHub()
		c := NewClient(5)
		h.Register(c)
		require.True(t, h.Connected(5))
		c.Close()
		c.Close()
		assert.False(t, h.Connected(5))
		assert.Equal(t, 0, h.BroadcastToUser(5, "x"))
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		h := NewHub()
		c := NewClient(9)
		h.Register(c)
		for i := 0; i < sendBuffer; i++ {
			require.Equal(t, 1, h.BroadcastToUser(9, i))
		}
		assert.Equal(t, 0, h.BroadcastToUser(9, "overflow"))
	})
}
