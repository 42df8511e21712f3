package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunner(t *testing.T) {
	t.Run("runs once at start and on every tick", func(t *testing.T) {
		var n atomic.Int32
		r := NewRunner("test", 10*time.Millisecond, func(context.Context) error {
			n.Add(1)
			return nil
		}, zaptest.NewLogger(t), nil)

		require.True(t, r.Start(context.Background()))
		assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
		require.True(t, r.Stop())
		assert.False(t, r.Running())

		stopped := n.Load()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, stopped, n.Load())
	})

	t.Run("start and stop are guarded", func(t *testing.T) {
		r := NewRunner("guard", time.Hour, func(context.Context) error { return nil }, zaptest.NewLogger(t), nil)
		assert.False(t, r.Stop())
		assert.True(t, r.Start(context.Background()))
		assert.False(t, r.Start(context.Background()))
		assert.True(t, r.Running())
		assert.True(t, r.Stop())
		assert.True(t, r.Start(context.Background()))
		assert.True(t, r.Stop())
	})

	t.Run("start waits out a stop in progress", func(t *testing.T) {
		entered := make(chan struct{}, 1)
		release := make(chan struct{})
		var loops atomic.Int32
		r := NewRunner("slow", time.Hour, func(context.Context) error {
			loops.Add(1)
			entered <- struct{}{}
			<-release
			return nil
		}, zaptest.NewLogger(t), nil)

		require.True(t, r.Start(context.Background()))
		<-entered

		stopped := make(chan bool)
		go func() { stopped <- r.Stop() }()
		assert.Eventually(t, func() bool { return !r.Running() }, time.Second, time.Millisecond)
		assert.False(t, r.Start(context.Background()), "previous tick still running")

		close(release)
		assert.True(t, <-stopped)
		assert.Equal(t, int32(1), loops.Load())

		require.True(t, r.Start(context.Background()))
		<-entered
		assert.True(t, r.Stop())
	})

	t.Run("status reports the last error", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewRunner("failing", time.Hour, func(context.Context) error { return boom }, zaptest.NewLogger(t), nil)
		err := r.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)

		st := r.Status()
		assert.Equal(t, "failing", st.Name)
		assert.False(t, st.Running)
		assert.Equal(t, "boom", st.LastError)
		assert.NotNil(t, st.LastRunAt)
	})
}
