package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (c *countingRefresher) SyncAll(context.Context) {
	c.calls.Add(1)
}

func TestStart_RefreshesImmediatelyAndOnTicks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	r := &countingRefresher{}
	s := NewScheduler(r, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return r.calls.Load() >= 3
	}, time.Second, time.Millisecond, "expected an immediate refresh plus ticks")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
