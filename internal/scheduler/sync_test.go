package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncScheduler_StartStop(t *testing.T) {
	s := NewSyncScheduler("* * * * *", func(ctx context.Context) error { return nil })

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next := s.GetNextRunTime()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.GetNextRunTime())
}

func TestSyncScheduler_EmptyScheduleDisabled(t *testing.T) {
	s := NewSyncScheduler("", func(ctx context.Context) error { return nil })

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestSyncScheduler_InvalidSchedule(t *testing.T) {
	s := NewSyncScheduler("not a schedule", func(ctx context.Context) error { return nil })

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
}

func TestSyncScheduler_RunNow(t *testing.T) {
	var runs atomic.Int32
	s := NewSyncScheduler("* * * * *", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.RunNow(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncScheduler_OverlappingRunsSkipped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	s := NewSyncScheduler("* * * * *", func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})

	s.RunNow(context.Background())
	<-started

	// A second trigger while the first is still running is refused.
	s.runSync(context.Background())
	assert.Equal(t, int32(1), runs.Load())

	close(release)
}

func TestSyncScheduler_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSyncScheduler("* * * * *", func(ctx context.Context) error { return nil })

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return !s.IsRunning()
	}, 2*time.Second, 10*time.Millisecond)
}
