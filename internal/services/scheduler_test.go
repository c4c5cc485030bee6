package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepCounter struct {
	AttemptSessionService
	autosaves atomic.Int32
	sweeps    atomic.Int32
}

func (s *sweepCounter) AutoSaveDirty(ctx context.Context) int {
	s.autosaves.Add(1)
	return 0
}

func (s *sweepCounter) SubmitExpired(ctx context.Context) int {
	s.sweeps.Add(1)
	return 0
}

func TestScheduler_RunsBothJobs(t *testing.T) {
	counter := &sweepCounter{}
	scheduler := NewScheduler(counter, slog.New(slog.DiscardHandler))

	require.NoError(t, scheduler.Start(time.Second, time.Second))
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		return counter.autosaves.Load() > 0 && counter.sweeps.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_ZeroIntervalDisablesJob(t *testing.T) {
	counter := &sweepCounter{}
	scheduler := NewScheduler(counter, slog.New(slog.DiscardHandler))

	require.NoError(t, scheduler.Start(0, time.Second))
	assert.Eventually(t, func() bool { return counter.sweeps.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	scheduler.Stop()

	assert.Zero(t, counter.autosaves.Load())
}

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 30s", every(30*time.Second))
	assert.Equal(t, "@every 1m30s", every(90*time.Second))
}
