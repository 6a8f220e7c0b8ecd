package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

type fakeStories struct {
	ports.StoryService
	mu    sync.Mutex
	calls []time.Time
	n     int64
	err   error
}

func (f *fakeStories) ArchiveExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.n, f.err
}

func TestNewStoryArchiver_InvalidSchedule(t *testing.T) {
	_, err := NewStoryArchiver(&fakeStories{}, "every minute please", telemetry.Discard())
	assert.Error(t, err)
}

func TestArchive_UsesClock(t *testing.T) {
	stories := &fakeStories{n: 3}
	a, err := NewStoryArchiver(stories, "", telemetry.Discard())
	require.NoError(t, err)

	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	a.now = func() time.Time { return fixed }
	a.archive()

	require.Len(t, stories.calls, 1)
	assert.Equal(t, fixed.UTC(), stories.calls[0])
	assert.Equal(t, time.UTC, stories.calls[0].Location())
}

func TestArchive_ErrorIsSwallowed(t *testing.T) {
	stories := &fakeStories{err: errors.New("db down")}
	a, err := NewStoryArchiver(stories, DefaultSchedule, telemetry.Discard())
	require.NoError(t, err)

	assert.NotPanics(t, a.archive)
	assert.Len(t, stories.calls, 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewStoryArchiver(&fakeStories{}, "@every 1h", telemetry.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
