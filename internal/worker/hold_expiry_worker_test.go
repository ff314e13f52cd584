package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReleaser struct {
	mu      sync.Mutex
	calls   int
	perCall []int
	err     error
}

func (m *mockReleaser) ExpireHolds(ctx context.Context, batchSize int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	idx := m.calls
	m.calls++
	if idx < len(m.perCall) {
		return m.perCall[idx], nil
	}
	return 0, nil
}

func (m *mockReleaser) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestHoldExpiryWorkerSweeps(t *testing.T) {
	releaser := &mockReleaser{perCall: []int{3, 1}}
	w := NewHoldExpiryWorker(releaser, &HoldExpiryWorkerConfig{
		SweepInterval: 10 * time.Millisecond,
		BatchSize:     50,
	})

	require.NoError(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return releaser.callCount() >= 2
	}, time.Second, 5*time.Millisecond)

	w.Stop()

	stats := w.Stats()
	assert.False(t, stats.IsRunning)
	assert.GreaterOrEqual(t, stats.TotalReleased, int64(4))
	assert.False(t, stats.LastSweepTime.IsZero())
}

func TestHoldExpiryWorkerStartTwice(t *testing.T) {
	w := NewHoldExpiryWorker(&mockReleaser{}, nil)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}

func TestHoldExpiryWorkerSurvivesErrors(t *testing.T) {
	releaser := &mockReleaser{err: errors.New("db down")}
	w := NewHoldExpiryWorker(releaser, &HoldExpiryWorkerConfig{
		SweepInterval: 5 * time.Millisecond,
		BatchSize:     10,
	})

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	stats := w.Stats()
	assert.Zero(t, stats.TotalReleased)
}

func TestHoldExpiryWorkerStopIdempotent(t *testing.T) {
	w := NewHoldExpiryWorker(&mockReleaser{}, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
