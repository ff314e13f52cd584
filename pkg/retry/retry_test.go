package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetrierSucceedsFirstAttempt(t *testing.T) {
	r := New(&Config{MaxRetries: 3, InitialInterval: time.Millisecond})

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, result.Err)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestRetrierRetriesUntilSuccess(t *testing.T) {
	r := New(&Config{MaxRetries: 5, InitialInterval: time.Millisecond, JitterFactor: 0})

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, result.Err)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := New(&Config{MaxRetries: 5, InitialInterval: time.Millisecond})

	permanent := errors.New("card declined")
	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(permanent)
	})

	assert.Equal(t, permanent, result.Err)
	assert.Equal(t, 1, calls)
}

func TestRetrierExhaustsRetries(t *testing.T) {
	r := New(&Config{MaxRetries: 2, InitialInterval: time.Millisecond, JitterFactor: 0})

	transient := errors.New("timeout")
	result := r.Do(context.Background(), func(ctx context.Context) error {
		return transient
	})

	assert.Equal(t, ErrMaxRetriesExceeded, result.Err)
	assert.Equal(t, transient, result.LastError)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetrierHonorsContextCancellation(t *testing.T) {
	r := New(&Config{MaxRetries: 10, InitialInterval: 50 * time.Millisecond, JitterFactor: 0})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	})

	assert.Equal(t, ErrContextCanceled, result.Err)
}
