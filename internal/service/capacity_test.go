package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
)

func TestCapacityGuardSequentialBookings(t *testing.T) {
	slot := &domain.TimeSlot{
		ID:          "slot-1",
		StartsAt:    time.Now().UTC().Add(48 * time.Hour),
		MaxCapacity: 5,
		Status:      domain.TimeSlotStatusAvailable,
	}

	occupied := 0
	repo := &mockTimeSlotRepo{
		lockForUpdateFn: func(ctx context.Context, id string) (*domain.TimeSlot, error) { return slot, nil },
		occupiedGuestCountFn: func(ctx context.Context, slotID string, statuses []string) (int, error) {
			return occupied, nil
		},
	}
	guard := NewCapacityGuard(repo)

	// Slot of 5: a party of 3 fits, a second party of 3 does not, a party
	// of 2 takes the remainder, then nothing fits.
	steps := []struct {
		guests  int
		wantErr error
	}{
		{3, nil},
		{3, domain.ErrNotEnoughCapacity},
		{2, nil},
		{1, domain.ErrNotEnoughCapacity},
	}

	for _, step := range steps {
		check, err := guard.Check(context.Background(), "slot-1", step.guests, true)
		if step.wantErr != nil {
			assert.ErrorIs(t, err, step.wantErr)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, occupied, check.OccupiedCount)
		occupied += step.guests
	}

	assert.Equal(t, 5, occupied)
	assert.Equal(t, 4, repo.lockCalls)
}

func TestCapacityGuardUnavailableSlot(t *testing.T) {
	slot := &domain.TimeSlot{
		ID:          "slot-1",
		MaxCapacity: 5,
		Status:      domain.TimeSlotStatusUnavailable,
	}
	countCalls := 0
	repo := &mockTimeSlotRepo{
		lockForUpdateFn: func(ctx context.Context, id string) (*domain.TimeSlot, error) { return slot, nil },
		occupiedGuestCountFn: func(ctx context.Context, slotID string, statuses []string) (int, error) {
			countCalls++
			return 0, nil
		},
	}
	guard := NewCapacityGuard(repo)

	_, err := guard.Check(context.Background(), "slot-1", 1, true)
	assert.ErrorIs(t, err, domain.ErrTimeSlotNotAvailable)
	assert.Zero(t, countCalls)
}

func TestCapacityGuardStatusSelection(t *testing.T) {
	slot := &domain.TimeSlot{
		ID:          "slot-1",
		MaxCapacity: 5,
		Status:      domain.TimeSlotStatusAvailable,
	}
	var gotStatuses []string
	repo := &mockTimeSlotRepo{
		lockForUpdateFn: func(ctx context.Context, id string) (*domain.TimeSlot, error) { return slot, nil },
		occupiedGuestCountFn: func(ctx context.Context, slotID string, statuses []string) (int, error) {
			gotStatuses = statuses
			return 0, nil
		},
	}
	guard := NewCapacityGuard(repo)

	_, err := guard.Check(context.Background(), "slot-1", 1, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pending", "confirmed", "held"}, gotStatuses)

	_, err = guard.Check(context.Background(), "slot-1", 1, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pending", "confirmed"}, gotStatuses)
}

func TestCapacityGuardExactFit(t *testing.T) {
	slot := &domain.TimeSlot{
		ID:          "slot-1",
		MaxCapacity: 4,
		Status:      domain.TimeSlotStatusAvailable,
	}
	repo := &mockTimeSlotRepo{
		lockForUpdateFn: func(ctx context.Context, id string) (*domain.TimeSlot, error) { return slot, nil },
		occupiedGuestCountFn: func(ctx context.Context, slotID string, statuses []string) (int, error) {
			return 2, nil
		},
	}
	guard := NewCapacityGuard(repo)

	check, err := guard.Check(context.Background(), "slot-1", 2, true)
	require.NoError(t, err)
	assert.Equal(t, 2, check.OccupiedCount)

	_, err = guard.Check(context.Background(), "slot-1", 3, true)
	assert.ErrorIs(t, err, domain.ErrNotEnoughCapacity)
}
