package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
)

type fixture struct {
	svc          *ReservationService
	tx           *mockTxManager
	slots        *mockTimeSlotRepo
	reservations *mockReservationRepo
	payments     *mockPaymentRepo
	events       *mockEventRepo
	experiences  *mockExperienceRepo
	gateway      *mockGateway
	publisher    *capturingPublisher

	slot *domain.TimeSlot
	exp  *domain.ExperiencePricing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	slot := &domain.TimeSlot{
		ID:           "slot-1",
		ExperienceID: "exp-1",
		StartsAt:     time.Now().UTC().Add(10 * 24 * time.Hour),
		MaxCapacity:  5,
		Status:       domain.TimeSlotStatusAvailable,
	}
	exp := &domain.ExperiencePricing{
		ExperienceID:  "exp-1",
		HostID:        "host-1",
		Title:         "Lava Tube Hike",
		PricePerGuest: 10000,
		Currency:      "USD",
		Discounts: domain.DiscountRules{
			Group3PlusPercent: 10,
			EarlyBirdPercent:  20,
			EarlyBirdMinDays:  7,
		},
	}

	f := &fixture{
		tx:        &mockTxManager{},
		publisher: &capturingPublisher{},
		slot:      slot,
		exp:       exp,
	}

	f.slots = &mockTimeSlotRepo{
		getByIDFn:       func(ctx context.Context, id string) (*domain.TimeSlot, error) { return slot, nil },
		lockForUpdateFn: func(ctx context.Context, id string) (*domain.TimeSlot, error) { return slot, nil },
		occupiedGuestCountFn: func(ctx context.Context, slotID string, statuses []string) (int, error) {
			return 0, nil
		},
	}
	f.reservations = &mockReservationRepo{}
	f.payments = &mockPaymentRepo{}
	f.events = &mockEventRepo{}
	f.experiences = &mockExperienceRepo{
		getPricingFn: func(ctx context.Context, experienceID string) (*domain.ExperiencePricing, error) {
			if experienceID != exp.ExperienceID {
				return nil, domain.ErrExperienceNotFound
			}
			return exp, nil
		},
		isOwnedByFn: func(ctx context.Context, experienceID, hostID string) (bool, error) {
			return experienceID == exp.ExperienceID && hostID == exp.HostID, nil
		},
	}
	f.gateway = &mockGateway{
		createIntentFn: func(ctx context.Context, p *gateway.CreateIntentParams) (*gateway.Intent, error) {
			status := gateway.IntentStatusRequiresPaymentMethod
			if p.PaymentMethodID != "" {
				status = gateway.IntentStatusRequiresCapture
			}
			return &gateway.Intent{
				ID:           "pi_test_1",
				ClientSecret: "pi_test_1_secret",
				Status:       status,
				Amount:       p.Amount,
				Currency:     p.Currency,
			}, nil
		},
	}

	f.svc = NewReservationService(&ReservationServiceConfig{
		TxManager:            f.tx,
		Reservations:         f.reservations,
		TimeSlots:            f.slots,
		Payments:             f.payments,
		Events:               f.events,
		Experiences:          f.experiences,
		Gateway:              f.gateway,
		Publisher:            f.publisher,
		HoldTTL:              15 * time.Minute,
		CompletionEarlyGrace: time.Hour,
	})
	return f
}

func holdInput() *CreateHoldInput {
	return &CreateHoldInput{
		UserID:         "user-1",
		ExperienceID:   "exp-1",
		TimeSlotID:     "slot-1",
		GuestCount:     2,
		Guest:          GuestDetails{Name: "Ana Keahi", Email: "ana@example.com"},
		IdempotencyKey: "key-1",
	}
}

func TestCreateHold(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CreateHold(context.Background(), holdInput())
	require.NoError(t, err)

	res := result.Reservation
	assert.Equal(t, domain.ReservationStatusHeld, res.Status)
	require.NotNil(t, res.HoldExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), *res.HoldExpiresAt, 5*time.Second)
	assert.Equal(t, int64(20000), res.OriginalPrice)
	// 10 days out with a 7-day early-bird window, party of 2: only the
	// early-bird 20% applies
	assert.Equal(t, int64(16000), res.TotalPrice)
	assert.NotEmpty(t, res.Reference)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 15, result.HoldDurationMinutes)
	assert.Equal(t, 1, f.tx.begun)
	assert.Equal(t, []domain.EventType{domain.EventHoldCreated}, f.events.types())
	assert.Len(t, f.publisher.published, 1)
}

func TestCreateHoldIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	existing := &domain.Reservation{ID: "res-prior", Status: domain.ReservationStatusHeld}
	f.reservations.getByIdempotencyKeyFn = func(ctx context.Context, userID, key string) (*domain.Reservation, error) {
		return existing, nil
	}

	result, err := f.svc.CreateHold(context.Background(), holdInput())
	require.NoError(t, err)

	assert.Same(t, existing, result.Reservation)
	assert.True(t, result.Duplicate)
	assert.Zero(t, f.tx.begun)
	assert.Empty(t, f.reservations.created)
}

func TestCreateHoldNotEnoughCapacity(t *testing.T) {
	f := newFixture(t)
	f.slots.occupiedGuestCountFn = func(ctx context.Context, slotID string, statuses []string) (int, error) {
		return 4, nil
	}

	_, err := f.svc.CreateHold(context.Background(), holdInput())
	assert.ErrorIs(t, err, domain.ErrNotEnoughCapacity)
	assert.Empty(t, f.reservations.created)
}

func TestCreateHoldSlotUnavailable(t *testing.T) {
	f := newFixture(t)
	f.slot.Status = domain.TimeSlotStatusUnavailable

	_, err := f.svc.CreateHold(context.Background(), holdInput())
	assert.ErrorIs(t, err, domain.ErrTimeSlotNotAvailable)
}

func TestCreateHoldValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		mutate  func(in *CreateHoldInput)
		wantErr error
	}{
		{"missing user", func(in *CreateHoldInput) { in.UserID = "" }, domain.ErrInvalidUserID},
		{"missing experience", func(in *CreateHoldInput) { in.ExperienceID = "" }, domain.ErrInvalidExperienceID},
		{"missing slot", func(in *CreateHoldInput) { in.TimeSlotID = "" }, domain.ErrInvalidTimeSlotID},
		{"zero guests", func(in *CreateHoldInput) { in.GuestCount = 0 }, domain.ErrInvalidGuestCount},
		{"negative guests", func(in *CreateHoldInput) { in.GuestCount = -1 }, domain.ErrInvalidGuestCount},
		{"missing idempotency key", func(in *CreateHoldInput) { in.IdempotencyKey = "" }, domain.ErrInvalidIdempotencyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := holdInput()
			tt.mutate(in)
			_, err := f.svc.CreateHold(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateReservationWithSavedCard(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CreateReservation(context.Background(), &CreateReservationInput{
		UserID:          "user-1",
		ExperienceID:    "exp-1",
		TimeSlotID:      "slot-1",
		GuestCount:      4,
		Guest:           GuestDetails{Name: "Ana Keahi", Email: "ana@example.com"},
		IdempotencyKey:  "key-2",
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)

	res := result.Reservation
	assert.Equal(t, domain.ReservationStatusPending, res.Status)
	assert.Nil(t, res.HoldExpiresAt)
	assert.Equal(t, "pi_test_1", res.PaymentIntentID)
	assert.Equal(t, domain.PaymentStateAuthorized, res.PaymentStatus)
	// 4 guests: 10% group + 20% early-bird on 40000
	assert.Equal(t, int64(28000), res.TotalPrice)
	assert.Equal(t, "group_3_plus,early_bird", res.DiscountType)
	assert.Equal(t, "pi_test_1_secret", result.ClientSecret)
	assert.False(t, result.RequiresAction)

	require.Len(t, f.payments.created, 1)
	assert.Equal(t, domain.PaymentStatusAuthorized, f.payments.created[0].Status)
	assert.Equal(t, res.ID+":intent", f.payments.created[0].IdempotencyKey)

	assert.Equal(t, []domain.EventType{domain.EventPaymentAuthorized, domain.EventReservationCreated}, f.events.types())
}

func TestCreateReservationNewCardReturnsClientSecret(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CreateReservation(context.Background(), &CreateReservationInput{
		UserID:         "user-1",
		ExperienceID:   "exp-1",
		TimeSlotID:     "slot-1",
		GuestCount:     2,
		Guest:          GuestDetails{Name: "Ana Keahi", Email: "ana@example.com"},
		IdempotencyKey: "key-2b",
	})
	require.NoError(t, err)

	// No saved card: the guest confirms client-side with the secret
	assert.Equal(t, "pi_test_1_secret", result.ClientSecret)
	assert.Equal(t, domain.PaymentStatePending, result.Reservation.PaymentStatus)
	assert.Equal(t, []domain.EventType{domain.EventReservationCreated}, f.events.types())
}

func TestCreateReservationRequiresAction(t *testing.T) {
	f := newFixture(t)
	f.gateway.createIntentFn = func(ctx context.Context, p *gateway.CreateIntentParams) (*gateway.Intent, error) {
		return &gateway.Intent{
			ID:           "pi_test_1",
			ClientSecret: "pi_test_1_secret",
			Status:       gateway.IntentStatusRequiresAction,
			Amount:       p.Amount,
			Currency:     p.Currency,
		}, nil
	}

	result, err := f.svc.CreateReservation(context.Background(), &CreateReservationInput{
		UserID:          "user-1",
		ExperienceID:    "exp-1",
		TimeSlotID:      "slot-1",
		GuestCount:      2,
		Guest:           GuestDetails{Name: "Ana Keahi", Email: "ana@example.com"},
		IdempotencyKey:  "key-2c",
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)

	assert.True(t, result.RequiresAction)
	assert.Equal(t, "pi_test_1_secret", result.ClientSecret)
}

func TestCreateReservationIntentFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.gateway.createIntentFn = func(ctx context.Context, p *gateway.CreateIntentParams) (*gateway.Intent, error) {
		return nil, domain.PaymentFailure("CARD_DECLINED", errors.New("card declined"))
	}

	_, err := f.svc.CreateReservation(context.Background(), &CreateReservationInput{
		UserID:          "user-1",
		ExperienceID:    "exp-1",
		TimeSlotID:      "slot-1",
		GuestCount:      2,
		IdempotencyKey:  "key-3",
		PaymentMethodID: "pm_1",
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindPayment, domain.KindOf(err))
	// The transaction callback returned an error, so nothing was committed
	assert.Empty(t, f.payments.created)
	assert.Empty(t, f.events.appended)
}

func activeHold(expiry time.Time) *domain.Reservation {
	return &domain.Reservation{
		ID:            "res-1",
		UserID:        "user-1",
		ExperienceID:  "exp-1",
		TimeSlotID:    "slot-1",
		GuestCount:    2,
		TotalPrice:    16000,
		Currency:      "USD",
		Status:        domain.ReservationStatusHeld,
		HoldExpiresAt: &expiry,
	}
}

func TestConvertHold(t *testing.T) {
	f := newFixture(t)
	hold := activeHold(time.Now().UTC().Add(10 * time.Minute))
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) {
		return hold, nil
	}

	result, err := f.svc.ConvertHold(context.Background(), &ConvertHoldInput{
		ReservationID:   "res-1",
		UserID:          "user-1",
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)

	res := result.Reservation
	assert.Equal(t, domain.ReservationStatusPending, res.Status)
	assert.Nil(t, res.HoldExpiresAt)
	assert.Equal(t, "pi_test_1", res.PaymentIntentID)
	assert.Equal(t, "pi_test_1_secret", result.ClientSecret)
	assert.Equal(t, []domain.EventType{domain.EventPaymentAuthorized, domain.EventHoldConverted}, f.events.types())
}

func TestConvertHoldExpired(t *testing.T) {
	f := newFixture(t)
	hold := activeHold(time.Now().UTC().Add(-time.Minute))
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) {
		return hold, nil
	}

	_, err := f.svc.ConvertHold(context.Background(), &ConvertHoldInput{
		ReservationID: "res-1",
		UserID:        "user-1",
	})

	assert.ErrorIs(t, err, domain.ErrHoldExpired)
	// The stale hold was released on discovery
	require.Len(t, f.reservations.updated, 1)
	assert.Equal(t, domain.ReservationStatusCancelled, f.reservations.updated[0].Status)
	assert.Equal(t, []domain.EventType{domain.EventHoldExpired}, f.events.types())
}

func TestConvertHoldWrongStatus(t *testing.T) {
	f := newFixture(t)
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) {
		return &domain.Reservation{ID: "res-1", UserID: "user-1", Status: domain.ReservationStatusPending}, nil
	}

	_, err := f.svc.ConvertHold(context.Background(), &ConvertHoldInput{
		ReservationID: "res-1",
		UserID:        "user-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidHoldStatus)
}

func TestConvertHoldNotOwner(t *testing.T) {
	f := newFixture(t)
	hold := activeHold(time.Now().UTC().Add(10 * time.Minute))
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) {
		return hold, nil
	}

	_, err := f.svc.ConvertHold(context.Background(), &ConvertHoldInput{
		ReservationID: "res-1",
		UserID:        "someone-else",
	})
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func pendingReservation() *domain.Reservation {
	return &domain.Reservation{
		ID:              "res-1",
		UserID:          "user-1",
		ExperienceID:    "exp-1",
		TimeSlotID:      "slot-1",
		GuestCount:      2,
		TotalPrice:      16000,
		Currency:        "USD",
		Status:          domain.ReservationStatusPending,
		PaymentIntentID: "pi_test_1",
		PaymentStatus:   domain.PaymentStateAuthorized,
	}
}

func TestConfirmReservation(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	payment := domain.NewPayment(res.ID, res.PaymentIntentID, res.TotalPrice, res.Currency, res.ID+":intent")
	payment.MarkAuthorized()

	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }
	f.payments.getByIntentFn = func(ctx context.Context, intentID string) (*domain.Payment, error) { return payment, nil }
	f.gateway.getIntentFn = func(ctx context.Context, intentID string) (*gateway.Intent, error) {
		return &gateway.Intent{ID: intentID, Status: gateway.IntentStatusRequiresCapture, Amount: res.TotalPrice}, nil
	}
	f.gateway.captureIntentFn = func(ctx context.Context, intentID, idempotencyKey string) (*gateway.Intent, error) {
		assert.Equal(t, "res-1:capture", idempotencyKey)
		return &gateway.Intent{ID: intentID, Status: gateway.IntentStatusSucceeded, Amount: res.TotalPrice, LatestChargeID: "ch_1"}, nil
	}

	got, err := f.svc.ConfirmReservation(context.Background(), "res-1", "host-1", "")
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationStatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
	assert.Equal(t, domain.PaymentStateCaptured, got.PaymentStatus)
	assert.Equal(t, 1, f.gateway.captureCalls)
	assert.Equal(t, domain.PaymentStatusCaptured, payment.Status)
	assert.Equal(t, "ch_1", payment.ChargeID)
	assert.Equal(t, []domain.EventType{domain.EventReservationConfirmed, domain.EventPaymentSucceeded}, f.events.types())
}

func TestConfirmReservationNotAuthorized(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	payment := domain.NewPayment(res.ID, res.PaymentIntentID, res.TotalPrice, res.Currency, "k")

	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }
	f.payments.getByIntentFn = func(ctx context.Context, intentID string) (*domain.Payment, error) { return payment, nil }
	f.gateway.getIntentFn = func(ctx context.Context, intentID string) (*gateway.Intent, error) {
		return &gateway.Intent{ID: intentID, Status: gateway.IntentStatusRequiresAction}, nil
	}

	_, err := f.svc.ConfirmReservation(context.Background(), "res-1", "host-1", "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotAuthorized)
	assert.Zero(t, f.gateway.captureCalls)
}

func TestConfirmReservationIntentMismatch(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }

	_, err := f.svc.ConfirmReservation(context.Background(), "res-1", "host-1", "pi_other")
	assert.ErrorIs(t, err, domain.ErrPaymentIntentMismatch)
	assert.Zero(t, f.gateway.captureCalls)
}

func TestConfirmReservationForbidden(t *testing.T) {
	f := newFixture(t)
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) {
		return pendingReservation(), nil
	}

	_, err := f.svc.ConfirmReservation(context.Background(), "res-1", "other-host", "")
	assert.ErrorIs(t, err, domain.ErrForbiddenUpdate)
}

func TestConfirmReservationWrongStatus(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusHeld
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }

	_, err := f.svc.ConfirmReservation(context.Background(), "res-1", "host-1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestCancelHeldReservation(t *testing.T) {
	f := newFixture(t)
	hold := activeHold(time.Now().UTC().Add(10 * time.Minute))
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return hold, nil }

	got, err := f.svc.CancelReservation(context.Background(), &CancelInput{
		ReservationID: "res-1",
		ActorID:       "user-1",
		Reason:        "changed plans",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationStatusCancelled, got.Status)
	assert.Equal(t, "changed plans", got.CancelReason)
	assert.Zero(t, f.gateway.cancelCalls)
	assert.Zero(t, f.gateway.refundCalls)
}

func TestCancelPendingVoidsAuthorization(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	payment := domain.NewPayment(res.ID, res.PaymentIntentID, res.TotalPrice, res.Currency, "k")
	payment.MarkAuthorized()

	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }
	f.payments.getByIntentFn = func(ctx context.Context, intentID string) (*domain.Payment, error) { return payment, nil }
	f.gateway.cancelIntentFn = func(ctx context.Context, intentID string) (*gateway.Intent, error) {
		return &gateway.Intent{ID: intentID, Status: gateway.IntentStatusCanceled}, nil
	}

	got, err := f.svc.CancelReservation(context.Background(), &CancelInput{
		ReservationID: "res-1",
		ActorID:       "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationStatusCancelled, got.Status)
	assert.Equal(t, 1, f.gateway.cancelCalls)
	assert.Equal(t, domain.PaymentStatusCanceled, payment.Status)
	assert.Zero(t, f.gateway.refundCalls)
}

func TestCancelConfirmedRefunds(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusConfirmed
	payment := domain.NewPayment(res.ID, res.PaymentIntentID, res.TotalPrice, res.Currency, "k")
	payment.MarkCaptured(res.TotalPrice, "ch_1")

	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }
	f.payments.getCapturedFn = func(ctx context.Context, reservationID string) (*domain.Payment, error) { return payment, nil }
	f.gateway.createRefundFn = func(ctx context.Context, p *gateway.RefundParams) (*gateway.Refund, error) {
		assert.Equal(t, "res-1:refund", p.IdempotencyKey)
		assert.Equal(t, res.TotalPrice, p.Amount)
		return &gateway.Refund{ID: "re_1", Amount: p.Amount, Status: "succeeded"}, nil
	}

	got, err := f.svc.CancelReservation(context.Background(), &CancelInput{
		ReservationID: "res-1",
		ActorID:       "user-1",
		Reason:        "weather",
		Refund:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationStatusRefunded, got.Status)
	require.NotNil(t, got.RefundAmount)
	assert.Equal(t, res.TotalPrice, *got.RefundAmount)
	assert.Equal(t, "re_1", got.RefundID)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
}

func TestCancelConfirmedWithoutRefund(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusConfirmed
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }

	got, err := f.svc.CancelReservation(context.Background(), &CancelInput{
		ReservationID: "res-1",
		ActorID:       "user-1",
		Reason:        "no refund policy",
	})
	require.NoError(t, err)

	// The capture stands: cancelled, not refunded
	assert.Equal(t, domain.ReservationStatusCancelled, got.Status)
	assert.Nil(t, got.RefundAmount)
	assert.Zero(t, f.gateway.refundCalls)
}

func TestCancelTerminalReservation(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusCompleted
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }

	_, err := f.svc.CancelReservation(context.Background(), &CancelInput{
		ReservationID: "res-1",
		ActorID:       "user-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestCompleteReservation(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusConfirmed
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }

	tests := []struct {
		name     string
		startsAt time.Time
		wantErr  error
	}{
		{"already ran", time.Now().UTC().Add(-2 * time.Hour), nil},
		{"thirty minutes before start", time.Now().UTC().Add(30 * time.Minute), nil},
		{"two hours before start", time.Now().UTC().Add(2 * time.Hour), domain.ErrExperienceNotStarted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res.Status = domain.ReservationStatusConfirmed
			res.CompletedAt = nil
			f.slot.StartsAt = tt.startsAt

			got, err := f.svc.CompleteReservation(context.Background(), "res-1", "host-1", nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.ReservationStatusCompleted, got.Status)
			assert.NotNil(t, got.CompletedAt)
		})
	}
}

func TestCompleteReservationRecordsAttendance(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusConfirmed
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }
	f.slot.StartsAt = time.Now().UTC().Add(-2 * time.Hour)

	_, err := f.svc.CompleteReservation(context.Background(), "res-1", "host-1", &CompletionData{
		GuestsAttended: 2,
		HostNotes:      "great group",
	})
	require.NoError(t, err)

	require.Len(t, f.events.appended, 1)
	evt := f.events.appended[0]
	assert.Equal(t, domain.EventReservationCompleted, evt.Type)
	assert.Equal(t, 2, evt.Payload["guests_attended"])
	assert.Equal(t, false, evt.Payload["no_show"])
	assert.Equal(t, "great group", evt.Payload["host_notes"])
	assert.Equal(t, "host-1", evt.Actor)
}

func TestCompleteReservationRecordsIncident(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusConfirmed
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }
	f.slot.StartsAt = time.Now().UTC().Add(-2 * time.Hour)

	_, err := f.svc.CompleteReservation(context.Background(), "res-1", "host-1", &CompletionData{
		GuestsAttended: 1,
		Incident:       "guest twisted an ankle on the trail",
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{domain.EventReservationCompleted, domain.EventIncidentReported}, f.events.types())
	incident := f.events.appended[1]
	assert.Equal(t, "guest twisted an ankle on the trail", incident.Payload["description"])
	assert.Len(t, f.publisher.published, 2)
}

func TestCompleteReservationForbidden(t *testing.T) {
	f := newFixture(t)
	res := pendingReservation()
	res.Status = domain.ReservationStatusConfirmed
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) { return res, nil }

	_, err := f.svc.CompleteReservation(context.Background(), "res-1", "other-host", nil)
	assert.ErrorIs(t, err, domain.ErrForbiddenComplete)
}

func TestExpireHolds(t *testing.T) {
	f := newFixture(t)
	stale := activeHold(time.Now().UTC().Add(-time.Minute))
	converted := &domain.Reservation{
		ID:     "res-2",
		UserID: "user-2",
		Status: domain.ReservationStatusPending,
	}

	f.reservations.listExpiredHoldsFn = func(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
		return []*domain.Reservation{stale, converted}, nil
	}
	f.reservations.getByIDFn = func(ctx context.Context, id string) (*domain.Reservation, error) {
		if id == stale.ID {
			return stale, nil
		}
		return converted, nil
	}

	released, err := f.svc.ExpireHolds(context.Background(), 100)
	require.NoError(t, err)

	// Conversion won the race on res-2; only the stale hold counts as
	// released
	assert.Equal(t, 1, released)
	assert.Equal(t, domain.ReservationStatusCancelled, stale.Status)
	assert.Equal(t, domain.ReservationStatusPending, converted.Status)
	assert.Equal(t, []domain.EventType{domain.EventHoldExpired}, f.events.types())
}

func TestGetHostReservations(t *testing.T) {
	f := newFixture(t)
	f.reservations.listForHostFn = func(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error) {
		assert.Equal(t, "host-1", hostID)
		return []*domain.HostReservation{
			{Reservation: domain.Reservation{ID: "res-1"}, ExperienceTitle: "Lava Tube Hike"},
		}, 37, nil
	}

	list, total, err := f.svc.GetHostReservations(context.Background(), "host-1", repository.HostListFilter{
		ExperienceID: "exp-1",
	})
	require.NoError(t, err)

	assert.Len(t, list, 1)
	assert.Equal(t, 37, total)
}

func TestGetHostReservationsUnownedExperienceFilter(t *testing.T) {
	f := newFixture(t)
	f.reservations.listForHostFn = func(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error) {
		t.Fatal("listing must not run for an unowned experience filter")
		return nil, 0, nil
	}

	_, _, err := f.svc.GetHostReservations(context.Background(), "other-host", repository.HostListFilter{
		ExperienceID: "exp-1",
	})
	assert.ErrorIs(t, err, domain.ErrForbiddenUpdate)
}
