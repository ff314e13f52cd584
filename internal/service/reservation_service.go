package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/metrics"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/pricing"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/logger"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// ReservationService implements the reservation lifecycle. Every mutating
// operation runs inside one database transaction: capacity check, state
// change, payment row and event append commit together or not at all.
type ReservationService struct {
	tx           repository.TxManager
	reservations repository.ReservationRepository
	timeSlots    repository.TimeSlotRepository
	payments     repository.PaymentRepository
	events       repository.EventRepository
	experiences  repository.ExperienceRepository
	gateway      gateway.PaymentGateway
	publisher    EventPublisher
	capacity     *CapacityGuard

	holdTTL              time.Duration
	completionEarlyGrace time.Duration
}

// ReservationServiceConfig wires the service dependencies
type ReservationServiceConfig struct {
	TxManager    repository.TxManager
	Reservations repository.ReservationRepository
	TimeSlots    repository.TimeSlotRepository
	Payments     repository.PaymentRepository
	Events       repository.EventRepository
	Experiences  repository.ExperienceRepository
	Gateway      gateway.PaymentGateway
	Publisher    EventPublisher

	HoldTTL              time.Duration
	CompletionEarlyGrace time.Duration
}

// NewReservationService creates a ReservationService
func NewReservationService(cfg *ReservationServiceConfig) *ReservationService {
	holdTTL := cfg.HoldTTL
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	grace := cfg.CompletionEarlyGrace
	if grace <= 0 {
		grace = time.Hour
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}

	return &ReservationService{
		tx:                   cfg.TxManager,
		reservations:         cfg.Reservations,
		timeSlots:            cfg.TimeSlots,
		payments:             cfg.Payments,
		events:               cfg.Events,
		experiences:          cfg.Experiences,
		gateway:              cfg.Gateway,
		publisher:            publisher,
		capacity:             NewCapacityGuard(cfg.TimeSlots),
		holdTTL:              holdTTL,
		completionEarlyGrace: grace,
	}
}

// GuestDetails is the contact snapshot stored on the reservation
type GuestDetails struct {
	Name  string
	Email string
	Phone string
}

// CreateHoldInput are the inputs for CreateHold
type CreateHoldInput struct {
	UserID         string
	ExperienceID   string
	TimeSlotID     string
	GuestCount     int
	Guest          GuestDetails
	IdempotencyKey string
}

// CreateReservationInput are the inputs for CreateReservation and
// ConvertHold
type CreateReservationInput struct {
	UserID         string
	ExperienceID   string
	TimeSlotID     string
	GuestCount     int
	Guest          GuestDetails
	IdempotencyKey string

	// Saved-card flow; leave empty for client-side confirmation
	CustomerID      string
	PaymentMethodID string
}

// ConvertHoldInput are the inputs for ConvertHold
type ConvertHoldInput struct {
	ReservationID   string
	UserID          string
	CustomerID      string
	PaymentMethodID string
}

// CancelInput are the inputs for CancelReservation
type CancelInput struct {
	ReservationID string
	ActorID       string
	// ActorIsHost switches the ownership check from guest to host
	ActorIsHost bool
	Reason      string
	// Refund requests a full refund when cancelling a confirmed
	// reservation. Without it the capture is kept and the reservation
	// ends in cancelled instead of refunded.
	Refund bool
}

// CompletionData is the host's record of how the experience ran
type CompletionData struct {
	GuestsAttended int
	NoShow         bool
	HostNotes      string
	Incident       string
}

// BookingResult is the outcome of the operations that create or convert a
// reservation. ClientSecret is set when the client must confirm or
// authenticate the payment intent on its side; Duplicate marks an
// idempotent replay of an earlier request.
type BookingResult struct {
	Reservation         *domain.Reservation
	ClientSecret        string
	RequiresAction      bool
	Duplicate           bool
	HoldDurationMinutes int
}

// CreateHold places a temporary capacity hold without payment. The hold
// occupies capacity until it is converted, cancelled or expires.
func (s *ReservationService) CreateHold(ctx context.Context, in *CreateHoldInput) (*BookingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.create_hold")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", in.UserID),
		attribute.String("time_slot_id", in.TimeSlotID),
		attribute.Int("guest_count", in.GuestCount),
	)

	if err := validateCreate(in.UserID, in.ExperienceID, in.TimeSlotID, in.GuestCount, in.IdempotencyKey); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Replay: the same key returns the reservation created the first time
	if existing, err := s.reservations.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		span.AddEvent("idempotent replay")
		return &BookingResult{Reservation: existing, Duplicate: true}, nil
	}

	exp, err := s.experiences.GetPricing(ctx, in.ExperienceID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var reservation *domain.Reservation
	var event *domain.ReservationEvent

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		check, err := s.capacity.Check(ctx, in.TimeSlotID, in.GuestCount, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		quote := pricing.Calculate(pricing.Input{
			PricePerGuest: exp.PricePerGuest,
			GuestCount:    in.GuestCount,
			Discounts:     exp.Discounts,
			SlotStartsAt:  check.Slot.StartsAt,
			Now:           now,
		})

		expiresAt := now.Add(s.holdTTL)
		reservation = s.newReservation(in.UserID, exp, check.Slot, in.GuestCount, in.Guest, in.IdempotencyKey, quote, now)
		reservation.Status = domain.ReservationStatusHeld
		reservation.HoldExpiresAt = &expiresAt

		if err := s.reservations.Create(ctx, reservation); err != nil {
			return err
		}

		event = domain.NewReservationEvent(reservation.ID, domain.EventHoldCreated, map[string]any{
			"guest_count":     in.GuestCount,
			"total_price":     quote.TotalPrice,
			"hold_expires_at": expiresAt,
		}, in.UserID, domain.SourceAPI)
		return s.events.Append(ctx, event)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotEnoughCapacity) {
			metrics.RecordCapacityRejection(ctx, in.TimeSlotID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordHoldCreated(ctx, in.ExperienceID, in.GuestCount)
	s.publisher.Publish(ctx, event)
	span.SetAttributes(attribute.String("reservation_id", reservation.ID))
	span.SetStatus(codes.Ok, "")
	return &BookingResult{
		Reservation:         reservation,
		HoldDurationMinutes: int(s.holdTTL / time.Minute),
	}, nil
}

// CreateReservation books directly: capacity is claimed and a manual-capture
// payment intent is created in the same transaction, so an intent failure
// releases the claimed capacity.
func (s *ReservationService) CreateReservation(ctx context.Context, in *CreateReservationInput) (*BookingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", in.UserID),
		attribute.String("time_slot_id", in.TimeSlotID),
		attribute.Int("guest_count", in.GuestCount),
	)

	if err := validateCreate(in.UserID, in.ExperienceID, in.TimeSlotID, in.GuestCount, in.IdempotencyKey); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if existing, err := s.reservations.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		span.AddEvent("idempotent replay")
		return &BookingResult{Reservation: existing, Duplicate: true}, nil
	}

	exp, err := s.experiences.GetPricing(ctx, in.ExperienceID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var reservation *domain.Reservation
	var intent *gateway.Intent
	var committed []*domain.ReservationEvent

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		check, err := s.capacity.Check(ctx, in.TimeSlotID, in.GuestCount, true)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		quote := pricing.Calculate(pricing.Input{
			PricePerGuest: exp.PricePerGuest,
			GuestCount:    in.GuestCount,
			Discounts:     exp.Discounts,
			SlotStartsAt:  check.Slot.StartsAt,
			Now:           now,
		})

		reservation = s.newReservation(in.UserID, exp, check.Slot, in.GuestCount, in.Guest, in.IdempotencyKey, quote, now)
		reservation.Status = domain.ReservationStatusPending

		if err := s.reservations.Create(ctx, reservation); err != nil {
			return err
		}

		attached, events, err := s.attachPaymentIntent(ctx, reservation, exp, in.CustomerID, in.PaymentMethodID, in.UserID, now)
		if err != nil {
			return err
		}
		intent = attached

		created := domain.NewReservationEvent(reservation.ID, domain.EventReservationCreated, map[string]any{
			"guest_count": in.GuestCount,
			"total_price": quote.TotalPrice,
			"reference":   reservation.Reference,
		}, in.UserID, domain.SourceAPI)
		if err := s.events.Append(ctx, created); err != nil {
			return err
		}

		committed = append([]*domain.ReservationEvent{created}, events...)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotEnoughCapacity) {
			metrics.RecordCapacityRejection(ctx, in.TimeSlotID)
		}
		if domain.KindOf(err) == domain.KindPayment {
			metrics.RecordPaymentFailure(ctx, domain.CodeOf(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordReservationCreated(ctx, in.ExperienceID, in.GuestCount)
	for _, e := range committed {
		s.publisher.Publish(ctx, e)
	}
	span.SetAttributes(attribute.String("reservation_id", reservation.ID))
	span.SetStatus(codes.Ok, "")
	return &BookingResult{
		Reservation:    reservation,
		ClientSecret:   intent.ClientSecret,
		RequiresAction: intent.Status == gateway.IntentStatusRequiresAction,
	}, nil
}

// ConvertHold turns an active hold into a pending reservation by attaching
// payment. Expired holds are released lazily here: conversion of a stale
// hold cancels it and reports HOLD_EXPIRED.
func (s *ReservationService) ConvertHold(ctx context.Context, in *ConvertHoldInput) (*BookingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.convert_hold")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", in.ReservationID))

	if in.ReservationID == "" {
		return nil, domain.ErrInvalidReservationID
	}
	if in.UserID == "" {
		return nil, domain.ErrInvalidUserID
	}

	var reservation *domain.Reservation
	var intent *gateway.Intent
	var committed []*domain.ReservationEvent

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := s.reservations.GetByID(ctx, in.ReservationID)
		if err != nil {
			return err
		}
		if !res.BelongsToUser(in.UserID) {
			return domain.ErrReservationNotFound
		}

		now := time.Now().UTC()

		if res.HoldHasExpired(now) {
			if err := s.releaseExpiredHold(ctx, res, now); err != nil {
				return err
			}
			return domain.ErrHoldExpired
		}
		if !res.IsActiveHold(now) {
			return domain.ErrInvalidHoldStatus
		}

		exp, err := s.experiences.GetPricing(ctx, res.ExperienceID)
		if err != nil {
			return err
		}

		res.MarkConverted("", domain.PaymentStatePending, now)

		attached, events, err := s.attachPaymentIntent(ctx, res, exp, in.CustomerID, in.PaymentMethodID, in.UserID, now)
		if err != nil {
			return err
		}
		intent = attached

		if err := s.reservations.Update(ctx, res); err != nil {
			return err
		}

		converted := domain.NewReservationEvent(res.ID, domain.EventHoldConverted, map[string]any{
			"payment_intent_id": res.PaymentIntentID,
		}, in.UserID, domain.SourceAPI)
		if err := s.events.Append(ctx, converted); err != nil {
			return err
		}

		reservation = res
		committed = append([]*domain.ReservationEvent{converted}, events...)
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindPayment {
			metrics.RecordPaymentFailure(ctx, domain.CodeOf(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if metrics.HoldToConversion != nil {
		metrics.HoldToConversion.Record(ctx, time.Since(reservation.CreatedAt).Seconds())
	}
	for _, e := range committed {
		s.publisher.Publish(ctx, e)
	}
	span.SetStatus(codes.Ok, "")
	return &BookingResult{
		Reservation:    reservation,
		ClientSecret:   intent.ClientSecret,
		RequiresAction: intent.Status == gateway.IntentStatusRequiresAction,
	}, nil
}

// ConfirmReservation captures the authorized payment and moves the
// reservation to confirmed. Host-only. A non-empty paymentIntentID pins the
// intent being captured and must match the one on the reservation.
func (s *ReservationService) ConfirmReservation(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.confirm")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("host_id", hostID),
	)

	var reservation *domain.Reservation
	var committed []*domain.ReservationEvent

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := s.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}

		owned, err := s.experiences.IsOwnedBy(ctx, res.ExperienceID, hostID)
		if err != nil {
			return err
		}
		if !owned {
			return domain.ErrForbiddenUpdate
		}

		if !res.CanTransitionTo(domain.ReservationStatusConfirmed) {
			return domain.ErrInvalidStatusTransition
		}
		if res.PaymentIntentID == "" {
			return domain.ErrPaymentNotAuthorized
		}
		if paymentIntentID != "" && paymentIntentID != res.PaymentIntentID {
			return domain.ErrPaymentIntentMismatch
		}

		payment, err := s.payments.GetByIntentID(ctx, res.PaymentIntentID)
		if err != nil {
			return err
		}

		// The processor is the source of truth for authorization; a
		// webhook may not have arrived yet
		intent, err := s.gateway.GetIntent(ctx, res.PaymentIntentID)
		if err != nil {
			return err
		}
		if !intent.Status.Authorized() {
			return domain.ErrPaymentNotAuthorized
		}

		captured, err := s.gateway.CaptureIntent(ctx, res.PaymentIntentID, res.ID+":capture")
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		payment.MarkCaptured(captured.Amount, captured.LatestChargeID)
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}

		res.MarkConfirmed(now)
		if err := s.reservations.Update(ctx, res); err != nil {
			return err
		}

		confirmedEvt := domain.NewReservationEvent(res.ID, domain.EventReservationConfirmed, map[string]any{
			"captured_amount": captured.Amount,
		}, hostID, domain.SourceAPI)
		if err := s.events.Append(ctx, confirmedEvt); err != nil {
			return err
		}
		succeededEvt := domain.NewReservationEvent(res.ID, domain.EventPaymentSucceeded, map[string]any{
			"payment_intent_id": res.PaymentIntentID,
			"charge_id":         captured.LatestChargeID,
		}, domain.ActorSystem, domain.SourceAPI)
		if err := s.events.Append(ctx, succeededEvt); err != nil {
			return err
		}

		reservation = res
		committed = []*domain.ReservationEvent{confirmedEvt, succeededEvt}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindPayment {
			metrics.RecordPaymentFailure(ctx, domain.CodeOf(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordConfirmation(ctx, reservation.ExperienceID)
	for _, e := range committed {
		s.publisher.Publish(ctx, e)
	}
	span.SetStatus(codes.Ok, "")
	return reservation, nil
}

// CancelReservation cancels from any non-terminal state. Holds release
// silently, pending reservations void their authorization, confirmed ones
// are refunded in full and end in refunded.
func (s *ReservationService) CancelReservation(ctx context.Context, in *CancelInput) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", in.ReservationID),
		attribute.Bool("actor_is_host", in.ActorIsHost),
	)

	var reservation *domain.Reservation
	var event *domain.ReservationEvent

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := s.reservations.GetByID(ctx, in.ReservationID)
		if err != nil {
			return err
		}

		if in.ActorIsHost {
			owned, err := s.experiences.IsOwnedBy(ctx, res.ExperienceID, in.ActorID)
			if err != nil {
				return err
			}
			if !owned {
				return domain.ErrForbiddenUpdate
			}
		} else if !res.BelongsToUser(in.ActorID) {
			return domain.ErrReservationNotFound
		}

		if !res.CanTransitionTo(domain.ReservationStatusCancelled) {
			return domain.ErrInvalidStatusTransition
		}

		now := time.Now().UTC()
		payload := map[string]any{
			"reason":          in.Reason,
			"previous_status": res.Status.String(),
		}

		switch res.Status {
		case domain.ReservationStatusHeld:
			res.MarkCancelled(in.Reason, nil, "", now)

		case domain.ReservationStatusPending:
			// Void the uncaptured authorization so the guest's funds
			// release immediately
			if res.PaymentIntentID != "" {
				if _, err := s.gateway.CancelIntent(ctx, res.PaymentIntentID); err != nil {
					return err
				}
				payment, err := s.payments.GetByIntentID(ctx, res.PaymentIntentID)
				if err == nil {
					payment.MarkCanceled()
					if err := s.payments.Update(ctx, payment); err != nil {
						return err
					}
				}
			}
			res.MarkCancelled(in.Reason, nil, "", now)

		case domain.ReservationStatusConfirmed:
			// The capture stands unless the caller asked for a refund
			if !in.Refund {
				res.MarkCancelled(in.Reason, nil, "", now)
				break
			}
			payment, err := s.payments.GetCapturedByReservationID(ctx, res.ID)
			if err != nil {
				return err
			}
			refund, err := s.gateway.CreateRefund(ctx, &gateway.RefundParams{
				IntentID:       payment.IntentID,
				Amount:         payment.CapturedAmount,
				IdempotencyKey: res.ID + ":refund",
				Reason:         "requested_by_customer",
			})
			if err != nil {
				return err
			}
			payment.MarkRefunded(refund.Amount, refund.ID)
			if err := s.payments.Update(ctx, payment); err != nil {
				return err
			}
			amount := refund.Amount
			res.MarkCancelled(in.Reason, &amount, refund.ID, now)
			payload["refund_amount"] = refund.Amount
			payload["refund_id"] = refund.ID
		}

		if err := s.reservations.Update(ctx, res); err != nil {
			return err
		}

		event = domain.NewReservationEvent(res.ID, domain.EventReservationCancelled, payload, in.ActorID, domain.SourceAPI)
		if err := s.events.Append(ctx, event); err != nil {
			return err
		}

		reservation = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordCancellation(ctx, reservation.ExperienceID, reservation.Status == domain.ReservationStatusRefunded)
	s.publisher.Publish(ctx, event)
	span.SetStatus(codes.Ok, "")
	return reservation, nil
}

// CompleteReservation marks a confirmed reservation completed after the
// experience ran, recording attendance and host notes on the event log. An
// incident description produces a separate incident_reported event.
// Host-only; permitted from one hour before the slot start.
func (s *ReservationService) CompleteReservation(ctx context.Context, reservationID, hostID string, data *CompletionData) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("host_id", hostID),
	)

	if data == nil {
		data = &CompletionData{}
	}

	var reservation *domain.Reservation
	var committed []*domain.ReservationEvent

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res, err := s.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}

		owned, err := s.experiences.IsOwnedBy(ctx, res.ExperienceID, hostID)
		if err != nil {
			return err
		}
		if !owned {
			return domain.ErrForbiddenComplete
		}

		if !res.CanTransitionTo(domain.ReservationStatusCompleted) {
			return domain.ErrInvalidStatusTransition
		}

		slot, err := s.timeSlots.GetByID(ctx, res.TimeSlotID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if now.Before(slot.StartsAt.Add(-s.completionEarlyGrace)) {
			return domain.ErrExperienceNotStarted
		}

		res.MarkCompleted(now)
		if err := s.reservations.Update(ctx, res); err != nil {
			return err
		}

		payload := map[string]any{
			"guests_attended": data.GuestsAttended,
			"no_show":         data.NoShow,
		}
		if data.HostNotes != "" {
			payload["host_notes"] = data.HostNotes
		}
		completed := domain.NewReservationEvent(res.ID, domain.EventReservationCompleted, payload, hostID, domain.SourceAPI)
		if err := s.events.Append(ctx, completed); err != nil {
			return err
		}
		committed = []*domain.ReservationEvent{completed}

		if data.Incident != "" {
			incident := domain.NewReservationEvent(res.ID, domain.EventIncidentReported, map[string]any{
				"description": data.Incident,
			}, hostID, domain.SourceAPI)
			if err := s.events.Append(ctx, incident); err != nil {
				return err
			}
			committed = append(committed, incident)
		}

		reservation = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordCompletion(ctx, reservation.ExperienceID)
	for _, e := range committed {
		s.publisher.Publish(ctx, e)
	}
	span.SetStatus(codes.Ok, "")
	return reservation, nil
}

// GetReservation returns a reservation visible to the caller: its guest, or
// the host of its experience.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, callerID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get")
	defer span.End()

	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !res.BelongsToUser(callerID) {
		owned, err := s.experiences.IsOwnedBy(ctx, res.ExperienceID, callerID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, domain.ErrReservationNotFound
		}
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// GetReservationEvents returns the lifecycle log, with the same visibility
// rule as GetReservation.
func (s *ReservationService) GetReservationEvents(ctx context.Context, reservationID, callerID string) ([]*domain.ReservationEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get_events")
	defer span.End()

	if _, err := s.GetReservation(ctx, reservationID, callerID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	events, err := s.events.ListByReservationID(ctx, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return events, nil
}

// GetHostReservations lists reservations across all experiences of a host,
// returning the page of rows and the total match count. Filtering by a
// specific experience requires owning it.
func (s *ReservationService) GetHostReservations(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.list_for_host")
	defer span.End()

	span.SetAttributes(attribute.String("host_id", hostID))

	if hostID == "" {
		return nil, 0, domain.ErrInvalidUserID
	}

	if filter.ExperienceID != "" {
		owned, err := s.experiences.IsOwnedBy(ctx, filter.ExperienceID, hostID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, 0, err
		}
		if !owned {
			span.SetStatus(codes.Error, "experience not owned")
			return nil, 0, domain.ErrForbiddenUpdate
		}
	}

	list, total, err := s.reservations.ListForHost(ctx, hostID, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	span.SetAttributes(attribute.Int("count", len(list)), attribute.Int("total", total))
	span.SetStatus(codes.Ok, "")
	return list, total, nil
}

// ExpireHolds releases holds whose expiry has passed. Each hold is released
// in its own transaction so one failure never blocks the rest of the batch.
func (s *ReservationService) ExpireHolds(ctx context.Context, batchSize int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.expire_holds")
	defer span.End()

	now := time.Now().UTC()
	expired, err := s.reservations.ListExpiredHolds(ctx, now, batchSize)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	released := 0
	for _, hold := range expired {
		didRelease := false
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			// Re-read inside the transaction; conversion may have won the
			// race since the listing
			res, err := s.reservations.GetByID(ctx, hold.ID)
			if err != nil {
				return err
			}
			if !res.HoldHasExpired(now) {
				return nil
			}
			if err := s.releaseExpiredHold(ctx, res, now); err != nil {
				return err
			}
			didRelease = true
			return nil
		})
		if err != nil {
			logger.WithContext(ctx).Error("failed to release expired hold",
				zap.String("reservation_id", hold.ID),
				zap.Error(err))
			continue
		}
		if didRelease {
			released++
		}
	}

	metrics.RecordHoldsExpired(ctx, int64(released))
	span.SetAttributes(attribute.Int("released", released))
	span.SetStatus(codes.Ok, "")
	return released, nil
}

// releaseExpiredHold cancels a stale hold and logs the expiry event. Must
// run inside a transaction.
func (s *ReservationService) releaseExpiredHold(ctx context.Context, res *domain.Reservation, now time.Time) error {
	res.MarkCancelled("hold expired", nil, "", now)
	if err := s.reservations.Update(ctx, res); err != nil {
		return err
	}

	event := domain.NewReservationEvent(res.ID, domain.EventHoldExpired, nil, domain.ActorSystem, domain.SourceSystem)
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}

	s.publisher.Publish(ctx, event)
	return nil
}

// attachPaymentIntent creates the processor intent and payment row for a
// pending reservation, returning the intent so callers can hand its client
// secret to the guest. Runs inside the caller's transaction: an intent
// failure rolls back the reservation, releasing its capacity.
func (s *ReservationService) attachPaymentIntent(ctx context.Context, res *domain.Reservation, exp *domain.ExperiencePricing, customerID, paymentMethodID, actor string, now time.Time) (*gateway.Intent, []*domain.ReservationEvent, error) {
	intent, err := s.gateway.CreateIntent(ctx, &gateway.CreateIntentParams{
		Amount:          res.TotalPrice,
		Currency:        strings.ToLower(res.Currency),
		IdempotencyKey:  res.ID + ":intent",
		CustomerID:      customerID,
		PaymentMethodID: paymentMethodID,
		OffSession:      paymentMethodID != "",
		Description:     exp.Title + " (" + res.Reference + ")",
		Metadata: map[string]string{
			"reservation_id": res.ID,
			"reference":      res.Reference,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	state, status := paymentStateFromIntent(intent.Status)
	res.PaymentIntentID = intent.ID
	res.PaymentStatus = state
	res.UpdatedAt = now

	payment := domain.NewPayment(res.ID, intent.ID, res.TotalPrice, res.Currency, res.ID+":intent")
	payment.Status = status
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, nil, err
	}

	var events []*domain.ReservationEvent
	if state == domain.PaymentStateAuthorized {
		evt := domain.NewReservationEvent(res.ID, domain.EventPaymentAuthorized, map[string]any{
			"payment_intent_id": intent.ID,
			"amount":            intent.Amount,
		}, domain.ActorSystem, domain.SourceAPI)
		if err := s.events.Append(ctx, evt); err != nil {
			return nil, nil, err
		}
		events = append(events, evt)
	}

	return intent, events, nil
}

func (s *ReservationService) newReservation(userID string, exp *domain.ExperiencePricing, slot *domain.TimeSlot, guestCount int, guest GuestDetails, idempotencyKey string, quote pricing.Quote, now time.Time) *domain.Reservation {
	return &domain.Reservation{
		ID:              uuid.New().String(),
		UserID:          userID,
		ExperienceID:    exp.ExperienceID,
		TimeSlotID:      slot.ID,
		GuestCount:      guestCount,
		OriginalPrice:   quote.OriginalPrice,
		DiscountApplied: quote.DiscountApplied,
		DiscountType:    quote.DiscountType,
		TotalPrice:      quote.TotalPrice,
		Currency:        exp.Currency,
		Reference:       generateReference(),
		GuestName:       guest.Name,
		GuestEmail:      guest.Email,
		GuestPhone:      guest.Phone,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func validateCreate(userID, experienceID, timeSlotID string, guestCount int, idempotencyKey string) error {
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	if experienceID == "" {
		return domain.ErrInvalidExperienceID
	}
	if timeSlotID == "" {
		return domain.ErrInvalidTimeSlotID
	}
	if guestCount <= 0 {
		return domain.ErrInvalidGuestCount
	}
	if idempotencyKey == "" {
		return domain.ErrInvalidIdempotencyKey
	}
	return nil
}

// generateReference creates the guest-facing booking code, e.g. EXP-3F9A2C41
func generateReference() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a uuid fragment rather than panic
		return "EXP-" + strings.ToUpper(uuid.New().String()[:8])
	}
	return "EXP-" + strings.ToUpper(hex.EncodeToString(b))
}

// paymentStateFromIntent maps processor intent status to the reservation's
// payment vocabulary.
func paymentStateFromIntent(status gateway.IntentStatus) (domain.PaymentState, domain.PaymentStatus) {
	switch status {
	case gateway.IntentStatusRequiresCapture:
		return domain.PaymentStateAuthorized, domain.PaymentStatusAuthorized
	case gateway.IntentStatusRequiresAction:
		return domain.PaymentStateRequiresAction, domain.PaymentStatusRequiresAction
	case gateway.IntentStatusSucceeded:
		return domain.PaymentStateCaptured, domain.PaymentStatusCaptured
	case gateway.IntentStatusCanceled:
		return domain.PaymentStateFailed, domain.PaymentStatusCanceled
	default:
		return domain.PaymentStatePending, domain.PaymentStatusPending
	}
}
