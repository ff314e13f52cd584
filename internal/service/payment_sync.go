package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// IntentUpdate is a processor-side status change delivered by webhook
type IntentUpdate struct {
	IntentID     string
	Status       gateway.IntentStatus
	ChargeID     string
	ErrorCode    string
	ErrorMessage string
}

// ApplyIntentUpdate folds a webhook notification into the payment record.
// Webhooks only move the payment forward; reservation status transitions
// stay with their operations (confirmation happens when the host confirms,
// not when the capture webhook lands). Finalized payments ignore late or
// duplicate deliveries.
func (s *ReservationService) ApplyIntentUpdate(ctx context.Context, upd *IntentUpdate) error {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.apply_intent_update")
	defer span.End()

	span.SetAttributes(
		attribute.String("intent_id", upd.IntentID),
		attribute.String("intent_status", string(upd.Status)),
	)

	var event *domain.ReservationEvent

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.payments.GetByIntentID(ctx, upd.IntentID)
		if err != nil {
			return err
		}
		if payment.IsFinal() {
			span.AddEvent("payment already final, ignoring")
			return nil
		}

		res, err := s.reservations.GetByPaymentIntentID(ctx, upd.IntentID)
		if err != nil {
			return err
		}

		var eventType domain.EventType
		payload := map[string]any{"payment_intent_id": upd.IntentID}

		switch upd.Status {
		case gateway.IntentStatusRequiresCapture:
			payment.MarkAuthorized()
			res.PaymentStatus = domain.PaymentStateAuthorized
			eventType = domain.EventPaymentAuthorized

		case gateway.IntentStatusRequiresAction:
			payment.MarkRequiresAction()
			res.PaymentStatus = domain.PaymentStateRequiresAction
			return s.savePaymentState(ctx, payment, res)

		case gateway.IntentStatusSucceeded:
			payment.MarkCaptured(payment.Amount, upd.ChargeID)
			res.PaymentStatus = domain.PaymentStateCaptured
			eventType = domain.EventPaymentSucceeded
			payload["charge_id"] = upd.ChargeID

		case gateway.IntentStatusCanceled:
			payment.MarkCanceled()
			res.PaymentStatus = domain.PaymentStateFailed
			return s.savePaymentState(ctx, payment, res)

		default:
			if upd.ErrorCode != "" || upd.ErrorMessage != "" {
				payment.MarkFailed(upd.ErrorCode, upd.ErrorMessage)
				res.PaymentStatus = domain.PaymentStateFailed
				eventType = domain.EventPaymentFailed
				payload["error_code"] = upd.ErrorCode
			} else {
				span.AddEvent("no-op intent status")
				return nil
			}
		}

		if err := s.savePaymentState(ctx, payment, res); err != nil {
			return err
		}

		event = domain.NewReservationEvent(res.ID, eventType, payload, domain.ActorSystem, domain.SourceWebhook)
		return s.events.Append(ctx, event)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if event != nil {
		s.publisher.Publish(ctx, event)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *ReservationService) savePaymentState(ctx context.Context, payment *domain.Payment, res *domain.Reservation) error {
	if err := s.payments.Update(ctx, payment); err != nil {
		return err
	}
	res.UpdatedAt = payment.UpdatedAt
	return s.reservations.Update(ctx, res)
}
