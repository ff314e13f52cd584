package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

var (
	// Reservation counters
	HoldsCreated         *telemetry.Counter
	HoldsExpired         *telemetry.Counter
	ReservationsCreated  *telemetry.Counter
	ReservationsConfirmed *telemetry.Counter
	ReservationsCancelled *telemetry.Counter
	ReservationsCompleted *telemetry.Counter
	CapacityRejections   *telemetry.Counter

	// Payment counters
	PaymentsCaptured *telemetry.Counter
	PaymentsRefunded *telemetry.Counter
	PaymentsFailed   *telemetry.Counter

	// Histograms
	HoldToConversion *telemetry.Histogram

	initOnce sync.Once
	initErr  error
)

// Init initializes all reservation metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	HoldsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_holds_created_total",
		Description: "Total number of capacity holds placed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_holds_expired_total",
		Description: "Total number of holds released by expiry",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservations_created_total",
		Description: "Total number of reservations created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservations_confirmed_total",
		Description: "Total number of reservations confirmed by hosts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservations_cancelled_total",
		Description: "Total number of reservations cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsCompleted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservations_completed_total",
		Description: "Total number of reservations completed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CapacityRejections, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_capacity_rejections_total",
		Description: "Total number of bookings rejected for insufficient capacity",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PaymentsCaptured, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "payments_captured_total",
		Description: "Total number of payments captured",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PaymentsRefunded, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "payments_refunded_total",
		Description: "Total number of payments refunded",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PaymentsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "payments_failed_total",
		Description: "Total number of failed payment attempts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldToConversion, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "reservation_hold_to_conversion_seconds",
		Description: "Time from hold creation to conversion",
		Unit:        "s",
	}, []float64{5, 15, 30, 60, 120, 300, 600, 900})
	if err != nil {
		return err
	}

	return nil
}

// RecordHoldCreated records a hold placement
func RecordHoldCreated(ctx context.Context, experienceID string, guestCount int) {
	if HoldsCreated != nil {
		HoldsCreated.Inc(ctx,
			attribute.String("experience_id", experienceID),
			attribute.Int("guest_count", guestCount),
		)
	}
}

// RecordHoldsExpired records a sweep of expired holds
func RecordHoldsExpired(ctx context.Context, count int64) {
	if HoldsExpired != nil && count > 0 {
		HoldsExpired.Add(ctx, count)
	}
}

// RecordReservationCreated records a reservation creation
func RecordReservationCreated(ctx context.Context, experienceID string, guestCount int) {
	if ReservationsCreated != nil {
		ReservationsCreated.Inc(ctx,
			attribute.String("experience_id", experienceID),
			attribute.Int("guest_count", guestCount),
		)
	}
}

// RecordConfirmation records a host confirmation
func RecordConfirmation(ctx context.Context, experienceID string) {
	if ReservationsConfirmed != nil {
		ReservationsConfirmed.Inc(ctx, attribute.String("experience_id", experienceID))
	}
	if PaymentsCaptured != nil {
		PaymentsCaptured.Inc(ctx)
	}
}

// RecordCancellation records a cancellation, with refunded true when the
// cancellation produced a refund
func RecordCancellation(ctx context.Context, experienceID string, refunded bool) {
	if ReservationsCancelled != nil {
		ReservationsCancelled.Inc(ctx,
			attribute.String("experience_id", experienceID),
			attribute.Bool("refunded", refunded),
		)
	}
	if refunded && PaymentsRefunded != nil {
		PaymentsRefunded.Inc(ctx)
	}
}

// RecordCompletion records a host completion
func RecordCompletion(ctx context.Context, experienceID string) {
	if ReservationsCompleted != nil {
		ReservationsCompleted.Inc(ctx, attribute.String("experience_id", experienceID))
	}
}

// RecordCapacityRejection records a booking rejected for capacity
func RecordCapacityRejection(ctx context.Context, timeSlotID string) {
	if CapacityRejections != nil {
		CapacityRejections.Inc(ctx, attribute.String("time_slot_id", timeSlotID))
	}
}

// RecordPaymentFailure records a failed payment attempt
func RecordPaymentFailure(ctx context.Context, code string) {
	if PaymentsFailed != nil {
		PaymentsFailed.Inc(ctx, attribute.String("error_code", code))
	}
}
