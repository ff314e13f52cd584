package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/dto"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/service"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/middleware"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/response"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// ReservationLifecycle is the service surface the HTTP handlers depend on
type ReservationLifecycle interface {
	CreateHold(ctx context.Context, in *service.CreateHoldInput) (*service.BookingResult, error)
	CreateReservation(ctx context.Context, in *service.CreateReservationInput) (*service.BookingResult, error)
	ConvertHold(ctx context.Context, in *service.ConvertHoldInput) (*service.BookingResult, error)
	ConfirmReservation(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, in *service.CancelInput) (*domain.Reservation, error)
	CompleteReservation(ctx context.Context, reservationID, hostID string, data *service.CompletionData) (*domain.Reservation, error)
	GetReservation(ctx context.Context, reservationID, callerID string) (*domain.Reservation, error)
	GetReservationEvents(ctx context.Context, reservationID, callerID string) ([]*domain.ReservationEvent, error)
	GetHostReservations(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error)
	ApplyIntentUpdate(ctx context.Context, upd *service.IntentUpdate) error
}

// ReservationHandler handles guest-facing reservation HTTP requests
type ReservationHandler struct {
	reservations ReservationLifecycle
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservations ReservationLifecycle) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// CreateHold handles POST /holds
func (h *ReservationHandler) CreateHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.create_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	key, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		span.SetStatus(codes.Error, "idempotency key required")
		response.BadRequest(c, "X-Idempotency-Key header is required")
		return
	}

	var req dto.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("time_slot_id", req.TimeSlotID),
		attribute.Int("guest_count", req.GuestCount),
	)

	result, err := h.reservations.CreateHold(ctx, &service.CreateHoldInput{
		UserID:       userID,
		ExperienceID: req.ExperienceID,
		TimeSlotID:   req.TimeSlotID,
		GuestCount:   req.GuestCount,
		Guest: service.GuestDetails{
			Name:  req.Guest.Name,
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
		},
		IdempotencyKey: key,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reservation_id", result.Reservation.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.FromBookingResult(result))
}

// CreateReservation handles POST /reservations
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	key, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		span.SetStatus(codes.Error, "idempotency key required")
		response.BadRequest(c, "X-Idempotency-Key header is required")
		return
	}

	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("time_slot_id", req.TimeSlotID),
		attribute.Int("guest_count", req.GuestCount),
	)

	result, err := h.reservations.CreateReservation(ctx, &service.CreateReservationInput{
		UserID:       userID,
		ExperienceID: req.ExperienceID,
		TimeSlotID:   req.TimeSlotID,
		GuestCount:   req.GuestCount,
		Guest: service.GuestDetails{
			Name:  req.Guest.Name,
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
		},
		IdempotencyKey:  key,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reservation_id", result.Reservation.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.FromBookingResult(result))
}

// ConvertHold handles POST /reservations/:id/convert
func (h *ReservationHandler) ConvertHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.convert_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		response.BadRequest(c, "reservation id is required")
		return
	}

	var req dto.ConvertHoldRequest
	// Body is optional for the client-side confirmation flow
	_ = c.ShouldBindJSON(&req)

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("user_id", userID),
	)

	result, err := h.reservations.ConvertHold(ctx, &service.ConvertHoldInput{
		ReservationID:   reservationID,
		UserID:          userID,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromBookingResult(result))
}

// CancelReservation handles POST /reservations/:id/cancel
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		response.BadRequest(c, "reservation id is required")
		return
	}

	var req dto.CancelReservationRequest
	_ = c.ShouldBindJSON(&req)

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("user_id", userID),
	)

	res, err := h.reservations.CancelReservation(ctx, &service.CancelInput{
		ReservationID: reservationID,
		ActorID:       userID,
		Reason:        req.Reason,
		Refund:        req.Refund,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromReservation(res))
}

// GetReservation handles GET /reservations/:id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		response.BadRequest(c, "reservation id is required")
		return
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("user_id", userID),
	)

	res, err := h.reservations.GetReservation(ctx, reservationID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromReservation(res))
}

// GetReservationEvents handles GET /reservations/:id/events
func (h *ReservationHandler) GetReservationEvents(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.get_events")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		response.BadRequest(c, "reservation id is required")
		return
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("user_id", userID),
	)

	events, err := h.reservations.GetReservationEvents(ctx, reservationID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(events)))
	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromEvents(events))
}
