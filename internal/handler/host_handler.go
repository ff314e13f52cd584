package handler

import (
	"strconv"
	"time"

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

// HostHandler handles host-facing reservation HTTP requests
type HostHandler struct {
	reservations ReservationLifecycle
}

// NewHostHandler creates a new host handler
func NewHostHandler(reservations ReservationLifecycle) *HostHandler {
	return &HostHandler{reservations: reservations}
}

// ListReservations handles GET /host/reservations
func (h *HostHandler) ListReservations(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.host.list_reservations")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	hostID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	filter := repository.HostListFilter{
		Status:       domain.ReservationStatus(c.Query("status")),
		ExperienceID: c.Query("experience_id"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "from must be RFC3339")
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "to must be RFC3339")
			return
		}
		filter.To = &t
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	span.SetAttributes(
		attribute.String("host_id", hostID),
		attribute.String("status_filter", string(filter.Status)),
	)

	rows, total, err := h.reservations.GetHostReservations(ctx, hostID, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(rows)), attribute.Int("total", total))
	span.SetStatus(codes.Ok, "")
	response.Success(c, &dto.HostReservationListResponse{
		Reservations: dto.FromHostReservations(rows),
		Total:        total,
	})
}

// ConfirmReservation handles POST /host/reservations/:id/confirm
func (h *HostHandler) ConfirmReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.host.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	hostID, ok := middleware.GetUserID(c)
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

	var req dto.ConfirmReservationRequest
	// Body is optional; a supplied intent id must match the reservation's
	_ = c.ShouldBindJSON(&req)

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("host_id", hostID),
	)

	res, err := h.reservations.ConfirmReservation(ctx, reservationID, hostID, req.PaymentIntentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		response.FromError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromReservation(res))
}

// CompleteReservation handles POST /host/reservations/:id/complete
func (h *HostHandler) CompleteReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.host.complete")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	hostID, ok := middleware.GetUserID(c)
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

	var req dto.CompleteReservationRequest
	_ = c.ShouldBindJSON(&req)

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("host_id", hostID),
	)

	res, err := h.reservations.CompleteReservation(ctx, reservationID, hostID, &service.CompletionData{
		GuestsAttended: req.GuestsAttended,
		NoShow:         req.NoShow,
		HostNotes:      req.HostNotes,
		Incident:       req.Incident,
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

// CancelReservation handles POST /host/reservations/:id/cancel
func (h *HostHandler) CancelReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.host.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	hostID, ok := middleware.GetUserID(c)
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
		attribute.String("host_id", hostID),
	)

	res, err := h.reservations.CancelReservation(ctx, &service.CancelInput{
		ReservationID: reservationID,
		ActorID:       hostID,
		ActorIsHost:   true,
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
