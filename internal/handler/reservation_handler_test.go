package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/service"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/middleware"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/response"
)

// mockLifecycle is a mock implementation of ReservationLifecycle for testing
type mockLifecycle struct {
	createHoldFn        func(ctx context.Context, in *service.CreateHoldInput) (*service.BookingResult, error)
	createReservationFn func(ctx context.Context, in *service.CreateReservationInput) (*service.BookingResult, error)
	convertHoldFn       func(ctx context.Context, in *service.ConvertHoldInput) (*service.BookingResult, error)
	confirmFn           func(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error)
	cancelFn            func(ctx context.Context, in *service.CancelInput) (*domain.Reservation, error)
	completeFn          func(ctx context.Context, reservationID, hostID string, data *service.CompletionData) (*domain.Reservation, error)
	getFn               func(ctx context.Context, reservationID, callerID string) (*domain.Reservation, error)
	getEventsFn         func(ctx context.Context, reservationID, callerID string) ([]*domain.ReservationEvent, error)
	listForHostFn       func(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error)
	applyUpdateFn       func(ctx context.Context, upd *service.IntentUpdate) error
}

func (m *mockLifecycle) CreateHold(ctx context.Context, in *service.CreateHoldInput) (*service.BookingResult, error) {
	return m.createHoldFn(ctx, in)
}

func (m *mockLifecycle) CreateReservation(ctx context.Context, in *service.CreateReservationInput) (*service.BookingResult, error) {
	return m.createReservationFn(ctx, in)
}

func (m *mockLifecycle) ConvertHold(ctx context.Context, in *service.ConvertHoldInput) (*service.BookingResult, error) {
	return m.convertHoldFn(ctx, in)
}

func (m *mockLifecycle) ConfirmReservation(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error) {
	return m.confirmFn(ctx, reservationID, hostID, paymentIntentID)
}

func (m *mockLifecycle) CancelReservation(ctx context.Context, in *service.CancelInput) (*domain.Reservation, error) {
	return m.cancelFn(ctx, in)
}

func (m *mockLifecycle) CompleteReservation(ctx context.Context, reservationID, hostID string, data *service.CompletionData) (*domain.Reservation, error) {
	return m.completeFn(ctx, reservationID, hostID, data)
}

func (m *mockLifecycle) GetReservation(ctx context.Context, reservationID, callerID string) (*domain.Reservation, error) {
	return m.getFn(ctx, reservationID, callerID)
}

func (m *mockLifecycle) GetReservationEvents(ctx context.Context, reservationID, callerID string) ([]*domain.ReservationEvent, error) {
	return m.getEventsFn(ctx, reservationID, callerID)
}

func (m *mockLifecycle) GetHostReservations(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error) {
	return m.listForHostFn(ctx, hostID, filter)
}

func (m *mockLifecycle) ApplyIntentUpdate(ctx context.Context, upd *service.IntentUpdate) error {
	return m.applyUpdateFn(ctx, upd)
}

func setupRouter(svc ReservationLifecycle, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyUserID, userID)
			if key := c.GetHeader("X-Idempotency-Key"); key != "" {
				c.Set(middleware.ContextKeyIdempotencyKey, key)
			}
			c.Next()
		})
	}

	rh := NewReservationHandler(svc)
	hh := NewHostHandler(svc)

	router.POST("/holds", rh.CreateHold)
	router.POST("/reservations", rh.CreateReservation)
	router.POST("/reservations/:id/convert", rh.ConvertHold)
	router.POST("/reservations/:id/cancel", rh.CancelReservation)
	router.GET("/reservations/:id", rh.GetReservation)
	router.GET("/reservations/:id/events", rh.GetReservationEvents)

	host := router.Group("/host")
	host.GET("/reservations", hh.ListReservations)
	host.POST("/reservations/:id/confirm", hh.ConfirmReservation)
	host.POST("/reservations/:id/complete", hh.CompleteReservation)
	host.POST("/reservations/:id/cancel", hh.CancelReservation)

	return router
}

func sampleReservation(status domain.ReservationStatus) *domain.Reservation {
	return &domain.Reservation{
		ID:           "res-1",
		UserID:       "user-1",
		ExperienceID: "exp-1",
		TimeSlotID:   "slot-1",
		GuestCount:   2,
		TotalPrice:   16000,
		Currency:     "USD",
		Status:       status,
		Reference:    "EXP-3F9A2C41",
		CreatedAt:    time.Now().UTC(),
	}
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateHoldHandler(t *testing.T) {
	svc := &mockLifecycle{
		createHoldFn: func(ctx context.Context, in *service.CreateHoldInput) (*service.BookingResult, error) {
			assert.Equal(t, "user-1", in.UserID)
			assert.Equal(t, "key-1", in.IdempotencyKey)
			res := sampleReservation(domain.ReservationStatusHeld)
			exp := time.Now().UTC().Add(15 * time.Minute)
			res.HoldExpiresAt = &exp
			return &service.BookingResult{Reservation: res, HoldDurationMinutes: 15}, nil
		},
	}
	router := setupRouter(svc, "user-1")

	w := doJSON(router, http.MethodPost, "/holds", gin.H{
		"experience_id": "exp-1",
		"time_slot_id":  "slot-1",
		"guest_count":   2,
		"guest":         gin.H{"name": "Ana Keahi", "email": "ana@example.com"},
	}, map[string]string{"X-Idempotency-Key": "key-1"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(15), data["hold_duration_minutes"])
}

func TestCreateReservationHandlerReturnsClientSecret(t *testing.T) {
	svc := &mockLifecycle{
		createReservationFn: func(ctx context.Context, in *service.CreateReservationInput) (*service.BookingResult, error) {
			res := sampleReservation(domain.ReservationStatusPending)
			res.PaymentIntentID = "pi_1"
			return &service.BookingResult{
				Reservation:    res,
				ClientSecret:   "pi_1_secret",
				RequiresAction: true,
			}, nil
		},
	}
	router := setupRouter(svc, "user-1")

	w := doJSON(router, http.MethodPost, "/reservations", gin.H{
		"experience_id": "exp-1",
		"time_slot_id":  "slot-1",
		"guest_count":   2,
		"guest":         gin.H{"name": "Ana Keahi", "email": "ana@example.com"},
	}, map[string]string{"X-Idempotency-Key": "key-1"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pi_1_secret", data["client_secret"])
	assert.Equal(t, true, data["requires_action"])
}

func TestCreateHoldHandlerUnauthorized(t *testing.T) {
	router := setupRouter(&mockLifecycle{}, "")

	w := doJSON(router, http.MethodPost, "/holds", gin.H{}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateHoldHandlerMissingIdempotencyKey(t *testing.T) {
	router := setupRouter(&mockLifecycle{}, "user-1")

	w := doJSON(router, http.MethodPost, "/holds", gin.H{
		"experience_id": "exp-1",
		"time_slot_id":  "slot-1",
		"guest_count":   2,
		"guest":         gin.H{"name": "Ana Keahi", "email": "ana@example.com"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateHoldHandlerInvalidBody(t *testing.T) {
	router := setupRouter(&mockLifecycle{}, "user-1")

	// guest_count missing
	w := doJSON(router, http.MethodPost, "/holds", gin.H{
		"experience_id": "exp-1",
		"time_slot_id":  "slot-1",
		"guest":         gin.H{"name": "Ana Keahi", "email": "ana@example.com"},
	}, map[string]string{"X-Idempotency-Key": "key-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateReservationHandlerConflict(t *testing.T) {
	svc := &mockLifecycle{
		createReservationFn: func(ctx context.Context, in *service.CreateReservationInput) (*service.BookingResult, error) {
			return nil, domain.ErrNotEnoughCapacity
		},
	}
	router := setupRouter(svc, "user-1")

	w := doJSON(router, http.MethodPost, "/reservations", gin.H{
		"experience_id": "exp-1",
		"time_slot_id":  "slot-1",
		"guest_count":   3,
		"guest":         gin.H{"name": "Ana Keahi", "email": "ana@example.com"},
	}, map[string]string{"X-Idempotency-Key": "key-1"})

	require.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TIME_SLOT_NOT_ENOUGH_CAPACITY", resp.Error.Code)
}

func TestConvertHoldHandlerExpired(t *testing.T) {
	svc := &mockLifecycle{
		convertHoldFn: func(ctx context.Context, in *service.ConvertHoldInput) (*service.BookingResult, error) {
			return nil, domain.ErrHoldExpired
		},
	}
	router := setupRouter(svc, "user-1")

	w := doJSON(router, http.MethodPost, "/reservations/res-1/convert", nil, nil)

	require.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "HOLD_EXPIRED", resp.Error.Code)
}

func TestGetReservationHandlerNotFound(t *testing.T) {
	svc := &mockLifecycle{
		getFn: func(ctx context.Context, reservationID, callerID string) (*domain.Reservation, error) {
			return nil, domain.ErrReservationNotFound
		},
	}
	router := setupRouter(svc, "user-1")

	w := doJSON(router, http.MethodGet, "/reservations/res-404", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHostConfirmHandler(t *testing.T) {
	svc := &mockLifecycle{
		confirmFn: func(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error) {
			assert.Equal(t, "res-1", reservationID)
			assert.Equal(t, "host-1", hostID)
			assert.Empty(t, paymentIntentID)
			return sampleReservation(domain.ReservationStatusConfirmed), nil
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodPost, "/host/reservations/res-1/confirm", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHostConfirmHandlerPassesIntentID(t *testing.T) {
	svc := &mockLifecycle{
		confirmFn: func(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error) {
			assert.Equal(t, "pi_1", paymentIntentID)
			return sampleReservation(domain.ReservationStatusConfirmed), nil
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodPost, "/host/reservations/res-1/confirm", gin.H{"payment_intent_id": "pi_1"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHostConfirmHandlerPaymentNotAuthorized(t *testing.T) {
	svc := &mockLifecycle{
		confirmFn: func(ctx context.Context, reservationID, hostID, paymentIntentID string) (*domain.Reservation, error) {
			return nil, domain.ErrPaymentNotAuthorized
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodPost, "/host/reservations/res-1/confirm", nil, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestHostCompleteHandlerPassesAttendance(t *testing.T) {
	svc := &mockLifecycle{
		completeFn: func(ctx context.Context, reservationID, hostID string, data *service.CompletionData) (*domain.Reservation, error) {
			require.NotNil(t, data)
			assert.Equal(t, 2, data.GuestsAttended)
			assert.Equal(t, "ran long", data.HostNotes)
			assert.Equal(t, "minor scrape", data.Incident)
			return sampleReservation(domain.ReservationStatusCompleted), nil
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodPost, "/host/reservations/res-1/complete", gin.H{
		"guests_attended": 2,
		"host_notes":      "ran long",
		"incident":        "minor scrape",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHostCompleteHandlerTooEarly(t *testing.T) {
	svc := &mockLifecycle{
		completeFn: func(ctx context.Context, reservationID, hostID string, data *service.CompletionData) (*domain.Reservation, error) {
			return nil, domain.ErrExperienceNotStarted
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodPost, "/host/reservations/res-1/complete", nil, nil)

	require.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "EXPERIENCE_NOT_STARTED", resp.Error.Code)
}

func TestHostListHandlerFilters(t *testing.T) {
	var gotFilter repository.HostListFilter
	svc := &mockLifecycle{
		listForHostFn: func(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error) {
			gotFilter = filter
			return []*domain.HostReservation{
				{Reservation: *sampleReservation(domain.ReservationStatusConfirmed), ExperienceTitle: "Lava Tube Hike"},
			}, 42, nil
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodGet, "/host/reservations?status=confirmed&experience_id=exp-1&limit=10", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ReservationStatus("confirmed"), gotFilter.Status)
	assert.Equal(t, "exp-1", gotFilter.ExperienceID)
	assert.Equal(t, 10, gotFilter.Limit)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), data["total"])
	assert.Len(t, data["reservations"], 1)
}

func TestHostCancelHandlerSetsHostActor(t *testing.T) {
	svc := &mockLifecycle{
		cancelFn: func(ctx context.Context, in *service.CancelInput) (*domain.Reservation, error) {
			assert.True(t, in.ActorIsHost)
			assert.Equal(t, "host-1", in.ActorID)
			assert.Equal(t, "rain", in.Reason)
			assert.True(t, in.Refund)
			return sampleReservation(domain.ReservationStatusCancelled), nil
		},
	}
	router := setupRouter(svc, "host-1")

	w := doJSON(router, http.MethodPost, "/host/reservations/res-1/cancel", gin.H{"reason": "rain", "refund": true}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
