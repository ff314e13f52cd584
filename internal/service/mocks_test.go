package service

import (
	"context"
	"time"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
)

// mockTxManager runs the function directly; the transaction boundary is a
// no-op in unit tests.
type mockTxManager struct {
	begun int
}

func (m *mockTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.begun++
	return fn(ctx)
}

type mockTimeSlotRepo struct {
	getByIDFn            func(ctx context.Context, id string) (*domain.TimeSlot, error)
	lockForUpdateFn      func(ctx context.Context, id string) (*domain.TimeSlot, error)
	occupiedGuestCountFn func(ctx context.Context, slotID string, statuses []string) (int, error)

	lockCalls int
}

func (m *mockTimeSlotRepo) GetByID(ctx context.Context, id string) (*domain.TimeSlot, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockTimeSlotRepo) LockForUpdate(ctx context.Context, id string) (*domain.TimeSlot, error) {
	m.lockCalls++
	return m.lockForUpdateFn(ctx, id)
}

func (m *mockTimeSlotRepo) OccupiedGuestCount(ctx context.Context, slotID string, statuses []string) (int, error) {
	return m.occupiedGuestCountFn(ctx, slotID, statuses)
}

type mockReservationRepo struct {
	createFn              func(ctx context.Context, r *domain.Reservation) error
	getByIDFn             func(ctx context.Context, id string) (*domain.Reservation, error)
	getByIdempotencyKeyFn func(ctx context.Context, userID, key string) (*domain.Reservation, error)
	getByIntentFn         func(ctx context.Context, intentID string) (*domain.Reservation, error)
	updateFn              func(ctx context.Context, r *domain.Reservation) error
	listExpiredHoldsFn    func(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
	listForHostFn         func(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error)

	created []*domain.Reservation
	updated []*domain.Reservation
}

func (m *mockReservationRepo) Create(ctx context.Context, r *domain.Reservation) error {
	m.created = append(m.created, r)
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	return nil
}

func (m *mockReservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockReservationRepo) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Reservation, error) {
	if m.getByIdempotencyKeyFn != nil {
		return m.getByIdempotencyKeyFn(ctx, userID, key)
	}
	return nil, nil
}

func (m *mockReservationRepo) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Reservation, error) {
	return m.getByIntentFn(ctx, intentID)
}

func (m *mockReservationRepo) Update(ctx context.Context, r *domain.Reservation) error {
	m.updated = append(m.updated, r)
	if m.updateFn != nil {
		return m.updateFn(ctx, r)
	}
	return nil
}

func (m *mockReservationRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	return m.listExpiredHoldsFn(ctx, now, limit)
}

func (m *mockReservationRepo) ListForHost(ctx context.Context, hostID string, filter repository.HostListFilter) ([]*domain.HostReservation, int, error) {
	return m.listForHostFn(ctx, hostID, filter)
}

type mockPaymentRepo struct {
	createFn        func(ctx context.Context, p *domain.Payment) error
	getByIntentFn   func(ctx context.Context, intentID string) (*domain.Payment, error)
	getCapturedFn   func(ctx context.Context, reservationID string) (*domain.Payment, error)
	updateFn        func(ctx context.Context, p *domain.Payment) error
	created         []*domain.Payment
	updated         []*domain.Payment
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	m.created = append(m.created, p)
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

func (m *mockPaymentRepo) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	return m.getByIntentFn(ctx, intentID)
}

func (m *mockPaymentRepo) GetCapturedByReservationID(ctx context.Context, reservationID string) (*domain.Payment, error) {
	return m.getCapturedFn(ctx, reservationID)
}

func (m *mockPaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	m.updated = append(m.updated, p)
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}

type mockEventRepo struct {
	appendFn func(ctx context.Context, e *domain.ReservationEvent) error
	listFn   func(ctx context.Context, reservationID string) ([]*domain.ReservationEvent, error)
	appended []*domain.ReservationEvent
}

func (m *mockEventRepo) Append(ctx context.Context, e *domain.ReservationEvent) error {
	m.appended = append(m.appended, e)
	if m.appendFn != nil {
		return m.appendFn(ctx, e)
	}
	return nil
}

func (m *mockEventRepo) ListByReservationID(ctx context.Context, reservationID string) ([]*domain.ReservationEvent, error) {
	return m.listFn(ctx, reservationID)
}

func (m *mockEventRepo) types() []domain.EventType {
	var out []domain.EventType
	for _, e := range m.appended {
		out = append(out, e.Type)
	}
	return out
}

type mockExperienceRepo struct {
	getPricingFn func(ctx context.Context, experienceID string) (*domain.ExperiencePricing, error)
	isOwnedByFn  func(ctx context.Context, experienceID, hostID string) (bool, error)
}

func (m *mockExperienceRepo) GetPricing(ctx context.Context, experienceID string) (*domain.ExperiencePricing, error) {
	return m.getPricingFn(ctx, experienceID)
}

func (m *mockExperienceRepo) IsOwnedBy(ctx context.Context, experienceID, hostID string) (bool, error) {
	return m.isOwnedByFn(ctx, experienceID, hostID)
}

type mockGateway struct {
	createIntentFn  func(ctx context.Context, p *gateway.CreateIntentParams) (*gateway.Intent, error)
	getIntentFn     func(ctx context.Context, intentID string) (*gateway.Intent, error)
	captureIntentFn func(ctx context.Context, intentID, idempotencyKey string) (*gateway.Intent, error)
	cancelIntentFn  func(ctx context.Context, intentID string) (*gateway.Intent, error)
	createRefundFn  func(ctx context.Context, p *gateway.RefundParams) (*gateway.Refund, error)

	captureCalls int
	cancelCalls  int
	refundCalls  int
}

func (m *mockGateway) CreateIntent(ctx context.Context, p *gateway.CreateIntentParams) (*gateway.Intent, error) {
	return m.createIntentFn(ctx, p)
}

func (m *mockGateway) GetIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	return m.getIntentFn(ctx, intentID)
}

func (m *mockGateway) CaptureIntent(ctx context.Context, intentID, idempotencyKey string) (*gateway.Intent, error) {
	m.captureCalls++
	return m.captureIntentFn(ctx, intentID, idempotencyKey)
}

func (m *mockGateway) CancelIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	m.cancelCalls++
	return m.cancelIntentFn(ctx, intentID)
}

func (m *mockGateway) CreateRefund(ctx context.Context, p *gateway.RefundParams) (*gateway.Refund, error) {
	m.refundCalls++
	return m.createRefundFn(ctx, p)
}

func (m *mockGateway) CreateCustomer(ctx context.Context, p *gateway.CustomerParams) (*gateway.Customer, error) {
	return &gateway.Customer{ID: "cus_test", Email: p.Email}, nil
}

type capturingPublisher struct {
	published []*domain.ReservationEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, event *domain.ReservationEvent) {
	p.published = append(p.published, event)
}
