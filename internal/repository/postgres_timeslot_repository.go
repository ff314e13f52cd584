package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/database"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// PostgresTimeSlotRepository implements TimeSlotRepository using PostgreSQL
type PostgresTimeSlotRepository struct {
	db *database.PostgresDB
}

// NewPostgresTimeSlotRepository creates a new PostgresTimeSlotRepository
func NewPostgresTimeSlotRepository(db *database.PostgresDB) *PostgresTimeSlotRepository {
	return &PostgresTimeSlotRepository{db: db}
}

const timeSlotColumns = `id, experience_id, starts_at, max_capacity, status, created_at, updated_at`

// GetByID retrieves a time slot without locking
func (r *PostgresTimeSlotRepository) GetByID(ctx context.Context, id string) (*domain.TimeSlot, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.time_slot.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("time_slot_id", id))

	query := `SELECT ` + timeSlotColumns + ` FROM time_slots WHERE id = $1`

	slot, err := scanTimeSlot(r.db.QuerierFrom(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTimeSlotNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get time slot: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return slot, nil
}

// LockForUpdate retrieves a time slot under FOR UPDATE. Concurrent bookers
// on the same slot block here until the holding transaction commits, so the
// capacity read that follows is always consistent.
func (r *PostgresTimeSlotRepository) LockForUpdate(ctx context.Context, id string) (*domain.TimeSlot, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.time_slot.lock_for_update")
	defer span.End()

	span.SetAttributes(attribute.String("time_slot_id", id))

	if database.TxFrom(ctx) == nil {
		err := fmt.Errorf("LockForUpdate requires a transaction")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	query := `SELECT ` + timeSlotColumns + ` FROM time_slots WHERE id = $1 FOR UPDATE`

	slot, err := scanTimeSlot(r.db.QuerierFrom(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTimeSlotNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to lock time slot: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return slot, nil
}

// OccupiedGuestCount sums the guest counts of reservations on the slot in
// the given statuses. Run while the slot row lock is held.
func (r *PostgresTimeSlotRepository) OccupiedGuestCount(ctx context.Context, slotID string, statuses []string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.time_slot.occupied_guest_count")
	defer span.End()

	span.SetAttributes(attribute.String("time_slot_id", slotID))

	query := `
		SELECT COALESCE(SUM(guest_count), 0)
		FROM reservations
		WHERE time_slot_id = $1 AND status = ANY($2)
	`

	var occupied int
	err := r.db.QuerierFrom(ctx).QueryRow(ctx, query, slotID, statuses).Scan(&occupied)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count occupied guests: %w", err)
	}

	span.SetAttributes(attribute.Int("occupied", occupied))
	span.SetStatus(codes.Ok, "")
	return occupied, nil
}

func scanTimeSlot(row pgx.Row) (*domain.TimeSlot, error) {
	slot := &domain.TimeSlot{}
	var status string

	err := row.Scan(
		&slot.ID,
		&slot.ExperienceID,
		&slot.StartsAt,
		&slot.MaxCapacity,
		&status,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	slot.Status = domain.TimeSlotStatus(status)
	return slot, nil
}
