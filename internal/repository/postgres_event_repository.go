package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/database"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// PostgresEventRepository implements EventRepository using PostgreSQL. The
// table is append-only: no update or delete statement exists anywhere in
// this package.
type PostgresEventRepository struct {
	db *database.PostgresDB
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(db *database.PostgresDB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// Append inserts one event row. Call inside the same transaction as the
// state change the event describes.
func (r *PostgresEventRepository) Append(ctx context.Context, e *domain.ReservationEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.append")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", e.ReservationID),
		attribute.String("event_type", string(e.Type)),
	)

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if e.Payload == nil {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO reservation_events (reservation_id, event_type, payload, actor, source, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err = r.db.QuerierFrom(ctx).QueryRow(ctx, query,
		e.ReservationID,
		string(e.Type),
		payload,
		e.Actor,
		string(e.Source),
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to append reservation event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListByReservationID returns the event log in insertion order
func (r *PostgresEventRepository) ListByReservationID(ctx context.Context, reservationID string) ([]*domain.ReservationEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.list_by_reservation_id")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	query := `
		SELECT id, reservation_id, event_type, payload, actor, source, created_at
		FROM reservation_events
		WHERE reservation_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QuerierFrom(ctx).Query(ctx, query, reservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list reservation events: %w", err)
	}
	defer rows.Close()

	var events []*domain.ReservationEvent
	for rows.Next() {
		e := &domain.ReservationEvent{}
		var eventType, source string
		var payload []byte

		if err := rows.Scan(&e.ID, &e.ReservationID, &eventType, &payload, &e.Actor, &source, &e.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan reservation event: %w", err)
		}

		e.Type = domain.EventType(eventType)
		e.Source = domain.EventSource(source)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
			}
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate reservation events: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(events)))
	span.SetStatus(codes.Ok, "")
	return events, nil
}
