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

// PostgresExperienceRepository implements ExperienceRepository using PostgreSQL
type PostgresExperienceRepository struct {
	db *database.PostgresDB
}

// NewPostgresExperienceRepository creates a new PostgresExperienceRepository
func NewPostgresExperienceRepository(db *database.PostgresDB) *PostgresExperienceRepository {
	return &PostgresExperienceRepository{db: db}
}

// GetPricing retrieves the pricing slice of an experience
func (r *PostgresExperienceRepository) GetPricing(ctx context.Context, experienceID string) (*domain.ExperiencePricing, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.experience.get_pricing")
	defer span.End()

	span.SetAttributes(attribute.String("experience_id", experienceID))

	query := `
		SELECT
			id, host_id, title, price_per_guest, currency,
			group_discount_3_plus_percent, group_discount_5_plus_percent,
			early_bird_discount_percent, early_bird_min_days
		FROM experiences
		WHERE id = $1
	`

	ep := &domain.ExperiencePricing{}
	err := r.db.QuerierFrom(ctx).QueryRow(ctx, query, experienceID).Scan(
		&ep.ExperienceID,
		&ep.HostID,
		&ep.Title,
		&ep.PricePerGuest,
		&ep.Currency,
		&ep.Discounts.Group3PlusPercent,
		&ep.Discounts.Group5PlusPercent,
		&ep.Discounts.EarlyBirdPercent,
		&ep.Discounts.EarlyBirdMinDays,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrExperienceNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get experience pricing: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ep, nil
}

// IsOwnedBy reports whether the experience belongs to the host
func (r *PostgresExperienceRepository) IsOwnedBy(ctx context.Context, experienceID, hostID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.experience.is_owned_by")
	defer span.End()

	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("host_id", hostID),
	)

	query := `SELECT EXISTS(SELECT 1 FROM experiences WHERE id = $1 AND host_id = $2)`

	var owned bool
	if err := r.db.QuerierFrom(ctx).QueryRow(ctx, query, experienceID, hostID).Scan(&owned); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to check experience ownership: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return owned, nil
}
