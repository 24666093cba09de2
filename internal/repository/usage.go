package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"
)

// UsageRepository is the per-member, per-facility, per-day usage ledger
type UsageRepository struct {
	db DBTX
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// HasUsedOn checks whether a member already used a facility on the given day
func (r *UsageRepository) HasUsedOn(ctx context.Context, memberID string, facilityID int64, day time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM member_facility_usage
			WHERE member_id = $1 AND facility_id = $2 AND usage_date = $3
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, memberID, facilityID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check facility usage: %w", err)
	}
	return exists, nil
}

// HasAnyUsedOn checks whether any of the members used a facility on the given day
func (r *UsageRepository) HasAnyUsedOn(ctx context.Context, memberIDs []string, facilityID int64, day time.Time) (bool, error) {
	if len(memberIDs) == 0 {
		return false, nil
	}

	query := `
		SELECT EXISTS(
			SELECT 1 FROM member_facility_usage
			WHERE member_id = ANY($1) AND facility_id = $2 AND usage_date = $3
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, memberIDs, facilityID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check facility usage: %w", err)
	}
	return exists, nil
}

// Record appends a usage entry; a second entry for the same key is ErrDailyLimitReached
func (r *UsageRepository) Record(ctx context.Context, memberID string, facilityID int64, day time.Time) error {
	query := `
		INSERT INTO member_facility_usage (member_id, facility_id, usage_date)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.Exec(ctx, query, memberID, facilityID, day); err != nil {
		if isUniqueViolation(err) {
			return models.ErrDailyLimitReached
		}
		return fmt.Errorf("failed to record facility usage: %w", err)
	}
	return nil
}
