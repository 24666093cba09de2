package repository

import (
	"context"
	"fmt"
	"time"
)

// VisitRepository records daily check-ins of members
type VisitRepository struct {
	db DBTX
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db DBTX) *VisitRepository {
	return &VisitRepository{db: db}
}

// Record stores a visit for the day and reports whether it was the first one
func (r *VisitRepository) Record(ctx context.Context, memberID string, day time.Time) (bool, error) {
	query := `
		INSERT INTO member_visits (member_id, visit_date)
		VALUES ($1, $2)
		ON CONFLICT (member_id, visit_date) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, memberID, day)
	if err != nil {
		return false, fmt.Errorf("failed to record visit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HasVisitedOn checks whether a member checked in on the given day
func (r *VisitRepository) HasVisitedOn(ctx context.Context, memberID string, day time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM member_visits WHERE member_id = $1 AND visit_date = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, memberID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check visit: %w", err)
	}
	return exists, nil
}
