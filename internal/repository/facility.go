package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/jackc/pgx/v5"
)

// FacilityRepository handles facility status records
type FacilityRepository struct {
	db DBTX
}

// NewFacilityRepository creates a new facility repository
func NewFacilityRepository(db DBTX) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// GetStatus returns a facility's status; a facility without a status row is not found
func (r *FacilityRepository) GetStatus(ctx context.Context, facilityID int64) (string, error) {
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT status FROM facility_status WHERE facility_id = $1`, facilityID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrFacilityNotFound
		}
		return "", fmt.Errorf("failed to get facility status: %w", err)
	}
	return status, nil
}

// SetStatus creates or updates the status row of a facility
func (r *FacilityRepository) SetStatus(ctx context.Context, facilityID int64, status string) error {
	query := `
		INSERT INTO facility_status (facility_id, status)
		VALUES ($1, $2)
		ON CONFLICT (facility_id) DO UPDATE SET status = EXCLUDED.status
	`
	if _, err := r.db.Exec(ctx, query, facilityID, status); err != nil {
		if isForeignKeyViolation(err) {
			return models.ErrFacilityNotFound
		}
		return fmt.Errorf("failed to set facility status: %w", err)
	}
	return nil
}

// ListStatuses returns every facility that has a status row
func (r *FacilityRepository) ListStatuses(ctx context.Context) ([]models.FacilityStatus, error) {
	query := `
		SELECT fs.facility_id, f.facility_name, fs.status
		FROM facility_status fs
		JOIN facilities f ON f.id = fs.facility_id
		ORDER BY fs.facility_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list facility statuses: %w", err)
	}
	defer rows.Close()

	statuses := make([]models.FacilityStatus, 0)
	for rows.Next() {
		var status models.FacilityStatus
		if err := rows.Scan(&status.FacilityID, &status.FacilityName, &status.Status); err != nil {
			return nil, fmt.Errorf("failed to scan facility status: %w", err)
		}
		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facility statuses: %w", err)
	}

	return statuses, nil
}
