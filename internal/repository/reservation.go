package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Booking is the write surface available inside one reservation transaction
type Booking interface {
	CreateReservation(ctx context.Context, facilityID int64) (*models.Reservation, error)
	AddMember(ctx context.Context, reservationID int64, memberID string) error
	RecordUsage(ctx context.Context, memberID string, facilityID int64, day time.Time) error
}

// ReservationRepository handles database operations for reservations
type ReservationRepository struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool, db: pool}
}

// WithinTx runs fn in a single transaction; any error rolls back every row fn wrote
func (r *ReservationRepository) WithinTx(ctx context.Context, fn func(Booking) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&booking{
			reservations: &ReservationRepository{pool: r.pool, db: tx},
			usage:        NewUsageRepository(tx),
		})
	})
}

// Create creates a reservation header with the default status
func (r *ReservationRepository) Create(ctx context.Context, facilityID int64) (*models.Reservation, error) {
	query := `
		INSERT INTO facility_reservations (facility_id)
		VALUES ($1)
		RETURNING id, facility_id, status, created_at
	`
	var reservation models.Reservation
	err := r.db.QueryRow(ctx, query, facilityID).Scan(
		&reservation.ID, &reservation.FacilityID, &reservation.Status, &reservation.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, models.ErrFacilityNotFound
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	return &reservation, nil
}

// AddMember links a member to a reservation
func (r *ReservationRepository) AddMember(ctx context.Context, reservationID int64, memberID string) error {
	query := `INSERT INTO reservation_members (reservation_id, member_id) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, reservationID, memberID); err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateMember
		}
		if isForeignKeyViolation(err) {
			return models.ErrMemberNotFound
		}
		return fmt.Errorf("failed to add reservation member: %w", err)
	}
	return nil
}

// Roster lists the members of a reservation
func (r *ReservationRepository) Roster(ctx context.Context, reservationID int64) ([]models.RosterEntry, error) {
	query := `
		SELECT m.member_id, m.name
		FROM reservation_members rm
		JOIN members m ON m.member_id = rm.member_id
		WHERE rm.reservation_id = $1
		ORDER BY rm.id
	`
	rows, err := r.db.Query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation members: %w", err)
	}
	defer rows.Close()

	roster := make([]models.RosterEntry, 0)
	for rows.Next() {
		var entry models.RosterEntry
		if err := rows.Scan(&entry.MemberID, &entry.Name); err != nil {
			return nil, fmt.Errorf("failed to scan reservation member: %w", err)
		}
		roster = append(roster, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation members: %w", err)
	}

	return roster, nil
}

// ListByFacility lists the reservations of a facility with member names, oldest first
func (r *ReservationRepository) ListByFacility(ctx context.Context, facilityID int64) ([]models.FacilityReservation, error) {
	query := `
		SELECT fr.id, fr.status, fr.created_at, m.name
		FROM facility_reservations fr
		JOIN reservation_members rm ON rm.reservation_id = fr.id
		JOIN members m ON m.member_id = rm.member_id
		WHERE fr.facility_id = $1
		ORDER BY fr.created_at, fr.id, rm.id
	`
	rows, err := r.db.Query(ctx, query, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	reservations := make([]models.FacilityReservation, 0)
	for rows.Next() {
		var (
			id        int64
			status    string
			createdAt time.Time
			name      string
		)
		if err := rows.Scan(&id, &status, &createdAt, &name); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}

		last := len(reservations) - 1
		if last < 0 || reservations[last].ReservationID != id {
			reservations = append(reservations, models.FacilityReservation{
				ReservationID: id,
				Status:        status,
				CreatedAt:     createdAt,
			})
			last++
		}
		reservations[last].Users = append(reservations[last].Users, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	return reservations, nil
}

// Delete deletes a reservation; its member links go with it
func (r *ReservationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM facility_reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrReservationNotFound
	}
	return nil
}

// booking binds reservation and usage writes to one transaction
type booking struct {
	reservations *ReservationRepository
	usage        *UsageRepository
}

func (b *booking) CreateReservation(ctx context.Context, facilityID int64) (*models.Reservation, error) {
	return b.reservations.Create(ctx, facilityID)
}

func (b *booking) AddMember(ctx context.Context, reservationID int64, memberID string) error {
	return b.reservations.AddMember(ctx, reservationID, memberID)
}

func (b *booking) RecordUsage(ctx context.Context, memberID string, facilityID int64, day time.Time) error {
	return b.usage.Record(ctx, memberID, facilityID, day)
}
