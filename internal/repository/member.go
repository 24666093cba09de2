package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/jackc/pgx/v5"
)

const memberColumns = `member_id, name, gender, birth, age, phone_num, created_at`

// MemberRepository handles database operations for members
type MemberRepository struct {
	db DBTX
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create inserts a new member; duplicate phone numbers or member ids come back as conflicts
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	query := `
		INSERT INTO members (member_id, name, gender, birth, age, phone_num, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		member.ID, member.Name, member.Gender, member.Birth.Time,
		member.Age, member.PhoneNum, member.CreatedAt,
	)
	if err != nil {
		if code, constraint := pgErrorCode(err); code == pgUniqueViolation {
			if constraint == "members_phone_num_key" {
				return models.ErrPhoneConflict
			}
			return models.ErrMemberIDConflict
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetByID retrieves a member by its externally issued identifier
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE member_id = $1`
	member, err := scanMember(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// GetByPhone retrieves a member by phone number
func (r *MemberRepository) GetByPhone(ctx context.Context, phone string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE phone_num = $1`
	member, err := scanMember(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member by phone: %w", err)
	}
	return member, nil
}

// FindByNameAndBirth returns every member sharing a name and birth date
func (r *MemberRepository) FindByNameAndBirth(ctx context.Context, name string, birth models.Date) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE name = $1 AND birth = $2
		ORDER BY created_at, member_id
	`
	rows, err := r.db.Query(ctx, query, name, birth.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to find members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// FindByNameBirthPhone narrows a name and birth date match down with a phone number
func (r *MemberRepository) FindByNameBirthPhone(ctx context.Context, name string, birth models.Date, phone string) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE name = $1 AND birth = $2 AND phone_num = $3
	`
	member, err := scanMember(r.db.QueryRow(ctx, query, name, birth.Time, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find member by phone: %w", err)
	}
	return member, nil
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var (
		member models.Member
		birth  time.Time
	)
	err := row.Scan(
		&member.ID, &member.Name, &member.Gender, &birth,
		&member.Age, &member.PhoneNum, &member.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	member.Birth = models.Date{Time: birth}
	return &member, nil
}
