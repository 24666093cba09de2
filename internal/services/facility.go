package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"
	"github.com/KNU-SingalProject/back/internal/repository"
)

// FacilityStatusStore holds the reservation eligibility of facilities
type FacilityStatusStore interface {
	GetStatus(ctx context.Context, facilityID int64) (string, error)
	SetStatus(ctx context.Context, facilityID int64, status string) error
	ListStatuses(ctx context.Context) ([]models.FacilityStatus, error)
}

// UsageLedger answers whether members already used a facility on a day
type UsageLedger interface {
	HasUsedOn(ctx context.Context, memberID string, facilityID int64, day time.Time) (bool, error)
	HasAnyUsedOn(ctx context.Context, memberIDs []string, facilityID int64, day time.Time) (bool, error)
}

// ReservationStore holds reservations and their members
type ReservationStore interface {
	WithinTx(ctx context.Context, fn func(repository.Booking) error) error
	Roster(ctx context.Context, reservationID int64) ([]models.RosterEntry, error)
	ListByFacility(ctx context.Context, facilityID int64) ([]models.FacilityReservation, error)
	Delete(ctx context.Context, id int64) error
}

// FacilityNotifier is told about changes kiosks display
type FacilityNotifier interface {
	FacilityStatusChanged(facilityID int64, status string)
	ReservationCreated(facilityID, reservationID int64, users []models.RosterEntry)
	ReservationDeleted(reservationID int64)
}

// FacilityService handles facility status and reservations
type FacilityService struct {
	statuses     FacilityStatusStore
	usage        UsageLedger
	reservations ReservationStore
	members      *MemberService
	notifier     FacilityNotifier
	maxGroupSize int
	loc          *time.Location
	now          func() time.Time
}

// NewFacilityService creates a new facility service; notifier may be nil
func NewFacilityService(
	statuses FacilityStatusStore,
	usage UsageLedger,
	reservations ReservationStore,
	members *MemberService,
	notifier FacilityNotifier,
	maxGroupSize int,
	loc *time.Location,
) *FacilityService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &FacilityService{
		statuses:     statuses,
		usage:        usage,
		reservations: reservations,
		members:      members,
		notifier:     notifier,
		maxGroupSize: maxGroupSize,
		loc:          loc,
		now:          time.Now,
	}
}

// ReservationResult is either a completed reservation or a request to pick a phone number
type ReservationResult struct {
	Multiple      bool                 `json:"multiple"`
	FacilityID    int64                `json:"facility_id"`
	Name          string               `json:"name,omitempty"`
	Birth         *models.Date         `json:"birth,omitempty"`
	PhoneNumbers  []string             `json:"phone_numbers,omitempty"`
	ReservationID int64                `json:"reservation_id,omitempty"`
	Users         []models.RosterEntry `json:"users,omitempty"`
}

// GroupMember is one entry of a group reservation request
type GroupMember struct {
	Name  string
	Birth models.Date
	Phone string
}

// AmbiguousMember lists the phone numbers sharing one name and birth date
type AmbiguousMember struct {
	Name       string      `json:"name"`
	Birth      models.Date `json:"birth"`
	Candidates []string    `json:"candidates"`
}

// GroupMemberState tells the client which entries need a phone number on resubmission
type GroupMemberState struct {
	Name      string      `json:"name"`
	Birth     models.Date `json:"birth"`
	Ambiguous bool        `json:"ambiguous"`
}

// GroupReservationResult is either a completed group reservation or a combined disambiguation prompt
type GroupReservationResult struct {
	ConfirmRequired    bool                 `json:"confirm_required"`
	FacilityID         int64                `json:"facility_id"`
	MultipleCandidates []AmbiguousMember    `json:"multiple_candidates,omitempty"`
	Members            []GroupMemberState   `json:"members,omitempty"`
	ReservationID      int64                `json:"reservation_id,omitempty"`
	Users              []models.RosterEntry `json:"users,omitempty"`
}

// Reserve books a facility for the member identified by name and birth date.
// Several matches produce a phone number prompt and write nothing.
func (s *FacilityService) Reserve(ctx context.Context, facilityID int64, name string, birth models.Date) (*ReservationResult, error) {
	if err := s.checkFacilityStatus(ctx, facilityID); err != nil {
		return nil, err
	}

	resolution, err := s.members.ResolveIdentity(ctx, name, birth)
	if err != nil {
		return nil, err
	}

	if resolution.Multiple() {
		return &ReservationResult{
			Multiple:     true,
			FacilityID:   facilityID,
			Name:         name,
			Birth:        &birth,
			PhoneNumbers: resolution.PhoneNumbers(),
		}, nil
	}

	return s.reserveFor(ctx, facilityID, resolution.Member)
}

// ConfirmReserve books a facility for the member picked by phone number
func (s *FacilityService) ConfirmReserve(ctx context.Context, facilityID int64, name string, birth models.Date, phone string) (*ReservationResult, error) {
	if err := s.checkFacilityStatus(ctx, facilityID); err != nil {
		return nil, err
	}

	member, err := s.members.ResolveWithPhone(ctx, name, birth, phone)
	if err != nil {
		return nil, err
	}

	return s.reserveFor(ctx, facilityID, member)
}

// ReserveGroup books a facility for up to maxGroupSize members. If any entry is
// ambiguous nothing is written and every ambiguous entry is returned with its candidates.
func (s *FacilityService) ReserveGroup(ctx context.Context, facilityID int64, entries []GroupMember) (*GroupReservationResult, error) {
	if err := s.checkFacilityStatus(ctx, facilityID); err != nil {
		return nil, err
	}
	if err := s.checkGroupSize(entries); err != nil {
		return nil, err
	}

	var (
		resolved  []*models.Member
		ambiguous []AmbiguousMember
		states    = make([]GroupMemberState, 0, len(entries))
		seen      = make(map[string]bool)
	)
	for _, entry := range entries {
		resolution, err := s.members.ResolveIdentity(ctx, entry.Name, entry.Birth)
		if err != nil {
			return nil, memberError(err, entry)
		}

		states = append(states, GroupMemberState{
			Name:      entry.Name,
			Birth:     entry.Birth,
			Ambiguous: resolution.Multiple(),
		})

		if !resolution.Multiple() {
			resolved = append(resolved, resolution.Member)
			continue
		}

		key := strings.TrimSpace(entry.Name) + "|" + entry.Birth.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		ambiguous = append(ambiguous, AmbiguousMember{
			Name:       entry.Name,
			Birth:      entry.Birth,
			Candidates: resolution.PhoneNumbers(),
		})
	}

	if len(ambiguous) > 0 {
		return &GroupReservationResult{
			ConfirmRequired:    true,
			FacilityID:         facilityID,
			MultipleCandidates: ambiguous,
			Members:            states,
		}, nil
	}

	return s.reserveGroupFor(ctx, facilityID, resolved)
}

// ConfirmGroup books a facility for a resubmitted group; entries that were
// ambiguous must now carry a phone number.
func (s *FacilityService) ConfirmGroup(ctx context.Context, facilityID int64, entries []GroupMember) (*GroupReservationResult, error) {
	if err := s.checkFacilityStatus(ctx, facilityID); err != nil {
		return nil, err
	}
	if err := s.checkGroupSize(entries); err != nil {
		return nil, err
	}

	resolved := make([]*models.Member, 0, len(entries))
	for _, entry := range entries {
		resolution, err := s.members.ResolveIdentity(ctx, entry.Name, entry.Birth)
		if err != nil {
			return nil, memberError(err, entry)
		}

		if !resolution.Multiple() {
			resolved = append(resolved, resolution.Member)
			continue
		}

		if entry.Phone == "" {
			return nil, fmt.Errorf("%w: %s (%s)", models.ErrPhoneRequired, entry.Name, entry.Birth)
		}

		member, err := s.members.ResolveWithPhone(ctx, entry.Name, entry.Birth, entry.Phone)
		if err != nil {
			return nil, memberError(err, entry)
		}
		resolved = append(resolved, member)
	}

	return s.reserveGroupFor(ctx, facilityID, resolved)
}

// GetStatus returns the status of a facility
func (s *FacilityService) GetStatus(ctx context.Context, facilityID int64) (*models.FacilityStatus, error) {
	status, err := s.statuses.GetStatus(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	return &models.FacilityStatus{FacilityID: facilityID, Status: status}, nil
}

// SetStatus changes the status of a facility
func (s *FacilityService) SetStatus(ctx context.Context, facilityID int64, status string) error {
	if !models.IsValidFacilityStatus(status) {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}

	if err := s.statuses.SetStatus(ctx, facilityID, status); err != nil {
		return err
	}

	s.notifier.FacilityStatusChanged(facilityID, status)
	return nil
}

// ListStatuses returns the status of every facility
func (s *FacilityService) ListStatuses(ctx context.Context) ([]models.FacilityStatus, error) {
	return s.statuses.ListStatuses(ctx)
}

// ListReservations returns the reservations of a facility
func (s *FacilityService) ListReservations(ctx context.Context, facilityID int64) ([]models.FacilityReservation, error) {
	return s.reservations.ListByFacility(ctx, facilityID)
}

// DeleteReservation deletes a reservation and its member links
func (s *FacilityService) DeleteReservation(ctx context.Context, reservationID int64) error {
	if err := s.reservations.Delete(ctx, reservationID); err != nil {
		return err
	}

	s.notifier.ReservationDeleted(reservationID)
	return nil
}

func (s *FacilityService) checkFacilityStatus(ctx context.Context, facilityID int64) error {
	status, err := s.statuses.GetStatus(ctx, facilityID)
	if err != nil {
		return err
	}
	if status == models.FacilityOff {
		return models.ErrFacilityUnavailable
	}
	return nil
}

func (s *FacilityService) checkGroupSize(entries []GroupMember) error {
	if len(entries) == 0 || len(entries) > s.maxGroupSize {
		return fmt.Errorf("%w: %d members, allowed 1 to %d", models.ErrInvalidGroupSize, len(entries), s.maxGroupSize)
	}
	return nil
}

func (s *FacilityService) reserveFor(ctx context.Context, facilityID int64, member *models.Member) (*ReservationResult, error) {
	day := s.today()

	used, err := s.usage.HasUsedOn(ctx, member.ID, facilityID, day)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, models.ErrDailyLimitReached
	}

	reservationID, users, err := s.book(ctx, facilityID, day, []*models.Member{member})
	if err != nil {
		return nil, err
	}

	return &ReservationResult{
		FacilityID:    facilityID,
		ReservationID: reservationID,
		Users:         users,
	}, nil
}

func (s *FacilityService) reserveGroupFor(ctx context.Context, facilityID int64, members []*models.Member) (*GroupReservationResult, error) {
	ids := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, member := range members {
		if seen[member.ID] {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateMember, member.Name)
		}
		seen[member.ID] = true
		ids = append(ids, member.ID)
	}

	day := s.today()

	used, err := s.usage.HasAnyUsedOn(ctx, ids, facilityID, day)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, models.ErrDailyLimitReached
	}

	reservationID, users, err := s.book(ctx, facilityID, day, members)
	if err != nil {
		return nil, err
	}

	return &GroupReservationResult{
		FacilityID:    facilityID,
		ReservationID: reservationID,
		Users:         users,
	}, nil
}

// book records usage for every member and creates one reservation holding them all.
// The usage key is the authoritative daily limit: a concurrent booking that slipped
// past the read check fails here and rolls the whole attempt back.
func (s *FacilityService) book(ctx context.Context, facilityID int64, day time.Time, members []*models.Member) (int64, []models.RosterEntry, error) {
	var reservationID int64
	err := s.reservations.WithinTx(ctx, func(b repository.Booking) error {
		for _, member := range members {
			if err := b.RecordUsage(ctx, member.ID, facilityID, day); err != nil {
				return err
			}
		}

		reservation, err := b.CreateReservation(ctx, facilityID)
		if err != nil {
			return err
		}
		reservationID = reservation.ID

		for _, member := range members {
			if err := b.AddMember(ctx, reservation.ID, member.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	users, err := s.reservations.Roster(ctx, reservationID)
	if err != nil {
		return 0, nil, err
	}

	s.notifier.ReservationCreated(facilityID, reservationID, users)
	return reservationID, users, nil
}

func (s *FacilityService) today() time.Time {
	return models.DayOf(s.now(), s.loc)
}

// memberError names the request entry a member lookup failed for
func memberError(err error, entry GroupMember) error {
	if errors.Is(err, models.ErrMemberNotFound) {
		return fmt.Errorf("%w: %s (%s)", models.ErrMemberNotFound, entry.Name, entry.Birth)
	}
	return err
}

type noopNotifier struct{}

func (noopNotifier) FacilityStatusChanged(int64, string) {}

func (noopNotifier) ReservationCreated(int64, int64, []models.RosterEntry) {}

func (noopNotifier) ReservationDeleted(int64) {}
