package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/rs/zerolog/log"
)

// MemberStore is the member directory used by the services
type MemberStore interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id string) (*models.Member, error)
	GetByPhone(ctx context.Context, phone string) (*models.Member, error)
	FindByNameAndBirth(ctx context.Context, name string, birth models.Date) ([]*models.Member, error)
	FindByNameBirthPhone(ctx context.Context, name string, birth models.Date, phone string) (*models.Member, error)
}

// VisitLog records daily check-ins
type VisitLog interface {
	Record(ctx context.Context, memberID string, day time.Time) (bool, error)
	HasVisitedOn(ctx context.Context, memberID string, day time.Time) (bool, error)
}

// TokenIssuer issues access tokens for members
type TokenIssuer interface {
	Issue(memberID string) (string, error)
}

// MemberService handles member-related business logic
type MemberService struct {
	members MemberStore
	visits  VisitLog
	tokens  TokenIssuer
	loc     *time.Location
	now     func() time.Time
}

// NewMemberService creates a new member service
func NewMemberService(members MemberStore, visits VisitLog, tokens TokenIssuer, loc *time.Location) *MemberService {
	return &MemberService{
		members: members,
		visits:  visits,
		tokens:  tokens,
		loc:     loc,
		now:     time.Now,
	}
}

// SignUpInput is the data a new member registers with
type SignUpInput struct {
	MemberID string
	Name     string
	Gender   string
	Birth    models.Date
	PhoneNum string
}

// Resolution is the outcome of looking a member up by name and birth date.
// Exactly one of Member and Candidates is set.
type Resolution struct {
	Member     *models.Member
	Candidates []*models.Member
}

// Multiple reports whether the lookup needs a phone number to pick a member
func (r *Resolution) Multiple() bool {
	return len(r.Candidates) > 1
}

// PhoneNumbers lists the phone numbers of the candidates
func (r *Resolution) PhoneNumbers() []string {
	phones := make([]string, 0, len(r.Candidates))
	for _, candidate := range r.Candidates {
		phones = append(phones, candidate.PhoneNum)
	}
	return phones
}

// LoginResult is either an access token or the phone numbers to choose from
type LoginResult struct {
	Multiple        bool     `json:"multiple"`
	PhoneNumbers    []string `json:"phone_numbers,omitempty"`
	AccessToken     string   `json:"access_token,omitempty"`
	Name            string   `json:"name,omitempty"`
	FirstVisitToday bool     `json:"first_visit_today,omitempty"`
}

// Profile is a member together with today's check-in state
type Profile struct {
	*models.Member
	VisitedToday bool `json:"visited_today"`
}

// SignUp registers a new member; the age is fixed at creation time
func (s *MemberService) SignUp(ctx context.Context, in SignUpInput) (*models.Member, error) {
	if _, err := s.members.GetByPhone(ctx, in.PhoneNum); err == nil {
		return nil, models.ErrPhoneConflict
	} else if !errors.Is(err, models.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check phone number: %w", err)
	}

	if _, err := s.members.GetByID(ctx, in.MemberID); err == nil {
		return nil, models.ErrMemberIDConflict
	} else if !errors.Is(err, models.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check member id: %w", err)
	}

	now := s.now()
	member := &models.Member{
		ID:        in.MemberID,
		Name:      strings.TrimSpace(in.Name),
		Gender:    in.Gender,
		Birth:     in.Birth,
		Age:       models.AgeAt(in.Birth.Time, now.In(s.loc)),
		PhoneNum:  in.PhoneNum,
		CreatedAt: now,
	}

	// The unique constraints still decide when two sign-ups race past the checks above.
	if err := s.members.Create(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

// ResolveIdentity looks members up by name and birth date
func (s *MemberService) ResolveIdentity(ctx context.Context, name string, birth models.Date) (*Resolution, error) {
	members, err := s.members.FindByNameAndBirth(ctx, strings.TrimSpace(name), birth)
	if err != nil {
		return nil, err
	}

	switch len(members) {
	case 0:
		return nil, models.ErrMemberNotFound
	case 1:
		return &Resolution{Member: members[0]}, nil
	default:
		return &Resolution{Candidates: members}, nil
	}
}

// ResolveWithPhone picks the member matching name, birth date and phone number
func (s *MemberService) ResolveWithPhone(ctx context.Context, name string, birth models.Date, phone string) (*models.Member, error) {
	return s.members.FindByNameBirthPhone(ctx, strings.TrimSpace(name), birth, strings.TrimSpace(phone))
}

// LogIn issues a token when name and birth date identify one member
func (s *MemberService) LogIn(ctx context.Context, name string, birth models.Date) (*LoginResult, error) {
	resolution, err := s.ResolveIdentity(ctx, name, birth)
	if err != nil {
		return nil, err
	}

	if resolution.Multiple() {
		return &LoginResult{
			Multiple:     true,
			PhoneNumbers: resolution.PhoneNumbers(),
		}, nil
	}

	return s.issueLogin(ctx, resolution.Member)
}

// LogInWithPhone issues a token for the member picked by phone number
func (s *MemberService) LogInWithPhone(ctx context.Context, name string, birth models.Date, phone string) (*LoginResult, error) {
	member, err := s.ResolveWithPhone(ctx, name, birth, phone)
	if err != nil {
		return nil, err
	}
	return s.issueLogin(ctx, member)
}

// GetProfile returns the member a token was issued for
func (s *MemberService) GetProfile(ctx context.Context, memberID string) (*Profile, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	visited, err := s.visits.HasVisitedOn(ctx, memberID, s.today())
	if err != nil {
		return nil, err
	}

	return &Profile{Member: member, VisitedToday: visited}, nil
}

func (s *MemberService) issueLogin(ctx context.Context, member *models.Member) (*LoginResult, error) {
	token, err := s.tokens.Issue(member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	firstVisit, err := s.visits.Record(ctx, member.ID, s.today())
	if err != nil {
		// a missed check-in does not fail the login
		log.Warn().Err(err).Str("member_id", member.ID).Msg("Failed to record visit")
	}

	return &LoginResult{
		AccessToken:     token,
		Name:            member.Name,
		FirstVisitToday: firstVisit,
	}, nil
}

func (s *MemberService) today() time.Time {
	return models.DayOf(s.now(), s.loc)
}
