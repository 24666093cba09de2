package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"
	"github.com/KNU-SingalProject/back/internal/repository"
)

type fakeMemberRepo struct {
	members []*models.Member
}

func newFakeMemberRepo(members ...*models.Member) *fakeMemberRepo {
	return &fakeMemberRepo{members: members}
}

func (r *fakeMemberRepo) Create(ctx context.Context, member *models.Member) error {
	for _, existing := range r.members {
		if existing.PhoneNum == member.PhoneNum {
			return models.ErrPhoneConflict
		}
		if existing.ID == member.ID {
			return models.ErrMemberIDConflict
		}
	}
	r.members = append(r.members, member)
	return nil
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, id string) (*models.Member, error) {
	for _, member := range r.members {
		if member.ID == id {
			return member, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (r *fakeMemberRepo) GetByPhone(ctx context.Context, phone string) (*models.Member, error) {
	for _, member := range r.members {
		if member.PhoneNum == phone {
			return member, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (r *fakeMemberRepo) FindByNameAndBirth(ctx context.Context, name string, birth models.Date) ([]*models.Member, error) {
	var found []*models.Member
	for _, member := range r.members {
		if member.Name == name && member.Birth.Equal(birth.Time) {
			found = append(found, member)
		}
	}
	return found, nil
}

func (r *fakeMemberRepo) FindByNameBirthPhone(ctx context.Context, name string, birth models.Date, phone string) (*models.Member, error) {
	for _, member := range r.members {
		if member.Name == name && member.Birth.Equal(birth.Time) && member.PhoneNum == phone {
			return member, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

type fakeVisitRepo struct {
	visits map[string]bool
	err    error
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: make(map[string]bool)}
}

func (r *fakeVisitRepo) Record(ctx context.Context, memberID string, day time.Time) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	key := memberID + "|" + day.Format(models.DateLayout)
	if r.visits[key] {
		return false, nil
	}
	r.visits[key] = true
	return true, nil
}

func (r *fakeVisitRepo) HasVisitedOn(ctx context.Context, memberID string, day time.Time) (bool, error) {
	return r.visits[memberID+"|"+day.Format(models.DateLayout)], nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(memberID string) (string, error) {
	return "token-" + memberID, nil
}

type usageKey struct {
	memberID   string
	facilityID int64
	day        string
}

type reservationLink struct {
	reservationID int64
	memberID      string
}

// fakeFacilityDB keeps statuses, usage and reservations; WithinTx commits only when fn succeeds
type fakeFacilityDB struct {
	members      *fakeMemberRepo
	statuses     map[int64]string
	usage        map[usageKey]bool
	reservations map[int64]*models.Reservation
	links        []reservationLink
	nextID       int64

	failAddMember error
}

func newFakeFacilityDB(members *fakeMemberRepo) *fakeFacilityDB {
	return &fakeFacilityDB{
		members:      members,
		statuses:     make(map[int64]string),
		usage:        make(map[usageKey]bool),
		reservations: make(map[int64]*models.Reservation),
	}
}

func (db *fakeFacilityDB) GetStatus(ctx context.Context, facilityID int64) (string, error) {
	status, ok := db.statuses[facilityID]
	if !ok {
		return "", models.ErrFacilityNotFound
	}
	return status, nil
}

func (db *fakeFacilityDB) SetStatus(ctx context.Context, facilityID int64, status string) error {
	db.statuses[facilityID] = status
	return nil
}

func (db *fakeFacilityDB) ListStatuses(ctx context.Context) ([]models.FacilityStatus, error) {
	result := make([]models.FacilityStatus, 0, len(db.statuses))
	for id, status := range db.statuses {
		result = append(result, models.FacilityStatus{FacilityID: id, Status: status})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FacilityID < result[j].FacilityID })
	return result, nil
}

func (db *fakeFacilityDB) HasUsedOn(ctx context.Context, memberID string, facilityID int64, day time.Time) (bool, error) {
	return db.usage[usageKey{memberID, facilityID, day.Format(models.DateLayout)}], nil
}

func (db *fakeFacilityDB) HasAnyUsedOn(ctx context.Context, memberIDs []string, facilityID int64, day time.Time) (bool, error) {
	for _, id := range memberIDs {
		if db.usage[usageKey{id, facilityID, day.Format(models.DateLayout)}] {
			return true, nil
		}
	}
	return false, nil
}

func (db *fakeFacilityDB) WithinTx(ctx context.Context, fn func(repository.Booking) error) error {
	tx := &fakeBooking{db: db, usage: make(map[usageKey]bool)}
	if err := fn(tx); err != nil {
		return err
	}

	for key := range tx.usage {
		db.usage[key] = true
	}
	for _, reservation := range tx.reservations {
		db.reservations[reservation.ID] = reservation
	}
	db.links = append(db.links, tx.links...)
	return nil
}

func (db *fakeFacilityDB) Roster(ctx context.Context, reservationID int64) ([]models.RosterEntry, error) {
	var roster []models.RosterEntry
	for _, link := range db.links {
		if link.reservationID != reservationID {
			continue
		}
		member, err := db.members.GetByID(ctx, link.memberID)
		if err != nil {
			return nil, err
		}
		roster = append(roster, models.RosterEntry{MemberID: member.ID, Name: member.Name})
	}
	return roster, nil
}

func (db *fakeFacilityDB) ListByFacility(ctx context.Context, facilityID int64) ([]models.FacilityReservation, error) {
	var result []models.FacilityReservation
	for id := int64(1); id <= db.nextID; id++ {
		reservation, ok := db.reservations[id]
		if !ok || reservation.FacilityID != facilityID {
			continue
		}
		roster, _ := db.Roster(ctx, id)
		users := make([]string, 0, len(roster))
		for _, entry := range roster {
			users = append(users, entry.Name)
		}
		result = append(result, models.FacilityReservation{
			ReservationID: id,
			Status:        reservation.Status,
			Users:         users,
		})
	}
	return result, nil
}

func (db *fakeFacilityDB) Delete(ctx context.Context, id int64) error {
	if _, ok := db.reservations[id]; !ok {
		return models.ErrReservationNotFound
	}
	delete(db.reservations, id)

	kept := db.links[:0]
	for _, link := range db.links {
		if link.reservationID != id {
			kept = append(kept, link)
		}
	}
	db.links = kept
	return nil
}

func (db *fakeFacilityDB) usageCount() int {
	return len(db.usage)
}

type fakeBooking struct {
	db           *fakeFacilityDB
	usage        map[usageKey]bool
	reservations []*models.Reservation
	links        []reservationLink
}

func (b *fakeBooking) CreateReservation(ctx context.Context, facilityID int64) (*models.Reservation, error) {
	if _, ok := b.db.statuses[facilityID]; !ok {
		return nil, models.ErrFacilityNotFound
	}
	b.db.nextID++
	reservation := &models.Reservation{
		ID:         b.db.nextID,
		FacilityID: facilityID,
		Status:     models.ReservationAvailable,
	}
	b.reservations = append(b.reservations, reservation)
	return reservation, nil
}

func (b *fakeBooking) AddMember(ctx context.Context, reservationID int64, memberID string) error {
	if b.db.failAddMember != nil {
		return b.db.failAddMember
	}
	for _, link := range b.links {
		if link.reservationID == reservationID && link.memberID == memberID {
			return models.ErrDuplicateMember
		}
	}
	b.links = append(b.links, reservationLink{reservationID, memberID})
	return nil
}

func (b *fakeBooking) RecordUsage(ctx context.Context, memberID string, facilityID int64, day time.Time) error {
	key := usageKey{memberID, facilityID, day.Format(models.DateLayout)}
	if b.db.usage[key] || b.usage[key] {
		return models.ErrDailyLimitReached
	}
	b.usage[key] = true
	return nil
}

type notifierEvent struct {
	kind          string
	facilityID    int64
	reservationID int64
	status        string
}

type fakeNotifier struct {
	events []notifierEvent
}

func (n *fakeNotifier) FacilityStatusChanged(facilityID int64, status string) {
	n.events = append(n.events, notifierEvent{kind: "status", facilityID: facilityID, status: status})
}

func (n *fakeNotifier) ReservationCreated(facilityID, reservationID int64, users []models.RosterEntry) {
	n.events = append(n.events, notifierEvent{kind: "created", facilityID: facilityID, reservationID: reservationID})
}

func (n *fakeNotifier) ReservationDeleted(reservationID int64) {
	n.events = append(n.events, notifierEvent{kind: "deleted", reservationID: reservationID})
}

type fakeBlobStore struct {
	objects map[string][]byte
	failPut error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.failPut != nil {
		return "", s.failPut
	}
	s.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *fakeBlobStore) KeyFromURL(url string) (string, bool) {
	const prefix = "https://cdn.test/"
	if len(url) <= len(prefix) || url[:len(prefix)] != prefix {
		return "", false
	}
	return url[len(prefix):], true
}

type fakeBoardRepo struct {
	boards  map[int64]*models.Board
	nextID  int64
	failErr error
}

func newFakeBoardRepo() *fakeBoardRepo {
	return &fakeBoardRepo{boards: make(map[int64]*models.Board)}
}

func (r *fakeBoardRepo) Create(ctx context.Context, board *models.Board) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.nextID++
	board.ID = r.nextID
	stored := *board
	r.boards[board.ID] = &stored
	return nil
}

func (r *fakeBoardRepo) GetByID(ctx context.Context, id int64) (*models.Board, error) {
	board, ok := r.boards[id]
	if !ok {
		return nil, models.ErrBoardNotFound
	}
	copied := *board
	return &copied, nil
}

func (r *fakeBoardRepo) List(ctx context.Context) ([]*models.Board, error) {
	var result []*models.Board
	for id := r.nextID; id > 0; id-- {
		if board, ok := r.boards[id]; ok {
			result = append(result, board)
		}
	}
	return result, nil
}

func (r *fakeBoardRepo) Update(ctx context.Context, id int64, title, content *string) error {
	board, ok := r.boards[id]
	if !ok {
		return models.ErrBoardNotFound
	}
	if title != nil {
		board.Title = *title
	}
	if content != nil {
		board.Content = *content
	}
	return nil
}

func (r *fakeBoardRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	board, ok := r.boards[id]
	if !ok {
		return nil, models.ErrBoardNotFound
	}
	delete(r.boards, id)
	return board.Images, nil
}

var errStoreDown = errors.New("store down")

func member(id, name string, birth models.Date, phone string) *models.Member {
	return &models.Member{
		ID:       id,
		Name:     name,
		Gender:   models.GenderFemale,
		Birth:    birth,
		PhoneNum: phone,
	}
}

func mustDate(value string) models.Date {
	date, err := models.ParseDate(value)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q: %v", value, err))
	}
	return date
}
