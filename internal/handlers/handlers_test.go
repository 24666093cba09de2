package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"
	"github.com/KNU-SingalProject/back/internal/repository"
	"github.com/KNU-SingalProject/back/internal/services"

	"github.com/go-chi/chi/v5"
)

type memoryMembers struct {
	members []*models.Member
}

func (m *memoryMembers) Create(ctx context.Context, member *models.Member) error {
	m.members = append(m.members, member)
	return nil
}

func (m *memoryMembers) GetByID(ctx context.Context, id string) (*models.Member, error) {
	for _, member := range m.members {
		if member.ID == id {
			return member, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (m *memoryMembers) GetByPhone(ctx context.Context, phone string) (*models.Member, error) {
	for _, member := range m.members {
		if member.PhoneNum == phone {
			return member, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (m *memoryMembers) FindByNameAndBirth(ctx context.Context, name string, birth models.Date) ([]*models.Member, error) {
	var found []*models.Member
	for _, member := range m.members {
		if member.Name == name && member.Birth.Equal(birth.Time) {
			found = append(found, member)
		}
	}
	return found, nil
}

func (m *memoryMembers) FindByNameBirthPhone(ctx context.Context, name string, birth models.Date, phone string) (*models.Member, error) {
	for _, member := range m.members {
		if member.Name == name && member.Birth.Equal(birth.Time) && member.PhoneNum == phone {
			return member, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

type memoryVisits struct{}

func (memoryVisits) Record(ctx context.Context, memberID string, day time.Time) (bool, error) {
	return true, nil
}

func (memoryVisits) HasVisitedOn(ctx context.Context, memberID string, day time.Time) (bool, error) {
	return false, nil
}

type staticTokens struct{}

func (staticTokens) Issue(memberID string) (string, error) {
	return "token-" + memberID, nil
}

// memoryFacilities stores one reservation per call and never rejects on usage
type memoryFacilities struct {
	statuses map[int64]string
	nextID   int64
	rosters  map[int64][]models.RosterEntry
}

func (f *memoryFacilities) GetStatus(ctx context.Context, facilityID int64) (string, error) {
	status, ok := f.statuses[facilityID]
	if !ok {
		return "", models.ErrFacilityNotFound
	}
	return status, nil
}

func (f *memoryFacilities) SetStatus(ctx context.Context, facilityID int64, status string) error {
	f.statuses[facilityID] = status
	return nil
}

func (f *memoryFacilities) ListStatuses(ctx context.Context) ([]models.FacilityStatus, error) {
	var result []models.FacilityStatus
	for id, status := range f.statuses {
		result = append(result, models.FacilityStatus{FacilityID: id, Status: status})
	}
	return result, nil
}

func (f *memoryFacilities) HasUsedOn(ctx context.Context, memberID string, facilityID int64, day time.Time) (bool, error) {
	return false, nil
}

func (f *memoryFacilities) HasAnyUsedOn(ctx context.Context, memberIDs []string, facilityID int64, day time.Time) (bool, error) {
	return false, nil
}

func (f *memoryFacilities) WithinTx(ctx context.Context, fn func(repository.Booking) error) error {
	return fn(f)
}

func (f *memoryFacilities) CreateReservation(ctx context.Context, facilityID int64) (*models.Reservation, error) {
	f.nextID++
	return &models.Reservation{ID: f.nextID, FacilityID: facilityID, Status: models.ReservationAvailable}, nil
}

func (f *memoryFacilities) AddMember(ctx context.Context, reservationID int64, memberID string) error {
	f.rosters[reservationID] = append(f.rosters[reservationID], models.RosterEntry{MemberID: memberID})
	return nil
}

func (f *memoryFacilities) RecordUsage(ctx context.Context, memberID string, facilityID int64, day time.Time) error {
	return nil
}

func (f *memoryFacilities) Roster(ctx context.Context, reservationID int64) ([]models.RosterEntry, error) {
	return f.rosters[reservationID], nil
}

func (f *memoryFacilities) ListByFacility(ctx context.Context, facilityID int64) ([]models.FacilityReservation, error) {
	return nil, nil
}

func (f *memoryFacilities) Delete(ctx context.Context, id int64) error {
	if _, ok := f.rosters[id]; !ok {
		return models.ErrReservationNotFound
	}
	delete(f.rosters, id)
	return nil
}

func newTestRouter() (http.Handler, *memoryFacilities) {
	members := &memoryMembers{members: []*models.Member{
		{ID: "kim1", Name: "Kim", Birth: models.NewDate(1950, 3, 1), PhoneNum: "01011112222"},
		{ID: "kim2", Name: "Kim", Birth: models.NewDate(1950, 3, 1), PhoneNum: "01033334444"},
		{ID: "lee", Name: "Lee", Birth: models.NewDate(1948, 7, 15), PhoneNum: "01055556666"},
	}}
	facilities := &memoryFacilities{
		statuses: map[int64]string{1: models.FacilityActive, 2: models.FacilityOff},
		rosters:  make(map[int64][]models.RosterEntry),
	}

	memberService := services.NewMemberService(members, memoryVisits{}, staticTokens{}, time.UTC)
	facilityService := services.NewFacilityService(facilities, facilities, facilities, memberService, nil, 4, time.UTC)

	memberHandler := NewMemberHandler(memberService)
	facilityHandler := NewFacilityHandler(facilityService)

	r := chi.NewRouter()
	r.Post("/users/sign-up", memberHandler.SignUp)
	r.Post("/users/log-in", memberHandler.LogIn)
	r.Get("/users/search", memberHandler.Search)
	r.Post("/facility/reserve", facilityHandler.Reserve)
	r.Post("/facility/reserve/group", facilityHandler.ReserveGroup)
	r.Post("/facility/reserve/group/confirm", facilityHandler.ConfirmGroup)
	r.Delete("/facility/reserve/{reservation_id}", facilityHandler.DeleteReservation)
	r.Put("/facility/{facility_id}/status", facilityHandler.SetStatus)
	return r, facilities
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not JSON: %s", rec.Body.String())
		}
	}
	return rec, decoded
}

func TestSignUpValidation(t *testing.T) {
	router, _ := newTestRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{
			name:       "valid",
			body:       `{"member_id":"park","name":"Park","gender":"male","birth":"1955-11-30","phone_num":"01077778888"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing birth",
			body:       `{"member_id":"park","name":"Park","gender":"male","phone_num":"01077778888"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "birth",
		},
		{
			name:       "phone with letters",
			body:       `{"member_id":"park","name":"Park","gender":"male","birth":"1955-11-30","phone_num":"010-7777-88"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "phone_num",
		},
		{
			name:       "unknown gender",
			body:       `{"member_id":"park","name":"Park","gender":"x","birth":"1955-11-30","phone_num":"01077778888"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "gender",
		},
		{
			name:       "duplicate phone",
			body:       `{"member_id":"park","name":"Park","gender":"male","birth":"1955-11-30","phone_num":"01055556666"}`,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "malformed json",
			body:       `{"member_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, router, http.MethodPost, "/users/sign-up", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", rec.Code, tt.wantStatus, body)
			}
			if tt.wantField != "" {
				details, _ := body["details"].(map[string]interface{})
				if _, ok := details[tt.wantField]; !ok {
					t.Errorf("details = %v, want an entry for %s", details, tt.wantField)
				}
			}
		})
	}
}

func TestLogInResponses(t *testing.T) {
	router, _ := newTestRouter()

	rec, body := doJSON(t, router, http.MethodPost, "/users/log-in", `{"name":"Lee","birth":"1948-07-15"}`)
	if rec.Code != http.StatusOK || body["access_token"] != "token-lee" {
		t.Errorf("single match: status %d body %v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/users/log-in", `{"name":"Kim","birth":"1950-03-01"}`)
	if rec.Code != http.StatusOK || body["multiple"] != true {
		t.Errorf("multiple matches: status %d body %v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/users/log-in", `{"name":"Nobody","birth":"1990-01-01"}`)
	if rec.Code != http.StatusNotFound || body["code"] != "MEMBER_NOT_FOUND" {
		t.Errorf("no match: status %d body %v", rec.Code, body)
	}
}

func TestSearch(t *testing.T) {
	router, _ := newTestRouter()

	rec, body := doJSON(t, router, http.MethodGet, "/users/search?name=Kim&birth=1950-03-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if members, _ := body["members"].([]interface{}); len(members) != 2 || body["multiple"] != true {
		t.Errorf("body = %v, want both Kims", body)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/users/search?name=Kim&birth=not-a-date", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad birth: status = %d, want 400", rec.Code)
	}
}

func TestReserveResponses(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "booked", body: `{"facility_id":1,"name":"Lee","birth":"1948-07-15"}`, wantStatus: http.StatusCreated},
		{name: "phone prompt", body: `{"facility_id":1,"name":"Kim","birth":"1950-03-01"}`, wantStatus: http.StatusOK},
		{name: "facility off", body: `{"facility_id":2,"name":"Lee","birth":"1948-07-15"}`, wantStatus: http.StatusForbidden, wantCode: "FACILITY_UNAVAILABLE"},
		{name: "unknown facility", body: `{"facility_id":9,"name":"Lee","birth":"1948-07-15"}`, wantStatus: http.StatusNotFound, wantCode: "FACILITY_NOT_FOUND"},
		{name: "unknown member", body: `{"facility_id":1,"name":"Nobody","birth":"1990-01-01"}`, wantStatus: http.StatusNotFound, wantCode: "MEMBER_NOT_FOUND"},
		{name: "missing facility", body: `{"name":"Lee","birth":"1948-07-15"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter()

			rec, body := doJSON(t, router, http.MethodPost, "/facility/reserve", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", rec.Code, tt.wantStatus, body)
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}

func TestGroupReserveResponses(t *testing.T) {
	router, facilities := newTestRouter()

	rec, body := doJSON(t, router, http.MethodPost, "/facility/reserve/group",
		`{"facility_id":1,"members":[{"name":"Kim","birth":"1950-03-01"},{"name":"Lee","birth":"1948-07-15"}]}`)
	if rec.Code != http.StatusOK || body["confirm_required"] != true {
		t.Fatalf("ambiguous group: status %d body %v", rec.Code, body)
	}
	if facilities.nextID != 0 {
		t.Errorf("reservation created for an ambiguous group")
	}

	rec, body = doJSON(t, router, http.MethodPost, "/facility/reserve/group/confirm",
		`{"facility_id":1,"members":[{"name":"Kim","birth":"1950-03-01"},{"name":"Lee","birth":"1948-07-15"}]}`)
	if rec.Code != http.StatusBadRequest || body["code"] != "PHONE_REQUIRED" {
		t.Errorf("confirm without phone: status %d body %v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/facility/reserve/group/confirm",
		`{"facility_id":1,"members":[{"name":"Kim","birth":"1950-03-01","phone_num":"01011112222"},{"name":"Lee","birth":"1948-07-15"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm: status %d body %v", rec.Code, body)
	}
	if users, _ := body["users"].([]interface{}); len(users) != 2 {
		t.Errorf("users = %v, want 2", body["users"])
	}

	members := `{"name":"Lee","birth":"1948-07-15"}`
	tooMany := fmt.Sprintf(`{"facility_id":1,"members":[%s,%s,%s,%s,%s]}`, members, members, members, members, members)
	rec, body = doJSON(t, router, http.MethodPost, "/facility/reserve/group", tooMany)
	if rec.Code != http.StatusBadRequest || body["code"] != "INVALID_GROUP_SIZE" {
		t.Errorf("five members: status %d body %v", rec.Code, body)
	}
}

func TestSetStatusAndDelete(t *testing.T) {
	router, facilities := newTestRouter()

	rec, body := doJSON(t, router, http.MethodPut, "/facility/1/status", `{"status":"closed"}`)
	if rec.Code != http.StatusBadRequest || body["code"] != "INVALID_STATUS" {
		t.Errorf("invalid status: status %d body %v", rec.Code, body)
	}

	rec, _ = doJSON(t, router, http.MethodPut, "/facility/1/status", `{"status":"off"}`)
	if rec.Code != http.StatusOK || facilities.statuses[1] != models.FacilityOff {
		t.Errorf("set off: status %d, stored %s", rec.Code, facilities.statuses[1])
	}

	rec, body = doJSON(t, router, http.MethodDelete, "/facility/reserve/42", "")
	if rec.Code != http.StatusNotFound || body["code"] != "RESERVATION_NOT_FOUND" {
		t.Errorf("delete missing: status %d body %v", rec.Code, body)
	}

	rec, _ = doJSON(t, router, http.MethodDelete, "/facility/reserve/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete with bad id: status %d, want 400", rec.Code)
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("%w: Kim (1950-03-01)", models.ErrPhoneRequired), http.StatusBadRequest, "PHONE_REQUIRED"},
		{models.ErrDailyLimitReached, http.StatusForbidden, "DAILY_LIMIT_REACHED"},
		{models.ErrPhoneConflict, http.StatusConflict, "PHONE_NUM_CONFLICT"},
		{models.ErrMemberIDConflict, http.StatusConflict, "MEMBER_ID_CONFLICT"},
		{models.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{models.ErrBoardNotFound, http.StatusNotFound, "BOARD_NOT_FOUND"},
		{models.ErrInvalidImage, http.StatusBadRequest, "INVALID_IMAGE"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, tt.err)

			var body ErrorResponse
			json.Unmarshal(rec.Body.Bytes(), &body)
			if rec.Code != tt.wantStatus || body.Code != tt.wantCode {
				t.Errorf("got %d %s, want %d %s", rec.Code, body.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
