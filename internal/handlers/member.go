package handlers

import (
	"net/http"

	"github.com/KNU-SingalProject/back/internal/middleware"
	"github.com/KNU-SingalProject/back/internal/models"
	"github.com/KNU-SingalProject/back/internal/services"

	"github.com/rs/zerolog/log"
)

// SignUpRequest is the body of POST /users/sign-up
type SignUpRequest struct {
	MemberID string      `json:"member_id" validate:"required,min=1,max=10"`
	Name     string      `json:"name" validate:"required,min=2,max=20"`
	Gender   string      `json:"gender" validate:"required,oneof=male female"`
	Birth    models.Date `json:"birth" validate:"required"`
	PhoneNum string      `json:"phone_num" validate:"required,numeric,min=10,max=11"`
}

// IdentityRequest is the body of POST /users/log-in
type IdentityRequest struct {
	Name  string      `json:"name" validate:"required,min=2,max=20"`
	Birth models.Date `json:"birth" validate:"required"`
}

// IdentityPhoneRequest is the body of POST /users/log-in/confirm
type IdentityPhoneRequest struct {
	Name     string      `json:"name" validate:"required,min=2,max=20"`
	Birth    models.Date `json:"birth" validate:"required"`
	PhoneNum string      `json:"phone_num" validate:"required,numeric,min=10,max=11"`
}

// SearchResponse lists the members sharing a name and birth date
type SearchResponse struct {
	Multiple bool             `json:"multiple"`
	Members  []*models.Member `json:"members"`
}

// MemberHandler handles member-related HTTP requests
type MemberHandler struct {
	memberService *services.MemberService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{
		memberService: memberService,
	}
}

// SignUp handles POST /api/v1/users/sign-up
func (h *MemberHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	member, err := h.memberService.SignUp(r.Context(), services.SignUpInput{
		MemberID: req.MemberID,
		Name:     req.Name,
		Gender:   req.Gender,
		Birth:    req.Birth,
		PhoneNum: req.PhoneNum,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("member_id", req.MemberID).
			Msg("Failed to sign up")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("member_id", member.ID).
		Int("age", member.Age).
		Msg("Member signed up")

	respondJSON(w, http.StatusCreated, member)
}

// LogIn handles POST /api/v1/users/log-in
func (h *MemberHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	var req IdentityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.memberService.LogIn(r.Context(), req.Name, req.Birth)
	if err != nil {
		log.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to log in")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ConfirmLogIn handles POST /api/v1/users/log-in/confirm
func (h *MemberHandler) ConfirmLogIn(w http.ResponseWriter, r *http.Request) {
	var req IdentityPhoneRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.memberService.LogInWithPhone(r.Context(), req.Name, req.Birth, req.PhoneNum)
	if err != nil {
		log.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to confirm log in")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Search handles GET /api/v1/users/search?name=&birth=
func (h *MemberHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	birth, err := models.ParseDate(query.Get("birth"))
	if err != nil {
		respondError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	req := IdentityRequest{Name: query.Get("name"), Birth: birth}
	if !validateRequest(w, &req) {
		return
	}

	resolution, err := h.memberService.ResolveIdentity(r.Context(), req.Name, req.Birth)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := SearchResponse{Multiple: resolution.Multiple(), Members: resolution.Candidates}
	if resolution.Member != nil {
		resp.Members = []*models.Member{resolution.Member}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/v1/users/me
func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID := middleware.GetMemberID(ctx)

	profile, err := h.memberService.GetProfile(ctx, memberID)
	if err != nil {
		log.Error().
			Err(err).
			Str("member_id", memberID).
			Msg("Failed to get member")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
