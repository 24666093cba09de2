package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report json names in field errors
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// a zero date counts as missing for "required"
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if date, ok := field.Interface().(models.Date); ok && !date.IsZero() {
			return date.Time
		}
		return nil
	}, models.Date{})

	return v
}

// errorMapping is the HTTP rendering of a service error
type errorMapping struct {
	target error
	code   string
	status int
}

// order matters: the specific conflicts before ErrConflict
var errorMappings = []errorMapping{
	{models.ErrFacilityNotFound, "FACILITY_NOT_FOUND", http.StatusNotFound},
	{models.ErrFacilityUnavailable, "FACILITY_UNAVAILABLE", http.StatusForbidden},
	{models.ErrMemberNotFound, "MEMBER_NOT_FOUND", http.StatusNotFound},
	{models.ErrPhoneRequired, "PHONE_REQUIRED", http.StatusBadRequest},
	{models.ErrDailyLimitReached, "DAILY_LIMIT_REACHED", http.StatusForbidden},
	{models.ErrReservationNotFound, "RESERVATION_NOT_FOUND", http.StatusNotFound},
	{models.ErrInvalidStatus, "INVALID_STATUS", http.StatusBadRequest},
	{models.ErrPhoneConflict, "PHONE_NUM_CONFLICT", http.StatusConflict},
	{models.ErrMemberIDConflict, "MEMBER_ID_CONFLICT", http.StatusConflict},
	{models.ErrConflict, "CONFLICT", http.StatusConflict},
	{models.ErrTokenExpired, "TOKEN_EXPIRED", http.StatusUnauthorized},
	{models.ErrBoardNotFound, "BOARD_NOT_FOUND", http.StatusNotFound},
	{models.ErrInvalidGroupSize, "INVALID_GROUP_SIZE", http.StatusBadRequest},
	{models.ErrDuplicateMember, "DUPLICATE_MEMBER", http.StatusBadRequest},
	{models.ErrInvalidImage, "INVALID_IMAGE", http.StatusBadRequest},
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps a service error onto its status and code; unknown errors are 500
func respondServiceError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondError(w, err.Error(), m.code, m.status)
			return
		}
	}

	log.Error().Err(err).Msg("Unhandled service error")
	respondError(w, "Internal server error", "INTERNAL_SERVER_ERROR", http.StatusInternalServerError)
}

// decodeAndValidate reads a JSON body into req and validates it
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
		return false
	}
	return validateRequest(w, req)
}

func validateRequest(w http.ResponseWriter, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		respondError(w, "Invalid input", "VALIDATION_ERROR", http.StatusBadRequest)
		return false
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Code:    "VALIDATION_ERROR",
		Details: details,
	})
	return false
}

// pathID parses a positive int64 URL parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, "Invalid "+name, "INVALID_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
