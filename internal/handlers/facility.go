package handlers

import (
	"net/http"
	"strconv"

	"github.com/KNU-SingalProject/back/internal/models"
	"github.com/KNU-SingalProject/back/internal/services"

	"github.com/rs/zerolog/log"
)

// ReserveRequest is the body of POST /facility/reserve
type ReserveRequest struct {
	FacilityID int64       `json:"facility_id" validate:"required,gt=0"`
	Name       string      `json:"name" validate:"required,min=2,max=20"`
	Birth      models.Date `json:"birth" validate:"required"`
}

// ReserveConfirmRequest is the body of POST /facility/reserve/confirm
type ReserveConfirmRequest struct {
	FacilityID int64       `json:"facility_id" validate:"required,gt=0"`
	Name       string      `json:"name" validate:"required,min=2,max=20"`
	Birth      models.Date `json:"birth" validate:"required"`
	PhoneNum   string      `json:"phone_num" validate:"required,numeric,min=10,max=11"`
}

// GroupMemberRequest is one member of a group reservation
type GroupMemberRequest struct {
	Name     string      `json:"name" validate:"required,min=2,max=20"`
	Birth    models.Date `json:"birth" validate:"required"`
	PhoneNum string      `json:"phone_num,omitempty" validate:"omitempty,numeric,min=10,max=11"`
}

// GroupReserveRequest is the body of both group reservation routes
type GroupReserveRequest struct {
	FacilityID int64                `json:"facility_id" validate:"required,gt=0"`
	Members    []GroupMemberRequest `json:"members" validate:"required,dive"`
}

// SetStatusRequest is the body of PUT /facility/{facility_id}/status
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// FacilityHandler handles reservation and facility status requests
type FacilityHandler struct {
	facilityService *services.FacilityService
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(facilityService *services.FacilityService) *FacilityHandler {
	return &FacilityHandler{
		facilityService: facilityService,
	}
}

// Reserve handles POST /api/v1/facility/reserve
func (h *FacilityHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.facilityService.Reserve(r.Context(), req.FacilityID, req.Name, req.Birth)
	if err != nil {
		log.Error().
			Err(err).
			Int64("facility_id", req.FacilityID).
			Str("name", req.Name).
			Msg("Failed to reserve facility")
		respondServiceError(w, err)
		return
	}

	respondReservation(w, result)
}

// ConfirmReserve handles POST /api/v1/facility/reserve/confirm
func (h *FacilityHandler) ConfirmReserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveConfirmRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.facilityService.ConfirmReserve(r.Context(), req.FacilityID, req.Name, req.Birth, req.PhoneNum)
	if err != nil {
		log.Error().
			Err(err).
			Int64("facility_id", req.FacilityID).
			Str("name", req.Name).
			Msg("Failed to confirm reservation")
		respondServiceError(w, err)
		return
	}

	respondReservation(w, result)
}

// ReserveGroup handles POST /api/v1/facility/reserve/group
func (h *FacilityHandler) ReserveGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupReserveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.facilityService.ReserveGroup(r.Context(), req.FacilityID, groupMembers(req.Members))
	if err != nil {
		log.Error().
			Err(err).
			Int64("facility_id", req.FacilityID).
			Int("members", len(req.Members)).
			Msg("Failed to reserve facility for group")
		respondServiceError(w, err)
		return
	}

	respondGroupReservation(w, result)
}

// ConfirmGroup handles POST /api/v1/facility/reserve/group/confirm
func (h *FacilityHandler) ConfirmGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupReserveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.facilityService.ConfirmGroup(r.Context(), req.FacilityID, groupMembers(req.Members))
	if err != nil {
		log.Error().
			Err(err).
			Int64("facility_id", req.FacilityID).
			Int("members", len(req.Members)).
			Msg("Failed to confirm group reservation")
		respondServiceError(w, err)
		return
	}

	respondGroupReservation(w, result)
}

// ListReservations handles GET /api/v1/facility/reserve?facility_id=
func (h *FacilityHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	facilityID, err := strconv.ParseInt(r.URL.Query().Get("facility_id"), 10, 64)
	if err != nil || facilityID <= 0 {
		respondError(w, "facility_id query parameter required", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	reservations, err := h.facilityService.ListReservations(r.Context(), facilityID)
	if err != nil {
		log.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to list reservations")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"facility_id":  facilityID,
		"reservations": reservations,
	})
}

// DeleteReservation handles DELETE /api/v1/facility/reserve/{reservation_id}
func (h *FacilityHandler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, ok := pathID(w, r, "reservation_id")
	if !ok {
		return
	}

	if err := h.facilityService.DeleteReservation(r.Context(), reservationID); err != nil {
		log.Error().Err(err).Int64("reservation_id", reservationID).Msg("Failed to delete reservation")
		respondServiceError(w, err)
		return
	}

	log.Info().Int64("reservation_id", reservationID).Msg("Reservation deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ListStatuses handles GET /api/v1/facility/status
func (h *FacilityHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.facilityService.ListStatuses(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list facility statuses")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": statuses,
	})
}

// GetStatus handles GET /api/v1/facility/{facility_id}/status
func (h *FacilityHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	facilityID, ok := pathID(w, r, "facility_id")
	if !ok {
		return
	}

	status, err := h.facilityService.GetStatus(r.Context(), facilityID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// SetStatus handles PUT /api/v1/facility/{facility_id}/status
func (h *FacilityHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	facilityID, ok := pathID(w, r, "facility_id")
	if !ok {
		return
	}

	var req SetStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.facilityService.SetStatus(r.Context(), facilityID, req.Status); err != nil {
		log.Error().
			Err(err).
			Int64("facility_id", facilityID).
			Str("status", req.Status).
			Msg("Failed to set facility status")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Int64("facility_id", facilityID).
		Str("status", req.Status).
		Msg("Facility status changed")

	respondJSON(w, http.StatusOK, models.FacilityStatus{FacilityID: facilityID, Status: req.Status})
}

func groupMembers(reqs []GroupMemberRequest) []services.GroupMember {
	members := make([]services.GroupMember, 0, len(reqs))
	for _, req := range reqs {
		members = append(members, services.GroupMember{
			Name:  req.Name,
			Birth: req.Birth,
			Phone: req.PhoneNum,
		})
	}
	return members
}

// respondReservation answers 201 for a booking and 200 for a phone number prompt
func respondReservation(w http.ResponseWriter, result *services.ReservationResult) {
	if result.Multiple {
		respondJSON(w, http.StatusOK, result)
		return
	}

	log.Info().
		Int64("facility_id", result.FacilityID).
		Int64("reservation_id", result.ReservationID).
		Msg("Reservation created")
	respondJSON(w, http.StatusCreated, result)
}

func respondGroupReservation(w http.ResponseWriter, result *services.GroupReservationResult) {
	if result.ConfirmRequired {
		respondJSON(w, http.StatusOK, result)
		return
	}

	log.Info().
		Int64("facility_id", result.FacilityID).
		Int64("reservation_id", result.ReservationID).
		Int("members", len(result.Users)).
		Msg("Group reservation created")
	respondJSON(w, http.StatusCreated, result)
}
