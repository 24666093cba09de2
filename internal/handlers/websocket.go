package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/KNU-SingalProject/back/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // kiosks are served from arbitrary local origins
	},
}

// WebSocketHandler serves the kiosk event feed
type WebSocketHandler struct {
	hub             *services.WSHub
	facilityService *services.FacilityService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, facilityService *services.FacilityService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:             hub,
		facilityService: facilityService,
	}
}

// HandleWebSocket handles GET /api/v1/ws?facility_id=; without facility_id every facility is watched
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var facilityID int64
	if raw := r.URL.Query().Get("facility_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, "Invalid facility_id", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		facilityID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	clientID := uuid.New().String()
	h.hub.Register(clientID, conn, facilityID)
	defer h.hub.Unregister(clientID)

	ctx := r.Context()
	h.sendStatus(ctx, clientID, facilityID)

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("client_id", clientID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("client_id", clientID).Msg("Failed to parse WebSocket message")
			h.sendError(clientID, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, clientID, msg); err != nil {
			log.Error().Err(err).Str("client_id", clientID).Str("type", msg.Type).Msg("Failed to handle message")
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, clientID string, msg services.WSMessage) error {
	switch msg.Type {
	case services.WSTypePing:
		return h.hub.SendTo(clientID, services.WSMessage{Type: services.WSTypePong})
	case services.WSTypeSubscribe:
		if msg.FacilityID < 0 {
			return h.sendError(clientID, "Invalid facility_id")
		}
		if err := h.hub.Subscribe(clientID, msg.FacilityID); err != nil {
			return err
		}
		h.sendStatus(ctx, clientID, msg.FacilityID)
		return nil
	default:
		return h.sendError(clientID, "Unknown message type")
	}
}

// sendStatus pushes the current status of the watched facility
func (h *WebSocketHandler) sendStatus(ctx context.Context, clientID string, facilityID int64) {
	if facilityID == 0 {
		return
	}

	status, err := h.facilityService.GetStatus(ctx, facilityID)
	if err != nil {
		h.sendError(clientID, err.Error())
		return
	}

	if err := h.hub.SendTo(clientID, services.WSMessage{
		Type:       services.WSTypeFacilityStatus,
		FacilityID: status.FacilityID,
		Status:     status.Status,
	}); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to send facility status")
	}
}

// sendError sends an error message to a connection
func (h *WebSocketHandler) sendError(clientID, message string) error {
	return h.hub.SendTo(clientID, services.WSMessage{
		Type:    services.WSTypeError,
		Message: message,
	})
}
