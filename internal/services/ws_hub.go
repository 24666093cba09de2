package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocket message types
const (
	WSTypeFacilityStatus     = "facility_status"
	WSTypeReservationCreated = "reservation_created"
	WSTypeReservationDeleted = "reservation_deleted"
	WSTypeSubscribe          = "subscribe"
	WSTypePing               = "ping"
	WSTypePong               = "pong"
	WSTypeError              = "error"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type          string               `json:"type"`
	Timestamp     int64                `json:"timestamp,omitempty"`
	FacilityID    int64                `json:"facility_id,omitempty"`
	ReservationID int64                `json:"reservation_id,omitempty"`
	Status        string               `json:"status,omitempty"`
	Users         []models.RosterEntry `json:"users,omitempty"`
	Message       string               `json:"message,omitempty"`
}

// wsClient is one kiosk connection; facilityID 0 receives every facility
type wsClient struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	facilityID int64
}

// WSHub fans facility events out to connected kiosks
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[string]*wsClient),
	}
}

// Register adds a connection, optionally filtered to one facility
func (h *WSHub) Register(clientID string, conn *websocket.Conn, facilityID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[clientID]; ok {
		existing.conn.Close()
	}
	h.clients[clientID] = &wsClient{conn: conn, facilityID: facilityID}

	log.Info().
		Str("client_id", clientID).
		Int64("facility_id", facilityID).
		Msg("WebSocket connection registered")
}

// Unregister removes a connection
func (h *WSHub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[clientID]; ok {
		client.conn.Close()
		delete(h.clients, clientID)
		log.Info().Str("client_id", clientID).Msg("WebSocket connection unregistered")
	}
}

// Subscribe changes the facility a connection is filtered to
func (h *WSHub) Subscribe(clientID string, facilityID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s is not connected", clientID)
	}
	client.facilityID = facilityID
	return nil
}

// Close disconnects every kiosk
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
}

// Count returns the number of connected kiosks
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendTo sends a message to one connection
func (h *WSHub) SendTo(clientID string, message WSMessage) error {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("client %s is not connected", clientID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(clientID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// FacilityStatusChanged broadcasts a status change
func (h *WSHub) FacilityStatusChanged(facilityID int64, status string) {
	h.broadcast(facilityID, WSMessage{
		Type:       WSTypeFacilityStatus,
		FacilityID: facilityID,
		Status:     status,
	})
}

// ReservationCreated broadcasts a new reservation
func (h *WSHub) ReservationCreated(facilityID, reservationID int64, users []models.RosterEntry) {
	h.broadcast(facilityID, WSMessage{
		Type:          WSTypeReservationCreated,
		FacilityID:    facilityID,
		ReservationID: reservationID,
		Users:         users,
	})
}

// ReservationDeleted broadcasts a deletion to every kiosk
func (h *WSHub) ReservationDeleted(reservationID int64) {
	h.broadcast(0, WSMessage{
		Type:          WSTypeReservationDeleted,
		ReservationID: reservationID,
	})
}

// broadcast sends to every connection watching facilityID; facilityID 0 reaches all
func (h *WSHub) broadcast(facilityID int64, message WSMessage) {
	message.Timestamp = time.Now().UnixMilli()

	h.mu.RLock()
	targets := make([]string, 0, len(h.clients))
	for id, client := range h.clients {
		if facilityID == 0 || client.facilityID == 0 || client.facilityID == facilityID {
			targets = append(targets, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range targets {
		if err := h.SendTo(id, message); err != nil {
			log.Error().
				Err(err).
				Str("client_id", id).
				Str("type", message.Type).
				Msg("Failed to deliver kiosk event")
		}
	}
}

func (c *wsClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
