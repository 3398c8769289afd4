package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"guess_game/internal/logger"

	"github.com/google/uuid"
)

// Envelope is the frame pushed to subscribers.
type Envelope struct {
	Type    string    `json:"type"`
	GameID  uuid.UUID `json:"game_id"`
	Payload any       `json:"payload"`
}

// Hub fans game events out to the rooms of websocket subscribers.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
	log   *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]*Room),
		log:   logger.With("component", "ws_hub"),
	}
}

func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.GameID]
	if !ok {
		room = newRoom(c.GameID)
		h.rooms[c.GameID] = room
	}
	room.add(c)
}

// Unsubscribe closes c's send channel; calling it twice is safe.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	room, ok := h.rooms[c.GameID]
	if !ok || !room.remove(c) {
		return
	}
	close(c.Send)
	if room.empty() {
		delete(h.rooms, c.GameID)
	}
}

// Publish implements service.EventPublisher. Subscribers that cannot keep up
// are disconnected.
func (h *Hub) Publish(gameID uuid.UUID, eventType string, payload any) {
	msg, err := json.Marshal(Envelope{Type: eventType, GameID: gameID, Payload: payload})
	if err != nil {
		h.log.Error("failed to encode event", "type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[gameID]
	if !ok {
		return
	}
	for _, c := range room.broadcast(msg) {
		h.log.Warn("dropping slow subscriber", "game_id", gameID)
		h.dropLocked(c)
	}
}

// Subscribers returns the number of clients following gameID.
func (h *Hub) Subscribers(gameID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[gameID]; ok {
		return len(room.clients)
	}
	return 0
}
