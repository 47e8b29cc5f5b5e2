package ws

import (
	"encoding/json"
	"sync"

	"vego/backend/services/stations-service/internal/models"
)

// Hub tracks connected feed clients and broadcasts station updates to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub builds client hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Add registers new client.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID()] = client
}

// Remove removes client.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the full current station list to every client.
func (h *Hub) Broadcast(stations []models.Station) {
	frame, err := encodeStations(stations)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.Send(frame)
	}
}

func encodeStations(stations []models.Station) ([]byte, error) {
	if stations == nil {
		stations = []models.Station{}
	}
	return json.Marshal(map[string]interface{}{
		"type":     "stations",
		"stations": stations,
	})
}
