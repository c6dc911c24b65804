package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"tabletally/internal/registry"
	"tabletally/internal/ws"
)

// API exposes the relay's read-only ops surface. Everything here reports
// in-memory state; rooms live and die with the process.
type API struct {
	hub      *ws.Hub
	registry *registry.Registry
}

func New(hub *ws.Hub, reg *registry.Registry) *API {
	return &API{
		hub:      hub,
		registry: reg,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"open_rooms":     a.registry.Len(),
		"active_clients": a.hub.ClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

type RoomResponse struct {
	Code        string `json:"code"`
	Started     bool   `json:"started"`
	ActiveUsers int    `json:"active_users"`
}

// ListRoomsHandler returns every open room with its occupancy and whether
// a game is in progress.
func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	active := a.hub.ActiveRooms()

	rooms := a.registry.List()
	response := make([]RoomResponse, len(rooms))
	for i, room := range rooms {
		response[i] = RoomResponse{
			Code:        room.Code,
			Started:     room.Started,
			ActiveUsers: active[room.Code],
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": response,
		"count": len(response),
	})
}
