package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tabletally/internal/registry"
	"tabletally/internal/ws"
)

func setupTestAPI(t *testing.T) *API {
	t.Helper()

	reg := registry.New()
	hub := ws.NewHub(reg, nil)
	go hub.Run()

	return New(hub, reg)
}

func TestHealthHandler(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	api.HealthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", response["status"])
	}
}

func TestStatsHandler(t *testing.T) {
	api := setupTestAPI(t)

	api.registry.Create()
	api.registry.Create()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()

	api.StatsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["open_rooms"] != float64(2) {
		t.Errorf("Expected 2 open rooms, got %v", response["open_rooms"])
	}
	if _, ok := response["active_clients"]; !ok {
		t.Error("Response should contain 'active_clients'")
	}
}

func TestListRooms(t *testing.T) {
	api := setupTestAPI(t)

	code := api.registry.Create()
	api.registry.SetState(code, json.RawMessage(`{"players":[]}`))
	api.registry.Create()

	req := httptest.NewRequest("GET", "/api/rooms", nil)
	w := httptest.NewRecorder()

	api.ListRoomsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Rooms []RoomResponse `json:"rooms"`
		Count int            `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Count != 2 {
		t.Fatalf("Expected 2 rooms, got %d", response.Count)
	}

	started := 0
	for _, room := range response.Rooms {
		if room.Started {
			started++
		}
		if room.ActiveUsers != 0 {
			t.Errorf("Room %s should have no connected users, got %d", room.Code, room.ActiveUsers)
		}
	}
	if started != 1 {
		t.Errorf("Expected exactly 1 started room, got %d", started)
	}
}

func TestListRoomsMethodNotAllowed(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest("POST", "/api/rooms", nil)
	w := httptest.NewRecorder()

	api.ListRoomsHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
