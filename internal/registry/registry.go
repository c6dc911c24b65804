package registry

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"tabletally/internal/code"
)

// ErrRoomNotFound is returned by Join for codes with no open room.
var ErrRoomNotFound = errors.New("room not found")

// RoomInfo is a read-only view of one open room.
type RoomInfo struct {
	Code    string
	Started bool
}

// The process-wide table of open rooms. A room's state is nil until the
// first update-state arrives (room created, game not started yet), then
// always the most recently received snapshot. The registry never inspects
// snapshot contents; last writer wins.
type Registry struct {
	mu    sync.RWMutex
	rng   *rand.Rand
	rooms map[string]json.RawMessage
}

// New creates an empty registry. Construct one per relay process and hand
// it to the connection handlers; it is not a package-level singleton so
// tests can run independent instances.
func New() *Registry {
	return &Registry{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms: make(map[string]json.RawMessage),
	}
}

// Create allocates a fresh room code and opens an empty room under it.
// Always succeeds. Codes are resampled whole until one misses the open
// set, which terminates because the open set is finite and far smaller
// than the code space.
func (r *Registry) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c string
	for {
		c = code.Random(r.rng)
		if _, taken := r.rooms[c]; !taken {
			break
		}
	}
	r.rooms[c] = nil
	return c
}

// Join looks up a room by user-entered code and returns its current
// snapshot (nil when no game has started). It never creates rooms.
func (r *Registry) Join(rawCode string) (json.RawMessage, error) {
	c := code.Canonical(rawCode)

	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.rooms[c]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return state, nil
}

// SetState overwrites the room's snapshot unconditionally. An update can
// race the removal of its room; that update is silently dropped.
func (r *Registry) SetState(rawCode string, snapshot json.RawMessage) {
	c := code.Canonical(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[c]; !ok {
		return
	}
	r.rooms[c] = snapshot
}

// RemoveIfEmpty deletes the room when no connections remain joined to it.
// Occupancy comes from the transport layer rather than a count kept here,
// so a missed teardown notification can't leave a phantom member pinning
// the room open. This is the sole deletion path; occupied rooms survive.
func (r *Registry) RemoveIfEmpty(rawCode string, occupants int) bool {
	if occupants > 0 {
		return false
	}
	c := code.Canonical(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[c]; !ok {
		return false
	}
	delete(r.rooms, c)
	return true
}

// Len reports the number of open rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// List returns every open room sorted by code.
func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]RoomInfo, 0, len(r.rooms))
	for c, state := range r.rooms {
		rooms = append(rooms, RoomInfo{Code: c, Started: state != nil})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
	return rooms
}
