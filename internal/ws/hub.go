package ws

import (
	"log"
	"sync"

	"tabletally/internal/code"
	"tabletally/internal/protocol"
	"tabletally/internal/registry"
)

// The Hub is the session relay: it owns transport-level room membership
// and is the only component that mutates the room registry. Every inbound
// request and every disconnect is one event on a single channel, and Run
// handles each event to completion before the next, so registry mutations
// never interleave.
type Hub struct {
	registry *registry.Registry

	// Connections joined to each room, by canonical room code
	rooms map[string]map[*Client]bool

	// All live connections, joined or not
	clients map[*Client]bool

	// Inbound requests and teardowns from connections
	events chan event

	allowedOrigins []string

	mu sync.RWMutex
}

type event struct {
	client *Client
	env    protocol.Envelope

	// gone marks a transport teardown; env is ignored
	gone bool
}

// NewHub wires the relay to its registry. An empty origin list allows any
// cross-origin caller (the development default).
func NewHub(reg *registry.Registry, allowedOrigins []string) *Hub {
	return &Hub{
		registry:       reg,
		rooms:          make(map[string]map[*Client]bool),
		clients:        make(map[*Client]bool),
		events:         make(chan event),
		allowedOrigins: allowedOrigins,
	}
}

func (h *Hub) Run() {
	for ev := range h.events {
		c := ev.client
		if c.closed {
			continue
		}

		if ev.gone {
			h.handleGone(c)
			continue
		}

		switch ev.env.Type {
		case protocol.TypeCreateRoom:
			h.handleCreate(c)
		case protocol.TypeJoinRoom:
			h.handleJoin(c, ev.env.RoomCode)
		case protocol.TypeUpdateState:
			h.handleUpdate(c, ev.env)
		default:
			log.Printf("Client %s sent unknown message type %q", c.id, ev.env.Type)
		}
	}
}

func (h *Hub) handleCreate(c *Client) {
	// One connection, one room: creating a new room abandons the previous
	// membership, draining the old room if this was its last member.
	h.leaveRoom(c)

	roomCode := h.registry.Create()
	h.enterRoom(c, roomCode)

	log.Printf("Room %s created by %s", roomCode, c.id)
	h.reply(c, protocol.Envelope{Type: protocol.TypeRoomCreated, RoomCode: roomCode})
}

func (h *Hub) handleJoin(c *Client, rawCode string) {
	state, err := h.registry.Join(rawCode)
	if err != nil {
		// The connection keeps its prior association on a failed join.
		h.reply(c, protocol.Envelope{Type: protocol.TypeError, Error: "room not found"})
		return
	}

	roomCode := code.Canonical(rawCode)
	if c.roomCode != roomCode {
		// Switching rooms: drop the old membership first. Re-joining the
		// room the connection already occupies must not pass through a
		// transiently empty room, or a sole occupant would drain it.
		h.leaveRoom(c)
		h.enterRoom(c, roomCode)
	}

	log.Printf("Client %s joined room %s (total: %d)", c.id, roomCode, h.occupants(roomCode))
	h.reply(c, protocol.Envelope{Type: protocol.TypeRoomJoined, RoomCode: roomCode, State: state})
}

func (h *Hub) handleUpdate(c *Client, env protocol.Envelope) {
	if c.roomCode == "" {
		// update-state from an unjoined connection is a silent no-op.
		return
	}

	h.registry.SetState(c.roomCode, env.State)

	data, err := protocol.Marshal(protocol.Envelope{
		Type:  protocol.TypeStateUpdated,
		State: env.State,
	})
	if err != nil {
		log.Printf("Client %s sent an unmarshalable snapshot: %v", c.id, err)
		return
	}

	// Fan out to every other member; the sender never gets its own update
	// echoed back.
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[c.roomCode]))
	for member := range h.rooms[c.roomCode] {
		if member != c {
			members = append(members, member)
		}
	}
	h.mu.RUnlock()

	for _, member := range members {
		h.deliver(member, data)
	}
}

func (h *Hub) handleGone(c *Client) {
	h.leaveRoom(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.closed = true
	close(c.send)
}

// enterRoom records c as a member of the room. Called only from Run.
func (h *Hub) enterRoom(c *Client, roomCode string) {
	h.mu.Lock()
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[*Client]bool)
	}
	h.rooms[roomCode][c] = true
	h.mu.Unlock()
	c.roomCode = roomCode
}

// leaveRoom drops c's current membership, if any, and drains the room
// when c was its last member. Called only from Run.
func (h *Hub) leaveRoom(c *Client) {
	if c.roomCode == "" {
		return
	}
	roomCode := c.roomCode
	c.roomCode = ""

	h.mu.Lock()
	if members, ok := h.rooms[roomCode]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomCode)
		}
	}
	remaining := len(h.rooms[roomCode])
	h.mu.Unlock()

	if h.registry.RemoveIfEmpty(roomCode, remaining) {
		log.Printf("Room %s removed (empty)", roomCode)
	} else {
		log.Printf("Client %s left room %s (remaining: %d)", c.id, roomCode, remaining)
	}
}

// reply sends an ack frame back to the requesting connection.
func (h *Hub) reply(c *Client, env protocol.Envelope) {
	data, err := protocol.Marshal(env)
	if err != nil {
		log.Printf("Dropping reply to %s: %v", c.id, err)
		return
	}
	h.deliver(c, data)
}

// deliver queues a frame without blocking the relay. A connection whose
// send buffer is full is a stalled consumer and gets torn down.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Client %s stalled, disconnecting", c.id)
		h.handleGone(c)
	}
}

func (h *Hub) occupants(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

// ClientCount reports live connections, joined or not.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ActiveRooms maps each occupied room code to its member count.
func (h *Hub) ActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active := make(map[string]int, len(h.rooms))
	for roomCode, members := range h.rooms {
		active[roomCode] = len(members)
	}
	return active
}
