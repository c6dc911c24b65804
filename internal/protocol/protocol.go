package protocol

import "encoding/json"

// Message types exchanged over a relay connection. Client requests carry
// a type tag plus at most one payload field; create-room and join-room
// are acknowledged, update-state is fire-and-forget.
const (
	// Client -> server
	TypeCreateRoom  = "create-room"
	TypeJoinRoom    = "join-room"
	TypeUpdateState = "update-state"

	// Server -> client
	TypeRoomCreated  = "room-created" // ack for create-room
	TypeRoomJoined   = "room-joined"  // ack for join-room
	TypeError        = "error"        // ack for a failed join-room
	TypeStateUpdated = "state-updated"
)

// Envelope is the single frame shape for both directions. State is the
// opaque game snapshot; the relay never looks inside it.
type Envelope struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Parse decodes one inbound frame. Frames that are not a JSON object with
// a type tag are rejected before they reach the relay.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Marshal encodes one outbound frame. It fails only when State holds a
// RawMessage that is not valid JSON.
func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// IsAck reports whether a server frame answers a pending request.
func IsAck(typ string) bool {
	return typ == TypeRoomCreated || typ == TypeRoomJoined || typ == TypeError
}
