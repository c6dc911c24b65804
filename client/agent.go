package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tabletally/internal/protocol"
)

// Phase is the agent's view of the session lifecycle.
type Phase int

const (
	// PhaseSetup: no session; the participant is on the setup screen.
	PhaseSetup Phase = iota

	// PhaseWaiting: joined a room whose game has not started yet.
	PhaseWaiting

	// PhaseActive: a game snapshot is live.
	PhaseActive
)

var (
	// ErrRoomNotFound is returned by JoinRoom for a code with no open room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrSolo is returned for network operations on a solo agent.
	ErrSolo = errors.New("agent is in solo mode")
)

const requestTimeout = 10 * time.Second

// Agent mediates between local game-state changes and the relay. Local
// changes are applied immediately and pushed as full snapshots; inbound
// broadcasts replace local state wholesale. There is no diffing and no
// merging anywhere.
type Agent struct {
	url   string
	store *TokenStore
	solo  bool

	mu       sync.Mutex
	conn     *websocket.Conn
	acks     chan protocol.Envelope
	roomCode string
	phase    Phase
	state    json.RawMessage

	// Serializes requests so at most one ack is outstanding
	reqMu sync.Mutex

	// Serializes frame writes between requests and ApplyLocalChange
	writeMu sync.Mutex

	onState func(json.RawMessage)
}

// New returns an agent for the relay at url. store carries the reconnect
// token across restarts and may be nil for a throwaway session.
func New(url string, store *TokenStore) *Agent {
	return &Agent{url: url, store: store, phase: PhaseSetup}
}

// NewSolo returns an agent for a purely local session: it never dials the
// relay and never persists a token.
func NewSolo() *Agent {
	return &Agent{solo: true, phase: PhaseSetup}
}

// OnStateUpdated registers the callback invoked for every inbound
// broadcast, after local state has been replaced. Register before Start.
func (a *Agent) OnStateUpdated(fn func(json.RawMessage)) {
	a.mu.Lock()
	a.onState = fn
	a.mu.Unlock()
}

// Start attempts a silent rejoin using the persisted reconnect token,
// before any setup UI is shown. A missing token, a dead room, or any
// connection failure leaves the agent in PhaseSetup; a stale token is
// cleared so the failure does not repeat on every startup. Start never
// returns an error for a failed rejoin: the setup flow is the fallback,
// not a fault.
func (a *Agent) Start() {
	if a.solo || a.store == nil {
		return
	}

	token, err := a.store.Load()
	if err != nil {
		log.Printf("Failed to read reconnect token: %v", err)
		return
	}
	if token == "" {
		return
	}

	if _, err := a.JoinRoom(token); err != nil {
		if clearErr := a.store.Clear(); clearErr != nil {
			log.Printf("Failed to clear stale reconnect token: %v", clearErr)
		}
		return
	}
}

// CreateRoom opens a fresh room on the relay and joins it. The agent
// moves to PhaseWaiting: the room is open but no game has started.
func (a *Agent) CreateRoom() (string, error) {
	if a.solo {
		return "", ErrSolo
	}

	reply, err := a.request(protocol.Envelope{Type: protocol.TypeCreateRoom})
	if err != nil {
		return "", err
	}
	if reply.Type != protocol.TypeRoomCreated {
		return "", fmt.Errorf("unexpected reply %q", reply.Type)
	}

	a.mu.Lock()
	a.roomCode = reply.RoomCode
	a.phase = PhaseWaiting
	a.state = nil
	a.mu.Unlock()

	a.persistToken(reply.RoomCode)
	return reply.RoomCode, nil
}

// JoinRoom joins an existing room. An empty snapshot means the room is
// open but the host has not started a game (PhaseWaiting); a populated
// one hydrates local state and the session is immediately active.
func (a *Agent) JoinRoom(roomCode string) (json.RawMessage, error) {
	if a.solo {
		return nil, ErrSolo
	}

	reply, err := a.request(protocol.Envelope{Type: protocol.TypeJoinRoom, RoomCode: roomCode})
	if err != nil {
		return nil, err
	}
	switch reply.Type {
	case protocol.TypeRoomJoined:
	case protocol.TypeError:
		return nil, ErrRoomNotFound
	default:
		return nil, fmt.Errorf("unexpected reply %q", reply.Type)
	}

	a.mu.Lock()
	a.roomCode = reply.RoomCode
	a.state = reply.State
	if reply.State != nil {
		a.phase = PhaseActive
	} else {
		a.phase = PhaseWaiting
	}
	a.mu.Unlock()

	a.persistToken(reply.RoomCode)
	return reply.State, nil
}

// StartSession begins a game with the given initial snapshot and shares
// it with the room.
func (a *Agent) StartSession(initial json.RawMessage) {
	a.mu.Lock()
	a.phase = PhaseActive
	a.mu.Unlock()
	a.ApplyLocalChange(initial)
}

// ApplyLocalChange makes a local mutation visible immediately, without
// waiting on any round trip, and pushes the full snapshot to the relay. Propagation is best-effort: a push failure is logged, and
// the next change re-sends the entire state anyway.
func (a *Agent) ApplyLocalChange(snapshot json.RawMessage) {
	a.mu.Lock()
	a.state = snapshot
	joined := a.roomCode != ""
	a.mu.Unlock()

	if a.solo || !joined {
		return
	}

	err := a.write(protocol.Envelope{Type: protocol.TypeUpdateState, State: snapshot})
	if err != nil {
		log.Printf("Failed to push state update: %v", err)
	}
}

// LeaveSession ends the session: the transport is closed, the reconnect
// token and all local session state are cleared, and the agent returns to
// the setup flow.
func (a *Agent) LeaveSession() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.roomCode = ""
	a.state = nil
	a.phase = PhaseSetup
	a.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}

	if a.store != nil {
		if err := a.store.Clear(); err != nil {
			log.Printf("Failed to clear reconnect token: %v", err)
		}
	}
}

// Close drops the transport without clearing the token or local state,
// like a page reload: a later Start on the same store rejoins the room.
func (a *Agent) Close() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// State returns the current local snapshot.
func (a *Agent) State() json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Phase returns the agent's lifecycle phase.
func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// RoomCode returns the joined room's code, or "" when unjoined.
func (a *Agent) RoomCode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roomCode
}

// connect dials the relay on first use. The read loop routes acks to the
// pending request and applies broadcasts.
func (a *Agent) connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(a.url, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	a.conn = conn
	a.acks = make(chan protocol.Envelope, 1)
	go a.readLoop(conn, a.acks)
	return nil
}

func (a *Agent) readLoop(conn *websocket.Conn, acks chan protocol.Envelope) {
	defer close(acks)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Parse(data)
		if err != nil {
			log.Printf("Ignoring malformed frame from relay: %v", err)
			continue
		}

		if protocol.IsAck(env.Type) {
			select {
			case acks <- env:
			default:
				// No request in flight; stray ack
			}
			continue
		}

		if env.Type == protocol.TypeStateUpdated {
			a.applyRemote(env.State)
		}
	}
}

// applyRemote replaces local state with a broadcast snapshot. A joiner
// still on the waiting screen advances to the active session the moment
// the host starts the game.
func (a *Agent) applyRemote(snapshot json.RawMessage) {
	a.mu.Lock()
	a.state = snapshot
	a.phase = PhaseActive
	cb := a.onState
	a.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (a *Agent) request(env protocol.Envelope) (protocol.Envelope, error) {
	if err := a.connect(); err != nil {
		return protocol.Envelope{}, err
	}

	a.reqMu.Lock()
	defer a.reqMu.Unlock()

	a.mu.Lock()
	acks := a.acks
	a.mu.Unlock()

	// An ack that arrived after its request timed out sits in the buffer;
	// it must not be mistaken for the reply to this request.
	select {
	case <-acks:
	default:
	}

	if err := a.write(env); err != nil {
		return protocol.Envelope{}, err
	}

	select {
	case reply, ok := <-acks:
		if !ok {
			return protocol.Envelope{}, errors.New("connection closed")
		}
		return reply, nil
	case <-time.After(requestTimeout):
		return protocol.Envelope{}, errors.New("request timed out")
	}
}

func (a *Agent) write(env protocol.Envelope) error {
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}

	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (a *Agent) persistToken(roomCode string) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(roomCode); err != nil {
		log.Printf("Failed to persist reconnect token: %v", err)
	}
}
