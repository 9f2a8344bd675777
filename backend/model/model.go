package model

import "encoding/json"

// Roles a participant can hold inside a live lesson room.
const (
	RoleTrainer  = "trainer"
	RoleStudent  = "student"
	RoleObserver = "observer"
)

// Participant is one client's presence in a lesson room.
// A connection belongs to at most one room at a time.
type Participant struct {
	Identity    string `json:"userId"`
	DisplayName string `json:"username"`
	Role        string `json:"role"`
}

// Room is the shared live-session context for one lesson.
// It exists in the store only while it has at least one participant.
type Room struct {
	ID            string
	Participants  map[string]*Participant // keyed by connection id
	SharedState   json.RawMessage         // latest board state, opaque to the coordinator
	OwnerIdentity string                  // identity of the trainer who opened the room
}

// Event types accepted from clients.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventChessMove       = "chess-move"
	EventGameStateUpdate = "game-state-update"
	EventChatMessage     = "chat-message"
	EventOffer           = "offer"
	EventAnswer          = "answer"
	EventICECandidate    = "ice-candidate"
	EventAnnotation      = "trainer-annotation"
)

// Event types emitted only by the server.
const (
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventRoomParticipants  = "room-participants"
)

// Event is the envelope for every message crossing a websocket.
// From and FromName are re-assigned by the server on inbound events
// based on the authenticated session, so clients cannot spoof them.
type Event struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id,omitempty"`
	From     string          `json:"from,omitempty"`
	FromName string          `json:"from_name,omitempty"`
	Target   string          `json:"target,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const defaultWireBuffer = 32

// Wire is the outbound half of one client connection. TX is buffered
// and sends never block: a peer that stops draining its socket loses
// messages instead of stalling room fan-out.
type Wire struct {
	ConnID string
	TX     chan Event
}

func NewWire(connID string) Wire {
	return Wire{
		ConnID: connID,
		TX:     make(chan Event, defaultWireBuffer),
	}
}

// TrySend queues ev without blocking and reports whether it was accepted.
func (w Wire) TrySend(ev Event) bool {
	select {
	case w.TX <- ev:
		return true
	default:
		return false
	}
}
