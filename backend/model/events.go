package model

import (
	"encoding/json"
	"errors"
)

const maxEventPayloadSize = 64 << 10

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingRoomID    = errors.New("event has no room id")
	ErrMissingTarget    = errors.New("directed event has no target identity")
	ErrEmptyPayload     = errors.New("event has no payload")
	ErrPayloadTooLarge  = errors.New("event payload too large")
)

// MovePayload is the body of a chess-move event. The coordinator never
// interprets either field, it only stores GameState and relays both.
type MovePayload struct {
	Move      json.RawMessage `json:"move"`
	GameState json.RawMessage `json:"game_state"`
}

// ChatPayload is the inbound body of a chat-message event.
type ChatPayload struct {
	Message string `json:"message"`
}

// ChatMessage is the outbound body of a chat-message event,
// stamped with a server-assigned id and timestamp.
type ChatMessage struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// ValidateInbound checks that an event received from a client has the
// shape its type requires. Events failing validation are dropped at the
// transport boundary and never reach the coordinator.
func ValidateInbound(ev Event) error {
	if len(ev.Payload) > maxEventPayloadSize {
		return ErrPayloadTooLarge
	}
	if ev.RoomID == "" {
		return ErrMissingRoomID
	}
	switch ev.Type {
	case EventJoinRoom, EventLeaveRoom:
	case EventChessMove, EventGameStateUpdate, EventChatMessage, EventAnnotation:
		if len(ev.Payload) == 0 {
			return ErrEmptyPayload
		}
	case EventOffer, EventAnswer, EventICECandidate:
		if ev.Target == "" {
			return ErrMissingTarget
		}
		if len(ev.Payload) == 0 {
			return ErrEmptyPayload
		}
	default:
		return ErrUnknownEventType
	}
	return nil
}
