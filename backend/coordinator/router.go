package coordinator

import (
	"encoding/json"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/google/uuid"
)

// Chat stamps a chat message with a server-assigned id and timestamp
// and broadcasts it to the whole room, sender included.
func (c *Coordinator) Chat(connID, roomID, message string) {
	c.mx.Lock()
	defer c.mx.Unlock()

	p, ok := c.store.Participant(roomID, connID)
	if !ok {
		c.logger.Debug().Str("roomID", roomID).Msg("chat from connection outside room, dropped")
		return
	}
	c.broadcast(roomID, "", model.Event{
		Type:   model.EventChatMessage,
		RoomID: roomID,
		Payload: c.marshal(model.ChatMessage{
			ID:        uuid.NewString(),
			Message:   message,
			UserID:    p.Identity,
			Username:  p.DisplayName,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}),
	})
}

// Relay forwards a peer negotiation message (offer, answer or ICE
// candidate) to exactly one participant, rewrapped with the sender's
// identity. Delivery is best effort: a target without a live connection
// means the message is dropped and the media layer retries on its own.
func (c *Coordinator) Relay(connID, roomID, kind, targetIdentity string, payload json.RawMessage) {
	c.mx.Lock()
	defer c.mx.Unlock()

	p, ok := c.store.Participant(roomID, connID)
	if !ok {
		c.logger.Debug().
			Str("roomID", roomID).
			Str("type", kind).
			Msg("signaling from connection outside room, dropped")
		return
	}
	w, ok := c.store.WireByIdentity(targetIdentity)
	if !ok {
		c.logger.Debug().
			Str("roomID", roomID).
			Str("type", kind).
			Str("target", targetIdentity).
			Msg("cannot relay, target not connected")
		return
	}
	c.sendTo(w, model.Event{
		Type:     kind,
		RoomID:   roomID,
		From:     p.Identity,
		FromName: p.DisplayName,
		Payload:  payload,
	})
}

// Annotate broadcasts a board annotation to the rest of the room.
// Only the room's trainer may annotate: anyone else's annotation is
// dropped without feedback, the realtime protocol has no way to report
// a rejection back to the sender.
func (c *Coordinator) Annotate(connID, roomID string, annotation json.RawMessage) {
	c.mx.Lock()
	defer c.mx.Unlock()

	p, ok := c.store.Participant(roomID, connID)
	if !ok {
		return
	}
	owner, _ := c.store.RoomOwner(roomID)
	if p.Role != model.RoleTrainer && p.Identity != owner {
		c.logger.Debug().
			Str("roomID", roomID).
			Str("userID", p.Identity).
			Str("role", p.Role).
			Msg("annotation from non-trainer, dropped")
		return
	}
	c.broadcast(roomID, connID, model.Event{
		Type:     model.EventAnnotation,
		RoomID:   roomID,
		From:     p.Identity,
		FromName: p.DisplayName,
		Payload:  annotation,
	})
}

// broadcast fans an event out to every wire in a room except
// excludeConnID. Sends are non-blocking, a saturated peer loses the
// event rather than holding up the rest of the room.
func (c *Coordinator) broadcast(roomID, excludeConnID string, ev model.Event) {
	var sent int
	for _, w := range c.store.RoomWires(roomID, excludeConnID) {
		if w.TrySend(ev) {
			sent++
		} else {
			c.logger.Debug().
				Str("roomID", roomID).
				Str("type", ev.Type).
				Str("connID", w.ConnID).
				Msg("peer buffer full, event dropped")
		}
	}
	if sent == 0 {
		c.logger.Debug().
			Str("roomID", roomID).
			Str("type", ev.Type).
			Str("src", ev.From).
			Msg("broadcast did not reach anyone")
	}
}

func (c *Coordinator) sendTo(w model.Wire, ev model.Event) {
	if !w.TrySend(ev) {
		c.logger.Debug().
			Str("type", ev.Type).
			Str("connID", w.ConnID).
			Msg("peer buffer full, event dropped")
	}
}
