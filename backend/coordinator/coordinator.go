// Package coordinator tracks which participants are in which live
// lesson room and routes realtime events between them. It is the single
// in-process authority over room state: every inbound event is handled
// under one lock, so handlers never observe a half-applied mutation.
package coordinator

import (
	"encoding/json"
	"sync"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/dan-kuzbass/chess-stars/backend/storage/memory"
	"github.com/rs/zerolog"
)

type Coordinator struct {
	mx     *sync.Mutex
	store  *memory.Store
	logger zerolog.Logger
}

type Config struct {
	Store  *memory.Store
	Logger *zerolog.Logger
}

func New(cfg Config) *Coordinator {
	return &Coordinator{
		mx:     &sync.Mutex{},
		store:  cfg.Store,
		logger: cfg.Logger.With().Str("component", "coordinator").Logger(),
	}
}

// Connect makes a freshly opened connection addressable. The connection
// is not in any room until it joins one.
func (c *Coordinator) Connect(w model.Wire) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.store.BindWire(w)
	c.logger.Debug().Str("connID", w.ConnID).Msg("connection bound")
}

// Join puts a participant into a room, creating the room on first join.
// The joiner gets the current roster and, if present, the latest shared
// game state; everyone else gets a participant-joined announcement.
// Joining a second room implicitly leaves the first: a connection holds
// membership in one room at a time.
func (c *Coordinator) Join(w model.Wire, roomID, identity, displayName, role string) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if prev, ok := c.store.FindRoomByConn(w.ConnID); ok && prev != roomID {
		c.removeFromRoom(w.ConnID, prev)
	}

	p := &model.Participant{
		Identity:    identity,
		DisplayName: displayName,
		Role:        role,
	}
	created := c.store.AddParticipant(roomID, w.ConnID, p)

	c.broadcast(roomID, w.ConnID, model.Event{
		Type:     model.EventParticipantJoined,
		RoomID:   roomID,
		From:     identity,
		FromName: displayName,
		Payload:  c.marshal(p),
	})

	c.sendTo(w, model.Event{
		Type:    model.EventRoomParticipants,
		RoomID:  roomID,
		Payload: c.marshal(c.store.Roster(roomID)),
	})

	if state := c.store.SharedState(roomID); len(state) > 0 {
		c.sendTo(w, model.Event{
			Type:    model.EventGameStateUpdate,
			RoomID:  roomID,
			Payload: state,
		})
	}

	c.logger.Debug().
		Str("roomID", roomID).
		Str("userID", identity).
		Str("role", role).
		Bool("created", created).
		Msg("participant joined room")
}

// Leave removes a participant from a room. Unknown rooms and
// connections are a no-op.
func (c *Coordinator) Leave(connID, roomID string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.removeFromRoom(connID, roomID)
}

// Disconnect releases everything a connection held. Safe to call for
// connections that never joined a room and safe to call twice.
func (c *Coordinator) Disconnect(connID string) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if roomID, ok := c.store.FindRoomByConn(connID); ok {
		c.removeFromRoom(connID, roomID)
	}
	c.store.ReleaseWire(connID)
	c.logger.Debug().Str("connID", connID).Msg("connection released")
}

// Move stores the game state carried by a chess move and relays the
// move to everyone else in the room. The sender already applied the
// move locally, echoing it back would be redundant.
func (c *Coordinator) Move(connID, roomID string, mv model.MovePayload) {
	c.mx.Lock()
	defer c.mx.Unlock()

	p, ok := c.store.Participant(roomID, connID)
	if !ok {
		c.logger.Debug().Str("roomID", roomID).Msg("move from connection outside room, dropped")
		return
	}
	if !c.store.SetSharedState(roomID, connID, mv.GameState) {
		return
	}
	c.broadcast(roomID, connID, model.Event{
		Type:     model.EventChessMove,
		RoomID:   roomID,
		From:     p.Identity,
		FromName: p.DisplayName,
		Payload:  c.marshal(mv),
	})
}

// SetGameState overwrites the room's shared state wholesale and pushes
// it to every participant, sender included, so an explicit board reset
// is visible to the actor too. Last write wins.
func (c *Coordinator) SetGameState(connID, roomID string, state json.RawMessage) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if !c.store.SetSharedState(roomID, connID, state) {
		c.logger.Debug().Str("roomID", roomID).Msg("state update from connection outside room, dropped")
		return
	}
	c.broadcast(roomID, "", model.Event{
		Type:    model.EventGameStateUpdate,
		RoomID:  roomID,
		Payload: state,
	})
}

// removeFromRoom holds leave semantics shared by Leave and Disconnect:
// drop the participant, tell the others, let the store drain the room.
// Callers must hold c.mx.
func (c *Coordinator) removeFromRoom(connID, roomID string) {
	p, ok := c.store.RemoveParticipant(roomID, connID)
	if !ok {
		return
	}
	c.broadcast(roomID, connID, model.Event{
		Type:     model.EventParticipantLeft,
		RoomID:   roomID,
		From:     p.Identity,
		FromName: p.DisplayName,
		Payload:  c.marshal(p),
	})
	c.logger.Debug().
		Str("roomID", roomID).
		Str("userID", p.Identity).
		Msg("participant left room")
}

func (c *Coordinator) marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal outbound payload")
		return nil
	}
	return b
}
