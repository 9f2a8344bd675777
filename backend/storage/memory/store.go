// Package memory holds the coordinator's only authoritative state:
// the room store and the connection registry. Nothing here survives
// a restart and nothing outside this package touches the maps.
package memory

import (
	"encoding/json"
	"sync"

	"github.com/dan-kuzbass/chess-stars/backend/model"
)

type Store struct {
	mx    *sync.Mutex
	rooms map[string]*model.Room // room id -> room
	conns map[string]string      // identity -> connection id, last connection wins
	wires map[string]model.Wire  // connection id -> wire
}

func NewStore() *Store {
	return &Store{
		mx:    &sync.Mutex{},
		rooms: make(map[string]*model.Room),
		conns: make(map[string]string),
		wires: make(map[string]model.Wire),
	}
}

// BindWire makes a connection addressable for fan-out.
func (s *Store) BindWire(w model.Wire) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.wires[w.ConnID] = w
}

// ReleaseWire drops a connection's wire. Idempotent.
func (s *Store) ReleaseWire(connID string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	delete(s.wires, connID)
}

// AddParticipant inserts or overwrites a participant in a room,
// creating the room lazily, and registers identity -> connID in the
// connection registry. A trainer creating a room becomes its owner.
// Returns true if the room was created by this call.
func (s *Store) AddParticipant(roomID, connID string, p *model.Participant) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		room = &model.Room{
			ID:           roomID,
			Participants: make(map[string]*model.Participant),
		}
		if p.Role == model.RoleTrainer {
			room.OwnerIdentity = p.Identity
		}
		s.rooms[roomID] = room
	}
	room.Participants[connID] = p
	s.conns[p.Identity] = connID
	return !ok
}

// RemoveParticipant removes a participant from a room and clears its
// registry entry, deleting the room when it drains. It reports the
// removed participant and whether anything was removed at all.
func (s *Store) RemoveParticipant(roomID, connID string) (*model.Participant, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := room.Participants[connID]
	if !ok {
		return nil, false
	}
	delete(room.Participants, connID)
	// A reconnect may have re-registered the identity under a newer
	// connection; only the matching entry is cleared.
	if s.conns[p.Identity] == connID {
		delete(s.conns, p.Identity)
	}
	if len(room.Participants) == 0 {
		delete(s.rooms, roomID)
	}
	return p, true
}

// FindRoomByConn locates the room a connection currently occupies.
// At most one room can match since a connection joins one room at a time.
func (s *Store) FindRoomByConn(connID string) (string, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	for roomID, room := range s.rooms {
		if _, ok := room.Participants[connID]; ok {
			return roomID, true
		}
	}
	return "", false
}

// Participant returns the participant a connection holds in a room.
func (s *Store) Participant(roomID, connID string) (*model.Participant, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := room.Participants[connID]
	return p, ok
}

// RoomOwner returns the owner identity of a room, if the room exists.
func (s *Store) RoomOwner(roomID string) (string, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return "", false
	}
	return room.OwnerIdentity, true
}

// SetSharedState overwrites a room's shared state, last write wins.
// It refuses the write unless connID is a participant of the room.
func (s *Store) SetSharedState(roomID, connID string, state json.RawMessage) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok = room.Participants[connID]; !ok {
		return false
	}
	room.SharedState = state
	return true
}

// SharedState returns a room's current shared state, nil when the room
// does not exist or holds no state yet.
func (s *Store) SharedState(roomID string) json.RawMessage {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return room.SharedState
}

// Roster snapshots the participants of a room.
func (s *Store) Roster(roomID string) []model.Participant {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	roster := make([]model.Participant, 0, len(room.Participants))
	for _, p := range room.Participants {
		roster = append(roster, *p)
	}
	return roster
}

// RoomWires snapshots the wires of every participant in a room except
// excludeConnID. Pass an empty string to include everyone.
func (s *Store) RoomWires(roomID, excludeConnID string) []model.Wire {
	s.mx.Lock()
	defer s.mx.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	wires := make([]model.Wire, 0, len(room.Participants))
	for connID := range room.Participants {
		if connID == excludeConnID {
			continue
		}
		if w, ok := s.wires[connID]; ok {
			wires = append(wires, w)
		}
	}
	return wires
}

// WireByIdentity resolves a directed-message target to its live wire.
func (s *Store) WireByIdentity(identity string) (model.Wire, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()

	connID, ok := s.conns[identity]
	if !ok {
		return model.Wire{}, false
	}
	w, ok := s.wires[connID]
	return w, ok
}

// HasRoom reports whether a room currently exists.
func (s *Store) HasRoom(roomID string) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	_, ok := s.rooms[roomID]
	return ok
}

// Stats reports current room and connection counts.
func (s *Store) Stats() (rooms int, connections int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.rooms), len(s.wires)
}
