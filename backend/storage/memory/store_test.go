package memory

import (
	"encoding/json"
	"testing"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(identity, role string) *model.Participant {
	return &model.Participant{
		Identity:    identity,
		DisplayName: "name-" + identity,
		Role:        role,
	}
}

func TestStore_AddParticipant(t *testing.T) {
	s := NewStore()

	created := s.AddParticipant("room1", "connA", participant("u1", model.RoleTrainer))
	require.True(t, created)

	created = s.AddParticipant("room1", "connB", participant("u2", model.RoleStudent))
	assert.False(t, created)

	owner, ok := s.RoomOwner("room1")
	require.True(t, ok)
	assert.Equal(t, "u1", owner)

	assert.Len(t, s.Roster("room1"), 2)
}

func TestStore_OwnerOnlySetByCreatingTrainer(t *testing.T) {
	s := NewStore()

	s.AddParticipant("room1", "connA", participant("u1", model.RoleStudent))
	owner, ok := s.RoomOwner("room1")
	require.True(t, ok)
	assert.Empty(t, owner)

	// A trainer joining later does not take over an existing room.
	s.AddParticipant("room1", "connB", participant("u2", model.RoleTrainer))
	owner, _ = s.RoomOwner("room1")
	assert.Empty(t, owner)
}

func TestStore_RemoveParticipantDrainsRoom(t *testing.T) {
	s := NewStore()
	s.AddParticipant("room1", "connA", participant("u1", model.RoleTrainer))

	p, ok := s.RemoveParticipant("room1", "connA")
	require.True(t, ok)
	assert.Equal(t, "u1", p.Identity)

	// Room with no participants must not exist.
	assert.False(t, s.HasRoom("room1"))
	_, ok = s.RemoveParticipant("room1", "connA")
	assert.False(t, ok)
}

func TestStore_RegistryLastConnectionWins(t *testing.T) {
	s := NewStore()
	s.BindWire(model.NewWire("connA"))
	s.BindWire(model.NewWire("connB"))

	s.AddParticipant("room1", "connA", participant("u1", model.RoleStudent))
	s.AddParticipant("room1", "connB", participant("u1", model.RoleStudent))

	w, ok := s.WireByIdentity("u1")
	require.True(t, ok)
	assert.Equal(t, "connB", w.ConnID)

	// Removing the stale connection must not clear the newer mapping.
	_, ok = s.RemoveParticipant("room1", "connA")
	require.True(t, ok)
	w, ok = s.WireByIdentity("u1")
	require.True(t, ok)
	assert.Equal(t, "connB", w.ConnID)

	_, ok = s.RemoveParticipant("room1", "connB")
	require.True(t, ok)
	_, ok = s.WireByIdentity("u1")
	assert.False(t, ok)
}

func TestStore_SharedStateGuards(t *testing.T) {
	s := NewStore()
	state := json.RawMessage(`{"fen":"start"}`)

	assert.False(t, s.SetSharedState("room1", "connA", state), "no room")

	s.AddParticipant("room1", "connA", participant("u1", model.RoleTrainer))
	assert.False(t, s.SetSharedState("room1", "connB", state), "not a participant")
	assert.Nil(t, s.SharedState("room1"))

	require.True(t, s.SetSharedState("room1", "connA", state))
	assert.JSONEq(t, `{"fen":"start"}`, string(s.SharedState("room1")))
}

func TestStore_FindRoomByConn(t *testing.T) {
	s := NewStore()
	s.AddParticipant("room1", "connA", participant("u1", model.RoleStudent))

	roomID, ok := s.FindRoomByConn("connA")
	require.True(t, ok)
	assert.Equal(t, "room1", roomID)

	_, ok = s.FindRoomByConn("connZ")
	assert.False(t, ok)
}

func TestStore_RoomWiresExclusion(t *testing.T) {
	s := NewStore()
	s.BindWire(model.NewWire("connA"))
	s.BindWire(model.NewWire("connB"))
	s.BindWire(model.NewWire("connC"))
	s.AddParticipant("room1", "connA", participant("u1", model.RoleTrainer))
	s.AddParticipant("room1", "connB", participant("u2", model.RoleStudent))
	s.AddParticipant("room1", "connC", participant("u3", model.RoleStudent))

	wires := s.RoomWires("room1", "connA")
	assert.Len(t, wires, 2)
	for _, w := range wires {
		assert.NotEqual(t, "connA", w.ConnID)
	}

	assert.Len(t, s.RoomWires("room1", ""), 3)
	assert.Empty(t, s.RoomWires("nope", ""))
}

func TestStore_ReleaseWireIdempotent(t *testing.T) {
	s := NewStore()
	s.BindWire(model.NewWire("connA"))
	s.ReleaseWire("connA")
	s.ReleaseWire("connA")

	_, conns := s.Stats()
	assert.Zero(t, conns)
}
