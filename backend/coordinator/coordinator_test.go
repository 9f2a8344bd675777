package coordinator

import (
	"encoding/json"
	"testing"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/dan-kuzbass/chess-stars/backend/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() (*Coordinator, *memory.Store) {
	logger := zerolog.Nop()
	s := memory.NewStore()
	return New(Config{Store: s, Logger: &logger}), s
}

// drain empties a wire's outbound buffer without blocking.
func drain(w model.Wire) []model.Event {
	var evs []model.Event
	for {
		select {
		case ev := <-w.TX:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func connect(c *Coordinator, connID string) model.Wire {
	w := model.NewWire(connID)
	c.Connect(w)
	return w
}

func join(c *Coordinator, w model.Wire, roomID, identity, role string) {
	c.Join(w, roomID, identity, "name-"+identity, role)
}

func TestJoin_FirstParticipantCreatesRoom(t *testing.T) {
	c, s := newTestCoordinator()
	w := connect(c, "connA")

	join(c, w, "room1", "trainerX", model.RoleTrainer)

	require.True(t, s.HasRoom("room1"))
	evs := drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventRoomParticipants, evs[0].Type)

	var roster []model.Participant
	require.NoError(t, json.Unmarshal(evs[0].Payload, &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "trainerX", roster[0].Identity)
}

func TestJoin_AnnouncesToOthersOnly(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")

	join(c, wA, "room1", "trainerX", model.RoleTrainer)
	drain(wA)

	join(c, wB, "room1", "studentY", model.RoleStudent)

	evsA := drain(wA)
	require.Len(t, evsA, 1)
	assert.Equal(t, model.EventParticipantJoined, evsA[0].Type)
	assert.Equal(t, "studentY", evsA[0].From)

	// The joiner itself only gets the roster, not its own announcement.
	evsB := drain(wB)
	require.Len(t, evsB, 1)
	assert.Equal(t, model.EventRoomParticipants, evsB[0].Type)
	var roster []model.Participant
	require.NoError(t, json.Unmarshal(evsB[0].Payload, &roster))
	assert.Len(t, roster, 2)
}

func TestJoin_LateJoinerReceivesSharedState(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	join(c, wA, "room1", "trainerX", model.RoleTrainer)
	drain(wA)

	c.SetGameState("connA", "room1", json.RawMessage(`{"fen":"start"}`))
	drain(wA)

	wB := connect(c, "connB")
	join(c, wB, "room1", "studentY", model.RoleStudent)

	evs := drain(wB)
	require.Len(t, evs, 2)
	assert.Equal(t, model.EventRoomParticipants, evs[0].Type)
	assert.Equal(t, model.EventGameStateUpdate, evs[1].Type)
	assert.JSONEq(t, `{"fen":"start"}`, string(evs[1].Payload))
}

func TestJoin_SecondRoomImpliesLeavingFirst(t *testing.T) {
	c, s := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	join(c, wA, "room1", "u1", model.RoleStudent)
	join(c, wB, "room1", "u2", model.RoleStudent)
	drain(wA)
	drain(wB)

	join(c, wA, "room2", "u1", model.RoleStudent)

	// u2 sees u1 leave room1; no stale membership remains.
	evs := drain(wB)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventParticipantLeft, evs[0].Type)
	assert.Equal(t, "u1", evs[0].From)

	roomID, ok := s.FindRoomByConn("connA")
	require.True(t, ok)
	assert.Equal(t, "room2", roomID)
}

func TestLeave_DrainsRoom(t *testing.T) {
	c, s := newTestCoordinator()
	w := connect(c, "connA")
	join(c, w, "room1", "u1", model.RoleStudent)

	c.Leave("connA", "room1")
	assert.False(t, s.HasRoom("room1"))

	// Leaving again is a no-op.
	c.Leave("connA", "room1")
	c.Leave("connZ", "nope")
}

func TestDisconnect_Idempotent(t *testing.T) {
	c, s := newTestCoordinator()
	w := connect(c, "connA")
	join(c, w, "room1", "u1", model.RoleStudent)

	c.Leave("connA", "room1")
	c.Disconnect("connA")
	c.Disconnect("connA")

	assert.False(t, s.HasRoom("room1"))
	rooms, conns := s.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}

func TestDisconnect_NeverJoined(t *testing.T) {
	c, _ := newTestCoordinator()
	connect(c, "connA")
	c.Disconnect("connA")
	c.Disconnect("connB") // never even connected
}

func TestDisconnect_NotifiesRemaining(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	join(c, wA, "room1", "u1", model.RoleStudent)
	join(c, wB, "room1", "u2", model.RoleStudent)
	drain(wA)
	drain(wB)

	c.Disconnect("connB")

	evs := drain(wA)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventParticipantLeft, evs[0].Type)
	assert.Equal(t, "u2", evs[0].From)
}

func TestMove_BroadcastExcludesSender(t *testing.T) {
	c, s := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	wC := connect(c, "connC")
	join(c, wA, "room1", "u1", model.RoleTrainer)
	join(c, wB, "room1", "u2", model.RoleStudent)
	join(c, wC, "room1", "u3", model.RoleStudent)
	drain(wA)
	drain(wB)
	drain(wC)

	c.Move("connB", "room1", model.MovePayload{
		Move:      json.RawMessage(`{"from":"e2","to":"e4"}`),
		GameState: json.RawMessage(`{"fen":"after-e4"}`),
	})

	for _, w := range []model.Wire{wA, wC} {
		evs := drain(w)
		require.Len(t, evs, 1)
		assert.Equal(t, model.EventChessMove, evs[0].Type)
		assert.Equal(t, "u2", evs[0].From)
	}
	assert.Empty(t, drain(wB), "sender must not receive its own move")
	assert.JSONEq(t, `{"fen":"after-e4"}`, string(s.SharedState("room1")))
}

func TestMove_OutsideRoomIsDropped(t *testing.T) {
	c, s := newTestCoordinator()
	wA := connect(c, "connA")
	join(c, wA, "room1", "u1", model.RoleStudent)
	drain(wA)

	connect(c, "connB") // connected, never joined
	c.Move("connB", "room1", model.MovePayload{GameState: json.RawMessage(`{"fen":"x"}`)})

	assert.Empty(t, drain(wA))
	assert.Nil(t, s.SharedState("room1"))
}

func TestSetGameState_ReachesEveryoneIncludingSender(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	join(c, wA, "room1", "u1", model.RoleTrainer)
	join(c, wB, "room1", "u2", model.RoleStudent)
	drain(wA)
	drain(wB)

	c.SetGameState("connA", "room1", json.RawMessage(`{"fen":"reset"}`))

	for _, w := range []model.Wire{wA, wB} {
		evs := drain(w)
		require.Len(t, evs, 1)
		assert.Equal(t, model.EventGameStateUpdate, evs[0].Type)
		assert.JSONEq(t, `{"fen":"reset"}`, string(evs[0].Payload))
	}
}

func TestChat_StampedAndInclusive(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	join(c, wA, "room1", "u1", model.RoleTrainer)
	join(c, wB, "room1", "u2", model.RoleStudent)
	drain(wA)
	drain(wB)

	c.Chat("connB", "room1", "good move!")

	for _, w := range []model.Wire{wA, wB} {
		evs := drain(w)
		require.Len(t, evs, 1)
		assert.Equal(t, model.EventChatMessage, evs[0].Type)

		var msg model.ChatMessage
		require.NoError(t, json.Unmarshal(evs[0].Payload, &msg))
		assert.Equal(t, "good move!", msg.Message)
		assert.Equal(t, "u2", msg.UserID)
		assert.Equal(t, "name-u2", msg.Username)
		assert.NotEmpty(t, msg.ID)
		assert.NotEmpty(t, msg.Timestamp)
	}
}

func TestRelay_DirectedToSingleTarget(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	wC := connect(c, "connC")
	join(c, wA, "room1", "u1", model.RoleTrainer)
	join(c, wB, "room1", "u2", model.RoleStudent)
	join(c, wC, "room1", "u3", model.RoleStudent)
	drain(wA)
	drain(wB)
	drain(wC)

	c.Relay("connA", "room1", model.EventOffer, "u2", json.RawMessage(`{"sdp":"x"}`))

	evs := drain(wB)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventOffer, evs[0].Type)
	assert.Equal(t, "u1", evs[0].From)
	assert.Equal(t, "name-u1", evs[0].FromName)
	assert.JSONEq(t, `{"sdp":"x"}`, string(evs[0].Payload))

	assert.Empty(t, drain(wA))
	assert.Empty(t, drain(wC))
}

func TestRelay_OfflineTargetSilentlyDropped(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	join(c, wA, "room1", "u1", model.RoleTrainer)
	drain(wA)

	c.Relay("connA", "room1", model.EventICECandidate, "ghost", json.RawMessage(`{"candidate":"x"}`))
	assert.Empty(t, drain(wA))
}

func TestRelay_ReconnectedIdentityGetsLatestConnection(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	join(c, wA, "room1", "u1", model.RoleTrainer)

	// u2 joins, then reconnects on a fresh connection.
	wB1 := connect(c, "connB1")
	join(c, wB1, "room1", "u2", model.RoleStudent)
	wB2 := connect(c, "connB2")
	join(c, wB2, "room1", "u2", model.RoleStudent)
	drain(wA)
	drain(wB1)
	drain(wB2)

	c.Relay("connA", "room1", model.EventAnswer, "u2", json.RawMessage(`{"sdp":"y"}`))

	assert.Empty(t, drain(wB1), "stale connection must not receive directed messages")
	evs := drain(wB2)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventAnswer, evs[0].Type)
}

func TestAnnotate_GatedToTrainer(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	join(c, wA, "room1", "trainerX", model.RoleTrainer)
	join(c, wB, "room1", "studentY", model.RoleStudent)
	drain(wA)
	drain(wB)

	// Student annotation is dropped.
	c.Annotate("connB", "room1", json.RawMessage(`{"arrow":"e2e4"}`))
	assert.Empty(t, drain(wA))
	assert.Empty(t, drain(wB))

	// Trainer annotation reaches the others, not the trainer.
	c.Annotate("connA", "room1", json.RawMessage(`{"arrow":"e2e4"}`))
	evs := drain(wB)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventAnnotation, evs[0].Type)
	assert.Empty(t, drain(wA))
}

func TestBroadcast_SaturatedPeerLosesEventsNotRoom(t *testing.T) {
	c, _ := newTestCoordinator()
	wA := connect(c, "connA")
	wB := connect(c, "connB")
	join(c, wA, "room1", "u1", model.RoleTrainer)
	join(c, wB, "room1", "u2", model.RoleStudent)
	drain(wA)
	drain(wB)

	// Fill u2's buffer so further sends to it must drop.
	for wB.TrySend(model.Event{Type: "filler"}) {
	}

	c.Chat("connA", "room1", "still here?")

	evs := drain(wA)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventChatMessage, evs[0].Type)
}
