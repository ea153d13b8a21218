package service

import (
	"context"
	"fmt"
	"quizroom/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.RegisterClient("host", ClientInfo{Platform: "ios", DeviceInfo: "iPhone"})

	res := env.createRoom(t, 3)

	room := env.stored(t, res.Room.ID)
	assert.True(t, primitive.IsValidObjectID(room.ID))
	assert.Equal(t, model.RoomLobby, room.State)
	assert.Equal(t, int64(1), room.Version)
	require.Len(t, room.Players, 1)
	host := room.Players[0]
	assert.Equal(t, res.PlayerID, host.ID)
	assert.Equal(t, model.RoleHost, host.Role)
	assert.True(t, host.IsConnected)
	assert.Equal(t, "host", host.ConnectionID)
	assert.Equal(t, "ios", host.Platform)
	assert.Len(t, room.Questions, 3)

	assert.True(t, env.bc.subscribed("host", room.ID))
	created := env.bc.ofType(EventRoomCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "host", created[0].ConnID)
	assert.NotEmpty(t, created[0].Payload.(SessionPayload).ResumeToken)
	assert.Len(t, env.bc.ofType(EventRoomUpdated), 1)
	assert.Contains(t, env.sync.Tracked(), room.ID)

	cached, err := env.deps.Snapshots.GetSnapshot(context.Background(), room.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, int64(1), cached.Version)
}

func TestCreateRoomUsesDefaultBudget(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.rooms.CreateRoom(context.Background(), CreateRoomInput{
		ConnID:    "host",
		Nickname:  "Host",
		Questions: sampleQuestions(1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Room.PerQuestionTimeSeconds)
	assert.Equal(t, 20, res.Room.QuestionBudget(0))
}

func TestCreateRoomValidation(t *testing.T) {
	env := newTestEnv(t)
	badQuestion := sampleQuestions(1, 10)
	badQuestion[0].CorrectOptionIndex = 7

	tests := []struct {
		name string
		in   CreateRoomInput
	}{
		{"missing nickname", CreateRoomInput{ConnID: "c", Questions: sampleQuestions(1, 10)}},
		{"no questions", CreateRoomInput{ConnID: "c", Nickname: "n"}},
		{"bad question", CreateRoomInput{ConnID: "c", Nickname: "n", Questions: badQuestion}},
		{"negative time", CreateRoomInput{ConnID: "c", Nickname: "n", Questions: sampleQuestions(1, 10), PerQuestionTimeSeconds: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.rooms.CreateRoom(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, KindValidation, AsError(err).Kind)
		})
	}
	assert.Zero(t, env.bc.count())
}

func TestJoinRoom(t *testing.T) {
	env := newTestEnv(t)
	created := env.createRoom(t, 2)

	res := env.join(t, created.Room.ID, "guest-1", "Ana")

	room := env.stored(t, created.Room.ID)
	assert.Equal(t, int64(2), room.Version)
	require.Len(t, room.Players, 2)
	assert.Equal(t, res.PlayerID, room.Players[1].ID)
	assert.Equal(t, model.RoleGuest, room.Players[1].Role)
	assert.NotEmpty(t, res.ResumeToken)
	assert.True(t, env.bc.subscribed("guest-1", room.ID))

	joined := env.bc.ofType(EventJoinedRoom)
	require.Len(t, joined, 1)
	assert.Equal(t, "guest-1", joined[0].ConnID)
	updates := env.bc.ofType(EventRoomUpdated)
	assert.Equal(t, int64(2), updates[len(updates)-1].Payload.(RoomUpdatedPayload).Version)
}

func TestJoinRoomErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createRoom(t, 2)
	env.join(t, created.Room.ID, "guest-1", "Ana")

	t.Run("invalid room id", func(t *testing.T) {
		_, err := env.rooms.JoinRoom(ctx, JoinRoomInput{ConnID: "x", RoomID: "not-an-id", Nickname: "x"})
		assert.ErrorIs(t, err, ErrInvalidRoomID)
	})

	t.Run("room not found", func(t *testing.T) {
		_, err := env.rooms.JoinRoom(ctx, JoinRoomInput{ConnID: "x", RoomID: primitive.NewObjectID().Hex(), Nickname: "x"})
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("duplicate connection", func(t *testing.T) {
		_, err := env.rooms.JoinRoom(ctx, JoinRoomInput{ConnID: "guest-1", RoomID: created.Room.ID, Nickname: "again"})
		assert.ErrorIs(t, err, ErrDuplicatePlayer)
		assert.Equal(t, KindConflict, AsError(err).Kind)
	})

	t.Run("join after start", func(t *testing.T) {
		_, err := env.rounds.StartGame(ctx, created.Room.ID)
		require.NoError(t, err)
		before := env.stored(t, created.Room.ID)

		_, err = env.rooms.JoinRoom(ctx, JoinRoomInput{ConnID: "late", RoomID: created.Room.ID, Nickname: "Late"})
		assert.ErrorIs(t, err, ErrGameAlreadyStarted)

		after := env.stored(t, created.Room.ID)
		assert.Equal(t, before.Version, after.Version)
		assert.Len(t, after.Players, 2)
	})
}

func TestRoomState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createRoom(t, 1)
	env.join(t, created.Room.ID, "guest-1", "Ana")
	env.bc.reset()

	res, err := env.rooms.RoomState(ctx, "guest-1", created.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Room.Version)

	states := env.bc.ofType(EventRoomState)
	require.Len(t, states, 1)
	assert.Equal(t, "guest-1", states[0].ConnID)

	_, err = env.rooms.RoomState(ctx, "stranger", created.Room.ID)
	assert.ErrorIs(t, err, ErrNotInRoom)

	// reads never bump the version
	assert.Equal(t, int64(2), env.stored(t, created.Room.ID).Version)
}

func TestEndGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createRoom(t, 2)
	env.join(t, created.Room.ID, "guest-1", "Ana")

	_, err := env.rooms.EndGame(ctx, created.Room.ID, "guest-1")
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = env.rooms.EndGame(ctx, created.Room.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotInRoom)

	room, err := env.rooms.EndGame(ctx, created.Room.ID, "host")
	require.NoError(t, err)
	assert.Equal(t, model.RoomCompleted, room.State)
	assert.Equal(t, model.EndHostEnded, room.EndReason)
	assert.NotNil(t, room.CompletedAt)
	assert.Len(t, env.bc.ofType(EventGameEnded), 1)

	_, err = env.rooms.EndGame(ctx, created.Room.ID, "host")
	assert.ErrorIs(t, err, ErrGameCompleted)
}

func TestCachedRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.createRoom(t, 1)

	room, err := env.rooms.CachedRoom(ctx, created.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Room.ID, room.ID)

	env.redis.FlushAll()
	room, err = env.rooms.CachedRoom(ctx, created.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), room.Version)

	_, err = env.rooms.CachedRoom(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidRoomID)
}

func TestEndGameReleasesRoundResources(t *testing.T) {
	env := newTestEnv(t, func(s *Settings) { s.AutoAdvance = true })
	ctx := context.Background()
	roomID, hostID, _ := startedRoom(t, env, 2)
	require.Equal(t, 1, env.rounds.Pending())

	_, err := env.answers.SubmitAnswer(ctx, SubmitAnswerInput{
		RoomID: roomID, PlayerID: hostID, RequestID: "r1", QuestionIndex: intPtr(0), Correct: true, Points: 40,
	})
	require.NoError(t, err)
	lbKey := "room:" + roomID + ":lb"
	assert.Equal(t, 24*time.Hour, env.redis.TTL(lbKey))

	_, err = env.rooms.EndGame(ctx, roomID, "host")
	require.NoError(t, err)
	assert.Zero(t, env.rounds.Pending())
	assert.Equal(t, time.Hour, env.redis.TTL(lbKey))
	assert.Equal(t, time.Hour, env.redis.TTL(lbKey+":names"))

	// the final standings stay readable until the key expires
	top, err := env.deps.Leaderboard.GetTop(ctx, roomID, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 40, top[0].Score)
}

func TestConcurrentJoinsCommitInOrder(t *testing.T) {
	const joiners = 30
	env := newTestEnv(t)
	created := env.createRoom(t, 1)
	env.bc.reset()

	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.rooms.JoinRoom(context.Background(), JoinRoomInput{
				ConnID:   fmt.Sprintf("guest-%d", i),
				RoomID:   created.Room.ID,
				Nickname: fmt.Sprintf("guest %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	room := env.stored(t, created.Room.ID)
	assert.Equal(t, int64(1+joiners), room.Version)
	assert.Len(t, room.Players, 1+joiners)

	updates := env.bc.ofType(EventRoomUpdated)
	require.Len(t, updates, joiners)
	for i, u := range updates {
		assert.Equal(t, int64(2+i), u.Payload.(RoomUpdatedPayload).Version)
	}
}
