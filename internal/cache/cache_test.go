package cache

import (
	"context"
	"quizroom/internal/model"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRoomCache(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	c := NewRoomCache(client)

	got, err := c.GetSnapshot(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	room := &model.Room{ID: "r1", State: model.RoomLobby, Version: 3,
		Players: []model.Player{{ID: "p1", Nickname: "ana"}}}
	require.NoError(t, c.SetSnapshot(ctx, room))

	got, err = c.GetSnapshot(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "ana", got.Players[0].Nickname)

	t.Run("older versions do not overwrite newer ones", func(t *testing.T) {
		stale := room.Clone()
		stale.Version = 2
		stale.State = model.RoomRunning
		require.NoError(t, c.SetSnapshot(ctx, stale))

		got, err := c.GetSnapshot(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, model.RoomLobby, got.State)
	})

	t.Run("snapshots expire", func(t *testing.T) {
		mr.FastForward(25 * time.Hour)
		got, err := c.GetSnapshot(ctx, "r1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestLeaderboardCache(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	lb := NewLeaderboardCache(client)

	require.NoError(t, lb.UpdateScore(ctx, "r1", "p1", "ana", 300))
	require.NoError(t, lb.UpdateScore(ctx, "r1", "p2", "ben", 500))
	require.NoError(t, lb.UpdateScore(ctx, "r1", "p3", "cid", 100))

	top, err := lb.GetTop(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, LeaderboardEntry{PlayerID: "p2", Nickname: "ben", Score: 500, Rank: 1}, top[0])
	assert.Equal(t, "p1", top[1].PlayerID)

	rank, err := lb.GetRank(ctx, "r1", "p3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	rank, err = lb.GetRank(ctx, "r1", "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rank)

	require.NoError(t, lb.Remove(ctx, "r1", "p2"))
	top, err = lb.GetTop(ctx, "r1", 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
	assert.Equal(t, "p1", top[0].PlayerID)

	assert.Equal(t, 24*time.Hour, mr.TTL("room:r1:lb"))
	assert.Equal(t, 24*time.Hour, mr.TTL("room:r1:lb:names"))

	require.NoError(t, lb.Expire(ctx, "r1", time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("room:r1:lb"))
	assert.Equal(t, time.Hour, mr.TTL("room:r1:lb:names"))

	mr.FastForward(2 * time.Hour)
	top, err = lb.GetTop(ctx, "r1", 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestSessionCache(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	s := NewSessionCache(client)

	require.NoError(t, s.Bind(ctx, "c1", "r1"))
	require.NoError(t, s.Bind(ctx, "c1", "r2"))
	require.NoError(t, s.Bind(ctx, "c1", "r1"))

	rooms, err := s.Rooms(ctx, "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, rooms)

	require.NoError(t, s.Unbind(ctx, "c1", "r1"))
	rooms, err = s.Rooms(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, rooms)

	require.NoError(t, s.Clear(ctx, "c1"))
	rooms, err = s.Rooms(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}
