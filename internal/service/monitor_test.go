package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorCollect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	startedRoom(t, env, 1)
	lobby := env.createRoom(t, 1)
	env.join(t, lobby.Room.ID, "late", "Cy")
	env.sessions.Disconnect(ctx, "late")
	ended := env.createRoom(t, 1)
	_, err := env.rooms.EndGame(ctx, ended.Room.ID, "host")
	require.NoError(t, err)

	st, err := env.monitor.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{LobbyRooms: 1, RunningRooms: 1, Players: 4, ConnectedPlayers: 3}, st)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.deps.Metrics.ActiveRooms))
	assert.Equal(t, 4.0, testutil.ToFloat64(env.deps.Metrics.ActivePlayers))
	assert.Equal(t, 3.0, testutil.ToFloat64(env.deps.Metrics.ConnectedPlayers))
}
