package service

import (
	"context"
	"quizroom/internal/model"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor periodically counts active rooms and players. It reads without
// room locks, so its numbers are eventually consistent.
type Monitor struct {
	core
	interval time.Duration
}

func NewMonitor(deps Deps, interval time.Duration) *Monitor {
	return &Monitor{core: core{deps}, interval: interval}
}

type Stats struct {
	LobbyRooms       int `json:"lobbyRooms"`
	RunningRooms     int `json:"runningRooms"`
	Players          int `json:"players"`
	ConnectedPlayers int `json:"connectedPlayers"`
	LockedRooms      int `json:"lockedRooms"`
}

// Collect takes one sample and publishes it to the gauges
func (m *Monitor) Collect(ctx context.Context) (Stats, error) {
	rooms, err := m.Rooms.ListByState(ctx, model.RoomLobby, model.RoomRunning)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, r := range rooms {
		if r.State == model.RoomLobby {
			st.LobbyRooms++
		} else {
			st.RunningRooms++
		}
		st.Players += len(r.Players)
		st.ConnectedPlayers += r.ConnectedCount()
	}
	st.LockedRooms = m.Locker.Size()

	m.Metrics.ActiveRooms.Set(float64(st.LobbyRooms + st.RunningRooms))
	m.Metrics.ActivePlayers.Set(float64(st.Players))
	m.Metrics.ConnectedPlayers.Set(float64(st.ConnectedPlayers))

	m.Log.WithFields(logrus.Fields{
		"lobby_rooms":       st.LobbyRooms,
		"running_rooms":     st.RunningRooms,
		"players":           st.Players,
		"connected_players": st.ConnectedPlayers,
		"locked_rooms":      st.LockedRooms,
	}).Info("room stats")
	return st, nil
}

// Run samples on every tick until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	return runEvery(ctx, m.interval, func(ctx context.Context) {
		if _, err := m.Collect(ctx); err != nil {
			m.Log.WithError(err).Warn("monitoring pass failed")
		}
	})
}
