package service

import (
	"context"
	"quizroom/internal/model"
	"time"
)

// Sweeper ends abandoned games and removes players who never came back.
// Sweeper changes are not activity: lastActivity is never touched here.
type Sweeper struct {
	core
	staleEvery time.Duration
	purgeEvery time.Duration
}

// NewSweeper creates a sweeper running the stale sweep every staleEvery and
// the player purge every purgeEvery
func NewSweeper(deps Deps, staleEvery, purgeEvery time.Duration) *Sweeper {
	return &Sweeper{core: core{deps}, staleEvery: staleEvery, purgeEvery: purgeEvery}
}

// SweepStale completes running rooms idle for longer than StaleAfter and
// returns how many it completed
func (s *Sweeper) SweepStale(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.Settings.StaleAfter)
	rooms, err := s.Rooms.ListInactive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, candidate := range rooms {
		done := false
		_, err := s.mutate(ctx, "staleSweep", candidate.ID, func(room *model.Room, t *tx) error {
			// the room may have moved on since it was listed
			if !room.IsRunning() || !room.LastActivity.Before(cutoff) {
				t.noCommit()
				return nil
			}
			room.Complete(now, model.EndInactivity)
			t.broadcast(EventGameAutoEnded, GameOverPayload{
				Room:       s.view(room),
				Reason:     string(model.EndInactivity),
				ServerTime: now.UnixMilli(),
			})
			done = true
			return nil
		})
		if err != nil {
			s.roomLog(candidate.ID).WithError(err).Warn("stale sweep failed")
			continue
		}
		if done {
			completed++
			s.Metrics.RoomsCompleted.WithLabelValues(string(model.EndInactivity)).Inc()
			s.roomLog(candidate.ID).Info("room auto-ended after inactivity")
		}
	}
	return completed, nil
}

// PurgeInactive removes players disconnected for longer than PlayerGrace from
// rooms that have not completed, and returns how many it removed. If the host
// is removed, the earliest remaining player becomes host.
func (s *Sweeper) PurgeInactive(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.Settings.PlayerGrace)
	rooms, err := s.Rooms.ListByState(ctx, model.RoomLobby, model.RoomRunning)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, candidate := range rooms {
		if !hasExpiredPlayers(candidate, cutoff) {
			continue
		}
		var gone []model.Player
		_, err := s.mutate(ctx, "playerPurge", candidate.ID, func(room *model.Room, t *tx) error {
			if room.IsCompleted() {
				t.noCommit()
				return nil
			}
			kept := room.Players[:0:0]
			for _, p := range room.Players {
				if p.DisconnectedSince(cutoff) {
					gone = append(gone, p)
				} else {
					kept = append(kept, p)
				}
			}
			if len(gone) == 0 {
				t.noCommit()
				return nil
			}
			room.Players = kept
			if room.Host() == nil && len(room.Players) > 0 {
				room.Players[0].Role = model.RoleHost
			}
			t.onCommit(func(ctx context.Context) {
				for _, p := range gone {
					if err := s.Leaderboard.Remove(ctx, room.ID, p.ID); err != nil {
						s.roomLog(room.ID).WithError(err).Warn("failed to remove player from leaderboard")
					}
				}
			})
			return nil
		})
		if err != nil {
			s.roomLog(candidate.ID).WithError(err).Warn("player purge failed")
			continue
		}
		if len(gone) > 0 {
			removed += len(gone)
			s.Metrics.PlayersPurged.Add(float64(len(gone)))
			s.roomLog(candidate.ID).WithField("removed", len(gone)).Info("purged disconnected players")
		}
	}
	return removed, nil
}

// Run runs both sweeps on their own intervals until ctx is done
func (s *Sweeper) Run(ctx context.Context) error {
	stale := time.NewTicker(s.staleEvery)
	defer stale.Stop()
	purge := time.NewTicker(s.purgeEvery)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stale.C:
			if _, err := s.SweepStale(ctx); err != nil {
				s.Log.WithError(err).Error("stale sweep failed")
			}
		case <-purge.C:
			if _, err := s.PurgeInactive(ctx); err != nil {
				s.Log.WithError(err).Error("player purge failed")
			}
		}
	}
}

func hasExpiredPlayers(room *model.Room, cutoff time.Time) bool {
	for i := range room.Players {
		if room.Players[i].DisconnectedSince(cutoff) {
			return true
		}
	}
	return false
}
