package service

import (
	"context"
	"errors"
	"quizroom/internal/model"
	"sort"
	"sync"
	"time"
)

// SyncService rebroadcasts the authoritative snapshot of every active room on
// a heartbeat, so clients that missed a message converge without asking.
// A resync never changes the room: no version bump, no activity.
type SyncService struct {
	core
	interval time.Duration

	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewSyncService creates a new sync service
func NewSyncService(deps Deps, interval time.Duration) *SyncService {
	return &SyncService{
		core:     core{deps},
		interval: interval,
		rooms:    make(map[string]struct{}),
	}
}

// Track adds a room to the heartbeat
func (s *SyncService) Track(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = struct{}{}
}

func (s *SyncService) Untrack(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// Tracked returns the tracked room ids in a stable order
func (s *SyncService) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TrackActive seeds the heartbeat with every lobby or running room in the store
func (s *SyncService) TrackActive(ctx context.Context) error {
	rooms, err := s.Rooms.ListByState(ctx, model.RoomLobby, model.RoomRunning)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		s.Track(r.ID)
	}
	return nil
}

// ResyncOnce broadcasts one snapshot per tracked room and drops rooms that are
// gone, empty or completed. It returns the number of snapshots sent.
func (s *SyncService) ResyncOnce(ctx context.Context) int {
	sent := 0
	for _, roomID := range s.Tracked() {
		keep := false
		err := s.Locker.WithLock(ctx, roomID, func(ctx context.Context) error {
			room, err := s.load(ctx, roomID)
			if err != nil {
				return err
			}
			if room.IsCompleted() || len(room.Players) == 0 {
				return nil
			}
			keep = true
			s.Broadcaster.BroadcastToRoom(room.ID, EventRoomUpdated, s.roomUpdated(room))
			return nil
		})
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			if ctx.Err() != nil {
				return sent
			}
			s.roomLog(roomID).WithError(err).Warn("resync failed")
			continue
		}
		if !keep {
			s.Untrack(roomID)
			continue
		}
		sent++
		s.Metrics.Resyncs.Inc()
	}
	return sent
}

// Run resyncs on every tick until ctx is done
func (s *SyncService) Run(ctx context.Context) error {
	return runEvery(ctx, s.interval, func(ctx context.Context) { s.ResyncOnce(ctx) })
}

// runEvery calls fn on each tick of interval until ctx is done
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
