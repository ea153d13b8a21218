package repository

import (
	"context"
	"quizroom/internal/model"
	"sort"
	"sync"
	"time"
)

type memoryRoomRepo struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
}

// NewMemoryRoomRepo returns a process-local RoomRepo. Rooms are copied on the
// way in and out so callers never share state with the store.
func NewMemoryRoomRepo() RoomRepo {
	return &memoryRoomRepo{rooms: make(map[string]*model.Room)}
}

func (r *memoryRoomRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (r *memoryRoomRepo) Create(ctx context.Context, room *model.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return ErrDuplicateRoom
	}
	r.rooms[room.ID] = room.Clone()
	return nil
}

func (r *memoryRoomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, nil
	}
	return room.Clone(), nil
}

func (r *memoryRoomRepo) Update(ctx context.Context, room *model.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rooms[room.ID]
	if !ok || stored.Version != room.Version-1 {
		return ErrVersionConflict
	}
	r.rooms[room.ID] = room.Clone()
	return nil
}

func (r *memoryRoomRepo) FindByConnection(ctx context.Context, connID string) ([]*model.Room, error) {
	return r.filter(func(room *model.Room) bool {
		return room.PlayerByConnection(connID) != nil
	}), nil
}

func (r *memoryRoomRepo) ListByState(ctx context.Context, states ...model.RoomState) ([]*model.Room, error) {
	return r.filter(func(room *model.Room) bool {
		for _, s := range states {
			if room.State == s {
				return true
			}
		}
		return false
	}), nil
}

func (r *memoryRoomRepo) ListInactive(ctx context.Context, cutoff time.Time) ([]*model.Room, error) {
	return r.filter(func(room *model.Room) bool {
		return room.State == model.RoomRunning && room.LastActivity.Before(cutoff)
	}), nil
}

func (r *memoryRoomRepo) filter(keep func(*model.Room) bool) []*model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Room
	for _, room := range r.rooms {
		if keep(room) {
			out = append(out, room.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
