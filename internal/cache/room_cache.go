package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"quizroom/internal/model"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomCache keeps the last committed snapshot of each room for read-only
// observers. The durable store stays authoritative.
type RoomCache interface {
	SetSnapshot(ctx context.Context, room *model.Room) error
	GetSnapshot(ctx context.Context, roomID string) (*model.Room, error)
}

type roomCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoomCache creates a new room snapshot cache
func NewRoomCache(client *redis.Client) RoomCache {
	return &roomCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *roomCache) key(roomID string) string {
	return fmt.Sprintf("room:%s:snapshot", roomID)
}

// SetSnapshot stores room unless a newer version is already cached
func (c *roomCache) SetSnapshot(ctx context.Context, room *model.Room) error {
	cached, err := c.GetSnapshot(ctx, room.ID)
	if err != nil {
		return err
	}
	if cached != nil && cached.Version > room.Version {
		return nil
	}
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(room.ID), data, c.ttl).Err()
}

func (c *roomCache) GetSnapshot(ctx context.Context, roomID string) (*model.Room, error) {
	data, err := c.client.Get(ctx, c.key(roomID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var room model.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, err
	}
	return &room, nil
}
