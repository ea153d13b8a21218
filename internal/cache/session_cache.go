package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache indexes which rooms a connection is bound to, so a disconnect
// can be resolved without scanning every room
type SessionCache interface {
	Bind(ctx context.Context, connID, roomID string) error
	Unbind(ctx context.Context, connID, roomID string) error
	Rooms(ctx context.Context, connID string) ([]string, error)
	Clear(ctx context.Context, connID string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *sessionCache) key(connID string) string {
	return "conn:" + connID + ":rooms"
}

func (c *sessionCache) Bind(ctx context.Context, connID, roomID string) error {
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, c.key(connID), roomID)
	pipe.Expire(ctx, c.key(connID), c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *sessionCache) Unbind(ctx context.Context, connID, roomID string) error {
	return c.client.SRem(ctx, c.key(connID), roomID).Err()
}

func (c *sessionCache) Rooms(ctx context.Context, connID string) ([]string, error) {
	return c.client.SMembers(ctx, c.key(connID)).Result()
}

func (c *sessionCache) Clear(ctx context.Context, connID string) error {
	return c.client.Del(ctx, c.key(connID)).Err()
}
