package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache handles Redis ZSET operations for leaderboard
type LeaderboardCache interface {
	UpdateScore(ctx context.Context, roomID, playerID, nickname string, score int) error
	Remove(ctx context.Context, roomID, playerID string) error
	GetTop(ctx context.Context, roomID string, limit int) ([]LeaderboardEntry, error)
	GetRank(ctx context.Context, roomID, playerID string) (int64, error)
	Expire(ctx context.Context, roomID string, ttl time.Duration) error
}

// LeaderboardEntry represents a single leaderboard entry
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

type leaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *leaderboardCache) key(roomID string) string {
	return fmt.Sprintf("room:%s:lb", roomID)
}

func (c *leaderboardCache) namesKey(roomID string) string {
	return fmt.Sprintf("room:%s:lb:names", roomID)
}

func (c *leaderboardCache) UpdateScore(ctx context.Context, roomID, playerID, nickname string, score int) error {
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, c.key(roomID), redis.Z{
		Score:  float64(score),
		Member: playerID,
	})
	pipe.HSet(ctx, c.namesKey(roomID), playerID, nickname)
	pipe.Expire(ctx, c.key(roomID), c.ttl)
	pipe.Expire(ctx, c.namesKey(roomID), c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *leaderboardCache) Remove(ctx context.Context, roomID, playerID string) error {
	pipe := c.client.TxPipeline()
	pipe.ZRem(ctx, c.key(roomID), playerID)
	pipe.HDel(ctx, c.namesKey(roomID), playerID)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *leaderboardCache) GetTop(ctx context.Context, roomID string, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []LeaderboardEntry{}, nil
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i] = z.Member.(string)
	}
	names, err := c.client.HMGet(ctx, c.namesKey(roomID), ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = LeaderboardEntry{
			PlayerID: ids[i],
			Score:    int(z.Score),
			Rank:     i + 1,
		}
		if name, ok := names[i].(string); ok {
			entries[i].Nickname = name
		}
	}
	return entries, nil
}

func (c *leaderboardCache) GetRank(ctx context.Context, roomID, playerID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(roomID), playerID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}

// Expire shortens the lifetime of a finished room's leaderboard
func (c *leaderboardCache) Expire(ctx context.Context, roomID string, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Expire(ctx, c.key(roomID), ttl)
	pipe.Expire(ctx, c.namesKey(roomID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}
