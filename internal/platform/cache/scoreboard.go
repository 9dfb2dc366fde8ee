package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"prep_arena/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// ScoreboardCache keeps rendered scoreboards in redis for a short TTL so a
// busy live contest doesn't resort the participant list on every poll.
// All operations are best-effort; a cache failure never fails a request.
type ScoreboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewScoreboardCache(rdb *redis.Client, ttl time.Duration) *ScoreboardCache {
	return &ScoreboardCache{rdb: rdb, ttl: ttl}
}

func scoreboardKey(contestID string) string {
	return "scoreboard:" + contestID
}

func (c *ScoreboardCache) Get(ctx context.Context, contestID string) ([]model.ScoreboardEntry, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, scoreboardKey(contestID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheLog.Warnf("scoreboard cache read failed for contest %s: %v", contestID, err)
		}
		return nil, false
	}
	var entries []model.ScoreboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *ScoreboardCache) Set(ctx context.Context, contestID string, entries []model.ScoreboardEntry) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, scoreboardKey(contestID), data, c.ttl).Err(); err != nil {
		cacheLog.Warnf("scoreboard cache write failed for contest %s: %v", contestID, err)
	}
}

func (c *ScoreboardCache) Invalidate(ctx context.Context, contestID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, scoreboardKey(contestID)).Err(); err != nil {
		cacheLog.Warnf("scoreboard cache invalidation failed for contest %s: %v", contestID, err)
	}
}
