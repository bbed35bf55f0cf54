package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/models"
)

// RedisCache implements SessionCache over go-redis. Every backend error is
// absorbed into a neutral result; at worst the engine runs at repository
// speed.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logging.Logger
}

// NewRedisCache wraps an existing client. A nil client yields a cache that
// behaves exactly like Noop.
func NewRedisCache(client *redis.Client, ttl time.Duration, log logging.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func sessionKey(uploadID string) string {
	return fmt.Sprintf("upload:%s", uploadID)
}

func progressKey(uploadID string) string {
	return fmt.Sprintf("upload:%s:progress", uploadID)
}

func (c *RedisCache) GetSession(ctx context.Context, uploadID string) *models.UploadSession {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, sessionKey(uploadID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn(ctx, "cache get failed", "upload_id", uploadID, "error", err)
		}
		return nil
	}
	var s models.UploadSession
	if err := json.Unmarshal(raw, &s); err != nil {
		c.log.Warn(ctx, "cache entry unreadable", "upload_id", uploadID, "error", err)
		return nil
	}
	return &s
}

func (c *RedisCache) SetSession(ctx context.Context, session *models.UploadSession) bool {
	if c.client == nil || session == nil {
		return false
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return false
	}
	if err := c.client.Set(ctx, sessionKey(session.UploadID), raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache set failed", "upload_id", session.UploadID, "error", err)
		return false
	}
	return true
}

func (c *RedisCache) GetProgress(ctx context.Context, uploadID string) *models.SessionProgress {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, progressKey(uploadID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn(ctx, "cache get failed", "upload_id", uploadID, "error", err)
		}
		return nil
	}
	var p models.SessionProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return &p
}

func (c *RedisCache) SetProgress(ctx context.Context, progress *models.SessionProgress) bool {
	if c.client == nil || progress == nil {
		return false
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		return false
	}
	if err := c.client.Set(ctx, progressKey(progress.UploadID), raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache set failed", "upload_id", progress.UploadID, "error", err)
		return false
	}
	return true
}

func (c *RedisCache) Expire(ctx context.Context, uploadID string, ttl time.Duration) bool {
	if c.client == nil {
		return false
	}
	ok := true
	for _, key := range []string{sessionKey(uploadID), progressKey(uploadID)} {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			c.log.Warn(ctx, "cache expire failed", "upload_id", uploadID, "error", err)
			ok = false
		}
	}
	return ok
}

func (c *RedisCache) Invalidate(ctx context.Context, uploadID string) bool {
	if c.client == nil {
		return false
	}
	if err := c.client.Del(ctx, sessionKey(uploadID), progressKey(uploadID)).Err(); err != nil {
		c.log.Warn(ctx, "cache invalidate failed", "upload_id", uploadID, "error", err)
		return false
	}
	return true
}
