package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quickdesk/support-service/internal/domain"
)

const profileKeyPrefix = "profile:"

// ProfileSource is the backing store queried on cache miss.
type ProfileSource interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// ProfileCache is a read-through redis cache for profile lookups. The
// caller's role is re-resolved on every request, so the hot path is a single
// point read; entries expire after a short TTL and a redis outage degrades to
// direct store reads.
type ProfileCache struct {
	client *redis.Client
	source ProfileSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewProfileCache wraps source with a redis cache. A nil client disables
// caching and every read goes to source.
func NewProfileCache(client *redis.Client, source ProfileSource, ttl time.Duration, logger *zap.Logger) *ProfileCache {
	return &ProfileCache{client: client, source: source, ttl: ttl, logger: logger}
}

type cachedProfile struct {
	ID       string      `json:"id"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

// GetByID returns the profile for id, consulting redis first. Cached entries
// omit credentials; only identity fields are stored.
func (c *ProfileCache) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if c.client == nil {
		return c.source.GetByID(ctx, id)
	}

	key := profileKeyPrefix + id
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedProfile
		if jsonErr := json.Unmarshal(payload, &entry); jsonErr == nil {
			return &domain.Profile{ID: entry.ID, FullName: entry.FullName, Role: entry.Role}, nil
		}
		// corrupted entry, fall through to the store
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("profile cache read failed", zap.Error(err))
	}

	profile, err := c.source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, profile)
	return profile, nil
}

// Invalidate drops the cached entry for id.
func (c *ProfileCache) Invalidate(ctx context.Context, id string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, profileKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("profile cache invalidate failed", zap.Error(err))
	}
}

func (c *ProfileCache) store(ctx context.Context, key string, profile *domain.Profile) {
	entry := cachedProfile{ID: profile.ID, FullName: profile.FullName, Role: profile.Role}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache write failed", zap.Error(err))
	}
}
