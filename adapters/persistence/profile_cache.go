package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/config"
	"github.com/cvlinkhq/cvlink/internal/domain/profile"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

// ProfileCache keeps resolved published profiles hot in redis and backs the
// short per-IP view dedup window. Cache failures are soft: callers fall
// through to the store.
type ProfileCache struct {
	rdb         *redis.Client
	ttl         time.Duration
	dedupWindow time.Duration
	logger      logger.Logger
}

const (
	profileKeyPrefix = "profile:resolve:"
	dedupKeyPrefix   = "profile:viewed:"
)

func NewProfileCache(rdb *redis.Client, cfg config.Config, log logger.Logger) *ProfileCache {
	return &ProfileCache{
		rdb:         rdb,
		ttl:         cfg.Cache.ProfileTTL,
		dedupWindow: cfg.Cache.ViewDedupWindow,
		logger:      log,
	}
}

func (c *ProfileCache) Get(ctx context.Context, identifier string) (*profile.Profile, bool) {
	data, err := c.rdb.Get(ctx, profileKeyPrefix+identifier).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Profile cache read failed", zap.String("identifier", identifier), zap.Error(err))
		}
		return nil, false
	}

	p := &profile.Profile{}
	if err := json.Unmarshal(data, p); err != nil {
		c.logger.Warn("Profile cache entry corrupt, dropping", zap.String("identifier", identifier), zap.Error(err))
		c.rdb.Del(ctx, profileKeyPrefix+identifier)
		return nil, false
	}
	return p, true
}

func (c *ProfileCache) Set(ctx context.Context, identifier string, p *profile.Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("Failed to marshal profile for cache", zap.String("identifier", identifier), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, profileKeyPrefix+identifier, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Profile cache write failed", zap.String("identifier", identifier), zap.Error(err))
	}
}

// Invalidate drops every identifier the profile can resolve under: the
// current slug, an old slug after a rename, and the custom domain.
func (c *ProfileCache) Invalidate(ctx context.Context, identifiers ...string) {
	keys := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if id != "" {
			keys = append(keys, profileKeyPrefix+id)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Profile cache invalidation failed", zap.Error(err))
	}
}

// MarkViewed reports whether this IP already viewed the profile inside the
// dedup window, marking it as viewed either way. On redis failure the view
// counts; overcounting beats silently dropping views.
func (c *ProfileCache) MarkViewed(ctx context.Context, profileID uuid.UUID, ip string) bool {
	key := fmt.Sprintf("%s%s:%s", dedupKeyPrefix, profileID, ip)
	set, err := c.rdb.SetNX(ctx, key, 1, c.dedupWindow).Result()
	if err != nil {
		c.logger.Warn("View dedup check failed", zap.String("profile_id", profileID.String()), zap.Error(err))
		return false
	}
	return !set
}
