package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/model"
)

const tokenCacheKeyPrefix = "validate:"

// TokenCache is an optional short-TTL read-through cache in front of token
// validation. It is a performance hint only: every miss or redis failure
// falls back to the database, and writers invalidate affected hashes on
// rotate, rename, and revoke. A nil *TokenCache disables caching.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenCache returns a cache with the given entry lifetime, or nil when
// ttl is zero so callers can pass the result through unconditionally.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		return nil
	}
	return &TokenCache{client: client, ttl: ttl}
}

func tokenCacheKey(tokenHash string) string {
	return tokenCacheKeyPrefix + tokenHash
}

func (c *TokenCache) Get(ctx context.Context, tokenHash string) *model.DeviceIdentity {
	if c == nil {
		return nil
	}

	data, err := c.client.Get(ctx, tokenCacheKey(tokenHash)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("token cache read failed, falling back to database")
		}
		return nil
	}

	var identity model.DeviceIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		log.Warn().Err(err).Msg("token cache entry corrupt, dropping")
		c.Invalidate(ctx, tokenHash)
		return nil
	}
	return &identity
}

func (c *TokenCache) Set(ctx context.Context, tokenHash string, identity *model.DeviceIdentity) {
	if c == nil || identity == nil {
		return
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tokenCacheKey(tokenHash), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("token cache write failed")
	}
}

func (c *TokenCache) Invalidate(ctx context.Context, tokenHashes ...string) {
	if c == nil || len(tokenHashes) == 0 {
		return
	}

	keys := make([]string, len(tokenHashes))
	for i, hash := range tokenHashes {
		keys[i] = tokenCacheKey(hash)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Int("keys", len(keys)).Msg("token cache invalidation failed")
	}
}
