package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"techo_backend/internal/evidence"

	"github.com/redis/go-redis/v9"
)

// Entry is a cached conversion result together with the ETag of the source
// it was produced from.
type Entry struct {
	Result      evidence.Reference `json:"result"`
	SourceETag  string             `json:"sourceEtag"`
	ConvertedAt time.Time          `json:"convertedAt"`
}

// Cache stores conversion entries.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheKey identifies the conversion of src by converter version:
// conversion:<version>:<bucket>/<key>.
func CacheKey(version string, src evidence.Reference) string {
	return fmt.Sprintf("conversion:%s:%s/%s", version, src.Bucket, src.Key)
}

// RedisCache keeps entries as JSON strings in Redis.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps rdb.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		// A corrupt entry is a miss; the next conversion overwrites it.
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
