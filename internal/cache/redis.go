package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ugandavote/betclient/internal/logging"
)

// RedisConfig holds the connection settings for a Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key written by the store. Defaults to
	// "betclient:". Cache keys are per resource, not per user, so clients of
	// different users sharing one Redis need distinct prefixes.
	Prefix string
}

// Redis stores entries in Redis with native TTLs. Tag membership is kept in
// one set per tag. Read and write errors are logged and treated as misses;
// invalidation errors are returned.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to Redis and pings it before returning.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "betclient:"
	}
	return &Redis{rdb: rdb, prefix: prefix}, nil
}

func (r *Redis) valueKey(key string) string { return r.prefix + "v:" + key }

func (r *Redis) tagKey(tag Tag) string { return r.prefix + "t:" + string(tag) }

// Get returns the cached value for key. Expiry is enforced by Redis.
func (r *Redis) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	data, err := r.rdb.Get(ctx, r.valueKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Error("redis cache get failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return json.RawMessage(data), true
}

// Set writes value with a PX expiry and records its tag membership.
func (r *Redis) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration, tags ...Tag) {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.valueKey(key), []byte(value), ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, r.tagKey(tag), key)
		}
		return nil
	})
	if err != nil {
		logging.FromContext(ctx).Error("redis cache set failed", "key", key, "error", err.Error())
	}
}

// Delete removes a single entry.
func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, r.valueKey(key)).Err(); err != nil {
		logging.FromContext(ctx).Error("redis cache delete failed", "key", key, "error", err.Error())
	}
}

// InvalidateTags removes every entry listed under any of tags, then the tag
// sets themselves. Every tag is attempted; the failures are joined.
func (r *Redis) InvalidateTags(ctx context.Context, tags ...Tag) error {
	var errs []error
	for _, tag := range tags {
		members, err := r.rdb.SMembers(ctx, r.tagKey(tag)).Result()
		if err != nil {
			errs = append(errs, fmt.Errorf("redis tag %s lookup: %w", tag, err))
			continue
		}
		keys := make([]string, 0, len(members)+1)
		for _, m := range members {
			keys = append(keys, r.valueKey(m))
		}
		keys = append(keys, r.tagKey(tag))
		if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis tag %s invalidate: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

// Clear deletes every key under the store prefix.
func (r *Redis) Clear(ctx context.Context) error {
	keys, err := r.scan(ctx, r.prefix+"*")
	if err != nil {
		return fmt.Errorf("redis cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis cache clear: %w", err)
	}
	return nil
}

// Len counts live value keys.
func (r *Redis) Len(ctx context.Context) int {
	keys, err := r.scan(ctx, r.prefix+"v:*")
	if err != nil {
		logging.FromContext(ctx).Error("redis cache scan failed", "error", err.Error())
		return 0
	}
	return len(keys)
}

func (r *Redis) scan(ctx context.Context, match string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
