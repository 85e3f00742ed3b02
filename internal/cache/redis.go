package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "revgate"

// Redis shares a cache between machines, for example CI runners.
type Redis struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedis wraps an existing client. A zero ttl keeps entries until
// evicted.
func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{rdb: rdb, keyPrefix: prefix, ttl: ttl}
}

// DialRedis connects to addr. The connection is lazy; the first Get or Put
// reports an unreachable server.
func DialRedis(addr, prefix string, ttl time.Duration) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

func (r *Redis) key(k Key) string {
	return fmt.Sprintf("%s:findings:%s:%s", r.keyPrefix, k.Analyzer, k.ContentHash)
}

func (r *Redis) Get(ctx context.Context, key Key) (Entry, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	return decodeEntry(key, raw)
}

func (r *Redis) Put(ctx context.Context, key Key, entry Entry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
