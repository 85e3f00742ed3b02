// Package cache stores analyzer findings per file so unchanged files are not
// analyzed twice. Entries are keyed by analyzer id and the file's content
// hash. The cache is purely an accelerator: a cold cache and a warm cache
// produce the same report.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sprite-ai/revgate/internal/model"
)

// ErrUnknownBackend is returned by Open for backend names it does not know.
var ErrUnknownBackend = errors.New("unknown cache backend")

// Key identifies one cached analyzer result.
type Key struct {
	Analyzer    string
	ContentHash string
}

func (k Key) String() string {
	return k.Analyzer + ":" + k.ContentHash
}

// Entry is a cached result. ContentHash repeats the key's hash so a reader
// can detect an entry stored under the wrong key.
type Entry struct {
	ContentHash string          `json:"content_hash"`
	Findings    []model.Finding `json:"findings"`
}

// Cache is a findings store. Implementations are safe for concurrent use.
// Get reports a miss, not an error, for absent or mismatched entries.
type Cache interface {
	Get(ctx context.Context, key Key) (Entry, bool, error)
	Put(ctx context.Context, key Key, entry Entry) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of none, memory, sqlite or redis.
	Backend   string        `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Open returns the configured backend. The "none" backend, or an empty
// name, returns Nop.
func Open(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "redis":
		return DialRedis(cfg.RedisAddr, cfg.Prefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, Key) (Entry, bool, error) { return Entry{}, false, nil }
func (Nop) Put(context.Context, Key, Entry) error         { return nil }
func (Nop) Close() error                                  { return nil }

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

// decodeEntry parses a stored entry and checks it belongs to key.
func decodeEntry(key Key, raw []byte) (Entry, bool, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	if e.ContentHash != key.ContentHash {
		return Entry{}, false, nil
	}
	return e, true, nil
}
