package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage. It mirrors the "storage" config section with
// durations already parsed.
type Config struct {
	Driver      string
	Addr        string
	Password    string
	DB          int
	Path        string
	Prefix      string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one key/value pair returned by Scan.
type Entry struct {
	Key   string
	Value string
}

// KV is the capability the registry needs. Every method is atomic per key;
// there are no multi-key transactions.
type KV interface {
	// Get returns ok=false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// PutIfAbsent stores value only when key is missing and reports whether it did.
	PutIfAbsent(ctx context.Context, key, value string) (bool, error)
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan returns every entry whose key starts with prefix, sorted by key.
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	// Incr atomically increments the integer counter at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
