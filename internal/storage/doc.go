// Package storage is the key-value persistence layer behind the channel
// registry.
//
// Drivers:
//   - redis: go-redis client; per-key atomicity comes from SETNX and INCR
//   - sqlite: single-file database (modernc.org/sqlite, no cgo)
//   - memory: process-local map, for tests and throwaway runs
//
// Keys are plain strings. An optional prefix namespaces every key so several
// deployments can share one Redis database.
package storage
