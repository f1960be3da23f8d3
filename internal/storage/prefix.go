package storage

import (
	"context"
	"strings"
)

// WithPrefix namespaces every key of kv. An empty prefix returns kv unchanged.
func WithPrefix(kv KV, prefix string) KV {
	if prefix == "" {
		return kv
	}
	return &prefixed{KV: kv, prefix: prefix}
}

type prefixed struct {
	KV
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.KV.Get(ctx, p.prefix+key)
}

func (p *prefixed) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return p.KV.PutIfAbsent(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.KV.Delete(ctx, p.prefix+key)
}

func (p *prefixed) Incr(ctx context.Context, key string) (int64, error) {
	return p.KV.Incr(ctx, p.prefix+key)
}

func (p *prefixed) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	entries, err := p.KV.Scan(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Key = strings.TrimPrefix(entries[i].Key, p.prefix)
	}
	return entries, nil
}
