// Package registry maps severity levels to the chat channels that subscribe
// to them.
//
// A binding is stored under "{SEVERITY}_{channelId}". The stored value is an
// insertion sequence number so every driver returns channels in the order
// they were first bound.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"relaybot/internal/relayerr"
	"relaybot/internal/severity"
	"relaybot/internal/storage"
)

// seqKey holds the insertion counter. It never matches a binding prefix
// because severity names are upper-case.
const seqKey = "_seq"

// Binding subscribes a channel to messages at one severity.
type Binding struct {
	ChannelID string
	Severity  severity.Level
}

// Key builds the composite registry key for a binding.
func Key(sev severity.Level, channelID string) string {
	return sev.String() + "_" + channelID
}

// Registry keeps severity to channel bindings in a KV store.
type Registry struct {
	kv storage.KV
}

// New returns a Registry backed by kv.
func New(kv storage.KV) *Registry {
	return &Registry{kv: kv}
}

// ChannelsFor returns the channels bound at exactly sev, in insertion order.
func (r *Registry) ChannelsFor(ctx context.Context, sev severity.Level) ([]string, error) {
	bindings, err := r.scan(ctx, sev)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, b.ChannelID)
	}
	return out, nil
}

// SetChannel binds channelID under key. Re-setting an existing binding is a
// no-op and keeps its original position.
func (r *Registry) SetChannel(ctx context.Context, channelID, key string) error {
	if _, ok, err := r.kv.Get(ctx, key); err != nil {
		return relayerr.StoreUnavailable("registry.set", err)
	} else if ok {
		return nil
	}
	seq, err := r.kv.Incr(ctx, seqKey)
	if err != nil {
		return relayerr.StoreUnavailable("registry.set", err)
	}
	// A concurrent set of the same key may win; its sequence number stands.
	if _, err := r.kv.PutIfAbsent(ctx, key, strconv.FormatInt(seq, 10)); err != nil {
		return relayerr.StoreUnavailable("registry.set", err)
	}
	return nil
}

// UnsetChannel removes the binding at key. A missing key is not an error.
func (r *Registry) UnsetChannel(ctx context.Context, key string) error {
	if err := r.kv.Delete(ctx, key); err != nil {
		return relayerr.StoreUnavailable("registry.unset", err)
	}
	return nil
}

// Bindings returns every binding grouped by ascending severity, each group in
// insertion order.
func (r *Registry) Bindings(ctx context.Context) ([]Binding, error) {
	var out []Binding
	for _, lvl := range severity.All() {
		bs, err := r.scan(ctx, lvl)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	return out, nil
}

func (r *Registry) scan(ctx context.Context, sev severity.Level) ([]Binding, error) {
	prefix := sev.String() + "_"
	entries, err := r.kv.Scan(ctx, prefix)
	if err != nil {
		return nil, relayerr.StoreUnavailable("registry.scan", err)
	}

	type ordered struct {
		Binding
		seq int64
	}
	items := make([]ordered, 0, len(entries))
	for _, e := range entries {
		seq, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			// values written by older deployments carry no order; keep them last
			seq = int64(^uint64(0) >> 1)
		}
		items = append(items, ordered{
			Binding: Binding{ChannelID: strings.TrimPrefix(e.Key, prefix), Severity: sev},
			seq:     seq,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	out := make([]Binding, len(items))
	for i, it := range items {
		out[i] = it.Binding
	}
	return out, nil
}

// Describe renders bindings as one "SEVERITY: channels" line per level that
// has any.
func Describe(bindings []Binding) string {
	if len(bindings) == 0 {
		return "No channels registered"
	}
	var b strings.Builder
	cur := severity.Level(0)
	for _, bd := range bindings {
		if bd.Severity != cur {
			if cur != 0 {
				b.WriteByte('\n')
			}
			cur = bd.Severity
			fmt.Fprintf(&b, "%s:", cur)
		}
		fmt.Fprintf(&b, " <#%s>", bd.ChannelID)
	}
	return b.String()
}
