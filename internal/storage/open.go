package storage

import (
	"fmt"
	"strings"

	logx "relaybot/pkg/logx"
)

// Open initializes the configured driver and applies the key prefix.
func Open(cfg Config, log logx.Logger) (KV, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		kv  KV
		err error
	)
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "redis":
		kv, err = openRedis(cfg, log)
	case "sqlite", "sqlite3":
		kv, err = openSQLite(cfg, log)
	case "memory":
		kv = NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}
	log.Info("storage opened", logx.String("driver", driver), logx.Bool("prefixed", cfg.Prefix != ""))
	return WithPrefix(kv, cfg.Prefix), nil
}
