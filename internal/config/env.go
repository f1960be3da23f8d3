package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides overrides secrets and deployment knobs from the environment.
//
// Environment variables supported:
//   - RELAYBOT_SLACK_TOKEN
//   - RELAYBOT_SLACK_BOT_ID
//   - RELAYBOT_SLACK_PROXY
//   - RELAYBOT_REDIS_ADDR (also selects the redis driver when storage.driver is empty)
//   - RELAYBOT_REDIS_PASSWORD
//   - RELAYBOT_REDIS_DB (int)
//   - RELAYBOT_HTTP_ADDR
func ApplyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	setString("RELAYBOT_SLACK_TOKEN", &cfg.Slack.Token)
	setString("RELAYBOT_SLACK_BOT_ID", &cfg.Slack.BotID)
	setString("RELAYBOT_SLACK_PROXY", &cfg.Slack.Proxy)
	setString("RELAYBOT_HTTP_ADDR", &cfg.HTTP.Addr)

	if v := strings.TrimSpace(os.Getenv("RELAYBOT_REDIS_ADDR")); v != "" {
		cfg.Storage.Addr = v
		if strings.TrimSpace(cfg.Storage.Driver) == "" {
			cfg.Storage.Driver = "redis"
		}
	}
	setString("RELAYBOT_REDIS_PASSWORD", &cfg.Storage.Password)
	if v := strings.TrimSpace(os.Getenv("RELAYBOT_REDIS_DB")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RELAYBOT_REDIS_DB: %w", err)
		}
		cfg.Storage.DB = n
	}
	return nil
}

func setString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
