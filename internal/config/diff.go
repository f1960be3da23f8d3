package config

import (
	"strings"

	logx "relaybot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe structured
// attrs for logging. Secrets (tokens, passwords) are only reported as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Slack != newCfg.Slack {
		changed = append(changed, "slack")
		attrs = append(attrs,
			logx.Bool("slack.token_changed", oldCfg.Slack.Token != newCfg.Slack.Token),
			logx.String("slack.bot_id", newCfg.Slack.BotID),
			logx.Bool("slack.proxy_set", strings.TrimSpace(newCfg.Slack.Proxy) != ""),
		)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs, logx.String("http.addr", newCfg.HTTP.Addr))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.password_set", newCfg.Storage.Password != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.default_severity", newCfg.Notifier.DefaultSeverityLevel().String()),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		)
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		attrs = append(attrs,
			logx.Bool("status.report_enabled", newCfg.Status.Report.Enabled),
			logx.String("status.report_schedule", newCfg.Status.Report.Schedule),
		)
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}

	if len(changed) > 0 {
		attrs = append([]logx.Field{logx.String("sections", strings.Join(changed, ","))}, attrs...)
	}
	return changed, attrs
}

// RequiresRestart reports whether any changed section cannot be applied live.
// Logging, notifier pacing and the status section are hot-reloadable.
func RequiresRestart(changed []string) bool {
	for _, s := range changed {
		switch s {
		case "slack", "http", "storage", "metrics":
			return true
		}
	}
	return false
}
