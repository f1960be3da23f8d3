package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"relaybot/internal/severity"
)

// Defaults used when the corresponding field is left empty.
const (
	DefaultHTTPAddr         = ":5000"
	DefaultSeverity         = "ERROR"
	DefaultRatePerSec       = 3
	DefaultSendTimeout      = 10 * time.Second
	DefaultHistorySize      = 300
	DefaultProbeTimeout     = 5 * time.Second
	DefaultSQLitePath       = "./data/relaybot.db"
	DefaultSQLiteBusy       = 5 * time.Second
	DefaultReportSchedule   = "0 9 * * *"
	DefaultHTTPReadTimeout  = 10 * time.Second
	DefaultHTTPWriteTimeout = 10 * time.Second
)

// Validate checks fields that would otherwise fail late (at first send or
// first request). All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(cfg.Slack.Token) == "" {
		add("slack.token is required")
	}
	if p := strings.TrimSpace(cfg.Slack.Proxy); p != "" {
		if u, err := url.Parse(p); err != nil || u.Host == "" {
			add("slack.proxy: invalid url %q", p)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "redis":
		if strings.TrimSpace(cfg.Storage.Addr) == "" {
			add("storage.addr is required for the redis driver")
		}
	case "sqlite", "memory":
	case "":
		add("storage.driver is required (redis, sqlite or memory)")
	default:
		add("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if s := strings.TrimSpace(cfg.Notifier.DefaultSeverity); s != "" {
		if _, err := severity.ParseLoose(s); err != nil {
			add("notifier.default_severity: %v", err)
		}
	}
	if cfg.Notifier.RatePerSec < 0 {
		add("notifier.rate_per_sec must be >= 0")
	}

	for path, raw := range map[string]string{
		"notifier.send_timeout": cfg.Notifier.SendTimeout,
		"status.probe_timeout":  cfg.Status.ProbeTimeout,
		"http.read_timeout":     cfg.HTTP.ReadTimeout,
		"http.write_timeout":    cfg.HTTP.WriteTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	for path, raw := range map[string]string{
		"status.api_url":   cfg.Status.APIURL,
		"status.dbaas_url": cfg.Status.DBaaSURL,
	} {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			add("%s: expected an http(s) url, got %q", path, raw)
		}
	}

	if r := cfg.Status.Report; r.Enabled {
		if strings.TrimSpace(r.Channel) == "" {
			add("status.report.channel is required when the report is enabled")
		}
		if tz := strings.TrimSpace(r.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				add("status.report.timezone: %v", err)
			}
		}
	}

	if c := cfg.Logging.Chat; c.Enabled && strings.TrimSpace(c.Channel) == "" {
		add("logging.chat.channel is required when chat logging is enabled")
	}

	return errors.Join(errs...)
}

// DefaultSeverityLevel returns the severity applied to /notify requests
// without an explicit one.
func (c NotifierConfig) DefaultSeverityLevel() severity.Level {
	if lvl, err := severity.ParseLoose(c.DefaultSeverity); err == nil {
		return lvl
	}
	return severity.Error
}
