package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"relaybot/internal/config"
	"relaybot/internal/httpapi"
	"relaybot/internal/notifier"
	"relaybot/internal/schedule"
	"relaybot/internal/status"
	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    lc.Chat.Enabled,
			Channel:    lc.Chat.Channel,
			MinLevel:   lc.Chat.MinLevel,
			RatePerSec: lc.Chat.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	out := storage.Config{
		Driver:   driver,
		Addr:     strings.TrimSpace(sc.Addr),
		Password: sc.Password,
		DB:       sc.DB,
		Path:     strings.TrimSpace(sc.Path),
		Prefix:   sc.Prefix,
	}
	switch driver {
	case "redis", "memory":
	case "sqlite", "sqlite3":
		if out.Path == "" {
			out.Path = config.DefaultSQLitePath
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, config.DefaultSQLiteBusy)
		if err != nil {
			return storage.Config{}, err
		}
		out.BusyTimeout = busy
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	return out, nil
}

// storeLabel names the persistence probe in the status summary.
func storeLabel(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return "SQLite"
	case "memory":
		return "Memory"
	default:
		return "Redis"
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	timeout, err := config.ParseDurationOrDefault("notifier.send_timeout", nc.SendTimeout, config.DefaultSendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	out := notifier.Config{
		RatePerSec:  nc.RatePerSec,
		SendTimeout: timeout,
		HistorySize: nc.HistorySize,
	}
	if out.RatePerSec == 0 {
		out.RatePerSec = config.DefaultRatePerSec
	}
	if out.HistorySize == 0 {
		out.HistorySize = config.DefaultHistorySize
	}
	return out, nil
}

// mapProbes builds the four status probes. store and chat are the live
// store and Slack client.
func mapProbes(cfg *config.Config, store, chat status.Pinger, client *http.Client) (status.Probes, error) {
	if _, err := config.ParseDurationField("status.probe_timeout", cfg.Status.ProbeTimeout); err != nil {
		return status.Probes{}, err
	}
	return status.Probes{
		API:       status.Named{Label: "API", Probe: status.HTTPProbe{URL: cfg.Status.APIURL, Client: client}},
		DBaaS:     status.Named{Label: "DBaaS", Probe: status.HTTPProbe{URL: cfg.Status.DBaaSURL, Client: client}},
		Store:     status.Named{Label: storeLabel(cfg.Storage.Driver), Probe: status.StoreProbe(store)},
		Transport: status.Named{Label: "Slack", Probe: status.TransportProbe(chat)},
	}, nil
}

func mapHTTPOptions(cfg *config.Config) (httpapi.Options, error) {
	hc := cfg.HTTP
	read, err := config.ParseDurationOrDefault("http.read_timeout", hc.ReadTimeout, config.DefaultHTTPReadTimeout)
	if err != nil {
		return httpapi.Options{}, err
	}
	write, err := config.ParseDurationOrDefault("http.write_timeout", hc.WriteTimeout, config.DefaultHTTPWriteTimeout)
	if err != nil {
		return httpapi.Options{}, err
	}
	addr := strings.TrimSpace(hc.Addr)
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	return httpapi.Options{
		Addr:            addr,
		ReadTimeout:     read,
		WriteTimeout:    write,
		Debug:           hc.Debug,
		Pprof:           hc.Pprof,
		DefaultSeverity: cfg.Notifier.DefaultSeverityLevel(),
	}, nil
}

func mapReportConfig(cfg *config.Config) (schedule.Config, error) {
	rc := cfg.Status.Report
	timeout, err := config.ParseDurationOrDefault("status.probe_timeout", cfg.Status.ProbeTimeout, config.DefaultProbeTimeout)
	if err != nil {
		return schedule.Config{}, err
	}
	spec := strings.TrimSpace(rc.Schedule)
	if spec == "" {
		spec = config.DefaultReportSchedule
	}
	return schedule.Config{
		Enabled:  rc.Enabled,
		Spec:     spec,
		Channel:  strings.TrimSpace(rc.Channel),
		Timezone: strings.TrimSpace(rc.Timezone),
		// probes plus one post
		Timeout: timeout + config.DefaultSendTimeout,
	}, nil
}

// validate is installed on the config manager so a bad hot reload is
// rejected before it is committed.
func validate(_ context.Context, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	rc, err := mapReportConfig(cfg)
	if err != nil {
		return err
	}
	if rc.Enabled {
		if err := schedule.ParseSpec(rc.Spec); err != nil {
			return fmt.Errorf("status.report.schedule: %w", err)
		}
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapHTTPOptions(cfg); err != nil {
		return err
	}
	_, err = mapStorageConfig(cfg)
	return err
}
