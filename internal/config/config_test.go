package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relaybot/internal/severity"
)

const validJSON = `{
  "slack": {"token": "xoxb-test"},
  "storage": {"driver": "memory"},
  "logging": {"level": "info", "console": true}
}`

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Decode("config.json", []byte(`{"slack": {"token": "x"}, "bogus": 1}`))
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	t.Parallel()

	_, err := Decode("config.json", []byte(validJSON+"{}"))
	if err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	src := `
slack:
  token: xoxb-yaml
storage:
  driver: redis
  addr: localhost:6379
  db: 2
notifier:
  default_severity: warning
status:
  report:
    enabled: true
    channel: C-OPS
`
	cfg, err := Decode("config.yaml", []byte(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Storage.DB != 2 || cfg.Storage.Addr != "localhost:6379" {
		t.Fatalf("storage not decoded: %+v", cfg.Storage)
	}
	if got := cfg.Notifier.DefaultSeverityLevel(); got != severity.Warning {
		t.Fatalf("default severity = %v, want WARNING", got)
	}
	if !cfg.Status.Report.Enabled || cfg.Status.Report.Channel != "C-OPS" {
		t.Fatalf("report not decoded: %+v", cfg.Status.Report)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RELAYBOT_SLACK_TOKEN", "xoxb-env")
	t.Setenv("RELAYBOT_REDIS_ADDR", "redis:6379")
	t.Setenv("RELAYBOT_REDIS_DB", "3")

	cfg, err := Decode("config.json", []byte(`{"slack": {"token": "from-file"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Slack.Token != "xoxb-env" {
		t.Fatalf("token = %q, want env value", cfg.Slack.Token)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.Addr != "redis:6379" || cfg.Storage.DB != 3 {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestEnvOverridesBadDB(t *testing.T) {
	t.Setenv("RELAYBOT_REDIS_DB", "two")
	if err := ApplyEnvOverrides(&Config{}); err == nil {
		t.Fatalf("expected error for non-numeric db")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := &Config{Slack: SlackConfig{Token: "x"}, Storage: StorageConfig{Driver: "memory"}}
	if err := Validate(ok); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := &Config{
		Storage:  StorageConfig{Driver: "redis"},
		Notifier: NotifierConfig{DefaultSeverity: "LOUD", SendTimeout: "soon"},
		Status:   StatusConfig{APIURL: "ftp://x", Report: ReportConfig{Enabled: true}},
	}
	err := Validate(bad)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{
		"slack.token",
		"storage.addr",
		"notifier.default_severity",
		"notifier.send_timeout",
		"status.api_url",
		"status.report.channel",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-1s", time.Second); err == nil {
		t.Fatalf("expected negative duration error")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Slack: SlackConfig{Token: "a"}, Notifier: NotifierConfig{RatePerSec: 3}}
	newCfg := &Config{Slack: SlackConfig{Token: "a"}, Notifier: NotifierConfig{RatePerSec: 5}}

	changed, attrs := SummarizeChange(oldCfg, newCfg)
	if len(changed) != 1 || changed[0] != "notifier" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}
	if RequiresRestart(changed) {
		t.Fatalf("notifier change should be hot-reloadable")
	}
	if !RequiresRestart([]string{"logging", "storage"}) {
		t.Fatalf("storage change requires restart")
	}
}

func TestManagerWatchPublishesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(validJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(validJSON, `"level": "info"`, `"level": "debug"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("reload was not committed")
	}
}

func TestManagerIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(validJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"slack": {}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m.reload(context.Background())
	if m.Get().Slack.Token != "xoxb-test" {
		t.Fatalf("invalid reload replaced the active config")
	}
}
