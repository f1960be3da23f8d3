package config

// Config is the on-disk configuration (JSON or YAML).
type Config struct {
	Slack    SlackConfig    `json:"slack"`
	HTTP     HTTPConfig     `json:"http"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier"`
	Status   StatusConfig   `json:"status"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// SlackConfig configures the chat transport.
//
// BotID may be left empty; it is then discovered with auth.test at startup.
type SlackConfig struct {
	Token  string `json:"token"` // never logged
	BotID  string `json:"bot_id,omitempty"`
	APIURL string `json:"api_url,omitempty"` // default: slack-go default
	Proxy  string `json:"proxy,omitempty"`   // optional HTTP(S) proxy URL
}

// HTTPConfig configures the ingress server.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type HTTPConfig struct {
	Addr         string `json:"addr,omitempty"` // default: ":5000"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	Debug        bool   `json:"debug,omitempty"`
	Pprof        bool   `json:"pprof,omitempty"` // serve /debug/pprof on the same listener
}

// StorageConfig selects the key-value backend for channel bindings.
//
// Example:
//
//	"storage": { "driver": "redis", "addr": "localhost:6379" }
//	"storage": { "driver": "sqlite", "path": "./data/relaybot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // redis | sqlite | memory
	Addr        string `json:"addr,omitempty"`
	Password    string `json:"password,omitempty"` // never logged
	DB          int    `json:"db,omitempty"`
	Path        string `json:"path,omitempty"`
	Prefix      string `json:"prefix,omitempty"`       // optional key namespace
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	Channel    string `json:"channel"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// NotifierConfig controls fan-out pacing.
//
// DefaultSeverity applies to /notify requests that do not carry a severity.
type NotifierConfig struct {
	DefaultSeverity string `json:"default_severity,omitempty"` // default: ERROR
	RatePerSec      int    `json:"rate_per_sec,omitempty"`     // default: 3
	SendTimeout     string `json:"send_timeout,omitempty"`     // default: 10s
	HistorySize     int    `json:"history_size,omitempty"`     // default: 300
}

// StatusConfig configures the health probes behind the status command.
type StatusConfig struct {
	APIURL       string       `json:"api_url,omitempty"`
	DBaaSURL     string       `json:"dbaas_url,omitempty"`
	ProbeTimeout string       `json:"probe_timeout,omitempty"` // default: 5s
	Report       ReportConfig `json:"report"`
}

// ReportConfig posts the status summary to a channel on a cron schedule.
type ReportConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // standard 5-field cron, e.g. "0 9 * * 1-5"
	Channel  string `json:"channel,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}
