// Package schedule posts a periodic status report to a Slack channel.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"relaybot/internal/registry"
	logx "relaybot/pkg/logx"
)

// Config describes when and where the report is posted.
type Config struct {
	Enabled  bool
	Spec     string // standard 5-field cron spec or a descriptor such as @hourly
	Channel  string
	Timezone string // IANA TZ, empty means local time
	Timeout  time.Duration
}

type Composer interface {
	Compose(ctx context.Context) string
}

type BindingLister interface {
	Bindings(ctx context.Context) ([]registry.Binding, error)
}

type Poster interface {
	SendToChannel(ctx context.Context, channel, text string) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec reports whether spec is accepted by the report scheduler.
func ParseSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return errors.New("empty schedule")
	}
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Reporter owns a cron instance with at most one job.
type Reporter struct {
	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	ctx context.Context

	status   Composer
	bindings BindingLister
	post     Poster
	log      logx.Logger

	lastMu  sync.Mutex
	lastRun time.Time
	lastErr error
}

func New(cfg Config, status Composer, bindings BindingLister, post Poster, log logx.Logger) *Reporter {
	return &Reporter{
		cfg:      cfg,
		status:   status,
		bindings: bindings,
		post:     post,
		log:      log.With(logx.String("comp", "schedule")),
	}
}

// Start registers the job and starts the cron loop. The context bounds every
// run and is kept for restarts triggered by Apply.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		return nil
	}
	r.ctx = ctx
	return r.startLocked()
}

// Apply swaps the configuration. A running cron is restarted only when the
// schedule, timezone or enabled flag changed.
func (r *Reporter) Apply(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.cfg
	r.cfg = cfg
	if r.ctx == nil {
		return nil
	}
	if old.Enabled == cfg.Enabled && old.Spec == cfg.Spec && old.Timezone == cfg.Timezone {
		return nil
	}
	r.stopLocked()
	return r.startLocked()
}

// Stop halts the cron loop and waits for a running report to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.ctx = nil
}

func (r *Reporter) startLocked() error {
	cfg := r.cfg
	if !cfg.Enabled {
		r.log.Debug("status report disabled")
		return nil
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}
	if err := ParseSpec(cfg.Spec); err != nil {
		return err
	}

	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Spec, r.tick); err != nil {
		return fmt.Errorf("schedule report: %w", err)
	}
	c.Start()
	r.c = c
	r.log.Info("status report scheduled",
		logx.String("spec", cfg.Spec),
		logx.String("tz", loc.String()),
		logx.String("channel", cfg.Channel),
	)
	return nil
}

func (r *Reporter) stopLocked() {
	if r.c == nil {
		return
	}
	<-r.c.Stop().Done()
	r.c = nil
}

func (r *Reporter) tick() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := r.RunOnce(ctx); err != nil {
		r.log.Warn("status report failed", logx.Err(err))
	}
}

// RunOnce composes and posts a single report.
func (r *Reporter) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	cfg := r.cfg
	r.mu.Unlock()

	if strings.TrimSpace(cfg.Channel) == "" {
		return errors.New("status report channel is not configured")
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	text := Render(ctx, r.status, r.bindings)
	err := r.post.SendToChannel(ctx, cfg.Channel, text)

	r.lastMu.Lock()
	r.lastRun, r.lastErr = time.Now(), err
	r.lastMu.Unlock()
	return err
}

// Last returns the time and outcome of the most recent run.
func (r *Reporter) Last() (time.Time, error) {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()
	return r.lastRun, r.lastErr
}

// Render builds the report body: the status summary followed by the current
// channel bindings. A failing binding lookup is reported inline.
func Render(ctx context.Context, status Composer, bindings BindingLister) string {
	var b strings.Builder
	b.WriteString(status.Compose(ctx))
	b.WriteString("\n\n*Channels*\n")
	list, err := bindings.Bindings(ctx)
	if err != nil {
		b.WriteString("unavailable: ")
		b.WriteString(err.Error())
		return b.String()
	}
	b.WriteString(registry.Describe(list))
	return b.String()
}
