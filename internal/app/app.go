// Package app wires the relay bot together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"relaybot/internal/command"
	"relaybot/internal/config"
	"relaybot/internal/eventbus"
	"relaybot/internal/httpapi"
	"relaybot/internal/metrics"
	"relaybot/internal/notifier"
	"relaybot/internal/realtime"
	"relaybot/internal/registry"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/schedule"
	"relaybot/internal/status"
	"relaybot/internal/storage"
	slackapi "relaybot/internal/transport/slack"
	logx "relaybot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.KV
	slack *slackapi.Client

	registry *registry.Registry
	router   *notifier.Router
	status   *status.Aggregator
	handler  *command.Handler
	listener *realtime.Listener
	http     *httpapi.Server
	metrics  *metrics.Metrics
	report   *schedule.Reporter

	probeClient *http.Client
	botID       string
}

// New loads the config and builds every component. Nothing touches the
// network until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	// The chat sink is bound once the Slack client exists.
	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	appLog := log.With(logx.String("comp", "app"))

	a, err := build(cfg, logSvc, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.cfgm = cfgm
	a.log = appLog
	return a, nil
}

func build(cfg *config.Config, logSvc *logx.Service, log logx.Logger) (*App, error) {
	bus := eventbus.New()

	client, err := slackapi.New(slackapi.Config{
		Token:  cfg.Slack.Token,
		APIURL: cfg.Slack.APIURL,
		Proxy:  cfg.Slack.Proxy,
	}, log)
	if err != nil {
		return nil, err
	}
	logSvc.SetChatSender(client)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	reg := registry.New(store)
	router := notifier.New(ncfg, reg, client, bus, log)

	probeClient := &http.Client{}
	probes, err := mapProbes(cfg, store, client, probeClient)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	probeTimeout, _ := config.ParseDurationOrDefault("status.probe_timeout", cfg.Status.ProbeTimeout, config.DefaultProbeTimeout)
	agg := status.NewAggregator(probes, probeTimeout)

	classifier := command.NewClassifier(reg, agg)
	handler := command.NewHandler(classifier, router, bus, log)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	hopts, err := mapHTTPOptions(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	hopts.Store = probes.Store.Probe
	hopts.Transport = probes.Transport.Probe
	hopts.Metrics = m
	srv := httpapi.New(hopts, router, log)

	rcfg, err := mapReportConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	report := schedule.New(rcfg, agg, reg, router, log)

	return &App{
		log:         log,
		logs:        logSvc,
		bus:         bus,
		store:       store,
		slack:       client,
		registry:    reg,
		router:      router,
		status:      agg,
		handler:     handler,
		http:        srv,
		metrics:     m,
		report:      report,
		probeClient: probeClient,
		botID:       strings.TrimSpace(cfg.Slack.BotID),
	}, nil
}

// Done is closed when the supervisor context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Handler exposes the HTTP ingress for in-process use.
func (a *App) Handler() http.Handler { return a.http.Handler() }

// Start resolves the bot identity and launches the background loops.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	if a.botID == "" {
		idCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		id, err := a.slack.BotID(idCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("discover bot id: %w", err)
		}
		a.botID = id
		a.log.Info("bot identity discovered", logx.String("bot_id", id))
	}
	a.listener = realtime.New(a.slack, a.botID, a.bus, a.log)

	if a.metrics != nil {
		a.sup.Go("metrics", func(c context.Context) error { return a.metrics.Run(c, a.bus) })
	}

	a.sup.Go("http", a.http.Run)

	// A closed session is restarted here, never inside the listener.
	a.sup.GoRestart("rtm", func(c context.Context) error {
		return a.listener.Run(c, a.handleDirect)
	}, supervisor.WithRestartBackoff(time.Second, time.Minute))

	if err := a.report.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("bot_id", a.botID))
	return nil
}

func (a *App) handleDirect(ctx context.Context, dm realtime.DirectMessage) {
	if err := a.handler.Handle(ctx, dm.Channel, dm.User, dm.Text); err != nil {
		a.log.Warn("command reply failed", logx.String("channel", dm.Channel), logx.Err(err))
	}
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
		}
	}
}

// Stop shuts components down in dependency order. Each step is bounded so one
// component can't stall the whole stop.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.closeResources()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Unwinds the listener, HTTP server and watcher.
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		if limit <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("report", 2*time.Second, func(context.Context) error { a.report.Stop(); return nil })
	step("rtm", 2*time.Second, func(context.Context) error {
		if a.listener != nil {
			return a.listener.Close()
		}
		return nil
	})
	step("supervisor", 5*time.Second, a.sup.Wait)
	step("resources", 2*time.Second, func(context.Context) error { return a.closeResources() })

	a.log.Info("stopped")
	return nil
}

func (a *App) closeResources() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}
