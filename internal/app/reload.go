package app

import (
	"context"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/eventbus"
	logx "relaybot/pkg/logx"
)

// reloadLoop applies committed configs to the live components.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(old, next *config.Config) {
	sections, attrs := config.SummarizeChange(old, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if config.RequiresRestart(sections) {
		a.log.Warn("some changed sections need a restart to take effect", attrs...)
	}

	a.logs.Apply(mapLogConfig(next))

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.router.Apply(ncfg)
	}
	a.http.SetDefaultSeverity(next.Notifier.DefaultSeverityLevel())

	if probes, err := mapProbes(next, a.store, a.slack, a.probeClient); err != nil {
		a.log.Warn("invalid status config; keeping previous", logx.Err(err))
	} else {
		timeout, _ := config.ParseDurationOrDefault("status.probe_timeout", next.Status.ProbeTimeout, config.DefaultProbeTimeout)
		a.status.Apply(probes, timeout)
	}

	if rcfg, err := mapReportConfig(next); err != nil {
		a.log.Warn("invalid report config; keeping previous", logx.Err(err))
	} else if err := a.report.Apply(rcfg); err != nil {
		a.log.Warn("status report not rescheduled", logx.Err(err))
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: time.Now(), Data: sections})
	a.log.Info("config applied", attrs...)
}
