// Package metrics exposes Prometheus counters fed from the event bus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relaybot/internal/eventbus"
)

// Metrics holds the relaybot collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Deliveries     *prometheus.CounterVec // labels: result, severity
	Commands       *prometheus.CounterVec // labels: kind
	BindingChanges *prometheus.CounterVec // labels: action
	RTMReconnects  prometheus.Counter
	RTMClosed      prometheus.Counter
	ConfigReloads  prometheus.Counter
	Notifies       *prometheus.CounterVec // labels: code
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybot_deliveries_total",
			Help: "Messages posted to chat channels, by result and severity (empty for replies)",
		}, []string{"result", "severity"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybot_commands_total",
			Help: "Chat commands handled, by kind",
		}, []string{"kind"}),
		BindingChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybot_binding_changes_total",
			Help: "Channel bindings set or unset via chat",
		}, []string{"action"}),
		RTMReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relaybot_rtm_reconnects_total",
			Help: "Realtime reconnects that followed a server-issued URL",
		}),
		RTMClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relaybot_rtm_sessions_closed_total",
			Help: "Realtime sessions that ended with a transport error",
		}),
		ConfigReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relaybot_config_reloads_total",
			Help: "Configuration reloads applied at runtime",
		}),
		Notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybot_notify_requests_total",
			Help: "POST /notify requests, by response code",
		}, []string{"code"}),
	}
	m.reg.MustRegister(
		m.Deliveries,
		m.Commands,
		m.BindingChanges,
		m.RTMReconnects,
		m.RTMClosed,
		m.ConfigReloads,
		m.Notifies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the private registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe updates counters for one bus event. Unknown types are ignored.
func (m *Metrics) Observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.DispatchSent, eventbus.DispatchFailed:
		d, _ := ev.Data.(eventbus.Delivery)
		result := "sent"
		if ev.Type == eventbus.DispatchFailed {
			result = "failed"
		}
		m.Deliveries.WithLabelValues(result, d.Severity).Inc()
	case eventbus.CommandHandled:
		r, _ := ev.Data.(eventbus.CommandResult)
		m.Commands.WithLabelValues(r.Kind).Inc()
	case eventbus.BindingChanged:
		c, _ := ev.Data.(eventbus.BindingChange)
		action := "unset"
		if c.Bound {
			action = "set"
		}
		m.BindingChanges.WithLabelValues(action).Inc()
	case eventbus.RTMReconnect:
		m.RTMReconnects.Inc()
	case eventbus.RTMClosed:
		m.RTMClosed.Inc()
	case eventbus.ConfigReloaded:
		m.ConfigReloads.Inc()
	}
}

// Run consumes bus events until ctx is done.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	events, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Observe(ev)
		}
	}
}
