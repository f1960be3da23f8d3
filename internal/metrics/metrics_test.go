package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"relaybot/internal/eventbus"
)

func TestObserveCountsEvents(t *testing.T) {
	t.Parallel()
	m := New()

	m.Observe(eventbus.Event{Type: eventbus.DispatchSent, Data: eventbus.Delivery{Channel: "C1", Severity: "ERROR"}})
	m.Observe(eventbus.Event{Type: eventbus.DispatchSent, Data: eventbus.Delivery{Channel: "C2", Severity: "ERROR"}})
	m.Observe(eventbus.Event{Type: eventbus.DispatchFailed, Data: eventbus.Delivery{Channel: "C3", Severity: "ERROR"}})
	m.Observe(eventbus.Event{Type: eventbus.CommandHandled, Data: eventbus.CommandResult{Kind: "status"}})
	m.Observe(eventbus.Event{Type: eventbus.BindingChanged, Data: eventbus.BindingChange{Bound: true}})
	m.Observe(eventbus.Event{Type: eventbus.RTMReconnect})
	m.Observe(eventbus.Event{Type: "unknown"})

	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("sent", "ERROR")); got != 2 {
		t.Fatalf("sent = %v", got)
	}
	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("failed", "ERROR")); got != 1 {
		t.Fatalf("failed = %v", got)
	}
	if got := testutil.ToFloat64(m.Commands.WithLabelValues("status")); got != 1 {
		t.Fatalf("commands = %v", got)
	}
	if got := testutil.ToFloat64(m.BindingChanges.WithLabelValues("set")); got != 1 {
		t.Fatalf("binding changes = %v", got)
	}
	if got := testutil.ToFloat64(m.RTMReconnects); got != 1 {
		t.Fatalf("reconnects = %v", got)
	}
}

func TestRunConsumesBus(t *testing.T) {
	t.Parallel()
	m := New()
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.RTMClosed) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("event not consumed")
		}
		// publish repeatedly: the subscription may not exist yet
		bus.Publish(eventbus.Event{Type: eventbus.RTMClosed})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()
	m := New()
	m.Notifies.WithLabelValues("201").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `relaybot_notify_requests_total{code="201"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}
