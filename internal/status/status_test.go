package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fixed(ok bool, detail string) Probe {
	return ProbeFunc(func(context.Context) Result { return Result{OK: ok, Detail: detail} })
}

func probes(api, dbaas, store, transport bool) Probes {
	detail := func(ok bool) string {
		if ok {
			return "OK"
		}
		return "down"
	}
	return Probes{
		API:       Named{Label: "API", Probe: fixed(api, detail(api))},
		DBaaS:     Named{Label: "DBaaS", Probe: fixed(dbaas, detail(dbaas))},
		Store:     Named{Label: "Redis", Probe: fixed(store, detail(store))},
		Transport: Named{Label: "Slack", Probe: fixed(transport, detail(transport))},
	}
}

func TestComposeHeadlines(t *testing.T) {
	t.Parallel()

	cases := []struct {
		p    Probes
		want string
	}{
		{probes(true, true, true, true), "Everything is fine"},
		{probes(true, true, false, true), "I have one problem"},
		{probes(true, false, false, false), "I'm in trouble"},
		{probes(true, false, true, false), "I'm in trouble"},
		{probes(false, false, false, false), "Nothing is working, sorry"},
	}
	for _, tc := range cases {
		got := NewAggregator(tc.p, time.Second).Compose(context.Background())
		if !strings.HasPrefix(got, tc.want+"\n") {
			t.Fatalf("compose = %q, want headline %q", got, tc.want)
		}
	}
}

func TestComposeLineOrder(t *testing.T) {
	t.Parallel()
	got := NewAggregator(probes(true, false, true, false), time.Second).Compose(context.Background())
	want := "I'm in trouble\nAPI: OK\nDBaaS: down\nRedis: OK\nSlack: down"
	if got != want {
		t.Fatalf("compose = %q, want %q", got, want)
	}
}

func TestSlowProbeTimesOut(t *testing.T) {
	t.Parallel()
	p := probes(true, true, true, true)
	p.DBaaS.Probe = ProbeFunc(func(ctx context.Context) Result {
		time.Sleep(time.Second)
		return Result{OK: true, Detail: "late"}
	})

	start := time.Now()
	rep := NewAggregator(p, 20*time.Millisecond).Check(context.Background())
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("check waited for the slow probe")
	}
	if rep.Healthy != 3 || rep.Results[1].OK || !strings.HasPrefix(rep.Results[1].Detail, "timeout") {
		t.Fatalf("report = %+v", rep)
	}
}

func TestMissingProbeIsUnhealthy(t *testing.T) {
	t.Parallel()
	p := probes(true, true, true, true)
	p.API.Probe = nil
	rep := NewAggregator(p, time.Second).Check(context.Background())
	if rep.Healthy != 3 || rep.Results[0].Detail != "not configured" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestApplySwapsProbes(t *testing.T) {
	t.Parallel()
	a := NewAggregator(probes(false, false, false, false), time.Second)
	a.Apply(probes(true, true, true, true), 0)
	if got := a.Check(context.Background()).Healthy; got != 4 {
		t.Fatalf("healthy = %d after Apply, want 4", got)
	}
}

func TestHTTPProbe(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("WORKING"))
	}))
	defer srv.Close()
	ctx := context.Background()

	if r := (HTTPProbe{URL: srv.URL + "/up"}).Check(ctx); !r.OK || r.Detail != "OK" {
		t.Fatalf("up = %+v", r)
	}
	if r := (HTTPProbe{URL: srv.URL + "/down"}).Check(ctx); r.OK || r.Detail != "HTTP 503" {
		t.Fatalf("down = %+v", r)
	}
	if r := (HTTPProbe{}).Check(ctx); r.OK || r.Detail != "not configured" {
		t.Fatalf("empty = %+v", r)
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingProbes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if r := StoreProbe(pingerFunc(func(context.Context) error { return nil })).Check(ctx); !r.OK {
		t.Fatalf("store = %+v", r)
	}
	r := TransportProbe(pingerFunc(func(context.Context) error { return errors.New("invalid_auth") })).Check(ctx)
	if r.OK || r.Detail != "invalid_auth" {
		t.Fatalf("transport = %+v", r)
	}
	if r := StoreProbe(nil).Check(ctx); r.OK || r.Detail != "not configured" {
		t.Fatalf("nil store = %+v", r)
	}
}
