package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Pinger is anything with a cheap liveness call (KV store, chat API).
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingProbe struct{ p Pinger }

func (pp pingProbe) Check(ctx context.Context) Result {
	if pp.p == nil {
		return Result{Detail: "not configured"}
	}
	if err := pp.p.Ping(ctx); err != nil {
		return Result{Detail: err.Error()}
	}
	return Result{OK: true, Detail: "OK"}
}

// StoreProbe pings the persistence store.
func StoreProbe(kv Pinger) Probe { return pingProbe{p: kv} }

// TransportProbe checks the chat API (auth.test for Slack).
func TransportProbe(api Pinger) Probe { return pingProbe{p: api} }

// HTTPProbe reports healthy on any 2xx response to GET URL. An empty URL is
// reported as not configured.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func (h HTTPProbe) Check(ctx context.Context) Result {
	u := strings.TrimSpace(h.URL)
	if u == "" {
		return Result{Detail: "not configured"}
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{Detail: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Detail: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Result{OK: true, Detail: "OK"}
}
