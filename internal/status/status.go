// Package status runs the health probes and renders the summary posted by
// the status command and the scheduled report.
package status

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultProbeTimeout = 5 * time.Second

// Result is the outcome of one probe. Detail is shown to users verbatim.
type Result struct {
	OK     bool
	Detail string
}

type Probe interface {
	Check(ctx context.Context) Result
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) Result

func (f ProbeFunc) Check(ctx context.Context) Result { return f(ctx) }

// Named labels a probe in the summary.
type Named struct {
	Label string
	Probe Probe
}

// Probes are listed in summary order: API, DBaaS, store, transport.
type Probes struct {
	API       Named
	DBaaS     Named
	Store     Named
	Transport Named
}

func (p Probes) ordered() []Named {
	return []Named{p.API, p.DBaaS, p.Store, p.Transport}
}

// LabeledResult pairs a label with its result.
type LabeledResult struct {
	Label string
	Result
}

type Report struct {
	Results []LabeledResult
	Healthy int
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu      sync.RWMutex
	probes  Probes
	timeout time.Duration
}

func NewAggregator(probes Probes, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Aggregator{probes: probes, timeout: timeout}
}

// Apply replaces the probes and timeout used by later checks.
func (a *Aggregator) Apply(probes Probes, timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	a.mu.Lock()
	a.probes, a.timeout = probes, timeout
	a.mu.Unlock()
}

// Check runs every probe concurrently, each under its own timeout. A probe
// that is missing or overruns its timeout counts as unhealthy.
func (a *Aggregator) Check(ctx context.Context) Report {
	a.mu.RLock()
	named, timeout := a.probes.ordered(), a.timeout
	a.mu.RUnlock()
	results := make([]LabeledResult, len(named))

	var g errgroup.Group
	for i, n := range named {
		results[i].Label = n.Label
		if n.Probe == nil {
			results[i].Result = Result{Detail: "not configured"}
			continue
		}
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i].Result = runProbe(pctx, n.Probe)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Results: results}
	for _, r := range results {
		if r.OK {
			rep.Healthy++
		}
	}
	return rep
}

// runProbe returns early with a timeout result if the probe ignores ctx.
func runProbe(ctx context.Context, p Probe) Result {
	ch := make(chan Result, 1)
	go func() { ch <- p.Check(ctx) }()
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return Result{Detail: "timeout: " + ctx.Err().Error()}
	}
}

// Compose renders the headline followed by one "Label: detail" line per probe.
func (a *Aggregator) Compose(ctx context.Context) string {
	return a.Check(ctx).String()
}

func (r Report) String() string {
	var b strings.Builder
	b.WriteString(Headline(r.Healthy))
	for _, res := range r.Results {
		fmt.Fprintf(&b, "\n%s: %s", res.Label, res.Detail)
	}
	return b.String()
}

// Headline summarizes the number of healthy probes out of four.
func Headline(healthy int) string {
	switch {
	case healthy >= 4:
		return "Everything is fine"
	case healthy == 3:
		return "I have one problem"
	case healthy >= 1:
		return "I'm in trouble"
	default:
		return "Nothing is working, sorry"
	}
}
