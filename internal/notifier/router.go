package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"relaybot/internal/eventbus"
	"relaybot/internal/relayerr"
	"relaybot/internal/severity"
	logx "relaybot/pkg/logx"
)

const (
	defaultRatePerSec  = 3
	defaultSendTimeout = 10 * time.Second
	defaultHistorySize = 300
	historyTextMax     = 200
)

// Router is safe for concurrent use.
type Router struct {
	log      logx.Logger
	channels ChannelSource
	sender   Sender
	bus      eventbus.Bus

	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, channels ChannelSource, sender Sender, bus eventbus.Bus, log logx.Logger) *Router {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	r := &Router{
		log:      log.With(logx.String("comp", "notifier")),
		channels: channels,
		sender:   sender,
		bus:      bus,
	}
	r.Apply(cfg)
	return r
}

// Apply swaps pacing settings at runtime.
func (r *Router) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	r.mu.Lock()
	r.cfg = cfg
	// burst = rate, so short spikes are not throttled hard
	r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	r.mu.Unlock()
}

func (r *Router) settings() (Config, *rate.Limiter) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg, r.limiter
}

// Dispatch sends message to every channel subscribed at sev or below. Each
// binding gets its own send, so a channel bound at two qualifying levels
// receives the message twice.
//
// A registry failure aborts with a StoreUnavailable error. Send failures do
// not stop the fan-out; they are returned together as one Delivery error
// after every channel was tried.
func (r *Router) Dispatch(ctx context.Context, message string, sev severity.Level) (Report, error) {
	rep := Report{Severity: sev}
	if !sev.Valid() {
		return rep, relayerr.E(relayerr.KindInvalidSeverity, "notifier.dispatch", fmt.Sprintf("unknown severity %d", int(sev)), nil)
	}

	for _, lvl := range severity.All() {
		if !sev.Meets(lvl) {
			break
		}
		chans, err := r.channels.ChannelsFor(ctx, lvl)
		if err != nil {
			if relayerr.KindOf(err) == "" {
				err = relayerr.StoreUnavailable("notifier.dispatch", err)
			}
			r.log.Error("dispatch aborted", logx.String("severity", sev.String()), logx.Err(err))
			return rep, err
		}
		for _, ch := range chans {
			if err := r.send(ctx, ch, message, sev); err != nil {
				rep.Failed = append(rep.Failed, Failure{Channel: ch, Err: err})
				continue
			}
			rep.Sent = append(rep.Sent, ch)
		}
	}

	r.log.Debug("dispatch finished",
		logx.String("severity", sev.String()),
		logx.Int("sent", len(rep.Sent)),
		logx.Int("failed", len(rep.Failed)),
	)
	if len(rep.Failed) == 0 {
		return rep, nil
	}
	errs := make([]error, 0, len(rep.Failed))
	for _, f := range rep.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Channel, f.Err))
	}
	msg := fmt.Sprintf("failed to deliver to %d of %d channels", len(rep.Failed), rep.Attempted())
	return rep, relayerr.E(relayerr.KindDelivery, "notifier.dispatch", msg, errors.Join(errs...))
}

// SendToChannel posts text to a single channel. It is used for command
// replies and scheduled reports.
func (r *Router) SendToChannel(ctx context.Context, channel, text string) error {
	return r.send(ctx, channel, text, 0)
}

func (r *Router) send(ctx context.Context, channel, text string, sev severity.Level) error {
	cfg, limiter := r.settings()
	if err := limiter.Wait(ctx); err != nil {
		err = relayerr.Transport("notifier.send", err)
		r.record(channel, text, sev, err)
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	err := r.sender.SendMessage(sctx, channel, text)
	cancel()
	if err != nil && relayerr.KindOf(err) == "" {
		err = relayerr.Transport("notifier.send", err)
	}
	r.record(channel, text, sev, err)
	if err != nil {
		r.log.Warn("send failed", logx.String("channel", channel), logx.Err(err))
	}
	return err
}

func (r *Router) record(channel, text string, sev severity.Level, err error) {
	d := eventbus.Delivery{Channel: channel}
	if sev.Valid() {
		d.Severity = sev.String()
	}
	item := HistoryItem{At: time.Now(), Channel: channel, Text: clip(text, historyTextMax)}
	typ := eventbus.DispatchSent
	if err != nil {
		typ = eventbus.DispatchFailed
		d.Err = err.Error()
		item.Err = d.Err
	}
	r.bus.Publish(eventbus.Event{Type: typ, Data: d})

	cfg, _ := r.settings()
	r.hmu.Lock()
	r.history = append(r.history, item)
	if over := len(r.history) - cfg.HistorySize; over > 0 {
		r.history = append(r.history[:0:0], r.history[over:]...)
	}
	r.hmu.Unlock()
}

// History returns the most recent deliveries, newest last.
func (r *Router) History() []HistoryItem {
	r.hmu.Lock()
	defer r.hmu.Unlock()
	return append([]HistoryItem(nil), r.history...)
}

func clip(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}
