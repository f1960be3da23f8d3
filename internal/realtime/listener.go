// Package realtime owns the receive side of the chat connection: it reads
// event batches, follows server-issued reconnect URLs and yields the
// messages addressed to the bot.
package realtime

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"relaybot/internal/eventbus"
	"relaybot/internal/relayerr"
	logx "relaybot/pkg/logx"
)

// Event types the listener cares about.
const (
	EventMessage      = "message"
	EventReconnectURL = "reconnect_url"
)

// Event is one decoded frame from the realtime stream.
type Event struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Transport is the realtime connection. Read blocks until at least one event
// is available or the connection fails.
type Transport interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context, url string) error
	Read(ctx context.Context) ([]Event, error)
	Close() error
}

type State int

const (
	StateIdle State = iota
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// DirectMessage is a message that mentioned the bot, with the mention removed.
type DirectMessage struct {
	Channel string
	User    string
	Text    string
}

// Listener is not safe for concurrent Receive calls. State and
// HasReconnectURL may be called from any goroutine.
type Listener struct {
	tr      Transport
	botID   string
	mention string
	bus     eventbus.Bus
	log     logx.Logger

	mu           sync.RWMutex
	state        State
	reconnectURL string
}

func New(tr Transport, botID string, bus eventbus.Bus, log logx.Logger) *Listener {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Listener{
		tr:      tr,
		botID:   botID,
		mention: "<@" + botID + ">",
		bus:     bus,
		log:     log.With(logx.String("comp", "realtime")),
	}
}

func (l *Listener) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Listener) HasReconnectURL() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reconnectURL != ""
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// takeURL returns the stored reconnect URL and clears it.
func (l *Listener) takeURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.reconnectURL
	l.reconnectURL = ""
	return u
}

// Start opens the base connection and resets session state.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	l.reconnectURL = ""
	l.mu.Unlock()

	if err := l.tr.Connect(ctx); err != nil {
		l.setState(StateClosed)
		return relayerr.Transport("realtime.start", err)
	}
	l.setState(StateConnected)
	l.log.Info("realtime session started")
	return nil
}

// Close closes the transport. The listener can be started again.
func (l *Listener) Close() error {
	l.setState(StateClosed)
	return l.tr.Close()
}

// Receive reads one batch. On a read failure it follows the stored reconnect
// URL once and retries; without a URL the session is closed and a Transport
// error is returned. A URL is only stored from a successful batch, so the
// loop ends after at most one retry per URL.
func (l *Listener) Receive(ctx context.Context) ([]Event, error) {
	for {
		events, err := l.tr.Read(ctx)
		if err == nil {
			l.noteReconnectURL(events)
			return events, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		url := l.takeURL()
		if url == "" {
			return nil, l.closed("realtime.receive", err)
		}

		l.setState(StateReconnecting)
		l.log.Info("reconnecting", logx.String("url", url), logx.Err(err))
		l.bus.Publish(eventbus.Event{Type: eventbus.RTMReconnect})
		if rerr := l.tr.Reconnect(ctx, url); rerr != nil {
			return nil, l.closed("realtime.reconnect", errors.Join(err, rerr))
		}
		l.setState(StateConnected)
	}
}

func (l *Listener) closed(op string, err error) error {
	l.setState(StateClosed)
	l.log.Warn("realtime session closed", logx.Err(err))
	l.bus.Publish(eventbus.Event{Type: eventbus.RTMClosed, Data: err.Error()})
	return relayerr.Transport(op, err)
}

func (l *Listener) noteReconnectURL(events []Event) {
	for _, ev := range events {
		if ev.Type != EventReconnectURL || ev.URL == "" {
			continue
		}
		l.mu.Lock()
		l.reconnectURL = ev.URL
		l.mu.Unlock()
	}
}

// DirectMessages receives one batch and returns the messages in it that
// mention the bot and were not written by the bot. Each call to the returned
// sequence walks the same batch.
func (l *Listener) DirectMessages(ctx context.Context) (iter.Seq[DirectMessage], error) {
	events, err := l.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return func(yield func(DirectMessage) bool) {
		for _, ev := range events {
			dm, ok := l.direct(ev)
			if !ok {
				continue
			}
			if !yield(dm) {
				return
			}
		}
	}, nil
}

func (l *Listener) direct(ev Event) (DirectMessage, bool) {
	if ev.Type != EventMessage || ev.Text == "" {
		return DirectMessage{}, false
	}
	if !strings.Contains(ev.Text, l.mention) || ev.User == l.botID {
		return DirectMessage{}, false
	}
	text := strings.TrimSpace(strings.ReplaceAll(ev.Text, l.mention, ""))
	return DirectMessage{Channel: ev.Channel, User: ev.User, Text: text}, true
}

// Run starts a session and feeds every direct message to handle until the
// session fails or ctx is done. The caller restarts it.
func (l *Listener) Run(ctx context.Context, handle func(ctx context.Context, dm DirectMessage)) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer l.Close()

	for {
		msgs, err := l.DirectMessages(ctx)
		if err != nil {
			return err
		}
		for dm := range msgs {
			handle(ctx, dm)
		}
	}
}
