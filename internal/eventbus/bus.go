package eventbus

import (
	"sync"
	"time"
)

// Event types published by relaybot components.
const (
	DispatchSent   = "dispatch.sent"   // Data: Delivery
	DispatchFailed = "dispatch.failed" // Data: Delivery
	RTMReconnect   = "rtm.reconnect"   // Data: nil
	RTMClosed      = "rtm.closed"      // Data: error string
	CommandHandled = "command.handled" // Data: CommandResult
	BindingChanged = "binding.changed" // Data: BindingChange
	ConfigReloaded = "config.reloaded" // Data: []string (changed sections)
)

// Delivery describes one message sent (or attempted) to one channel.
type Delivery struct {
	Channel  string
	Severity string
	Err      string
}

type CommandResult struct {
	Kind string
	User string
}

type BindingChange struct {
	Channel  string
	Severity string
	Bound    bool
	User     string
}

// Event is an in-memory signal. Publish never blocks; subscribers that fall
// behind lose events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  uint64
}

// Publish holds the read lock while sending. Sends are non-blocking, and
// unsubscribe closes a channel only under the write lock, so a send never
// races a close.
func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Nop discards everything. Subscribers receive a closed channel.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
