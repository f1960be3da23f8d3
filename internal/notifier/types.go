package notifier

import (
	"context"
	"time"

	"relaybot/internal/severity"
)

// Config controls send pacing. Zero values fall back to defaults.
type Config struct {
	RatePerSec  int
	SendTimeout time.Duration
	HistorySize int
}

// ChannelSource resolves the channels bound at exactly one severity.
type ChannelSource interface {
	ChannelsFor(ctx context.Context, sev severity.Level) ([]string, error)
}

// Sender posts plain text to a chat channel.
type Sender interface {
	SendMessage(ctx context.Context, channel, text string) error
}

// Failure is one channel that could not be reached.
type Failure struct {
	Channel string
	Err     error
}

// Report summarizes one dispatch.
type Report struct {
	Severity severity.Level
	Sent     []string
	Failed   []Failure
}

// Attempted is the number of sends the dispatch tried, one per binding.
func (r Report) Attempted() int { return len(r.Sent) + len(r.Failed) }

type HistoryItem struct {
	At      time.Time
	Channel string
	Text    string
	Err     string
}
