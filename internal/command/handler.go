package command

import (
	"context"
	"errors"
	"fmt"

	"relaybot/internal/eventbus"
	"relaybot/internal/relayerr"
	logx "relaybot/pkg/logx"
)

// Replier posts a reply on a channel.
type Replier interface {
	SendToChannel(ctx context.Context, channel, text string) error
}

// Handler classifies a direct message, executes it and posts the reply.
// Execution errors become reply text; only a failed reply is returned.
type Handler struct {
	classifier *Classifier
	replier    Replier
	bus        eventbus.Bus
	log        logx.Logger
}

func NewHandler(classifier *Classifier, replier Replier, bus eventbus.Bus, log logx.Logger) *Handler {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Handler{
		classifier: classifier,
		replier:    replier,
		bus:        bus,
		log:        log.With(logx.String("comp", "command")),
	}
}

func (h *Handler) Handle(ctx context.Context, channel, user, text string) error {
	cmd := h.classifier.Classify(channel, text)

	reply, err := cmd.Execute(ctx)
	if err != nil {
		h.log.Warn("command failed",
			logx.String("kind", string(cmd.Kind())),
			logx.String("channel", channel),
			logx.Err(err),
		)
		reply = errorReply(err)
	} else {
		h.audit(cmd, user)
	}
	h.bus.Publish(eventbus.Event{
		Type: eventbus.CommandHandled,
		Data: eventbus.CommandResult{Kind: string(cmd.Kind()), User: user},
	})

	if err := h.replier.SendToChannel(ctx, channel, reply); err != nil {
		return fmt.Errorf("reply to %s: %w", channel, err)
	}
	return nil
}

func (h *Handler) audit(cmd Command, user string) {
	var (
		b     Binding
		bound bool
	)
	switch c := cmd.(type) {
	case SetChannel:
		b, bound = c.Binding, true
	case UnsetChannel:
		b = c.Binding
	default:
		return
	}
	h.log.Info("binding changed",
		logx.String("channel", b.ChannelID),
		logx.String("relevance", b.Relevance),
		logx.Bool("bound", bound),
		logx.String("user", user),
	)
	h.bus.Publish(eventbus.Event{
		Type: eventbus.BindingChanged,
		Data: eventbus.BindingChange{Channel: b.ChannelID, Severity: b.Relevance, Bound: bound, User: user},
	})
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, relayerr.ErrInvalidSeverity):
		return relayerr.Message(err)
	case errors.Is(err, relayerr.ErrStoreUnavailable):
		return "Sorry, I cannot reach the channel registry right now: " + relayerr.Message(err)
	default:
		return "Sorry, something went wrong: " + err.Error()
	}
}
