// Package command turns chat text addressed to the bot into typed commands
// and executes them.
package command

import (
	"context"
	"fmt"
	"strings"

	"relaybot/internal/registry"
	"relaybot/internal/relayerr"
	"relaybot/internal/severity"
)

type Kind string

const (
	KindHelp    Kind = "help"
	KindStatus  Kind = "status"
	KindSet     Kind = "set"
	KindUnset   Kind = "unset"
	KindInvalid Kind = "invalid"
)

// Command is one classified chat message. Execute returns the reply to post
// back on the originating channel.
type Command interface {
	Kind() Kind
	Channel() string
	Execute(ctx context.Context) (string, error)
}

// Bindings is the registry capability used by Set and Unset.
type Bindings interface {
	SetChannel(ctx context.Context, channelID, key string) error
	UnsetChannel(ctx context.Context, key string) error
}

// StatusComposer renders the health summary for the status command.
type StatusComposer interface {
	Compose(ctx context.Context) string
}

func helpText() string {
	return "You can use:\n" +
		"  status: Check status of all bot services\n" +
		"  set <#channel> to <LEVEL>: Send messages of LEVEL and above to a channel\n" +
		"  unset <#channel> to <LEVEL>: Stop sending LEVEL messages to a channel\n" +
		"Levels: " + strings.Join(severity.Names(), ", ")
}

type Help struct{ channel string }

func (c Help) Kind() Kind                              { return KindHelp }
func (c Help) Channel() string                         { return c.channel }
func (c Help) Execute(context.Context) (string, error) { return helpText(), nil }

// Invalid carries the unrecognized text verbatim.
type Invalid struct {
	channel string
	Text    string
}

func (c Invalid) Kind() Kind      { return KindInvalid }
func (c Invalid) Channel() string { return c.channel }

func (c Invalid) Execute(context.Context) (string, error) {
	return fmt.Sprintf("I do not understand '%s'\n%s", c.Text, helpText()), nil
}

type Status struct {
	channel string
	status  StatusComposer
}

func (c Status) Kind() Kind      { return KindStatus }
func (c Status) Channel() string { return c.channel }

func (c Status) Execute(ctx context.Context) (string, error) {
	return c.status.Compose(ctx), nil
}

// Binding is the payload shared by SetChannel and UnsetChannel.
type Binding struct {
	ChannelID string
	Label     string
	Relevance string
}

func (b Binding) key(op string) (string, severity.Level, error) {
	sev, err := severity.Parse(b.Relevance)
	if err != nil {
		msg := fmt.Sprintf("unknown relevance '%s', use one of %s", b.Relevance, strings.Join(severity.Names(), ", "))
		return "", 0, relayerr.E(relayerr.KindInvalidSeverity, op, msg, nil)
	}
	return registry.Key(sev, b.ChannelID), sev, nil
}

type SetChannel struct {
	Binding
	channel  string
	bindings Bindings
}

func (c SetChannel) Kind() Kind      { return KindSet }
func (c SetChannel) Channel() string { return c.channel }

func (c SetChannel) Execute(ctx context.Context) (string, error) {
	key, _, err := c.key("command.set")
	if err != nil {
		return "", err
	}
	if err := c.bindings.SetChannel(ctx, c.ChannelID, key); err != nil {
		return "", err
	}
	return fmt.Sprintf("Set '%s' to relevance '%s'", c.Label, c.Relevance), nil
}

type UnsetChannel struct {
	Binding
	channel  string
	bindings Bindings
}

func (c UnsetChannel) Kind() Kind      { return KindUnset }
func (c UnsetChannel) Channel() string { return c.channel }

func (c UnsetChannel) Execute(ctx context.Context) (string, error) {
	key, _, err := c.key("command.unset")
	if err != nil {
		return "", err
	}
	if err := c.bindings.UnsetChannel(ctx, key); err != nil {
		return "", err
	}
	return fmt.Sprintf("Unset '%s' to relevance '%s'", c.Label, c.Relevance), nil
}
