package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"relaybot/internal/eventbus"
	"relaybot/internal/registry"
	"relaybot/internal/relayerr"
	"relaybot/internal/severity"
	"relaybot/internal/storage"
)

type fixedStatus string

func (s fixedStatus) Compose(context.Context) string { return string(s) }

type recordingReplier struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (r *recordingReplier) SendToChannel(_ context.Context, channel, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, channel+"|"+text)
	return r.err
}

func newClassifier() (*Classifier, *registry.Registry) {
	reg := registry.New(storage.NewMemory())
	return NewClassifier(reg, fixedStatus("Everything is fine")), reg
}

func TestClassifyKinds(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()

	cases := map[string]Kind{
		"help":                       KindHelp,
		"  HELP ":                    KindHelp,
		"status":                     KindStatus,
		"How are you?":               KindStatus,
		"healthcheck":                KindStatus,
		"health-check":               KindStatus,
		"set <#C1|ops> to error":     KindSet,
		"Set #general to Warning":    KindSet,
		"unset <#C1|ops> to error":   KindUnset,
		"UNSET #general to critical": KindUnset,
		"banana":                     KindInvalid,
		"set":                        KindInvalid,
		"please set #x to error":     KindInvalid,
		"helpful":                    KindInvalid,
	}
	for text, want := range cases {
		if got := c.Classify("C0", text).Kind(); got != want {
			t.Fatalf("Classify(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestClassifyInvalidKeepsTextVerbatim(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()

	cmd := c.Classify("C0", "banana")
	inv, ok := cmd.(Invalid)
	if !ok || inv.Text != "banana" || inv.Channel() != "C0" {
		t.Fatalf("got %#v", cmd)
	}
	reply, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(reply, "I do not understand 'banana'\nYou can use:") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestUnsetMatcherPrecedesSet(t *testing.T) {
	t.Parallel()
	unset, set := -1, -1
	for i, m := range matchers {
		switch m.kind {
		case KindUnset:
			unset = i
		case KindSet:
			set = i
		}
	}
	if unset < 0 || set < 0 || unset > set {
		t.Fatalf("matcher order: unset=%d set=%d", unset, set)
	}
}

func TestSplitBotMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in                   string
		relevance, id, label string
	}{
		{"set #general to warning", "WARNING", "general", "#general"},
		{"set <#C123|ops> to critical", "CRITICAL", "C123", "<#C123|ops>"},
		{"unset <#C9> to info", "INFO", "C9", "<#C9>"},
		{"Set  OpsRoom  TO  debug ", "DEBUG", "OpsRoom", "OpsRoom"},
		{"set #tomato to error", "ERROR", "tomato", "#tomato"},
	}
	for _, tc := range cases {
		rel, id, label := SplitBotMessage(tc.in)
		if rel != tc.relevance || id != tc.id || label != tc.label {
			t.Fatalf("SplitBotMessage(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tc.in, rel, id, label, tc.relevance, tc.id, tc.label)
		}
	}
}

func TestSetAndUnsetExecute(t *testing.T) {
	t.Parallel()
	c, reg := newClassifier()
	ctx := context.Background()

	reply, err := c.Classify("C0", "set <#C123|ops> to critical").Execute(ctx)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if reply != "Set '<#C123|ops>' to relevance 'CRITICAL'" {
		t.Fatalf("reply = %q", reply)
	}
	chans, _ := reg.ChannelsFor(ctx, severity.Critical)
	if len(chans) != 1 || chans[0] != "C123" {
		t.Fatalf("channels = %v", chans)
	}

	reply, err = c.Classify("C0", "unset <#C123|ops> to critical").Execute(ctx)
	if err != nil {
		t.Fatalf("unset: %v", err)
	}
	if reply != "Unset '<#C123|ops>' to relevance 'CRITICAL'" {
		t.Fatalf("reply = %q", reply)
	}
	chans, _ = reg.ChannelsFor(ctx, severity.Critical)
	if len(chans) != 0 {
		t.Fatalf("channels after unset = %v", chans)
	}
}

func TestSetWithUnknownRelevance(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()

	_, err := c.Classify("C0", "set #general to loud").Execute(context.Background())
	if !errors.Is(err, relayerr.ErrInvalidSeverity) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(relayerr.Message(err), "DEBUG, INFO, WARNING, ERROR, CRITICAL") {
		t.Fatalf("message should list levels: %q", relayerr.Message(err))
	}
}

func TestStatusExecute(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()
	reply, err := c.Classify("C0", "status").Execute(context.Background())
	if err != nil || reply != "Everything is fine" {
		t.Fatalf("reply = %q, %v", reply, err)
	}
}

func TestHandlerRepliesOnOriginatingChannel(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()
	rep := &recordingReplier{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	h := NewHandler(c, rep, bus, noLog)

	if err := h.Handle(context.Background(), "C42", "U1", "set #general to loud"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rep.replies) != 1 || !strings.HasPrefix(rep.replies[0], "C42|unknown relevance 'LOUD'") {
		t.Fatalf("replies = %v", rep.replies)
	}
	ev := <-events
	if res, ok := ev.Data.(eventbus.CommandResult); ev.Type != eventbus.CommandHandled || !ok || res.Kind != "set" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHandlerPublishesBindingChange(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	h := NewHandler(c, &recordingReplier{}, bus, noLog)

	if err := h.Handle(context.Background(), "C42", "U1", "set <#C7|x> to error"); err != nil {
		t.Fatal(err)
	}
	ev := <-events
	change, ok := ev.Data.(eventbus.BindingChange)
	if ev.Type != eventbus.BindingChanged || !ok || change.Channel != "C7" || !change.Bound {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHandlerStoreFailureBecomesReply(t *testing.T) {
	t.Parallel()
	kv := storage.NewMemory()
	_ = kv.Close()
	c := NewClassifier(registry.New(kv), fixedStatus(""))
	rep := &recordingReplier{}
	h := NewHandler(c, rep, nil, noLog)

	if err := h.Handle(context.Background(), "C1", "U1", "set #general to error"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(rep.replies[0], "cannot reach the channel registry") {
		t.Fatalf("reply = %q", rep.replies[0])
	}
}

func TestHandlerReturnsReplyFailure(t *testing.T) {
	t.Parallel()
	c, _ := newClassifier()
	h := NewHandler(c, &recordingReplier{err: errors.New("rate_limited")}, nil, noLog)
	if err := h.Handle(context.Background(), "C1", "U1", "help"); err == nil {
		t.Fatalf("expected reply error")
	}
}
