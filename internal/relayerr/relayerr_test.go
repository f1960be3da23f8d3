package relayerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	t.Parallel()
	base := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("set channel: %w", StoreUnavailable("registry.set", base))

	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatal("expected errors.Is to match ErrStoreUnavailable")
	}
	if errors.Is(err, ErrTransport) {
		t.Fatal("store error must not match ErrTransport")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected the cause to stay reachable")
	}
	if KindOf(err) != KindStoreUnavailable {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
}

func TestErrorAndMessage(t *testing.T) {
	t.Parallel()
	err := E(KindInvalidSeverity, "command.set", `unknown relevance "LOUD"`, nil)
	if got, want := err.Error(), `command.set: unknown relevance "LOUD"`; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if got, want := Message(err), `unknown relevance "LOUD"`; got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Fatalf("Message(plain) = %q", got)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain errors have no kind")
	}
}
