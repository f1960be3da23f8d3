package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"relaybot/internal/relayerr"
	"relaybot/internal/severity"
	"relaybot/internal/storage"
)

func TestSetChannelIsIdempotentAndOrdered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := New(storage.NewMemory())

	for _, ch := range []string{"C3", "C1", "C2", "C3"} {
		if err := r.SetChannel(ctx, ch, Key(severity.Error, ch)); err != nil {
			t.Fatalf("set %s: %v", ch, err)
		}
	}
	got, err := r.ChannelsFor(ctx, severity.Error)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if want := []string{"C3", "C1", "C2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %v, want %v", got, want)
	}
}

func TestUnsetChannelIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := New(storage.NewMemory())

	key := Key(severity.Warning, "C1")
	if err := r.SetChannel(ctx, "C1", key); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := r.UnsetChannel(ctx, key); err != nil {
			t.Fatalf("unset #%d: %v", i, err)
		}
	}
	got, err := r.ChannelsFor(ctx, severity.Warning)
	if err != nil || len(got) != 0 {
		t.Fatalf("channels = %v, %v", got, err)
	}
}

func TestChannelsForMatchesExactSeverity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := New(storage.NewMemory())

	_ = r.SetChannel(ctx, "C1", Key(severity.Error, "C1"))
	_ = r.SetChannel(ctx, "C1", Key(severity.Critical, "C1"))
	_ = r.SetChannel(ctx, "C2", Key(severity.Info, "C2"))

	got, _ := r.ChannelsFor(ctx, severity.Critical)
	if !reflect.DeepEqual(got, []string{"C1"}) {
		t.Fatalf("critical = %v", got)
	}
	got, _ = r.ChannelsFor(ctx, severity.Debug)
	if len(got) != 0 {
		t.Fatalf("debug = %v", got)
	}

	all, err := r.Bindings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Binding{
		{ChannelID: "C2", Severity: severity.Info},
		{ChannelID: "C1", Severity: severity.Error},
		{ChannelID: "C1", Severity: severity.Critical},
	}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("bindings = %+v", all)
	}
	if d := Describe(all); d != "INFO: <#C2>\nERROR: <#C1>\nCRITICAL: <#C1>" {
		t.Fatalf("describe = %q", d)
	}
}

func TestStoreFailureSurfacesAsStoreUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemory()
	r := New(kv)
	_ = kv.Close()

	checks := map[string]error{
		"set":   r.SetChannel(ctx, "C1", Key(severity.Error, "C1")),
		"unset": r.UnsetChannel(ctx, Key(severity.Error, "C1")),
	}
	_, checks["channels"] = r.ChannelsFor(ctx, severity.Error)
	_, checks["bindings"] = r.Bindings(ctx)

	for op, err := range checks {
		if !errors.Is(err, relayerr.ErrStoreUnavailable) {
			t.Fatalf("%s: err = %v, want store unavailable", op, err)
		}
		if !errors.Is(err, storage.ErrClosed) {
			t.Fatalf("%s: cause lost: %v", op, err)
		}
	}
}

func TestDescribeEmpty(t *testing.T) {
	t.Parallel()
	if got := Describe(nil); got != "No channels registered" {
		t.Fatalf("describe = %q", got)
	}
}
