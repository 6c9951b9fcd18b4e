// Package commstest keeps a test suite run against every comms.Conn
// implementation.
package commstest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/must"
	"github.com/synnaxlabs/synnax-sub025/pkg/testutil"
)

// TestConn checks that updates sent on either end arrive at the other intact
// and in order, and that closing one end is observed by the other.
func TestConn(t *testing.T, a, b comms.Conn) {
	t.Helper()
	ctx := context.Background()
	const n = 20
	var sent []aether.Update
	for i := 0; i < n; i++ {
		u := aether.Update{
			Path:    aether.Path{"plot", fmt.Sprint(i)},
			Variant: aether.VariantState,
			Type:    "line",
			State:   must.JSON(map[string]any{"i": i}),
		}
		sent = append(sent, u)
	}
	go func() {
		for _, u := range sent {
			if err := a.Send(ctx, u); err != nil {
				t.Errorf("Send -> %v", err)
				return
			}
		}
	}()
	got := receive(t, b, n)
	if diff := cmp.Diff(sent, got); diff != "" {
		t.Errorf("a -> b (-want +got):\n%s", diff)
	}

	ret := aether.Update{Path: aether.Path{"g"}, Variant: aether.VariantMethodReturn, CallID: "c1",
		Error: &aether.RemoteError{Kind: aether.KindOther, Message: "x"}}
	if err := b.Send(ctx, ret); err != nil {
		t.Fatalf("Send -> %v", err)
	}
	if diff := cmp.Diff([]aether.Update{ret}, receive(t, a, 1)); diff != "" {
		t.Errorf("b -> a (-want +got):\n%s", diff)
	}

	a.Close()
	select {
	case <-b.Done():
	case <-time.After(testutil.Scaled(2 * time.Second)):
		t.Errorf("closing one end was not observed by the other")
	}
}

func receive(t *testing.T, c comms.Conn, n int) []aether.Update {
	t.Helper()
	var got []aether.Update
	timeout := time.After(testutil.Scaled(2 * time.Second))
	for len(got) < n {
		select {
		case u := <-c.Receive():
			got = append(got, u)
		case <-timeout:
			t.Fatalf("received %d of %d updates", len(got), n)
		}
	}
	return got
}
