package aether_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace"

	. "github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

func TestPath(t *testing.T) {
	p := ParsePath("a.b.c")
	if p.String() != "a.b.c" || p.Key() != "c" || !p.Parent().Equal(Path{"a", "b"}) {
		t.Errorf("ParsePath(a.b.c) -> %v", p)
	}
	if ParsePath("") != nil || Path(nil).Key() != "" || Path(nil).Parent() != nil {
		t.Errorf("root path helpers wrong")
	}
	tests := []struct {
		p, q string
		want bool
	}{
		{"", "a", true},
		{"a", "a.b", true},
		{"a", "a.b.c", true},
		{"a", "a", false},
		{"a.b", "a", false},
		{"a", "ab.c", false},
	}
	for _, test := range tests {
		if got := ParsePath(test.p).IsAncestorOf(ParsePath(test.q)); got != test.want {
			t.Errorf("%q.IsAncestorOf(%q) -> %v, want %v", test.p, test.q, got, test.want)
		}
	}
	parent := Path{"a"}
	child := parent.Append("b")
	sibling := parent.Append("c")
	if child.String() != "a.b" || sibling.String() != "a.c" || len(parent) != 1 {
		t.Errorf("Append aliased: %v %v %v", parent, child, sibling)
	}
}

func TestUpdate_WireShape(t *testing.T) {
	u := Update{Path: Path{"plot", "line1"}, Variant: VariantMethodCall, State: json.RawMessage(`{"x":1}`), CallID: "id"}
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"path":["plot","line1"],"variant":"method-call","state":{"x":1},"callId":"id"}`
	if string(b) != want {
		t.Errorf("Marshal -> %s, want %s", b, want)
	}
	var back Update
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(u, back); diff != "" {
		t.Errorf("Unmarshal (-want +got):\n%s", diff)
	}
	root, _ := json.Marshal(Update{Variant: VariantContext})
	if string(root) != `{"path":[],"variant":"context"}` {
		t.Errorf("root update -> %s", root)
	}
}

func TestVariant_Valid(t *testing.T) {
	for _, v := range []Variant{VariantState, VariantContext, VariantMethodCall, VariantMethodReturn, VariantDelete} {
		if !v.Valid() {
			t.Errorf("%q not valid", v)
		}
	}
	if Variant("x").Valid() {
		t.Errorf("x is valid")
	}
}

func TestUpdate_TracePropagation(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	var u Update
	u.Inject(trace.ContextWithSpanContext(context.Background(), sc))
	if u.Trace["traceparent"] == "" {
		t.Fatalf("Inject did not set traceparent: %v", u.Trace)
	}
	got := trace.SpanContextFromContext(u.Extract(context.Background()))
	if got.TraceID() != sc.TraceID() || got.SpanID() != sc.SpanID() {
		t.Errorf("Extract -> %v, want %v", got, sc)
	}

	var empty Update
	empty.Inject(context.Background())
	if empty.Trace != nil {
		t.Errorf("Inject without a span set Trace to %v", empty.Trace)
	}
}

func TestRemoteError_RoundTrip(t *testing.T) {
	errs := []error{
		&schema.Violation{Path: []string{"a", "0"}, Msg: "bad"},
		&UnknownTypeError{Path: Path{"x"}, Type: "T"},
		&OrphanPathError{Path: Path{"a", "b"}, Missing: Path{"a"}},
		&MethodNotFoundError{Path: Path{"g"}, Method: "m"},
		&NotFoundError{Path: Path{"g"}},
	}
	for _, err := range errs {
		wrapped := fmt.Errorf("context: %w", err)
		re := NewRemoteError(wrapped)
		b, _ := json.Marshal(re)
		var back RemoteError
		json.Unmarshal(b, &back)
		if diff := cmp.Diff(err, back.AsError()); diff != "" {
			t.Errorf("round trip of %T (-want +got):\n%s", err, diff)
		}
	}
	other := NewRemoteError(errors.New("plain"))
	if other.Kind != KindOther || other.AsError() != error(other) {
		t.Errorf("plain error -> %+v", other)
	}
}
