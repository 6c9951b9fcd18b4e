package aether_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	. "github.com/synnaxlabs/synnax-sub025/pkg/aether"
)

func nopFactory(*Node) (Component, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Registration{Type: "b", New: nopFactory}); err != nil {
		t.Fatal(err)
	}
	r.MustRegister(Registration{Type: "a", New: nopFactory, Composite: true})
	if err := r.Register(Registration{Type: "a", New: nopFactory}); err == nil {
		t.Errorf("duplicate Register -> nil")
	}
	if err := r.Register(Registration{New: nopFactory}); err == nil {
		t.Errorf("Register without type -> nil")
	}
	if err := r.Register(Registration{Type: "c"}); err == nil {
		t.Errorf("Register without factory -> nil")
	}
	if reg, ok := r.Lookup("a"); !ok || !reg.Composite {
		t.Errorf("Lookup(a) -> %v, %v", reg, ok)
	}
	if _, ok := r.Lookup("c"); ok {
		t.Errorf("Lookup(c) found a registration")
	}
	if diff := cmp.Diff([]string{"a", "b"}, r.Types()); diff != "" {
		t.Errorf("Types (-want +got):\n%s", diff)
	}
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Registration{Type: "a", New: nopFactory})
	defer func() {
		if recover() == nil {
			t.Errorf("MustRegister of duplicate did not panic")
		}
	}()
	r.MustRegister(Registration{Type: "a", New: nopFactory})
}
