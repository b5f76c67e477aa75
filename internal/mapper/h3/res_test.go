package h3mapper

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestToParent_Deterministic(t *testing.T) {
	m := New()
	p := orb.Point{13.0038, 55.6050}

	child, err := m.CellForPoint(p, 8)
	if err != nil {
		t.Fatalf("CellForPoint: %v", err)
	}
	parent, err := m.ToParent(child, 5)
	if err != nil {
		t.Fatalf("ToParent: %v", err)
	}
	again, _ := m.ToParent(child, 5)
	if parent == child || parent != again {
		t.Fatalf("parent=%s again=%s child=%s", parent, again, child)
	}
	grand, err := m.ToParent(parent, 3)
	if err != nil {
		t.Fatalf("ToParent from res 5: %v", err)
	}
	viaChild, _ := m.ToParent(child, 3)
	if grand != viaChild {
		t.Fatalf("res-3 ancestor differs: %s vs %s", grand, viaChild)
	}

	same, err := m.ToParent(child, 8)
	if err != nil || same != child {
		t.Fatalf("same-res parent = %q err=%v", same, err)
	}
}

func TestToParent_BadTransitions(t *testing.T) {
	m := New()
	cell, err := m.CellForPoint(orb.Point{11.9746, 57.7089}, 9)
	if err != nil {
		t.Fatalf("CellForPoint: %v", err)
	}
	if _, err := m.ToParent(cell, 10); err == nil {
		t.Fatalf("expected error for parentRes > current res")
	}
	if _, err := m.ToParent(cell, -1); err == nil {
		t.Fatalf("expected error for negative res")
	}
}
