package ws

import (
	"slices"
	"testing"
)

func TestMembership_RecordIdempotent(t *testing.T) {
	m := NewMembership()

	if !m.Record("c1") {
		t.Error("first Record returned false")
	}
	if m.Record("c1") {
		t.Error("duplicate Record returned true")
	}
	if m.Record("") {
		t.Error("empty id recorded")
	}

	m.Record("c2")
	m.Record("c3")
	m.Record("c2")

	want := []string{"c1", "c2", "c3"}
	if got := m.All(); !slices.Equal(got, want) {
		t.Errorf("expected %v in join order, got %v", want, got)
	}
}

func TestMembership_AllReturnsCopy(t *testing.T) {
	m := NewMembership()
	m.Record("c1")

	ids := m.All()
	ids[0] = "mutated"
	if got := m.All(); got[0] != "c1" {
		t.Error("All exposed internal slice")
	}
}

func TestMembership_Reset(t *testing.T) {
	m := NewMembership()
	m.Record("c1")
	m.Reset()

	if len(m.All()) != 0 {
		t.Error("rooms survive Reset")
	}
	if !m.Record("c1") {
		t.Error("Record after Reset should report a fresh room")
	}
}
