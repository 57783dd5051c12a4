package session

import (
	"errors"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	h, err := r.Register("sess-1", "user-1", 8)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if h.ID != "sess-1" || h.OwnerID != "user-1" {
		t.Errorf("Unexpected handle: %+v", h)
	}
	if h.State() != StateStarting {
		t.Errorf("Expected starting state, got %v", h.State())
	}
	if r.Active() != 1 {
		t.Errorf("Expected 1 active session, got %d", r.Active())
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Register("sess-1", "user-1", 8); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Register("sess-1", "user-2", 8); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive, got %v", err)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("missing"); ok {
		t.Error("Expected lookup miss for unknown session")
	}

	h, _ := r.Register("sess-1", "user-1", 8)
	got, ok := r.Lookup("sess-1")
	if !ok || got != h {
		t.Error("Expected lookup to return the registered handle")
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Register("sess-1", "user-1", 8)
	r.Unregister("sess-1")
	r.Unregister("sess-1") // second removal must not panic

	if r.Active() != 0 {
		t.Errorf("Expected 0 active sessions, got %d", r.Active())
	}
}

func TestHandle_Names(t *testing.T) {
	h := newHandle("sess-1", "user-1", 8)

	h.SetName("1", "Alice")
	names := h.Names()
	if names["1"] != "Alice" {
		t.Errorf("Expected Alice, got %q", names["1"])
	}

	// The snapshot must be independent of later updates
	h.SetName("1", "Bob")
	if names["1"] != "Alice" {
		t.Error("Expected snapshot to be immutable")
	}
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		StateStarting:  "starting",
		StateStreaming: "streaming",
		StateDraining:  "draining",
		StateClosed:    "closed",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
