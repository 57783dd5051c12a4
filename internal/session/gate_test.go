package session

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/meetscribe/transcription-gateway/internal/audio"
)

const testHeaderLen = 5

func frame(payload string) []byte {
	return append(make([]byte, testHeaderLen), []byte(payload)...)
}

func newTestGate(t *testing.T, chanSize int) (*Gate, *Handle) {
	t.Helper()
	r := NewRegistry()
	h, err := r.Register("sess-1", "user-1", chanSize)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return NewGate(r, testHeaderLen, 20*time.Millisecond), h
}

func TestGate_Submit(t *testing.T) {
	g, h := newTestGate(t, 8)

	if err := g.Submit("sess-1", frame("abc")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	payload := <-h.audio
	if !bytes.Equal(payload, []byte("abc")) {
		t.Errorf("Expected payload 'abc', got %q", payload)
	}
}

func TestGate_SubmitUnknownSession(t *testing.T) {
	g, _ := newTestGate(t, 8)

	if err := g.Submit("missing", frame("abc")); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}
}

func TestGate_SubmitShortFrame(t *testing.T) {
	g, _ := newTestGate(t, 8)

	if err := g.Submit("sess-1", []byte{1, 2, 3}); !errors.Is(err, audio.ErrFrameTooShort) {
		t.Errorf("Expected ErrFrameTooShort, got %v", err)
	}
}

func TestGate_SubmitAfterEnd(t *testing.T) {
	g, h := newTestGate(t, 8)

	if err := g.End("sess-1"); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if err := g.Submit("sess-1", frame("late")); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded, got %v", err)
	}

	// The sentinel must be the only element on the channel
	if payload := <-h.audio; payload != nil {
		t.Errorf("Expected nil sentinel, got %q", payload)
	}
	if len(h.audio) != 0 {
		t.Errorf("Expected empty channel after sentinel, got %d queued", len(h.audio))
	}
}

func TestGate_EndIdempotent(t *testing.T) {
	g, h := newTestGate(t, 8)

	if err := g.End("sess-1"); err != nil {
		t.Fatalf("first End failed: %v", err)
	}
	if err := g.End("sess-1"); err != nil {
		t.Fatalf("second End failed: %v", err)
	}

	if len(h.audio) != 1 {
		t.Errorf("Expected exactly one sentinel enqueued, got %d", len(h.audio))
	}
}

func TestGate_SentinelOrderedAfterFrames(t *testing.T) {
	g, h := newTestGate(t, 8)

	for _, p := range []string{"one", "two"} {
		if err := g.Submit("sess-1", frame(p)); err != nil {
			t.Fatalf("Submit %q failed: %v", p, err)
		}
	}
	if err := g.End("sess-1"); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	want := [][]byte{[]byte("one"), []byte("two"), nil}
	for i, expected := range want {
		got := <-h.audio
		if !bytes.Equal(got, expected) {
			t.Errorf("Position %d: expected %q, got %q", i, expected, got)
		}
	}
}

func TestGate_Backpressure(t *testing.T) {
	g, _ := newTestGate(t, 1)

	if err := g.Submit("sess-1", frame("fill")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// No consumer; the bounded block must elapse and reject
	start := time.Now()
	err := g.Submit("sess-1", frame("overflow"))
	if !errors.Is(err, ErrBackpressure) {
		t.Fatalf("Expected ErrBackpressure, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Expected submit to block for the backpressure window")
	}
}

func TestGate_BackpressureReleased(t *testing.T) {
	g, h := newTestGate(t, 1)

	if err := g.Submit("sess-1", frame("fill")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Consumer frees a slot while the producer is blocked
	go func() {
		time.Sleep(5 * time.Millisecond)
		<-h.audio
	}()

	if err := g.Submit("sess-1", frame("second")); err != nil {
		t.Errorf("Expected submit to succeed once drained, got %v", err)
	}
}

func TestGate_SubmitOnClosedSession(t *testing.T) {
	g, h := newTestGate(t, 1)

	if err := g.Submit("sess-1", frame("fill")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Worker teardown releases blocked producers
	go func() {
		time.Sleep(5 * time.Millisecond)
		h.markClosed()
	}()

	if err := g.Submit("sess-1", frame("blocked")); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession after close, got %v", err)
	}
}
