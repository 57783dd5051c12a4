package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meetscribe/transcription-gateway/internal/broadcast"
	"github.com/meetscribe/transcription-gateway/internal/recognition"
	"github.com/meetscribe/transcription-gateway/internal/storage"
)

type stubStream struct {
	events chan recognition.Event
}

func (s *stubStream) SendAudio([]byte) error { return nil }
func (s *stubStream) CloseSend() error { return nil }
func (s *stubStream) Events() <-chan recognition.Event { return s.events }
func (s *stubStream) Close() error { return nil }

type stubDialer struct {
	stream recognition.Stream
}

func (d *stubDialer) Dial(context.Context) (recognition.Stream, error) {
	return d.stream, nil
}

func decodeStatus(t *testing.T, payload []byte) broadcast.StatusEvent {
	t.Helper()
	var ev broadcast.StatusEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decode status event: %v", err)
	}
	return ev
}

func TestHandleStart_AdmissionDenied(t *testing.T) {
	srv, store := newTestServer(t)

	// Default plan is free; fill the user's meeting quota
	for i := 0; i < 10; i++ {
		if err := store.CreateMeeting(fmt.Sprintf("old-%d", i), "user-1", ""); err != nil {
			t.Fatalf("create meeting: %v", err)
		}
	}

	events := srv.hub.Subscribe("sess-denied")
	t.Cleanup(func() { srv.hub.Unsubscribe("sess-denied", events) })

	req := httptest.NewRequest(http.MethodGet, "/streams/meeting", nil)
	srv.handleStart("sess-denied", req, clientMessage{Event: "start_streaming", UserID: "user-1"}, srv.logger)

	if len(events) != 1 {
		t.Fatalf("Expected exactly 1 status event, got %d", len(events))
	}
	ev := decodeStatus(t, <-events)
	if !ev.Error {
		t.Error("Expected the denial event flagged as an error")
	}
	if ev.Plan != "free" {
		t.Errorf("Expected plan 'free', got %q", ev.Plan)
	}
	if ev.Limit == nil || *ev.Limit != 10 {
		t.Errorf("Expected limit 10, got %v", ev.Limit)
	}

	if srv.registry.Active() != 0 {
		t.Error("Expected no registry entry for a denied session")
	}
	if _, err := store.GetMeeting("sess-denied"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected no meeting row for a denied session, got %v", err)
	}
}

func TestHandleStart_Allowed(t *testing.T) {
	srv, store := newTestServer(t)

	stream := &stubStream{events: make(chan recognition.Event)}
	t.Cleanup(func() { close(stream.events) })
	srv.dialer = &stubDialer{stream: stream}

	events := srv.hub.Subscribe("sess-ok")
	t.Cleanup(func() { srv.hub.Unsubscribe("sess-ok", events) })

	req := httptest.NewRequest(http.MethodGet, "/streams/meeting", nil)
	srv.handleStart("sess-ok", req, clientMessage{Event: "start_streaming", UserID: "user-1", Title: "Standup"}, srv.logger)

	ev := decodeStatus(t, <-events)
	if ev.Error || ev.Message != "Transcription ready" {
		t.Errorf("Expected ready status, got %+v", ev)
	}

	if _, active := srv.registry.Lookup("sess-ok"); !active {
		t.Error("Expected the session registered after an allowed start")
	}

	meeting, err := store.GetMeeting("sess-ok")
	if err != nil {
		t.Fatalf("Expected a meeting row, got %v", err)
	}
	if meeting.Title != "Standup" || meeting.Status != storage.MeetingInProgress {
		t.Errorf("Unexpected meeting row: %+v", meeting)
	}
}
