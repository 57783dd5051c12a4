package recognition

import (
	"encoding/json"
	"testing"
)

func mustMessage(t *testing.T, raw string) serverMessage {
	t.Helper()
	var msg serverMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal test message: %v", err)
	}
	return msg
}

func TestFinalEvent(t *testing.T) {
	msg := mustMessage(t, `{
		"message": "AddTranscript",
		"metadata": {"transcript": "Hello world."},
		"results": [
			{"type": "word", "alternatives": [{"content": "Hello", "speaker": "S1"}]},
			{"type": "word", "alternatives": [{"content": "world", "speaker": "S1"}]},
			{"type": "punctuation", "is_eos": true, "alternatives": [{"content": "."}]}
		]
	}`)

	ev, ok := finalEvent(msg)
	if !ok {
		t.Fatal("Expected a final event")
	}
	if ev.Kind != EventFinal {
		t.Errorf("Expected EventFinal, got %v", ev.Kind)
	}
	if ev.Transcript != "Hello world." {
		t.Errorf("Expected transcript 'Hello world.', got %q", ev.Transcript)
	}
	if ev.Speaker != "S1" {
		t.Errorf("Expected speaker 'S1', got %q", ev.Speaker)
	}
	if ev.Boundaries != 1 {
		t.Errorf("Expected 1 boundary, got %d", ev.Boundaries)
	}
}

func TestFinalEvent_DefaultSpeaker(t *testing.T) {
	msg := mustMessage(t, `{
		"message": "AddTranscript",
		"metadata": {"transcript": "hi"},
		"results": [{"type": "word", "alternatives": [{"content": "hi"}]}]
	}`)

	ev, ok := finalEvent(msg)
	if !ok {
		t.Fatal("Expected a final event")
	}
	if ev.Speaker != UnknownSpeaker {
		t.Errorf("Expected %q speaker, got %q", UnknownSpeaker, ev.Speaker)
	}
	if ev.Boundaries != 0 {
		t.Errorf("Expected 0 boundaries, got %d", ev.Boundaries)
	}
}

func TestFinalEvent_NoResults(t *testing.T) {
	msg := mustMessage(t, `{
		"message": "AddTranscript",
		"metadata": {"transcript": "trailing text"},
		"results": []
	}`)

	ev, ok := finalEvent(msg)
	if !ok {
		t.Fatal("Expected a final event for text without results")
	}
	if ev.Speaker != UnknownSpeaker {
		t.Errorf("Expected %q speaker, got %q", UnknownSpeaker, ev.Speaker)
	}
}

func TestFinalEvent_Empty(t *testing.T) {
	msg := mustMessage(t, `{"message": "AddTranscript", "metadata": {"transcript": "  "}}`)

	if _, ok := finalEvent(msg); ok {
		t.Error("Expected no event for an empty transcript without boundaries")
	}
}

func TestFinalEvent_BoundaryWithoutText(t *testing.T) {
	// A lone end-of-sentence punctuation must still flush buffered text
	msg := mustMessage(t, `{
		"message": "AddTranscript",
		"metadata": {"transcript": ""},
		"results": [{"type": "punctuation", "is_eos": true, "alternatives": [{"content": "."}]}]
	}`)

	ev, ok := finalEvent(msg)
	if !ok {
		t.Fatal("Expected an event for a boundary-only message")
	}
	if ev.Boundaries != 1 {
		t.Errorf("Expected 1 boundary, got %d", ev.Boundaries)
	}
	if ev.Transcript != "" {
		t.Errorf("Expected empty transcript, got %q", ev.Transcript)
	}
}

func TestFinalEvent_NonEOSPunctuation(t *testing.T) {
	msg := mustMessage(t, `{
		"message": "AddTranscript",
		"metadata": {"transcript": "well,"},
		"results": [
			{"type": "word", "alternatives": [{"content": "well", "speaker": "S2"}]},
			{"type": "punctuation", "is_eos": false, "alternatives": [{"content": ","}]}
		]
	}`)

	ev, ok := finalEvent(msg)
	if !ok {
		t.Fatal("Expected a final event")
	}
	if ev.Boundaries != 0 {
		t.Errorf("Expected 0 boundaries for a comma, got %d", ev.Boundaries)
	}
}
