package broadcast

// StatusEvent reports session lifecycle and error conditions to subscribers
type StatusEvent struct {
	Event   string `json:"event"`
	Message string `json:"msg"`
	Plan    string `json:"plan,omitempty"`
	Limit   *int   `json:"limit,omitempty"`
	Error   bool   `json:"error,omitempty"`
}

// TranscriptEvent carries a partial or final transcript fragment
type TranscriptEvent struct {
	Event   string `json:"event"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

func newStatusEvent(message string) StatusEvent {
	return StatusEvent{Event: "status", Message: message}
}

func newTranscriptEvent(speaker, text string, isFinal bool) TranscriptEvent {
	return TranscriptEvent{
		Event:   "transcript_response",
		Speaker: speaker,
		Text:    text,
		IsFinal: isFinal,
	}
}
