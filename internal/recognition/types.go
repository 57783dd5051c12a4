package recognition

// EventKind identifies the closed set of inbound event kinds the worker
// dispatches on
type EventKind int

const (
	// EventPartial is an in-progress, revisable transcript fragment
	EventPartial EventKind = iota

	// EventFinal is a transcript fragment the service will not revise
	EventFinal

	// EventClosed marks the end of the stream; Err is nil on a clean
	// end-of-transcript and non-nil on a transport or protocol failure
	EventClosed
)

// Event is a decoded message from the recognition service
type Event struct {
	Kind       EventKind
	Transcript string
	Speaker    string // only set on Final events; "Unknown" when not diarized
	Boundaries int    // sentence-final punctuation tokens in this message
	Err        error
}

// Stream is one live recognition session. SendAudio and CloseSend are only
// safe from a single goroutine; Events is consumed by the session worker.
type Stream interface {
	// SendAudio forwards one audio payload to the service
	SendAudio(payload []byte) error

	// CloseSend signals end-of-audio. The stream keeps delivering events
	// until the service acknowledges with its end-of-transcript message.
	CloseSend() error

	// Events delivers decoded events; closed after an EventClosed
	Events() <-chan Event

	// Close tears down the underlying connection
	Close() error
}

// startMessage opens a recognition session
type startMessage struct {
	Message             string              `json:"message"`
	AudioFormat         audioFormat         `json:"audio_format"`
	TranscriptionConfig transcriptionConfig `json:"transcription_config"`
}

type audioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type transcriptionConfig struct {
	Language       string `json:"language"`
	EnablePartials bool   `json:"enable_partials"`
	MaxDelay       int    `json:"max_delay"`
	Diarization    string `json:"diarization"`
}

// endOfStream closes the send side of a session
type endOfStream struct {
	Message   string `json:"message"`
	LastSeqNo int    `json:"last_seq_no"`
}

// serverMessage is the envelope for every inbound protocol message
type serverMessage struct {
	Message  string         `json:"message"`
	Reason   string         `json:"reason,omitempty"`
	Metadata serverMetadata `json:"metadata"`
	Results  []serverResult `json:"results"`
}

type serverMetadata struct {
	Transcript string `json:"transcript"`
}

type serverResult struct {
	Type         string              `json:"type"` // "word" or "punctuation"
	IsEOS        bool                `json:"is_eos"`
	Alternatives []serverAlternative `json:"alternatives"`
}

type serverAlternative struct {
	Content string `json:"content"`
	Speaker string `json:"speaker"`
}
