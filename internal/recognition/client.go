package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meetscribe/transcription-gateway/internal/config"
	"github.com/meetscribe/transcription-gateway/internal/observability"
)

const (
	msgStartRecognition     = "StartRecognition"
	msgEndOfStream          = "EndOfStream"
	msgAddPartialTranscript = "AddPartialTranscript"
	msgAddTranscript        = "AddTranscript"
	msgEndOfTranscript      = "EndOfTranscript"
	msgError                = "Error"

	// UnknownSpeaker labels final fragments the service did not diarize
	UnknownSpeaker = "Unknown"
)

// Client dials streaming recognition sessions against the remote service
type Client struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewClient creates a recognition client from service configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		logger: observability.GetLogger().With().Str("component", "recognition").Logger(),
	}
}

// Dial opens one streaming session: it connects, sends the start-of-stream
// configuration, and starts the inbound read loop. The caller owns the
// returned stream and must Close it.
func (c *Client) Dial(ctx context.Context) (Stream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.RecognitionAPIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.RecognitionURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial recognition service: %w", err)
	}

	start := startMessage{
		Message: msgStartRecognition,
		AudioFormat: audioFormat{
			Type:       "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.cfg.SampleRate,
		},
		TranscriptionConfig: transcriptionConfig{
			Language:       c.cfg.Language,
			EnablePartials: true,
			MaxDelay:       c.cfg.MaxDelay,
			Diarization:    "speaker",
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send start message: %w", err)
	}

	s := &wsStream{
		conn:   conn,
		events: make(chan Event, 64),
		logger: c.logger,
	}
	go s.readLoop()

	return s, nil
}

// wsStream is a live WebSocket recognition session
type wsStream struct {
	conn   *websocket.Conn
	events chan Event
	logger zerolog.Logger

	writeMu sync.Mutex
	seq     int
	closed  bool
}

func (s *wsStream) SendAudio(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return errors.New("send side already closed")
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	s.seq++
	return nil
}

func (s *wsStream) CloseSend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.WriteJSON(endOfStream{Message: msgEndOfStream, LastSeqNo: s.seq}); err != nil {
		return fmt.Errorf("send end of stream: %w", err)
	}
	return nil
}

func (s *wsStream) Events() <-chan Event {
	return s.events
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

// readLoop decodes inbound protocol messages until the service ends the
// transcript or the connection drops. Undecodable messages are skipped.
func (s *wsStream) readLoop() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.events <- Event{Kind: EventClosed, Err: fmt.Errorf("recognition connection: %w", err)}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping undecodable recognition message")
			observability.RecordError("protocol_decode", "recognition")
			continue
		}

		switch msg.Message {
		case msgAddPartialTranscript:
			text := strings.TrimSpace(msg.Metadata.Transcript)
			if text != "" {
				s.events <- Event{Kind: EventPartial, Transcript: text}
			}

		case msgAddTranscript:
			if ev, ok := finalEvent(msg); ok {
				s.events <- ev
			}

		case msgEndOfTranscript:
			s.events <- Event{Kind: EventClosed}
			return

		case msgError:
			s.events <- Event{Kind: EventClosed, Err: fmt.Errorf("recognition service error: %s", msg.Reason)}
			return

		default:
			// Info, RecognitionStarted, AudioAdded and friends carry no
			// transcript state
			s.logger.Debug().Str("message", msg.Message).Msg("Ignoring recognition message")
		}
	}
}

// finalEvent builds a Final event from an AddTranscript message. The speaker
// label comes from the first alternative of the first result; boundary count
// is the number of sentence-final punctuation tokens reported alongside.
func finalEvent(msg serverMessage) (Event, bool) {
	text := strings.TrimSpace(msg.Metadata.Transcript)

	speaker := UnknownSpeaker
	if len(msg.Results) > 0 && len(msg.Results[0].Alternatives) > 0 {
		if alt := msg.Results[0].Alternatives[0]; alt.Speaker != "" {
			speaker = alt.Speaker
		}
	}

	boundaries := 0
	for _, r := range msg.Results {
		if r.Type == "punctuation" && r.IsEOS {
			boundaries++
		}
	}

	if text == "" && boundaries == 0 {
		return Event{}, false
	}

	return Event{
		Kind:       EventFinal,
		Transcript: text,
		Speaker:    speaker,
		Boundaries: boundaries,
	}, true
}
