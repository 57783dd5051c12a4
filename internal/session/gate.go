package session

import (
	"time"

	"github.com/meetscribe/transcription-gateway/internal/audio"
	"github.com/meetscribe/transcription-gateway/internal/observability"
)

// Gate validates inbound audio frames and feeds each session's audio channel.
// A full channel blocks the caller for a bounded window (backpressure) rather
// than dropping payloads.
type Gate struct {
	registry      *Registry
	headerLen     int
	submitTimeout time.Duration
}

// NewGate creates an ingestion gate over the registry
func NewGate(registry *Registry, headerLen int, submitTimeout time.Duration) *Gate {
	return &Gate{
		registry:      registry,
		headerLen:     headerLen,
		submitTimeout: submitTimeout,
	}
}

// Submit strips the frame header and enqueues the payload on the session's
// audio channel. Frames are rejected for unknown sessions, short frames, and
// sessions whose end signal was already enqueued.
func (g *Gate) Submit(sessionID string, rawFrame []byte) error {
	h, ok := g.registry.Lookup(sessionID)
	if !ok {
		observability.RecordFrameRejected("no_session")
		return ErrNoSession
	}

	payload, err := audio.ParseFrame(rawFrame, g.headerLen)
	if err != nil {
		observability.RecordFrameRejected("too_short")
		return err
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if h.ended {
		observability.RecordFrameRejected("ended")
		return ErrSessionEnded
	}

	select {
	case h.audio <- payload:
	default:
		// The worker is behind the remote service; block up to the
		// configured bound instead of growing memory or dropping audio
		timer := time.NewTimer(g.submitTimeout)
		defer timer.Stop()
		select {
		case h.audio <- payload:
		case <-h.closed:
			observability.RecordFrameRejected("no_session")
			return ErrNoSession
		case <-timer.C:
			observability.RecordFrameRejected("backpressure")
			return ErrBackpressure
		}
	}

	observability.RecordAudioBytes(len(payload))
	return nil
}

// End enqueues the end-of-session sentinel. All later submits for the session
// are rejected; frames enqueued before the sentinel still drain to the
// worker. End is idempotent.
func (g *Gate) End(sessionID string) error {
	h, ok := g.registry.Lookup(sessionID)
	if !ok {
		return ErrNoSession
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if h.ended {
		return nil
	}
	h.ended = true

	// The worker is the sole consumer and drains to the sentinel unless
	// it already tore down after a transport failure
	select {
	case h.audio <- nil:
	case <-h.closed:
	}
	return nil
}
