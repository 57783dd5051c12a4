package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meetscribe/transcription-gateway/internal/observability"
)

// Hub fans live events out to the subscribers of each session. Delivery is
// fire-and-forget: a slow subscriber loses events rather than stalling the
// session worker, and a late subscriber misses whatever was published before.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[chan []byte]struct{}
	logger   zerolog.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[chan []byte]struct{}),
		logger:   observability.GetLogger().With().Str("component", "broadcast").Logger(),
	}
}

// Subscribe registers a new subscriber for a session's events
func (h *Hub) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 64)

	h.mu.Lock()
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[chan []byte]struct{})
		h.sessions[sessionID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(sessionID string, ch chan []byte) {
	h.mu.Lock()
	if subs, ok := h.sessions[sessionID]; ok {
		if _, member := subs[ch]; member {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	h.mu.Unlock()
}

// PublishStatus publishes a status event to the session's subscribers
func (h *Hub) PublishStatus(sessionID, message string) {
	h.publish(sessionID, newStatusEvent(message))
}

// PublishDenied publishes an admission-denied status carrying the plan and
// its limit
func (h *Hub) PublishDenied(sessionID, message, plan string, limit int) {
	ev := newStatusEvent(message)
	ev.Plan = plan
	ev.Limit = &limit
	ev.Error = true
	h.publish(sessionID, ev)
}

// PublishError publishes an error status event
func (h *Hub) PublishError(sessionID, message string) {
	ev := newStatusEvent(message)
	ev.Error = true
	h.publish(sessionID, ev)
}

// PublishPartial publishes an in-progress transcript fragment
func (h *Hub) PublishPartial(sessionID, text string) {
	observability.RecordTranscriptEvent("partial")
	h.publish(sessionID, newTranscriptEvent("", text, false))
}

// PublishFinal publishes a finalized, speaker-attributed sentence
func (h *Hub) PublishFinal(sessionID, speaker, text string) {
	observability.RecordTranscriptEvent("final")
	h.publish(sessionID, newTranscriptEvent(speaker, text, true))
}

func (h *Hub) publish(sessionID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Event marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.sessions[sessionID] {
		select {
		case ch <- payload:
		default:
			// Subscriber not keeping up; drop rather than block
			observability.RecordError("subscriber_overrun", "broadcast")
		}
	}
}
