package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetscribe/transcription-gateway/internal/observability"
	"github.com/meetscribe/transcription-gateway/internal/recognition"
	"github.com/meetscribe/transcription-gateway/internal/transcript"
)

// Dialer opens streaming sessions against the remote recognition service
type Dialer interface {
	Dial(ctx context.Context) (recognition.Stream, error)
}

// Broadcaster is the live event sink the worker publishes to
type Broadcaster interface {
	PublishError(sessionID, message string)
	PublishPartial(sessionID, text string)
	PublishFinal(sessionID, speaker, text string)
}

// TranscriptStore is the persistence bridge the worker appends lines to.
// Persistence failures are logged and never affect live delivery.
type TranscriptStore interface {
	AppendTranscriptLine(sid, line string) error
	EndMeeting(sid string, endedAt time.Time) error
}

// Worker bridges one session's audio channel to one recognition stream and
// turns inbound events into live broadcasts and persisted transcript lines.
// Exactly one worker runs per registered session.
type Worker struct {
	handle    *Handle
	dialer    Dialer
	hub       Broadcaster
	store     TranscriptStore
	registry  *Registry
	assembler *transcript.Assembler
	logger    zerolog.Logger
	metrics   *observability.SessionMetrics

	sentSentinel atomic.Bool
}

// NewWorker creates a worker for a registered session handle
func NewWorker(h *Handle, dialer Dialer, hub Broadcaster, store TranscriptStore, registry *Registry) *Worker {
	return &Worker{
		handle:    h,
		dialer:    dialer,
		hub:       hub,
		store:     store,
		registry:  registry,
		assembler: transcript.NewAssembler(),
		logger:    observability.SessionLogger(h.ID),
		metrics:   observability.NewSessionMetrics(h.ID),
	}
}

// Run drives the session from Starting to Closed. It blocks until the stream
// ends and must run on its own goroutine. A failed remote connection is fatal
// to the session and is never retried here; a restart is a new client action.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		w.handle.setState(StateClosed)
		w.handle.markClosed()
		w.registry.Unregister(w.handle.ID)
		w.metrics.RecordSessionEnd()
	}()

	stream, err := w.dialer.Dial(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Recognition connection failed")
		observability.RecordError("dial_failed", "session")
		w.hub.PublishError(w.handle.ID, "Transcription service unavailable")
		return
	}
	defer func() { _ = stream.Close() }()

	w.handle.setState(StateStreaming)
	w.logger.Info().Msg("Session streaming")

	sendDone := make(chan struct{})
	go w.sendLoop(stream, sendDone)
	defer close(sendDone)

	clean := w.dispatchLoop(stream)

	w.handle.setState(StateDraining)

	if clean {
		if err := w.store.EndMeeting(w.handle.ID, time.Now()); err != nil {
			w.logger.Error().Err(err).Msg("Marking meeting completed failed")
			observability.RecordError("persist_failed", "session")
		}
		w.logger.Info().Msg("Session drained")
	} else {
		w.hub.PublishError(w.handle.ID, "Transcription stream failed")
		w.logger.Warn().Msg("Session closed after stream failure")
	}
}

// sendLoop pumps audio payloads from the session channel to the stream until
// the end sentinel is dequeued, then closes the send side. Receiving keeps
// going after that so trailing finals for in-flight audio are not lost.
func (w *Worker) sendLoop(stream recognition.Stream, done <-chan struct{}) {
	for {
		select {
		case payload := <-w.handle.audio:
			if payload == nil {
				w.sentSentinel.Store(true)
				if err := stream.CloseSend(); err != nil {
					w.logger.Warn().Err(err).Msg("Closing send side failed")
				}
				return
			}
			if err := stream.SendAudio(payload); err != nil {
				// The read loop observes the same failure and
				// drives teardown
				w.logger.Warn().Err(err).Msg("Audio send failed")
				observability.RecordError("send_failed", "session")
				return
			}
		case <-done:
			return
		}
	}
}

// dispatchLoop consumes recognition events until the stream closes. It
// reports whether the stream ended cleanly.
func (w *Worker) dispatchLoop(stream recognition.Stream) bool {
	for ev := range stream.Events() {
		switch ev.Kind {
		case recognition.EventPartial:
			// Partials are ephemeral: broadcast only, never buffered
			// or persisted
			w.hub.PublishPartial(w.handle.ID, ev.Transcript)

		case recognition.EventFinal:
			w.handleFinal(ev)

		case recognition.EventClosed:
			// Clean only when this side requested the drain; a close
			// before the end sentinel is a failure even without a
			// transport error
			if w.sentSentinel.Load() {
				return true
			}
			w.logger.Warn().Err(ev.Err).Msg("Recognition stream closed unexpectedly")
			observability.RecordError("stream_failed", "session")
			return false
		}
	}
	return w.sentSentinel.Load()
}

// handleFinal buffers the fragment for its speaker and emits one line per
// reported sentence boundary
func (w *Worker) handleFinal(ev recognition.Event) {
	w.assembler.Append(ev.Speaker, ev.Transcript)

	for i := 0; i < ev.Boundaries; i++ {
		sentence, ok := w.assembler.Boundary(ev.Speaker)
		if !ok {
			break
		}
		w.emitLine(ev.Speaker, sentence)
	}
}

func (w *Worker) emitLine(speaker, sentence string) {
	names := w.handle.Names()
	display := transcript.ResolveSpeaker(speaker, names)

	w.hub.PublishFinal(w.handle.ID, display, sentence)
	observability.RecordTranscriptLine()

	line := transcript.FormatLine(display, sentence)
	if err := w.store.AppendTranscriptLine(w.handle.ID, line); err != nil {
		// Best-effort secondary durability; live delivery already
		// happened
		w.logger.Error().Err(err).Str("line", line).Msg("Transcript append failed")
		observability.RecordError("persist_failed", "session")
	}
}
