package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meetscribe/transcription-gateway/internal/admission"
	"github.com/meetscribe/transcription-gateway/internal/broadcast"
	"github.com/meetscribe/transcription-gateway/internal/config"
	"github.com/meetscribe/transcription-gateway/internal/observability"
	"github.com/meetscribe/transcription-gateway/internal/session"
	"github.com/meetscribe/transcription-gateway/internal/storage"
)

var upgrader = websocket.Upgrader{
	// Origin policy is enforced upstream by the ingress
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientMessage is the envelope for text messages from the client; binary
// messages are audio frames and bypass JSON entirely
type clientMessage struct {
	Event     string `json:"event"`
	UserID    string `json:"user_id,omitempty"`
	Title     string `json:"title,omitempty"`
	SpeakerID string `json:"speaker_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Server terminates client WebSocket connections and wires them to the
// session pipeline
type Server struct {
	cfg       *config.Config
	registry  *session.Registry
	gate      *session.Gate
	hub       *broadcast.Hub
	store     *storage.SQLiteStore
	admission *admission.Gate
	dialer    session.Dialer
	logger    zerolog.Logger
}

// New creates a server over the given collaborators
func New(cfg *config.Config, store *storage.SQLiteStore, hub *broadcast.Hub, registry *session.Registry, gate *session.Gate, admissionGate *admission.Gate, dialer session.Dialer) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		gate:      gate,
		hub:       hub,
		store:     store,
		admission: admissionGate,
		dialer:    dialer,
		logger:    observability.GetLogger().With().Str("component", "server").Logger(),
	}
}

// HandleWS is the entry point for client streaming connections. Each
// connection gets a transport-assigned session id.
func (s *Server) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer func() { _ = conn.Close() }()

		sessionID := uuid.New().String()
		logger := s.logger.With().Str("session_id", sessionID).Logger()
		logger.Info().Msg("Client connected")

		events := s.hub.Subscribe(sessionID)
		go writeLoop(conn, events)

		s.readLoop(conn, sessionID, r, logger)

		// Disconnect: drain the session if one is streaming, then drop
		// the subscription. The worker and this teardown may race to
		// unregister; both paths are idempotent.
		if _, active := s.registry.Lookup(sessionID); active {
			if err := s.gate.End(sessionID); err != nil {
				logger.Warn().Err(err).Msg("Ending session on disconnect failed")
			}
		}
		s.hub.Unsubscribe(sessionID, events)
		logger.Info().Msg("Client disconnected")
	}
}

// writeLoop is the connection's only writer; it pumps hub events out until
// the subscription channel closes
func writeLoop(conn *websocket.Conn, events <-chan []byte) {
	for payload := range events {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			// Reads fail alongside writes; the read loop owns teardown
			return
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, sessionID string, r *http.Request, logger zerolog.Logger) {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			// Malformed or late frames are dropped with no session
			// impact
			if err := s.gate.Submit(sessionID, payload); err != nil {
				logger.Debug().Err(err).Msg("Audio frame rejected")
			}

		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Warn().Err(err).Msg("Undecodable client message")
				continue
			}
			s.dispatch(sessionID, r, msg, logger)
		}
	}
}

func (s *Server) dispatch(sessionID string, r *http.Request, msg clientMessage, logger zerolog.Logger) {
	switch msg.Event {
	case "start_streaming":
		s.handleStart(sessionID, r, msg, logger)

	case "end_meeting":
		if err := s.gate.End(sessionID); err != nil {
			logger.Warn().Err(err).Msg("End meeting failed")
		}

	case "set_speaker_name":
		s.handleRename(sessionID, msg, logger)

	default:
		logger.Warn().Str("event", msg.Event).Msg("Unknown client event")
	}
}

// handleStart runs the admission check and, if allowed, registers the session
// and starts its bridge worker
func (s *Server) handleStart(sessionID string, r *http.Request, msg clientMessage, logger zerolog.Logger) {
	userID := msg.UserID
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		userID = "default_user"
	}

	decision, err := s.admission.CanStartSession(userID)
	if err != nil {
		logger.Error().Err(err).Msg("Admission check failed")
		s.hub.PublishError(sessionID, "Unable to start meeting")
		return
	}
	if !decision.Allowed {
		logger.Info().
			Str("plan", decision.Plan).
			Int("limit", decision.Limit).
			Msg("Session denied by admission gate")
		observability.RecordAdmissionDenied(decision.Plan)
		s.hub.PublishDenied(sessionID, "Meeting limit reached for current plan", decision.Plan, decision.Limit)
		return
	}

	if err := s.store.CreateMeeting(sessionID, userID, msg.Title); err != nil {
		logger.Error().Err(err).Msg("Creating meeting record failed")
		s.hub.PublishError(sessionID, "Unable to start meeting")
		return
	}

	handle, err := s.registry.Register(sessionID, userID, s.cfg.AudioChanSize)
	if err != nil {
		logger.Warn().Err(err).Msg("Session already streaming")
		return
	}

	worker := session.NewWorker(handle, s.dialer, s.hub, s.store, s.registry)
	go worker.Run(context.Background())

	s.hub.PublishStatus(sessionID, "Transcription ready")
}

// handleRename updates the session's speaker name map and the durable copy.
// Renames apply to lines resolved thereafter; already-persisted lines keep
// their stored label until replayed.
func (s *Server) handleRename(sessionID string, msg clientMessage, logger zerolog.Logger) {
	if msg.SpeakerID == "" || msg.Name == "" {
		return
	}

	if err := s.store.SetSpeakerName(sessionID, msg.SpeakerID, msg.Name); err != nil {
		logger.Error().Err(err).Msg("Persisting speaker name failed")
		observability.RecordError("persist_failed", "server")
	}

	if handle, ok := s.registry.Lookup(sessionID); ok {
		handle.SetName(msg.SpeakerID, msg.Name)
	}
}
