package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/meetscribe/transcription-gateway/internal/storage"
	"github.com/meetscribe/transcription-gateway/internal/transcript"
)

// MeetingsHandler lists a user's meetings, newest first
func (s *Server) MeetingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}

		meetings, err := s.store.GetMeetings(userID)
		if err != nil {
			s.logger.Error().Err(err).Msg("Listing meetings failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, meetings)
	}
}

// MeetingHandler returns one meeting with its transcript replayed through the
// current speaker name map, so renames made after the fact show up without
// rewriting the stored transcript
func (s *Server) MeetingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("sid")
		if sid == "" {
			http.Error(w, "sid is required", http.StatusBadRequest)
			return
		}

		meeting, err := s.store.GetMeeting(sid)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "meeting not found", http.StatusNotFound)
				return
			}
			s.logger.Error().Err(err).Msg("Loading meeting failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		names, err := s.store.GetSpeakerNames(sid)
		if err != nil {
			s.logger.Error().Err(err).Msg("Loading speaker names failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		meeting.FullTranscript = replayTranscript(meeting.FullTranscript, names)
		writeJSON(w, meeting)
	}
}

// replayTranscript applies the name map to every stored line
func replayTranscript(full string, names map[string]string) string {
	if full == "" || len(names) == 0 {
		return full
	}

	lines := strings.Split(full, "\n")
	for i, line := range lines {
		lines[i] = transcript.ResolveLine(line, names)
	}
	return strings.Join(lines, "\n")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
