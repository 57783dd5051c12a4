package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	MeetingInProgress = "in_progress"
	MeetingCompleted  = "completed"
)

// ErrNotFound is returned when a meeting does not exist
var ErrNotFound = errors.New("meeting not found")

// Meeting is one transcription session's durable record
type Meeting struct {
	SID            string     `json:"sid"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	FullTranscript string     `json:"full_transcript"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// SQLiteStore persists meetings, transcripts, speaker names and user plans
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "meetings.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Single writer keeps transcript appends ordered per meeting
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS meetings (
			sid TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT 'Untitled Meeting',
			status TEXT NOT NULL,
			full_transcript TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			ended_at TEXT
		);
	`); err != nil {
		return fmt.Errorf("create meetings table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS speaker_names (
			sid TEXT NOT NULL,
			speaker_id TEXT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE(sid, speaker_id)
		);
	`); err != nil {
		return fmt.Errorf("create speaker_names table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			plan TEXT NOT NULL DEFAULT 'free'
		);
	`); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_meetings_user_id ON meetings(user_id, created_at)"); err != nil {
		return fmt.Errorf("create meetings index: %w", err)
	}

	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateMeeting creates the meeting record for a session if it does not
// already exist. A later call with a new title updates the title only.
func (s *SQLiteStore) CreateMeeting(sid, userID, title string) error {
	if strings.TrimSpace(sid) == "" {
		return errors.New("meeting sid is required")
	}
	if strings.TrimSpace(title) == "" {
		title = "Untitled Meeting"
	}

	_, err := s.db.Exec(
		`INSERT INTO meetings(sid, user_id, title, status, created_at) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(sid) DO UPDATE SET title = excluded.title`,
		sid,
		userID,
		title,
		MeetingInProgress,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create meeting %s: %w", sid, err)
	}
	return nil
}

// AppendTranscriptLine appends one finalized line to the meeting transcript.
// Appends for a meeting preserve call order; the caller applies speaker name
// resolution before the line reaches the store.
func (s *SQLiteStore) AppendTranscriptLine(sid, line string) error {
	res, err := s.db.Exec(
		`UPDATE meetings
		 SET full_transcript = CASE WHEN full_transcript = '' THEN ? ELSE full_transcript || char(10) || ? END
		 WHERE sid = ?`,
		line,
		line,
		sid,
	)
	if err != nil {
		return fmt.Errorf("append transcript line for meeting %s: %w", sid, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append transcript rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EndMeeting marks the meeting completed
func (s *SQLiteStore) EndMeeting(sid string, endedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE meetings SET status = ?, ended_at = ? WHERE sid = ?`,
		MeetingCompleted,
		endedAt.UTC().Format(time.RFC3339Nano),
		sid,
	)
	if err != nil {
		return fmt.Errorf("end meeting %s: %w", sid, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end meeting rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetMeeting returns a meeting by session id
func (s *SQLiteStore) GetMeeting(sid string) (Meeting, error) {
	row := s.db.QueryRow(
		`SELECT sid, user_id, title, status, full_transcript, created_at, ended_at FROM meetings WHERE sid = ?`,
		sid,
	)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Meeting{}, ErrNotFound
	}
	return m, err
}

// GetMeetings returns a user's meetings, newest first
func (s *SQLiteStore) GetMeetings(userID string) ([]Meeting, error) {
	rows, err := s.db.Query(
		`SELECT sid, user_id, title, status, full_transcript, created_at, ended_at
		 FROM meetings
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query meetings for user %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	meetings := make([]Meeting, 0, 16)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meeting rows: %w", err)
	}

	return meetings, nil
}

// CountMeetings returns how many meetings a user has recorded
func (s *SQLiteStore) CountMeetings(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM meetings WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count meetings for user %s: %w", userID, err)
	}
	return count, nil
}

// GetSpeakerNames returns the meeting's raw-label to display-name map
func (s *SQLiteStore) GetSpeakerNames(sid string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT speaker_id, name FROM speaker_names WHERE sid = ?`, sid)
	if err != nil {
		return nil, fmt.Errorf("query speaker names for meeting %s: %w", sid, err)
	}
	defer func() { _ = rows.Close() }()

	names := make(map[string]string)
	for rows.Next() {
		var speakerID, name string
		if err := rows.Scan(&speakerID, &name); err != nil {
			return nil, fmt.Errorf("scan speaker name: %w", err)
		}
		names[speakerID] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate speaker name rows: %w", err)
	}

	return names, nil
}

// SetSpeakerName maps a raw speaker label to a display name for a meeting
func (s *SQLiteStore) SetSpeakerName(sid, speakerID, name string) error {
	if strings.TrimSpace(speakerID) == "" || strings.TrimSpace(name) == "" {
		return errors.New("speaker id and name are required")
	}

	_, err := s.db.Exec(
		`INSERT INTO speaker_names(sid, speaker_id, name) VALUES(?, ?, ?)
		 ON CONFLICT(sid, speaker_id) DO UPDATE SET name = excluded.name`,
		sid,
		speakerID,
		name,
	)
	if err != nil {
		return fmt.Errorf("set speaker name for meeting %s: %w", sid, err)
	}
	return nil
}

// GetUserPlan returns the user's plan, defaulting to "free" for unknown users
func (s *SQLiteStore) GetUserPlan(userID string) (string, error) {
	var plan string
	err := s.db.QueryRow(`SELECT plan FROM users WHERE id = ?`, userID).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return "free", nil
	}
	if err != nil {
		return "", fmt.Errorf("query plan for user %s: %w", userID, err)
	}
	return plan, nil
}

// SetUserPlan stores a user's plan
func (s *SQLiteStore) SetUserPlan(userID, plan string) error {
	_, err := s.db.Exec(
		`INSERT INTO users(id, plan) VALUES(?, ?) ON CONFLICT(id) DO UPDATE SET plan = excluded.plan`,
		userID,
		plan,
	)
	if err != nil {
		return fmt.Errorf("set plan for user %s: %w", userID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (Meeting, error) {
	var m Meeting
	var createdAt string
	var endedAt sql.NullString
	if err := row.Scan(&m.SID, &m.UserID, &m.Title, &m.Status, &m.FullTranscript, &createdAt, &endedAt); err != nil {
		return Meeting{}, fmt.Errorf("scan meeting: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Meeting{}, fmt.Errorf("parse meeting created_at: %w", err)
	}
	m.CreatedAt = parsed

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Meeting{}, fmt.Errorf("parse meeting ended_at: %w", err)
		}
		m.EndedAt = &parsedEnd
	}

	return m, nil
}
