package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string    `json:"code"`
	GameType  string    `json:"gameType"`
	Status    string    `json:"status"` // "waiting", "playing", "finished"
	Settings  string    `json:"settings"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventRow is one recorded match event.
type EventRow struct {
	ID          int64     `json:"id"`
	SessionCode string    `json:"session"`
	Seq         int       `json:"seq,omitempty"`
	Type        string    `json:"type"`
	Player      string    `json:"player,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ResultRow is one player's placing in a finished match.
type ResultRow struct {
	PlayerID string
	Rank     int
	Score    int
}

// PlayerStats aggregates a player's finished matches.
type PlayerStats struct {
	PlayerID   string     `json:"playerId"`
	Played     int        `json:"played"`
	Wins       int        `json:"wins"`
	TotalScore int        `json:"totalScore"`
	LastPlayed *time.Time `json:"lastPlayed,omitempty"`
}

// Store handles SQLite persistence of sessions and match history.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'waiting',
			settings   TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS game_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_code TEXT NOT NULL,
			seq          INTEGER NOT NULL DEFAULT 0,
			type         TEXT NOT NULL,
			player       TEXT NOT NULL DEFAULT '',
			text         TEXT NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS game_events_session ON game_events(session_code, id);
		CREATE TABLE IF NOT EXISTS game_results (
			session_code TEXT NOT NULL,
			game_type    TEXT NOT NULL,
			player_id    TEXT NOT NULL,
			rank         INTEGER NOT NULL,
			score        INTEGER NOT NULL,
			finished_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_code, player_id)
		);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType, settings string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status, settings) VALUES (?, ?, 'waiting', ?)",
		code, gameType, settings,
	)
	return err
}

const sessionColumns = "code, game_type, status, settings, created_at"

func scanSession(sc interface{ Scan(...any) error }) (SessionRow, error) {
	var sr SessionRow
	err := sc.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.Settings, &sr.CreatedAt)
	return sr, err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	sr, err := scanSession(s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE code = ?", code))
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// UpdateSessionSettings stores a session's table settings.
func (s *Store) UpdateSessionSettings(code, settings string) error {
	_, err := s.db.Exec("UPDATE sessions SET settings = ? WHERE code = ?", settings, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT " + sessionColumns + " FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT "+sessionColumns+" FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// AppendEvent records an event and returns its id.
func (s *Store) AppendEvent(e EventRow) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO game_events (session_code, seq, type, player, text) VALUES (?, ?, ?, ?, ?)",
		e.SessionCode, e.Seq, e.Type, e.Player, e.Text,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvents returns a session's events with id greater than afterID, oldest first.
func (s *Store) ListEvents(code string, afterID int64) ([]EventRow, error) {
	rows, err := s.db.Query(`
		SELECT id, session_code, seq, type, player, text, created_at
		FROM game_events WHERE session_code = ? AND id > ? ORDER BY id
	`, code, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.SessionCode, &e.Seq, &e.Type, &e.Player, &e.Text, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// SaveResults records the placings of a finished match. Saving the same
// session twice replaces the earlier rows.
func (s *Store) SaveResults(code, gameType string, results []ResultRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM game_results WHERE session_code = ?", code); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := tx.Exec(
			"INSERT INTO game_results (session_code, game_type, player_id, rank, score) VALUES (?, ?, ?, ?, ?)",
			code, gameType, r.PlayerID, r.Rank, r.Score,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PlayerStats aggregates results for playerID. A player with no finished
// matches gets zero counts.
func (s *Store) PlayerStats(playerID string) (PlayerStats, error) {
	st := PlayerStats{PlayerID: playerID}
	var last sql.NullString
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(rank = 1), 0), COALESCE(SUM(score), 0), MAX(finished_at)
		FROM game_results WHERE player_id = ?
	`, playerID).Scan(&st.Played, &st.Wins, &st.TotalScore, &last)
	if err != nil {
		return st, err
	}
	if last.Valid {
		if t, err := parseTimestamp(last.String); err == nil {
			st.LastPlayed = &t
		}
	}
	return st, nil
}

// parseTimestamp reads an aggregate DATETIME, which sqlite hands back as text.
func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// DeleteSession removes a session and its event log. Results are kept for
// player statistics.
func (s *Store) DeleteSession(code string) error {
	_, err := s.db.Exec("DELETE FROM game_events WHERE session_code = ?", code)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM sessions WHERE code = ?", code)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
