package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/courtside/courtside/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// formatTimestamp converts time.Time to a SQLite-friendly UTC ISO8601 string.
// The Z suffix makes the driver parse it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// MatchRecord is one completed match as stored locally for the admin console.
type MatchRecord struct {
	ID        int64      `json:"id"`
	MatchID   string     `json:"matchId"`
	Team1Name string     `json:"team1Name"`
	Team2Name string     `json:"team2Name"`
	Score1    int        `json:"score1"`
	Score2    int        `json:"score2"`
	Winner    string     `json:"winner"` // team name, or "Tie"
	MatchType string     `json:"matchType"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   time.Time  `json:"endedAt"`
}

// Store keeps a local journal of completed matches and connection outages.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the history database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordMatch journals a completed match.
func (s *Store) RecordMatch(ctx context.Context, m domain.Match) error {
	var started *string
	if !m.StartTime.IsZero() {
		v := formatTimestamp(m.StartTime)
		started = &v
	}
	ended := time.Now()
	if m.EndTime != nil {
		ended = *m.EndTime
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (match_id, team1_name, team2_name, score1, score2, winner, match_type, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Team1.Name, m.Team2.Name, m.Score1, m.Score2, m.WinnerName(), string(m.MatchType), started, formatTimestamp(ended))
	if err != nil {
		return fmt.Errorf("recording match %s: %w", m.ID, err)
	}
	return nil
}

// RecentMatches returns the latest completed matches, newest first.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, team1_name, team2_name, score1, score2, winner, match_type, started_at, ended_at
		FROM matches ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		var r MatchRecord
		var started sql.NullTime
		if err := rows.Scan(&r.ID, &r.MatchID, &r.Team1Name, &r.Team2Name, &r.Score1, &r.Score2, &r.Winner, &r.MatchType, &started, &r.EndedAt); err != nil {
			return nil, err
		}
		if started.Valid {
			r.StartedAt = &started.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// OpenOutage journals the start of a connection outage and returns its id.
func (s *Store) OpenOutage(ctx context.Context, disconnectedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outages (disconnected_at) VALUES (?)
	`, formatTimestamp(disconnectedAt))
	if err != nil {
		return 0, fmt.Errorf("recording outage: %w", err)
	}
	return res.LastInsertId()
}

// CloseOutage journals recovery from an outage.
func (s *Store) CloseOutage(ctx context.Context, id int64, reconnectedAt time.Time, attempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outages SET reconnected_at = ?, attempts = ? WHERE id = ?
	`, formatTimestamp(reconnectedAt), attempts, id)
	if err != nil {
		return fmt.Errorf("closing outage %d: %w", id, err)
	}
	return nil
}
