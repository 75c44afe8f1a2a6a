// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TurnRecord is one row of the turn journal. The journal is telemetry: the
// session never reloads state from it.
type TurnRecord struct {
	RequestID      string    `json:"request_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Outcome        string    `json:"outcome"` // "ok", "fallback"
	FailureKind    string    `json:"failure_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
	Sentiment      string    `json:"sentiment"`
	FoodLogged     bool      `json:"food_logged"`
	ActivityLogged bool      `json:"activity_logged"`
	HadImage       bool      `json:"had_image"`
}

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS turns (
        request_id TEXT PRIMARY KEY,
        started_at TEXT NOT NULL,
        finished_at TEXT NOT NULL,
        outcome TEXT NOT NULL,
        failure_kind TEXT NOT NULL DEFAULT '',
        error TEXT NOT NULL DEFAULT '',
        sentiment TEXT NOT NULL DEFAULT '',
        food_logged INTEGER NOT NULL DEFAULT 0,
        activity_logged INTEGER NOT NULL DEFAULT 0,
        had_image INTEGER NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_turns_started_at ON turns(started_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// RecordTurn stores a turn. Recording the same request twice keeps the
// first row.
func (s *SQLiteStorage) RecordTurn(rec *TurnRecord) error {
	query := `
        INSERT INTO turns (request_id, started_at, finished_at, outcome, failure_kind, error,
                           sentiment, food_logged, activity_logged, had_image)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(request_id) DO NOTHING
    `
	_, err := s.db.Exec(query,
		rec.RequestID, rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout),
		rec.Outcome, rec.FailureKind, rec.Error, rec.Sentiment,
		boolToInt(rec.FoodLogged), boolToInt(rec.ActivityLogged), boolToInt(rec.HadImage))
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns, newest first.
func (s *SQLiteStorage) RecentTurns(limit int) ([]*TurnRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT request_id, started_at, finished_at, outcome, failure_kind, error,
               sentiment, food_logged, activity_logged, had_image
        FROM turns
        ORDER BY started_at DESC
        LIMIT ?
    `

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*TurnRecord, 0)
	for rows.Next() {
		rec := &TurnRecord{}
		var startedStr, finishedStr string
		var food, activity, image int

		err := rows.Scan(
			&rec.RequestID, &startedStr, &finishedStr, &rec.Outcome, &rec.FailureKind,
			&rec.Error, &rec.Sentiment, &food, &activity, &image)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		if rec.StartedAt, err = time.Parse(timeLayout, startedStr); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		if rec.FinishedAt, err = time.Parse(timeLayout, finishedStr); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		rec.FoodLogged = food != 0
		rec.ActivityLogged = activity != 0
		rec.HadImage = image != 0

		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}

	return turns, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
