package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListTurns(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.RecordTurn(&TurnRecord{
		RequestID:  "a",
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
		Outcome:    "ok",
		Sentiment:  "positive",
		FoodLogged: true,
	}); err != nil {
		t.Fatalf("record first turn: %v", err)
	}
	if err := s.RecordTurn(&TurnRecord{
		RequestID:   "b",
		StartedAt:   base.Add(time.Minute),
		FinishedAt:  base.Add(time.Minute + time.Second),
		Outcome:     "fallback",
		FailureKind: "timeout",
		Error:       "deadline exceeded",
		Sentiment:   "neutral",
		HadImage:    true,
	}); err != nil {
		t.Fatalf("record second turn: %v", err)
	}

	turns, err := s.RecentTurns(10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].RequestID != "b" || turns[0].FailureKind != "timeout" || !turns[0].HadImage {
		t.Fatalf("unexpected newest turn %+v", turns[0])
	}
	if !turns[1].FoodLogged || turns[1].ActivityLogged {
		t.Fatalf("unexpected flags on oldest turn %+v", turns[1])
	}
	if !turns[1].StartedAt.Equal(base) {
		t.Fatalf("expected started_at %v, got %v", base, turns[1].StartedAt)
	}
}

func TestRecordTurnIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	now := time.Now()
	rec := &TurnRecord{RequestID: "same", StartedAt: now, FinishedAt: now, Outcome: "ok"}
	for i := 0; i < 2; i++ {
		if err := s.RecordTurn(rec); err != nil {
			t.Fatalf("record run %d: %v", i+1, err)
		}
	}
	turns, err := s.RecentTurns(0)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
}
