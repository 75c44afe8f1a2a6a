package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"nutritrack/internal/backend"
	"nutritrack/internal/models"
	"nutritrack/internal/session"
	"nutritrack/internal/storage"
)

type stubBackend struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []*models.TurnRequest
	block    chan struct{}
}

func (b *stubBackend) GenerateTurn(ctx context.Context, req *models.TurnRequest) ([]byte, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	block := b.block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return []byte(b.reply), nil
}

func (b *stubBackend) lastRequest() *models.TurnRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

const foodReply = `{
  "reply": "Gado-gado: ~450 kcal, 18g protein, 40g carbs, 24g fat.",
  "food_entry": {"name": "Gado-gado", "calories": 450, "protein": 18, "carbs": 40, "fat": 24, "meal_type_suggestion": "Lunch"},
  "activity_entry": null,
  "daily_motivation": "Nice balance!",
  "next_meal_suggestion": "Grilled tempeh",
  "food_analysis": [{"name": "Peanut sauce", "nutritional_highlight": "Healthy fats", "health_impact": "Satiety"}],
  "suggestion": "Add fruit",
  "sentiment": "positive"
}`

func TestSendMergesSuccessfulTurn(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	b := &stubBackend{reply: foodReply}
	c := session.NewController(s, b)

	var events []session.Event
	c.Subscribe(func(ev session.Event) { events = append(events, ev) })

	out, err := c.Send(context.Background(), "I had gado-gado", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.FailureKind != "" {
		t.Fatalf("expected success, got failure %q", out.FailureKind)
	}

	h := s.History()
	if len(h) != 3 {
		t.Fatalf("expected greeting, user and model messages, got %d", len(h))
	}
	if h[1].Role != models.RoleUser || h[1].Text != "I had gado-gado" {
		t.Fatalf("unexpected user message %+v", h[1])
	}
	if h[2].Text != "Gado-gado: ~450 kcal, 18g protein, 40g carbs, 24g fat." {
		t.Fatalf("expected reply verbatim, got %q", h[2].Text)
	}

	food := s.FoodLog()
	if len(food) != 1 || food[0].Calories != 450 || food[0].MealType != models.Lunch {
		t.Fatalf("unexpected food log %+v", food)
	}
	if ins := s.Insight(); ins == nil || ins.Motivation != "Nice balance!" || len(ins.FoodInsights) != 1 {
		t.Fatalf("unexpected insight %+v", ins)
	}

	prompt := b.lastRequest().Parts[0].Text
	if !strings.HasSuffix(prompt, "Current User Input:\nI had gado-gado") {
		t.Fatalf("unexpected prompt %q", prompt)
	}
	if !strings.Contains(prompt, "User: I had gado-gado") {
		t.Fatalf("expected history to include the current user message, got %q", prompt)
	}

	if len(events) != 1 || events[0].Kind != session.EventTurnMerged || events[0].Summary.Consumed != 450 {
		t.Fatalf("unexpected events %+v", events)
	}
	if c.Busy() {
		t.Fatalf("expected busy flag cleared after merge")
	}
}

func TestSendUsesTodaysIntakeInStatusLine(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.AppendFood(models.FoodLogEntry{Name: "Breakfast", Calories: 350})
	b := &stubBackend{reply: foodReply}
	c := session.NewController(s, b)

	if _, err := c.Send(context.Background(), "lunch time", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(b.lastRequest().SystemInstruction, "Consumed 350 / 2335 kcal") {
		t.Fatalf("unexpected system instruction %q", b.lastRequest().SystemInstruction)
	}
}

func TestSendWithImage(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	b := &stubBackend{reply: foodReply}
	c := session.NewController(s, b)

	if _, err := c.Send(context.Background(), "", "aGVsbG8="); err != nil {
		t.Fatalf("send image: %v", err)
	}
	h := s.History()
	if h[1].Image != "data:image/jpeg;base64,aGVsbG8=" {
		t.Fatalf("expected data URI on user message, got %q", h[1].Image)
	}
	req := b.lastRequest()
	if len(req.Parts) != 2 || req.Parts[0].InlineImage == nil || req.Parts[1].Text != "" {
		t.Fatalf("expected image part and raw text part, got %+v", req.Parts)
	}
}

func TestSendFallbackOnTransportError(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.AppendFood(models.FoodLogEntry{Name: "Rice", Calories: 200})
	s.AppendActivity(models.ActivityLogEntry{Name: "Walk", CaloriesBurned: 50})
	c := session.NewController(s, &stubBackend{err: errors.New("connection reset")})

	before := len(s.History())
	out, err := c.Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("send must not surface backend errors: %v", err)
	}
	if out.FailureKind != backend.KindTransport {
		t.Fatalf("expected transport failure kind, got %q", out.FailureKind)
	}

	h := s.History()
	if len(h) != before+2 {
		t.Fatalf("expected user and fallback messages, got %d new", len(h)-before)
	}
	if h[len(h)-1].Text != "Maaf, saya mengalami kesalahan koneksi." {
		t.Fatalf("unexpected fallback reply %q", h[len(h)-1].Text)
	}
	if len(s.FoodLog()) != 1 || len(s.ActivityLog()) != 1 {
		t.Fatalf("fallback must not touch logs")
	}
	if ins := s.Insight(); ins == nil || ins.Motivation != "Tetap semangat!" {
		t.Fatalf("expected fallback motivation, got %+v", ins)
	}
}

func TestSendFallbackOnSchemaViolation(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	lang := models.English
	if _, err := s.UpdateProfile(session.ProfileUpdate{Language: &lang}); err != nil {
		t.Fatalf("update language: %v", err)
	}
	c := session.NewController(s, &stubBackend{reply: `{"reply":"hi","sentiment":"furious"}`})

	out, err := c.Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.FailureKind != backend.KindSchema {
		t.Fatalf("expected schema failure, got %q", out.FailureKind)
	}
	if out.Response.Reply != "Sorry, I encountered a connection error." {
		t.Fatalf("unexpected fallback %q", out.Response.Reply)
	}
	if ins := s.Insight(); ins == nil || ins.Motivation != "Keep going!" {
		t.Fatalf("expected English fallback motivation, got %+v", ins)
	}
}

func TestSendTimeoutFallsBack(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	b := &stubBackend{reply: foodReply, block: make(chan struct{})}
	c := session.NewController(s, b, session.WithTimeout(20*time.Millisecond))

	out, err := c.Send(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.FailureKind != backend.KindTimeout {
		t.Fatalf("expected timeout failure, got %q", out.FailureKind)
	}
	if len(s.FoodLog()) != 0 {
		t.Fatalf("expected no food logged on timeout")
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	c := session.NewController(s, &stubBackend{reply: foodReply})
	if _, err := c.Send(context.Background(), "   ", ""); !errors.Is(err, session.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(s.History()) != 1 {
		t.Fatalf("expected history untouched")
	}
}

func TestSendRejectsWhileBusy(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	b := &stubBackend{reply: foodReply, block: make(chan struct{})}
	c := session.NewController(s, b)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first", "")
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !c.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("first turn never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Send(context.Background(), "second", ""); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(b.block)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}

	h := s.History()
	if len(h) != 3 {
		t.Fatalf("expected rejected turn to leave no trace, got %d messages", len(h))
	}
}

type busyJournal struct {
	busy func() bool
	seen []bool
}

func (j *busyJournal) RecordTurn(*storage.TurnRecord) error {
	j.seen = append(j.seen, j.busy())
	return nil
}

func TestSendReleasesBusyBeforeJournalAndSubscribers(t *testing.T) {
	t.Parallel()
	j := &busyJournal{}
	c := session.NewController(newTestSession(t), &stubBackend{reply: foodReply}, session.WithJournal(j))
	j.busy = c.Busy

	var seen []bool
	c.Subscribe(func(session.Event) { seen = append(seen, c.Busy()) })

	if _, err := c.Send(context.Background(), "lunch", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(j.seen) != 1 || j.seen[0] {
		t.Fatalf("expected journal to run after busy was cleared, got %v", j.seen)
	}
	if len(seen) != 1 || seen[0] {
		t.Fatalf("expected subscriber to run after busy was cleared, got %v", seen)
	}
}

type failingJournal struct{}

func (failingJournal) RecordTurn(*storage.TurnRecord) error {
	return errors.New("disk full")
}

func TestSendJournalsTurns(t *testing.T) {
	t.Parallel()
	j, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	s := newTestSession(t)
	c := session.NewController(s, &stubBackend{reply: foodReply}, session.WithJournal(j))
	out, err := c.Send(context.Background(), "lunch", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	turns, err := j.RecentTurns(5)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 1 || turns[0].RequestID != out.RequestID || !turns[0].FoodLogged || turns[0].Outcome != "ok" {
		t.Fatalf("unexpected journal %+v", turns)
	}

	failing := session.NewController(newTestSession(t), &stubBackend{reply: foodReply}, session.WithJournal(failingJournal{}))
	if _, err := failing.Send(context.Background(), "lunch", ""); err != nil {
		t.Fatalf("journal failure must not fail the turn: %v", err)
	}
}
