package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gorilla/websocket"

	"nutritrack/internal/models"
	"nutritrack/internal/server"
	"nutritrack/internal/session"
	"nutritrack/internal/storage"
)

const mealReply = `{
  "reply": "Nasi goreng: ~600 kcal.",
  "food_entry": {"name": "Nasi goreng", "calories": 600, "protein": 15, "carbs": 80, "fat": 22, "meal_type_suggestion": "Dinner"},
  "activity_entry": null,
  "daily_motivation": "Good job",
  "next_meal_suggestion": "Fruit salad",
  "suggestion": "Drink water",
  "sentiment": "neutral"
}`

type fakeBackend struct {
	reply   string
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) GenerateTurn(ctx context.Context, _ *models.TurnRequest) ([]byte, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(f.reply), nil
}

type harness struct {
	srv     *server.NutriTrackServer
	http    *httptest.Server
	ctrl    *session.Controller
	journal *storage.SQLiteStorage
}

func newHarness(t *testing.T, b *fakeBackend) *harness {
	t.Helper()
	journal, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	ctrl := session.NewController(session.New(models.DefaultProfile()), b, session.WithJournal(journal))
	srv, err := server.NewNutriTrackServer(&server.Config{Host: "127.0.0.1", Port: 0}, ctrl, journal, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})
	return &harness{srv: srv, http: ts, ctrl: ctrl, journal: journal}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.http.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})
	resp := h.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st server.HealthStatus
	decode(t, resp, &st)
	if st.Status != "ok" || st.Server.Name != "nutritrack" || st.Server.Version != server.Version {
		t.Fatalf("unexpected health %+v", st)
	}
	if st.Tools == 0 {
		t.Fatalf("expected registered tools in health report")
	}
}

func TestChatFlow(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})

	resp := h.do(t, http.MethodPost, "/api/chat", map[string]string{"text": "nasi goreng for dinner"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out session.TurnOutcome
	decode(t, resp, &out)
	if out.FailureKind != "" || out.Merge.Food == nil || out.Merge.Food.MealType != models.Dinner {
		t.Fatalf("unexpected outcome %+v", out)
	}

	var dash server.Dashboard
	decode(t, h.do(t, http.MethodGet, "/api/dashboard", nil), &dash)
	if dash.Summary.Consumed != 600 || dash.Summary.Remaining != float64(dash.Summary.Target)-600 {
		t.Fatalf("unexpected summary %+v", dash.Summary)
	}
	if dash.Insight == nil || dash.Insight.NextMealSuggestion != "Fruit salad" {
		t.Fatalf("unexpected insight %+v", dash.Insight)
	}

	var history []models.ChatMessage
	decode(t, h.do(t, http.MethodGet, "/api/chat?limit=2", nil), &history)
	if len(history) != 2 || history[1].Text != "Nasi goreng: ~600 kcal." {
		t.Fatalf("unexpected history %+v", history)
	}

	var turns []storage.TurnRecord
	decode(t, h.do(t, http.MethodGet, "/api/turns", nil), &turns)
	if len(turns) != 1 || turns[0].RequestID != out.RequestID {
		t.Fatalf("unexpected turns %+v", turns)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})
	resp := h.do(t, http.MethodPost, "/api/chat", map[string]string{"text": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestChatRejectsWhileBusy(t *testing.T) {
	b := &fakeBackend{reply: mealReply, started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, b)

	done := make(chan int, 1)
	go func() {
		body, _ := json.Marshal(map[string]string{"text": "first"})
		resp, err := http.Post(h.http.URL+"/api/chat", "application/json", bytes.NewReader(body))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first turn never reached the backend")
	}

	resp := h.do(t, http.MethodPost, "/api/chat", map[string]string{"text": "second"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", resp.StatusCode)
	}

	close(b.release)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("expected first turn to succeed, got %d", code)
	}
}

func TestProfileUpdate(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})

	resp := h.do(t, http.MethodPut, "/api/profile", map[string]interface{}{"goal": "Gain Muscle", "language": "en"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var p models.UserProfile
	decode(t, resp, &p)
	if p.TDEE != 2635 || p.Language != models.English {
		t.Fatalf("unexpected profile %+v", p)
	}

	resp = h.do(t, http.MethodPut, "/api/profile", map[string]interface{}{"activity": "Couch"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown activity, got %d", resp.StatusCode)
	}
}

func TestCalculateTargetDoesNotModifyProfile(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})

	var res server.TargetResult
	decode(t, h.do(t, http.MethodPost, "/api/target", map[string]interface{}{"sex": "Male", "age": 30, "weight": 80, "height": 180, "activity": "Sedentary"}), &res)
	if res.Target != 2136 || res.ActivityFactor != 1.2 || res.BMR != 1780 {
		t.Fatalf("unexpected target %+v", res)
	}
	if got := h.ctrl.Session().Profile().TDEE; got != 2335 {
		t.Fatalf("expected session target untouched, got %d", got)
	}
}

func callTool(t *testing.T, h *harness, name string, args map[string]interface{}) (*http.Response, string) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/mcp", protocol.CallToolRequest{Name: name, Arguments: args})
	if resp.StatusCode != http.StatusOK {
		return resp, ""
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	decode(t, resp, &result)
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected tool result %+v", result)
	}
	return resp, result.Content[0].Text
}

func TestMCPTools(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})

	_, text := callTool(t, h, "send_message", map[string]interface{}{"text": "dinner"})
	var out session.TurnOutcome
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode send_message: %v", err)
	}
	if out.Response == nil || out.Response.Reply != "Nasi goreng: ~600 kcal." {
		t.Fatalf("unexpected outcome %+v", out)
	}

	_, text = callTool(t, h, "get_dashboard", nil)
	if !strings.Contains(text, `"consumed":600`) {
		t.Fatalf("expected consumed calories in dashboard, got %s", text)
	}

	_, text = callTool(t, h, "calculate_target", map[string]interface{}{"goal": "Lose Weight"})
	if !strings.Contains(text, `"target":1835`) {
		t.Fatalf("unexpected calculate_target result %s", text)
	}

	resp, _ := callTool(t, h, "update_profile", map[string]interface{}{"custom_calorie_target": -5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative override, got %d", resp.StatusCode)
	}

	resp, _ = callTool(t, h, "log_meal", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tool, got %d", resp.StatusCode)
	}
}

func dialEvents(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.srv.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket client never registered")
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) session.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev session.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestWebSocketReceivesTurnEvents(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})
	conn := dialEvents(t, h)

	if _, err := h.ctrl.Send(context.Background(), "dinner", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Kind != session.EventTurnMerged || ev.Summary.Consumed != 600 || ev.RequestID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketReceivesProfileEvents(t *testing.T) {
	h := newHarness(t, &fakeBackend{reply: mealReply})
	conn := dialEvents(t, h)

	resp := h.do(t, http.MethodPut, "/api/profile", map[string]interface{}{"goal": "Gain Muscle"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ev := readEvent(t, conn)
	if ev.Kind != session.EventProfileUpdated || ev.Profile.TDEE != 2635 || ev.RequestID != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
