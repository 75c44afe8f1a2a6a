package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"nutritrack/internal/backend"
	"nutritrack/internal/models"
	"nutritrack/internal/storage"
	"nutritrack/internal/turn"
)

var (
	ErrBusy         = errors.New("a turn is already in progress")
	ErrEmptyMessage = errors.New("message text is required when no image is attached")
)

// Journal records finished turns.
type Journal interface {
	RecordTurn(rec *storage.TurnRecord) error
}

// Event is published after every merged turn and profile change.
type Event struct {
	Kind      string               `json:"kind"`
	RequestID string               `json:"request_id,omitempty"`
	Summary   Summary              `json:"summary"`
	Insight   *models.DailyInsight `json:"insight"`
	Profile   models.UserProfile   `json:"profile"`
}

const (
	EventTurnMerged     = "session.updated"
	EventProfileUpdated = "profile.updated"
)

// TurnOutcome describes one completed turn. FailureKind is empty when the
// backend reply was used and names the failure when the fallback was.
type TurnOutcome struct {
	RequestID   string               `json:"request_id"`
	Response    *models.TurnResponse `json:"response"`
	Merge       MergeResult          `json:"merge"`
	FailureKind backend.Kind         `json:"failure_kind,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// Controller runs user turns against a session, one at a time.
type Controller struct {
	session *Session
	backend backend.Backend
	timeout time.Duration
	journal Journal
	logger  *slog.Logger

	busy atomic.Bool

	mu        sync.RWMutex
	listeners []func(Event)

	tracer   trace.Tracer
	turns    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

type ControllerOption func(*Controller)

// WithTimeout bounds each backend call. Expiry is a failure like any other.
func WithTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithJournal(j Journal) ControllerOption {
	return func(c *Controller) {
		c.journal = j
	}
}

func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewController(s *Session, b backend.Backend, opts ...ControllerOption) *Controller {
	c := &Controller{
		session: s,
		backend: b,
		timeout: backend.DefaultTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer("nutritrack/session"),
	}
	for _, opt := range opts {
		opt(c)
	}

	meter := otel.Meter("nutritrack/session")
	c.turns, _ = meter.Int64Counter("nutritrack_turns_total",
		metric.WithDescription("Total number of user turns merged"))
	c.failures, _ = meter.Int64Counter("nutritrack_turn_failures_total",
		metric.WithDescription("Total number of turns answered with the fallback reply"))
	c.latency, _ = meter.Float64Histogram("nutritrack_backend_latency_ms",
		metric.WithDescription("Backend call latency"),
		metric.WithUnit("ms"))
	return c
}

func (c *Controller) Session() *Session {
	return c.session
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Subscribe registers fn to receive events. fn runs synchronously on the
// goroutine that produced the event.
func (c *Controller) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) publish(kind, requestID string) {
	snap := c.session.Snapshot()
	ev := Event{
		Kind:      kind,
		RequestID: requestID,
		Summary:   snap.Summary,
		Insight:   snap.Insight,
		Profile:   snap.Profile,
	}
	c.mu.RLock()
	listeners := append([]func(Event){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// UpdateProfile patches the session profile and notifies subscribers.
func (c *Controller) UpdateProfile(u ProfileUpdate) (models.UserProfile, error) {
	p, err := c.session.UpdateProfile(u)
	if err != nil {
		return models.UserProfile{}, err
	}
	c.publish(EventProfileUpdated, "")
	return p, nil
}

// Send runs one user turn. It returns ErrEmptyMessage or ErrBusy without
// touching the session; otherwise the turn always completes and exactly one
// model message is appended, using the fallback reply if the backend fails.
func (c *Controller) Send(ctx context.Context, text, imageBase64 string) (*TurnOutcome, error) {
	if strings.TrimSpace(text) == "" && imageBase64 == "" {
		return nil, ErrEmptyMessage
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	// The turn ends at Apply; journaling and subscribers run after release.
	released := false
	release := func() {
		if !released {
			released = true
			c.busy.Store(false)
		}
	}
	defer release()

	requestID := NewID()
	started := time.Now()

	ctx, span := c.tracer.Start(ctx, "Controller.Send",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.Bool("has_image", imageBase64 != ""),
		))
	defer span.End()

	image := ""
	if imageBase64 != "" {
		image = fmt.Sprintf("data:%s;base64,%s", turn.ImageMIMEType, imageBase64)
	}
	c.session.AppendChat(models.RoleUser, text, image)

	profile := c.session.Profile()
	req := turn.BuildRequest(turn.Input{
		Message:     text,
		ImageBase64: imageBase64,
		History:     c.session.History(),
		Profile:     profile,
		FoodLog:     c.session.TodayFoodLog(),
	})

	resp, warnings, err := c.generate(ctx, req)
	outcome := &TurnOutcome{RequestID: requestID, Warnings: warnings}
	if err != nil {
		outcome.FailureKind = backend.KindOf(err)
		resp = turn.Fallback(profile.Language)

		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome.FailureKind))
		c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(outcome.FailureKind))))
		c.logger.Warn("backend turn failed, using fallback reply",
			"request_id", requestID, "kind", outcome.FailureKind, "error", err)
	}
	for _, w := range warnings {
		c.logger.Warn("dropped part of backend reply", "request_id", requestID, "warning", w)
	}

	outcome.Response = resp
	outcome.Merge = c.session.Apply(requestID, resp)
	release()

	result := "ok"
	if outcome.FailureKind != "" {
		result = "fallback"
	}
	span.SetAttributes(
		attribute.String("outcome", result),
		attribute.Bool("food_logged", outcome.Merge.Food != nil),
		attribute.Bool("activity_logged", outcome.Merge.Activity != nil),
	)
	c.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", result)))
	c.logger.Info("turn merged",
		"request_id", requestID,
		"outcome", result,
		"sentiment", resp.Sentiment,
		"food_logged", outcome.Merge.Food != nil,
		"activity_logged", outcome.Merge.Activity != nil,
		"duration", time.Since(started))

	c.record(started, outcome, err, imageBase64 != "")
	c.publish(EventTurnMerged, requestID)
	return outcome, nil
}

func (c *Controller) generate(ctx context.Context, req *models.TurnRequest) (*models.TurnResponse, []string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.backend.GenerateTurn(callCtx, req)
	c.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, nil, fmt.Errorf("generate turn: %w", err)
	}

	dec, err := turn.Decode(raw)
	if err != nil {
		return nil, nil, &backend.Error{Kind: backend.KindSchema, Err: err}
	}
	return dec.Response, dec.Warnings, nil
}

func (c *Controller) record(started time.Time, outcome *TurnOutcome, turnErr error, hadImage bool) {
	if c.journal == nil {
		return
	}
	rec := &storage.TurnRecord{
		RequestID:      outcome.RequestID,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		Outcome:        "ok",
		FailureKind:    string(outcome.FailureKind),
		Sentiment:      string(outcome.Response.Sentiment),
		FoodLogged:     outcome.Merge.Food != nil,
		ActivityLogged: outcome.Merge.Activity != nil,
		HadImage:       hadImage,
	}
	if turnErr != nil {
		rec.Outcome = "fallback"
		rec.Error = turnErr.Error()
	}
	if err := c.journal.RecordTurn(rec); err != nil {
		c.logger.Error("failed to journal turn", "request_id", outcome.RequestID, "error", err)
	}
}
