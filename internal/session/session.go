// Package session owns the state of one user session and the rules that
// merge a backend reply into it.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"nutritrack/internal/energy"
	"nutritrack/internal/models"
	"nutritrack/internal/turn"
)

const greetingID = "init"

// Session is the single owner of profile, logs, chat history and the latest
// insight. All mutation goes through its methods.
type Session struct {
	mu          sync.RWMutex
	profile     models.UserProfile
	foodLog     []models.FoodLogEntry
	activityLog []models.ActivityLogEntry
	history     []models.ChatMessage
	insight     *models.DailyInsight
	applied     map[string]struct{}
	now         func() time.Time
}

type Option func(*Session)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New starts a session for profile. The energy target is computed up front
// and the history is seeded with a greeting in the profile language.
func New(profile models.UserProfile, opts ...Option) *Session {
	s := &Session{
		profile: profile,
		applied: make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.profile.TDEE = energy.CalculateTarget(s.profile)
	s.history = []models.ChatMessage{{
		ID:   greetingID,
		Role: models.RoleModel,
		Text: turn.Greeting(profile.Language),
	}}
	return s
}

// NewID returns a time-ordered unique id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *Session) Profile() models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Session) History() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatMessage(nil), s.history...)
}

func (s *Session) FoodLog() []models.FoodLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FoodLogEntry(nil), s.foodLog...)
}

func (s *Session) ActivityLog() []models.ActivityLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ActivityLogEntry(nil), s.activityLog...)
}

// Insight returns a copy of the latest insight, or nil before the first one.
func (s *Session) Insight() *models.DailyInsight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyInsight(s.insight)
}

// TodayFoodLog returns the food entries logged on the current local day.
func (s *Session) TodayFoodLog() []models.FoodLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.todayFood(s.now())
}

func (s *Session) todayFood(now time.Time) []models.FoodLogEntry {
	start := beginningOfDay(now)
	end := start.AddDate(0, 0, 1)
	out := make([]models.FoodLogEntry, 0, len(s.foodLog))
	for _, e := range s.foodLog {
		if inDay(e.Timestamp, start, end) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) todayActivity(now time.Time) []models.ActivityLogEntry {
	start := beginningOfDay(now)
	end := start.AddDate(0, 0, 1)
	out := make([]models.ActivityLogEntry, 0, len(s.activityLog))
	for _, e := range s.activityLog {
		if inDay(e.Timestamp, start, end) {
			out = append(out, e)
		}
	}
	return out
}

func beginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func inDay(ms int64, start, end time.Time) bool {
	ts := time.UnixMilli(ms)
	return !ts.Before(start) && ts.Before(end)
}

// AppendChat appends a message and returns it.
func (s *Session) AppendChat(role models.Role, text, image string) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendChat(role, text, image)
}

func (s *Session) appendChat(role models.Role, text, image string) models.ChatMessage {
	msg := models.ChatMessage{ID: NewID(), Role: role, Text: text, Image: image}
	s.history = append(s.history, msg)
	return msg
}

func (s *Session) AppendFood(entry models.FoodLogEntry) models.FoodLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendFood(entry)
}

func (s *Session) appendFood(entry models.FoodLogEntry) models.FoodLogEntry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = s.now().UnixMilli()
	}
	entry.MealType = models.ParseMealType(string(entry.MealType))
	s.foodLog = append(s.foodLog, entry)
	return entry
}

func (s *Session) AppendActivity(entry models.ActivityLogEntry) models.ActivityLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendActivity(entry)
}

func (s *Session) appendActivity(entry models.ActivityLogEntry) models.ActivityLogEntry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = s.now().UnixMilli()
	}
	s.activityLog = append(s.activityLog, entry)
	return entry
}

// ReplaceInsight overwrites the insight snapshot wholesale.
func (s *Session) ReplaceInsight(insight models.DailyInsight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insight = copyInsight(&insight)
}

func copyInsight(in *models.DailyInsight) *models.DailyInsight {
	if in == nil {
		return nil
	}
	out := *in
	out.FoodInsights = append([]models.FoodInsight{}, in.FoodInsights...)
	return &out
}

// ProfileUpdate is a patch: nil fields are left alone.
type ProfileUpdate struct {
	Name                *string               `json:"name,omitempty"`
	Age                 *int                  `json:"age,omitempty"`
	Sex                 *models.Sex           `json:"sex,omitempty"`
	Weight              *float64              `json:"weight,omitempty"`
	Height              *float64              `json:"height,omitempty"`
	Activity            *models.ActivityLevel `json:"activity,omitempty"`
	Goal                *models.Goal          `json:"goal,omitempty"`
	CustomCalorieTarget *int                  `json:"custom_calorie_target,omitempty"`
	ClearCustomTarget   bool                  `json:"clear_custom_target,omitempty"`
	Language            *models.Language      `json:"language,omitempty"`
	Theme               *models.Theme         `json:"theme,omitempty"`
}

// UpdateProfile applies u. The energy target is recomputed only when one of
// its inputs changed; the manual override is stored next to it.
func (s *Session) UpdateProfile(u ProfileUpdate) (models.UserProfile, error) {
	if err := u.validate(); err != nil {
		return models.UserProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.profile
	next := prev
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Age != nil {
		next.Age = *u.Age
	}
	if u.Sex != nil {
		next.Sex = *u.Sex
	}
	if u.Weight != nil {
		next.Weight = *u.Weight
	}
	if u.Height != nil {
		next.Height = *u.Height
	}
	if u.Activity != nil {
		next.Activity = *u.Activity
	}
	if u.Goal != nil {
		next.Goal = *u.Goal
	}
	if u.ClearCustomTarget {
		next.CustomCalorieTarget = nil
	}
	if u.CustomCalorieTarget != nil {
		v := *u.CustomCalorieTarget
		next.CustomCalorieTarget = &v
	}
	if u.Language != nil {
		next.Language = *u.Language
	}
	if u.Theme != nil {
		next.Theme = *u.Theme
	}

	if energy.NeedsRecompute(prev, next) {
		next.TDEE = energy.CalculateTarget(next)
	}
	s.profile = next
	return next, nil
}

func (u ProfileUpdate) validate() error {
	if u.Sex != nil && !u.Sex.Valid() {
		return fmt.Errorf("unknown sex %q", *u.Sex)
	}
	if u.Activity != nil && !u.Activity.Valid() {
		return fmt.Errorf("unknown activity level %q", *u.Activity)
	}
	if u.Goal != nil && !u.Goal.Valid() {
		return fmt.Errorf("unknown goal %q", *u.Goal)
	}
	if u.Language != nil && !u.Language.Valid() {
		return fmt.Errorf("unknown language %q", *u.Language)
	}
	if u.Theme != nil && !u.Theme.Valid() {
		return fmt.Errorf("unknown theme %q", *u.Theme)
	}
	if u.CustomCalorieTarget != nil && *u.CustomCalorieTarget <= 0 {
		return fmt.Errorf("custom calorie target must be > 0")
	}
	return nil
}

// Snapshot is a consistent copy of the whole session.
type Snapshot struct {
	Profile     models.UserProfile        `json:"profile"`
	FoodLog     []models.FoodLogEntry     `json:"food_log"`
	ActivityLog []models.ActivityLogEntry `json:"activity_log"`
	History     []models.ChatMessage      `json:"history"`
	Insight     *models.DailyInsight      `json:"insight"`
	Summary     Summary                   `json:"summary"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Profile:     s.profile,
		FoodLog:     append([]models.FoodLogEntry{}, s.foodLog...),
		ActivityLog: append([]models.ActivityLogEntry{}, s.activityLog...),
		History:     append([]models.ChatMessage{}, s.history...),
		Insight:     copyInsight(s.insight),
		Summary:     s.summary(),
	}
}
