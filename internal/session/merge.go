package session

import (
	"strings"

	"nutritrack/internal/models"
)

const (
	DefaultMotivation = "Stay consistent!"
	DefaultNextMeal   = "Healthy balanced meal."
)

type effect string

const (
	effectReply    effect = "reply"
	effectInsight  effect = "insight"
	effectFood     effect = "food"
	effectActivity effect = "activity"
)

// MergeResult reports what Apply changed. Nil fields were not applied.
type MergeResult struct {
	Reply    *models.ChatMessage      `json:"reply,omitempty"`
	Insight  *models.DailyInsight     `json:"insight,omitempty"`
	Food     *models.FoodLogEntry     `json:"food,omitempty"`
	Activity *models.ActivityLogEntry `json:"activity,omitempty"`
}

// Apply merges resp into the session. The four effects are independent and
// each is applied at most once per requestID, so replaying a request is a
// no-op.
func (s *Session) Apply(requestID string, resp *models.TurnResponse) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	if resp == nil {
		return res
	}

	if s.claim(requestID, effectReply) {
		msg := s.appendChat(models.RoleModel, resp.Reply, "")
		res.Reply = &msg
	}

	if (resp.DailyMotivation != "" || resp.NextMealSuggestion != "") && s.claim(requestID, effectInsight) {
		s.insight = insightFrom(resp)
		res.Insight = copyInsight(s.insight)
	}

	if resp.FoodEntry != nil && s.claim(requestID, effectFood) {
		fe := resp.FoodEntry
		entry := s.appendFood(models.FoodLogEntry{
			Name:     fe.Name,
			Calories: fe.Calories,
			Protein:  fe.Protein,
			Carbs:    fe.Carbs,
			Fat:      fe.Fat,
			MealType: models.ParseMealType(fe.MealTypeSuggestion),
		})
		res.Food = &entry
	}

	if resp.ActivityEntry != nil && s.claim(requestID, effectActivity) {
		entry := s.appendActivity(models.ActivityLogEntry{
			Name:           resp.ActivityEntry.Name,
			CaloriesBurned: resp.ActivityEntry.CaloriesBurned,
		})
		res.Activity = &entry
	}

	return res
}

// claim marks effect as applied for requestID and reports whether it was
// not applied before. An empty requestID is never deduplicated.
func (s *Session) claim(requestID string, e effect) bool {
	if requestID == "" {
		return true
	}
	key := requestID + "/" + string(e)
	if _, done := s.applied[key]; done {
		return false
	}
	s.applied[key] = struct{}{}
	return true
}

func insightFrom(resp *models.TurnResponse) *models.DailyInsight {
	insight := &models.DailyInsight{
		Motivation:         resp.DailyMotivation,
		NextMealSuggestion: resp.NextMealSuggestion,
		FoodInsights:       make([]models.FoodInsight, 0, len(resp.FoodAnalysis)),
	}
	if insight.Motivation == "" {
		insight.Motivation = DefaultMotivation
	}
	if insight.NextMealSuggestion == "" {
		insight.NextMealSuggestion = DefaultNextMeal
	}
	for _, fa := range resp.FoodAnalysis {
		if strings.TrimSpace(fa.Name) == "" {
			continue
		}
		insight.FoodInsights = append(insight.FoodInsights, models.FoodInsight{
			FoodName:             fa.Name,
			NutritionalHighlight: fa.NutritionalHighlight,
			HealthImpact:         fa.HealthImpact,
		})
	}
	return insight
}
