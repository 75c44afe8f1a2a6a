package session

import (
	"math"

	"nutritrack/internal/models"
)

// Summary is the day's energy balance as shown on the dashboard.
type Summary struct {
	Date            string        `json:"date"`
	Consumed        float64       `json:"consumed"`
	Burned          float64       `json:"burned"`
	Net             float64       `json:"net"`
	Target          int           `json:"target"`
	Remaining       float64       `json:"remaining"`
	Macros          models.Macros `json:"macros"`
	ProgressPercent float64       `json:"progress_percent"`
	FoodCount       int           `json:"food_count"`
	ActivityCount   int           `json:"activity_count"`
}

// Summary computes today's balance. Net intake never goes below zero and
// progress is capped at 100%.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary()
}

func (s *Session) summary() Summary {
	now := s.now()
	food := s.todayFood(now)
	activity := s.todayActivity(now)

	out := Summary{
		Date:          now.Format("2006-01-02"),
		Target:        s.profile.TargetCalories(),
		FoodCount:     len(food),
		ActivityCount: len(activity),
	}
	for _, e := range food {
		out.Macros.Calories += e.Calories
		out.Macros.Protein += e.Protein
		out.Macros.Carbs += e.Carbs
		out.Macros.Fat += e.Fat
	}
	for _, e := range activity {
		out.Burned += e.CaloriesBurned
	}
	out.Consumed = out.Macros.Calories
	out.Net = math.Max(0, out.Consumed-out.Burned)
	out.Remaining = float64(out.Target) - out.Net
	if out.Target > 0 {
		out.ProgressPercent = math.Min(100, out.Net/float64(out.Target)*100)
	}
	return out
}
