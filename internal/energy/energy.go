// Package energy computes the daily energy target from a profile using the
// Mifflin-St Jeor equation.
package energy

import (
	"math"

	"nutritrack/internal/models"
)

var activityFactors = map[models.ActivityLevel]float64{
	models.Sedentary:  1.20,
	models.Light:      1.375,
	models.Moderate:   1.55,
	models.Active:     1.725,
	models.VeryActive: 1.90,
}

var goalAdjustments = map[models.Goal]int{
	models.LoseWeight: -500,
	models.Maintain:   0,
	models.GainMuscle: 300,
}

// BMR returns the basal metabolic rate in kcal.
func BMR(p models.UserProfile) float64 {
	bmr := 10*p.Weight + 6.25*p.Height - 5*float64(p.Age)
	if p.Sex == models.Male {
		return bmr + 5
	}
	return bmr - 161
}

// ActivityFactor returns the multiplier for an activity tier. Unknown tiers
// are treated as sedentary.
func ActivityFactor(level models.ActivityLevel) float64 {
	if f, ok := activityFactors[level]; ok {
		return f
	}
	return activityFactors[models.Sedentary]
}

// CalculateTarget returns the daily kcal target. The result is not clamped:
// pathological inputs can produce zero or negative targets.
func CalculateTarget(p models.UserProfile) int {
	tdee := int(math.Floor(BMR(p)*ActivityFactor(p.Activity) + 0.5))
	return tdee + goalAdjustments[p.Goal]
}

// NeedsRecompute reports whether any input of CalculateTarget differs
// between the two profiles.
func NeedsRecompute(prev, next models.UserProfile) bool {
	return prev.Weight != next.Weight ||
		prev.Height != next.Height ||
		prev.Age != next.Age ||
		prev.Sex != next.Sex ||
		prev.Activity != next.Activity ||
		prev.Goal != next.Goal
}
