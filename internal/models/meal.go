// internal/models/meal.go
package models

import (
	"strings"
)

type MealType string

const (
	Breakfast MealType = "Breakfast"
	Lunch     MealType = "Lunch"
	Dinner    MealType = "Dinner"
	Snack     MealType = "Snack"
)

var mealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// ParseMealType matches s against the known meal tags ignoring case and
// surrounding space. Anything else is a Snack.
func ParseMealType(s string) MealType {
	s = strings.TrimSpace(s)
	for _, mt := range mealTypes {
		if strings.EqualFold(s, string(mt)) {
			return mt
		}
	}
	return Snack
}

type FoodLogEntry struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Calories  float64  `json:"calories"`
	Protein   float64  `json:"protein"`
	Carbs     float64  `json:"carbs"`
	Fat       float64  `json:"fat"`
	Timestamp int64    `json:"timestamp"` // epoch millis
	MealType  MealType `json:"meal_type"`
}

type ActivityLogEntry struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	CaloriesBurned float64 `json:"calories_burned"`
	Timestamp      int64   `json:"timestamp"`
}

type FoodInsight struct {
	FoodName             string `json:"food_name"`
	NutritionalHighlight string `json:"nutritional_highlight"`
	HealthImpact         string `json:"health_impact"`
}

// DailyInsight is the latest snapshot, not a log.
type DailyInsight struct {
	Motivation         string        `json:"motivation"`
	NextMealSuggestion string        `json:"next_meal_suggestion"`
	FoodInsights       []FoodInsight `json:"food_insights"`
}

// Macros is the per-day total of logged food.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}
