// internal/models/turn.go
package models

import "google.golang.org/genai"

type Sentiment string

const (
	Positive     Sentiment = "positive"
	Neutral      Sentiment = "neutral"
	Constructive Sentiment = "constructive"
)

func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Neutral, Constructive:
		return true
	}
	return false
}

// Part is one piece of user content sent to the backend. Exactly one of
// Text or InlineImage is set.
type Part struct {
	Text        string       `json:"text,omitempty"`
	InlineImage *InlineImage `json:"inline_image,omitempty"`
}

type InlineImage struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type TurnRequest struct {
	SystemInstruction string        `json:"system_instruction"`
	Parts             []Part        `json:"parts"`
	Temperature       float64       `json:"temperature"`
	ResponseMIMEType  string        `json:"response_mime_type"`
	ResponseSchema    *genai.Schema `json:"response_schema"`
}

type FoodEntry struct {
	Name               string  `json:"name"`
	Calories           float64 `json:"calories"`
	Protein            float64 `json:"protein"`
	Carbs              float64 `json:"carbs"`
	Fat                float64 `json:"fat"`
	MealTypeSuggestion string  `json:"meal_type_suggestion"`
}

type ActivityEntry struct {
	Name           string  `json:"name"`
	CaloriesBurned float64 `json:"calories_burned"`
}

type FoodAnalysis struct {
	Name                 string `json:"name"`
	NutritionalHighlight string `json:"nutritional_highlight"`
	HealthImpact         string `json:"health_impact"`
}

// TurnResponse is the structured reply for one user turn.
type TurnResponse struct {
	Reply              string         `json:"reply"`
	FoodEntry          *FoodEntry     `json:"food_entry"`
	ActivityEntry      *ActivityEntry `json:"activity_entry"`
	DailyMotivation    string         `json:"daily_motivation"`
	NextMealSuggestion string         `json:"next_meal_suggestion"`
	FoodAnalysis       []FoodAnalysis `json:"food_analysis"`
	Suggestion         string         `json:"suggestion"`
	Sentiment          Sentiment      `json:"sentiment"`
}
