package turn

import (
	"google.golang.org/genai"

	"nutritrack/internal/models"
)

// ResponseSchema is the reply contract handed to the backend.
var ResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"reply": {
			Type:        genai.TypeString,
			Description: "A friendly, conversational response in the requested language. YOU MUST explicitly list the nutritional breakdown (Calories, Protein, Carbs, Fat) in this text so the user reads it directly.",
		},
		"food_entry": {
			Type:        genai.TypeObject,
			Nullable:    genai.Ptr(true),
			Description: "If the user mentions eating food, extract the nutritional data. If not, return null.",
			Properties: map[string]*genai.Schema{
				"name":     {Type: genai.TypeString},
				"calories": {Type: genai.TypeNumber},
				"protein": {
					Type:        genai.TypeNumber,
					Description: "Estimated protein in grams. Make an educated estimate based on ingredients, do not return 0 unless it's water.",
				},
				"carbs": {Type: genai.TypeNumber},
				"fat":   {Type: genai.TypeNumber},
				"meal_type_suggestion": {
					Type:        genai.TypeString,
					Description: "Suggest: Breakfast, Lunch, Dinner, or Snack",
				},
			},
		},
		"activity_entry": {
			Type:        genai.TypeObject,
			Nullable:    genai.Ptr(true),
			Description: "If the user mentions performing a physical activity or exercise, estimate the calories burned. If not, return null.",
			Properties: map[string]*genai.Schema{
				"name":            {Type: genai.TypeString},
				"calories_burned": {Type: genai.TypeNumber},
			},
		},
		"daily_motivation": {
			Type:        genai.TypeString,
			Description: "A personalized, encouraging motivational quote or message based on their goal and progress.",
		},
		"next_meal_suggestion": {
			Type:        genai.TypeString,
			Description: "A specific suggestion for their next meal based on what they have eaten so far and their remaining macros.",
		},
		"food_analysis": {
			Type:        genai.TypeArray,
			Description: "List of analysis for the foods mentioned in this specific message (if any).",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":                  {Type: genai.TypeString},
					"nutritional_highlight": {Type: genai.TypeString, Description: "Brief highlight of key nutrients (e.g., 'High in fiber', 'Rich in Vitamin C')."},
					"health_impact":         {Type: genai.TypeString, Description: "Short explanation of how this food affects the body (e.g., 'Boosts immunity', 'Provides sustained energy')."},
				},
			},
		},
		"suggestion": {
			Type:        genai.TypeString,
			Description: "A short, actionable tip for the immediate future.",
		},
		"sentiment": {
			Type:        genai.TypeString,
			Enum:        []string{string(models.Positive), string(models.Neutral), string(models.Constructive)},
			Description: "The tone of the critique.",
		},
	},
	Required: requiredFields,
}

var requiredFields = []string{"reply", "suggestion", "sentiment", "daily_motivation", "next_meal_suggestion"}
