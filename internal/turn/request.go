// Package turn builds backend requests for a user turn and validates the
// structured reply that comes back.
package turn

import (
	"fmt"
	"strings"

	"nutritrack/internal/models"
)

const (
	// HistoryWindow is how many chat messages are replayed as context on
	// text-only turns.
	HistoryWindow = 6

	Temperature      = 0.7
	ImageMIMEType    = "image/jpeg"
	ResponseMIMEType = "application/json"
)

type Input struct {
	Message     string
	ImageBase64 string
	History     []models.ChatMessage
	Profile     models.UserProfile
	FoodLog     []models.FoodLogEntry
}

// BuildRequest assembles the backend request for one turn. Text-only turns
// carry the recent history as a prefix; image turns send the image and the
// raw message only.
func BuildRequest(in Input) *models.TurnRequest {
	req := &models.TurnRequest{
		SystemInstruction: SystemInstruction(in.Profile, in.FoodLog),
		Temperature:       Temperature,
		ResponseMIMEType:  ResponseMIMEType,
		ResponseSchema:    ResponseSchema,
	}

	if in.ImageBase64 != "" {
		req.Parts = []models.Part{
			{InlineImage: &models.InlineImage{MIMEType: ImageMIMEType, Data: in.ImageBase64}},
			{Text: in.Message},
		}
		return req
	}

	req.Parts = []models.Part{{Text: ContextualPrompt(in.History, in.Message)}}
	return req
}

// ContextualPrompt renders the last HistoryWindow messages followed by the
// current input.
func ContextualPrompt(history []models.ChatMessage, message string) string {
	var sb strings.Builder
	sb.WriteString("Previous Conversation:\n")
	sb.WriteString(RenderHistory(history))
	sb.WriteString("\n\nCurrent User Input:\n")
	sb.WriteString(message)
	return sb.String()
}

func RenderHistory(history []models.ChatMessage) string {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "AI"
		if m.Role == models.RoleUser {
			speaker = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, m.Text))
	}
	return strings.Join(lines, "\n")
}

// ConsumedCalories sums the calories of the given food log.
func ConsumedCalories(log []models.FoodLogEntry) float64 {
	var total float64
	for _, e := range log {
		total += e.Calories
	}
	return total
}

func SystemInstruction(p models.UserProfile, todayLog []models.FoodLogEntry) string {
	return fmt.Sprintf(`You are NutriTrack AI, a highly intelligent, empathetic, and professional nutritionist.
User Profile: Age %d, %s, Weight %gkg, Goal: %s.
Daily Status: Consumed %g / %d kcal.
Language: Reply strictly in %s.

Your Task:
1. Analyze the user's input (text or image).
2. If food is detected:
   - Estimate nutrition strictly (Calories, PROTEIN, Carbs, Fat).
   - IMPORTANT: In the 'reply' text, you MUST explicitly state the detailed values (e.g., "Contains approx 500 kcal, 25g Protein, ...") so the user sees the breakdown in the chat.
   - Provide a "food_analysis" for each item explaining its benefits/impact.
   - Ensure PROTEIN is never missed if the food contains it (e.g., meat, eggs, beans, rice).
3. If activity is detected, estimate calories burned.
4. Provide "daily_motivation" to keep them going.
5. Suggest a "next_meal_suggestion" balancing their remaining macros.
6. Maintain a friendly, non-judgmental tone. If they overeat, be kind but constructive.

Output JSON format as defined in the schema.`,
		p.Age, p.Sex, p.Weight, p.Goal,
		ConsumedCalories(todayLog), p.TargetCalories(),
		p.ReplyLanguage())
}
