package turn

import "nutritrack/internal/models"

// Fallback is the synthetic reply used whenever the backend call fails. It
// goes through the same merge as a real reply.
func Fallback(lang models.Language) *models.TurnResponse {
	resp := &models.TurnResponse{
		Reply:           "Sorry, I encountered a connection error.",
		DailyMotivation: "Keep going!",
		FoodAnalysis:    []models.FoodAnalysis{},
		Sentiment:       models.Neutral,
	}
	if lang == models.Indonesian {
		resp.Reply = "Maaf, saya mengalami kesalahan koneksi."
		resp.DailyMotivation = "Tetap semangat!"
	}
	return resp
}

// Greeting is the first model message of a new session.
func Greeting(lang models.Language) string {
	if lang == models.Indonesian {
		return "Halo! Saya NutriTrack AI. Siap membantu nutrisi dan aktivitasmu."
	}
	return "System Online. I'm NutriTrack AI. Ready to optimize your nutrition and activity."
}
