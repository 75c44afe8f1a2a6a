// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"nutritrack/internal/energy"
	"nutritrack/internal/models"
	"nutritrack/internal/session"
	"nutritrack/internal/storage"
)

var errJournalDisabled = errors.New("turn journal is disabled")

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type SendMessageParams struct {
	Text        string `json:"text" description:"What the user says; may be empty when an image is attached"`
	ImageBase64 string `json:"image_base64,omitempty" description:"Base64 JPEG photo of a meal, without the data URI prefix"`
}

type ChatHistoryParams struct {
	Limit int `json:"limit,omitempty" description:"Return only the most recent messages"`
}

type CalculateTargetParams struct {
	Age      *int                  `json:"age,omitempty" description:"Age in years"`
	Sex      *models.Sex           `json:"sex,omitempty" description:"Male or Female"`
	Weight   *float64              `json:"weight,omitempty" description:"Weight in kg"`
	Height   *float64              `json:"height,omitempty" description:"Height in cm"`
	Activity *models.ActivityLevel `json:"activity,omitempty" description:"Sedentary, Light, Moderate, Active or Very Active"`
	Goal     *models.Goal          `json:"goal,omitempty" description:"Lose Weight, Maintain or Gain Muscle"`
}

type TurnsParams struct {
	Limit int `json:"limit,omitempty" description:"Maximum number of turns to return"`
}

type TargetResult struct {
	BMR            float64 `json:"bmr"`
	ActivityFactor float64 `json:"activity_factor"`
	Target         int     `json:"target"`
}

type Dashboard struct {
	Summary     session.Summary           `json:"summary"`
	Insight     *models.DailyInsight      `json:"insight"`
	Profile     models.UserProfile        `json:"profile"`
	FoodLog     []models.FoodLogEntry     `json:"food_log"`
	ActivityLog []models.ActivityLogEntry `json:"activity_log"`
	Busy        bool                      `json:"busy"`
}

// extractParams converts the loosely typed tool arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return badRequest("failed to marshal arguments: %v", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return badRequest("invalid parameters: %v", err)
	}
	return nil
}

func (s *NutriTrackServer) sendMessage(ctx context.Context, params SendMessageParams) (*session.TurnOutcome, error) {
	// A turn that reached the backend is merged even if the caller hangs up.
	return s.controller.Send(context.WithoutCancel(ctx), params.Text, params.ImageBase64)
}

func (s *NutriTrackServer) dashboard() *Dashboard {
	snap := s.controller.Session().Snapshot()
	return &Dashboard{
		Summary:     snap.Summary,
		Insight:     snap.Insight,
		Profile:     snap.Profile,
		FoodLog:     snap.FoodLog,
		ActivityLog: snap.ActivityLog,
		Busy:        s.controller.Busy(),
	}
}

func (s *NutriTrackServer) chatHistory(params ChatHistoryParams) []models.ChatMessage {
	history := s.controller.Session().History()
	if params.Limit > 0 && params.Limit < len(history) {
		history = history[len(history)-params.Limit:]
	}
	return history
}

func (s *NutriTrackServer) updateProfile(u session.ProfileUpdate) (models.UserProfile, error) {
	p, err := s.controller.UpdateProfile(u)
	if err != nil {
		return models.UserProfile{}, &badRequestError{err: err}
	}
	return p, nil
}

// calculateTarget evaluates the energy formula for the current profile with
// params applied on top. The session is not modified.
func (s *NutriTrackServer) calculateTarget(params CalculateTargetParams) (*TargetResult, error) {
	p := s.controller.Session().Profile()
	if params.Age != nil {
		p.Age = *params.Age
	}
	if params.Sex != nil {
		if !params.Sex.Valid() {
			return nil, badRequest("unknown sex %q", *params.Sex)
		}
		p.Sex = *params.Sex
	}
	if params.Weight != nil {
		p.Weight = *params.Weight
	}
	if params.Height != nil {
		p.Height = *params.Height
	}
	if params.Activity != nil {
		if !params.Activity.Valid() {
			return nil, badRequest("unknown activity level %q", *params.Activity)
		}
		p.Activity = *params.Activity
	}
	if params.Goal != nil {
		if !params.Goal.Valid() {
			return nil, badRequest("unknown goal %q", *params.Goal)
		}
		p.Goal = *params.Goal
	}

	return &TargetResult{
		BMR:            energy.BMR(p),
		ActivityFactor: energy.ActivityFactor(p.Activity),
		Target:         energy.CalculateTarget(p),
	}, nil
}

func (s *NutriTrackServer) recentTurns(params TurnsParams) ([]*storage.TurnRecord, error) {
	if s.journal == nil {
		return nil, errJournalDisabled
	}
	turns, err := s.journal.RecentTurns(params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve turns: %w", err)
	}
	return turns, nil
}

func (s *NutriTrackServer) handleSendMessageTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SendMessageParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	out, err := s.sendMessage(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(out)
}

func (s *NutriTrackServer) handleGetDashboardTool(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(s.dashboard())
}

func (s *NutriTrackServer) handleGetChatHistoryTool(_ context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ChatHistoryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	return s.createJSONResponse(s.chatHistory(params))
}

func (s *NutriTrackServer) handleGetProfileTool(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(s.controller.Session().Profile())
}

func (s *NutriTrackServer) handleUpdateProfileTool(_ context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params session.ProfileUpdate
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	p, err := s.updateProfile(params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(p)
}

func (s *NutriTrackServer) handleCalculateTargetTool(_ context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params CalculateTargetParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	res, err := s.calculateTarget(params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(res)
}

func (s *NutriTrackServer) handleGetTurnsTool(_ context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params TurnsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	turns, err := s.recentTurns(params)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(turns)
}

func (s *NutriTrackServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

func (s *NutriTrackServer) registerTools() error {
	s.tools = map[string]toolHandler{
		"send_message":     s.handleSendMessageTool,
		"get_dashboard":    s.handleGetDashboardTool,
		"get_chat_history": s.handleGetChatHistoryTool,
		"get_profile":      s.handleGetProfileTool,
		"update_profile":   s.handleUpdateProfileTool,
		"calculate_target": s.handleCalculateTargetTool,
		"get_turns":        s.handleGetTurnsTool,
	}
	for name := range s.tools {
		s.logger.Debug("registered tool", "name", name)
	}
	return nil
}
