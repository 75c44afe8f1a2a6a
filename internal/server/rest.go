// internal/server/rest.go
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nutritrack/internal/session"
)

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid limit %q", raw)
	}
	return n, nil
}

func (s *NutriTrackServer) handleSendMessage(c *gin.Context) {
	var params SendMessageParams
	if err := c.ShouldBindJSON(&params); err != nil {
		writeError(c, badRequest("invalid JSON: %v", err))
		return
	}
	out, err := s.sendMessage(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *NutriTrackServer) handleGetChatHistory(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.chatHistory(ChatHistoryParams{Limit: limit}))
}

func (s *NutriTrackServer) handleGetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.dashboard())
}

func (s *NutriTrackServer) handleGetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Session().Profile())
}

func (s *NutriTrackServer) handleUpdateProfile(c *gin.Context) {
	var u session.ProfileUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		writeError(c, badRequest("invalid JSON: %v", err))
		return
	}
	p, err := s.updateProfile(u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *NutriTrackServer) handleCalculateTarget(c *gin.Context) {
	var params CalculateTargetParams
	if err := c.ShouldBindJSON(&params); err != nil {
		writeError(c, badRequest("invalid JSON: %v", err))
		return
	}
	res, err := s.calculateTarget(params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *NutriTrackServer) handleGetTurns(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	turns, err := s.recentTurns(TurnsParams{Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, turns)
}
