// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"nutritrack/internal/session"
	"nutritrack/internal/storage"
)

type Config struct {
	Host string
	Port int
}

type NutriTrackServer struct {
	info       protocol.Implementation
	httpServer *http.Server
	router     *gin.Engine
	controller *session.Controller
	journal    *storage.SQLiteStorage
	hub        *RealtimeHub
	tools      map[string]toolHandler
	logger     *slog.Logger
	config     *Config
}

// NewNutriTrackServer wires the HTTP surface around ctrl. journal may be nil,
// in which case turn history endpoints report that journaling is disabled.
func NewNutriTrackServer(cfg *Config, ctrl *session.Controller, journal *storage.SQLiteStorage, logger *slog.Logger) (*NutriTrackServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &NutriTrackServer{
		info:       protocol.Implementation{Name: "nutritrack", Version: Version},
		controller: ctrl,
		journal:    journal,
		hub:        NewRealtimeHub(logger),
		logger:     logger,
		config:     cfg,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	ctrl.Subscribe(s.hub.BroadcastEvent)

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Version is reported on /health and by the version command.
const Version = "1.0.0"

func (s *NutriTrackServer) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsHeaders())

	r.GET("/health", s.handleHealth)
	r.POST("/mcp", s.handleMCP)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/chat", s.handleSendMessage)
		api.GET("/chat", s.handleGetChatHistory)
		api.GET("/dashboard", s.handleGetDashboard)
		api.GET("/profile", s.handleGetProfile)
		api.PUT("/profile", s.handleUpdateProfile)
		api.POST("/target", s.handleCalculateTarget)
		api.GET("/turns", s.handleGetTurns)
	}

	return r
}

// Handler exposes the router, mainly for tests.
func (s *NutriTrackServer) Handler() http.Handler {
	return s.router
}

// Clients reports how many websocket dashboards are connected.
func (s *NutriTrackServer) Clients() int {
	return s.hub.Clients()
}

func (s *NutriTrackServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HealthStatus is served on /health.
type HealthStatus struct {
	Status  string                  `json:"status"`
	Server  protocol.Implementation `json:"server"`
	Tools   int                     `json:"tools"`
	Clients int                     `json:"clients"`
}

func (s *NutriTrackServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{
		Status:  "ok",
		Server:  s.info,
		Tools:   len(s.tools),
		Clients: s.hub.Clients(),
	})
}

func (s *NutriTrackServer) handleMCP(c *gin.Context) {
	var request protocol.CallToolRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown tool: %s", request.Name)})
		return
	}

	result, err := handler(c.Request.Context(), &request)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *NutriTrackServer) Start(ctx context.Context) error {
	s.logger.Info("starting nutritrack server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *NutriTrackServer) Stop() error {
	var shutdownErr error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	s.hub.CloseAll()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}

// badRequestError marks caller mistakes.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(format string, args ...interface{}) error {
	return &badRequestError{err: fmt.Errorf(format, args...)}
}

func statusFor(err error) int {
	var bre *badRequestError
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyMessage), errors.As(err, &bre):
		return http.StatusBadRequest
	case errors.Is(err, errJournalDisabled):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
