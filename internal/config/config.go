// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nutritrack/internal/backend"
	"nutritrack/internal/models"
)

const (
	BackendGemini  = "gemini"
	BackendGateway = "gateway"
)

type Config struct {
	Host string
	Port int

	Backend       string
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	ProxyURL      string
	ProxyAPIKey   string
	GatewayModel  string
	Timeout       time.Duration

	JournalPath string
	Language    models.Language

	LogLevel  string
	LogFormat string
}

// Load reads envFile (if it exists) into the environment and builds a
// Config from it. A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Host:          getEnv("NUTRITRACK_HOST", "0.0.0.0"),
		Backend:       getEnv("NUTRITRACK_BACKEND", BackendGemini),
		GeminiAPIKey:  firstEnv("GEMINI_API_KEY", "API_KEY"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", backend.DefaultGeminiBaseURL),
		GeminiModel:   getEnv("GEMINI_MODEL", backend.DefaultGeminiModel),
		ProxyURL:      getEnv("MCP_PROXY_URL", backend.DefaultProxyURL),
		ProxyAPIKey:   os.Getenv("MCP_PROXY_API_KEY"),
		GatewayModel:  getEnv("OPENROUTER_MODEL", backend.DefaultGatewayModel),
		JournalPath:   lookupEnv("NUTRITRACK_JOURNAL", defaultJournalPath()),
		Language:      models.Language(getEnv("NUTRITRACK_LANGUAGE", string(models.Indonesian))),
		LogLevel:      getEnv("NUTRITRACK_LOG_LEVEL", "info"),
		LogFormat:     getEnv("NUTRITRACK_LOG_FORMAT", "text"),
	}

	port, err := strconv.Atoi(getEnv("NUTRITRACK_PORT", "8011"))
	if err != nil {
		return nil, fmt.Errorf("invalid NUTRITRACK_PORT: %w", err)
	}
	cfg.Port = port

	cfg.Timeout, err = time.ParseDuration(getEnv("NUTRITRACK_TIMEOUT", backend.DefaultTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid NUTRITRACK_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGemini, BackendGateway:
	default:
		return fmt.Errorf("unknown backend %q (expected %s or %s)", c.Backend, BackendGemini, BackendGateway)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if !c.Language.Valid() {
		return fmt.Errorf("unknown language %q (expected id or en)", c.Language)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// NewBackend builds the configured backend client.
func (c *Config) NewBackend() backend.Backend {
	if c.Backend == BackendGateway {
		return backend.NewGatewayClient(c.ProxyURL, c.ProxyAPIKey, c.GatewayModel, c.Timeout)
	}
	return backend.NewGeminiClient(c.GeminiAPIKey, c.GeminiBaseURL, c.GeminiModel, c.Timeout)
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func defaultJournalPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "nutritrack", "journal.db")
}

// lookupEnv is getEnv for settings where an empty value means "off".
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
