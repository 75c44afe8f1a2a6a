package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nutritrack/internal/config"
	"nutritrack/internal/models"
)

var (
	envFile     string
	backendName string
	modelName   string
	timeout     time.Duration
	journalPath string
	noJournal   bool
	language    string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "nutritrack",
	Short: "nutritrack is a conversational calorie and activity tracker",
	Long: "nutritrack logs meals and workouts from free-form chat or meal photos, " +
		"keeps a daily energy balance against a Mifflin-St Jeor target, and serves it over HTTP.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "Path to a .env file (ignored if missing)")
	pf.StringVar(&backendName, "backend", "", "Model backend: gemini or gateway")
	pf.StringVar(&modelName, "model", "", "Model name for the selected backend")
	pf.DurationVar(&timeout, "timeout", 0, "Backend call timeout (e.g. 30s)")
	pf.StringVar(&journalPath, "journal", "", "Path to the SQLite turn journal")
	pf.BoolVar(&noJournal, "no-journal", false, "Disable the turn journal")
	pf.StringVar(&language, "lang", "", "Reply language: id or en")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("model") {
		if cfg.Backend == config.BackendGateway {
			cfg.GatewayModel = modelName
		} else {
			cfg.GeminiModel = modelName
		}
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("journal") {
		cfg.JournalPath = journalPath
	}
	if noJournal {
		cfg.JournalPath = ""
	}
	if flags.Changed("lang") {
		cfg.Language = models.Language(language)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
