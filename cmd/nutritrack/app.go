package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"nutritrack/internal/config"
	"nutritrack/internal/models"
	"nutritrack/internal/session"
	"nutritrack/internal/storage"
)

// app holds everything a command needs to run turns against one session.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	journal    *storage.SQLiteStorage
	controller *session.Controller
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := cfg.NewLogger(logOut)

	opts := []session.ControllerOption{
		session.WithTimeout(cfg.Timeout),
		session.WithLogger(logger),
	}

	var journal *storage.SQLiteStorage
	if cfg.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		j, err := storage.NewSQLiteStorage(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		journal = j
		opts = append(opts, session.WithJournal(j))
	}

	profile := models.DefaultProfile()
	profile.Language = cfg.Language
	sess := session.New(profile)

	return &app{
		cfg:        cfg,
		logger:     logger,
		journal:    journal,
		controller: session.NewController(sess, cfg.NewBackend(), opts...),
	}, nil
}

func (a *app) Close() error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Close()
}
