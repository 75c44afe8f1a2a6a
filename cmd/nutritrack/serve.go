package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nutritrack/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, MCP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}

		a, err := newApp(cfg, os.Stderr)
		if err != nil {
			return err
		}

		srv, err := server.NewNutriTrackServer(&server.Config{Host: cfg.Host, Port: cfg.Port}, a.controller, a.journal, a.logger)
		if err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to create server: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(ctx)
		}()

		var runErr error
		select {
		case <-ctx.Done():
			a.logger.Info("received shutdown signal")
		case runErr = <-errCh:
			if runErr != nil {
				a.logger.Error("server error", "error", runErr)
			}
		}

		a.logger.Info("shutting down")
		// Stop also closes the journal.
		if err := srv.Stop(); err != nil {
			a.logger.Error("error during shutdown", "error", err)
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Host address")
	serveCmd.Flags().IntVar(&servePort, "port", 8011, "Port for HTTP transport")
}
