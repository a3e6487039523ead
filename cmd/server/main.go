// Evening ritual command server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/evening-ritual/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what PersistentPreRunE prepares for every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "evening-server",
		Short:         "Serve the evening ritual state machine over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Delete every stored evening",
			RunE: func(cmd *cobra.Command, _ []string) error {
				n, err := a.reset(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("store %s cleared\n", n)
				return nil
			},
		},
	)
	return root
}

func (a *app) load() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := cfg.SlogLevel()

	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(a.logger)
	return nil
}
