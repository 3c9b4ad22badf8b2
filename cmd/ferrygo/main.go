package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kirinyoku/ferry-go/internal/app"
	"github.com/kirinyoku/ferry-go/internal/config"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/spf13/cobra"
)

const programName = "ferrygo"

var globalFlags = struct {
	debug bool
}{}

type cfgKey struct{}

// @title FerryGo API
// @version 1.0
// @description Seat inventory and recurring schedules for ferry voyages.
// @host localhost:8080
// @BasePath /
func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Ferry voyage seat inventory and schedule engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.debug {
			cfg.LogLevel = slog.LevelDebug
		}
		cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(regenerateCommand())
	rootCmd.AddCommand(sweepCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (*config.Config, *slog.Logger) {
	cfg := cmd.Context().Value(cfgKey{}).(*config.Config)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the retirement sweeper and the ticket event consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := setup(cmd)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}

			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("application finished with error: %w", err)
			}
			return nil
		},
	}
}

func regenerateCommand() *cobra.Command {
	var (
		templateID int64
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate the voyages of one schedule template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := setup(cmd)

			from, err := flagDate("start", start)
			if err != nil {
				return err
			}
			to, err := flagDate("end", end)
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}
			defer application.Close()

			n, err := application.Services().Schedule.Regenerate(cmd.Context(), templateID, from, to)
			if err != nil {
				return err
			}
			logger.Info("voyages regenerated", "template_id", templateID, "generated", n)
			return nil
		},
	}

	cmd.Flags().Int64Var(&templateID, "template", 0, "schedule template id")
	cmd.Flags().StringVar(&start, "start", "", "first date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&end, "end", "", "last date, YYYY-MM-DD (default end of the generation horizon)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retirement sweep pass and print its stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := setup(cmd)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}
			defer application.Close()

			st, err := application.Services().Sweep.SweepNow(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(st)
		},
	}
}

// flagDate parses an optional YYYY-MM-DD flag; empty means the zero time.
func flagDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
