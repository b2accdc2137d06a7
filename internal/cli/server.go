package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/quizmatch/internal/factory"
	"github.com/mcoot/quizmatch/internal/model"
)

// NewServerCmd creates the server root command
func NewServerCmd() *cobra.Command {
	var (
		port int
		mode string
	)

	cmd := &cobra.Command{
		Use:   "quizmatch-server",
		Short: "Multiplayer trivia server",
		Long: `quizmatch-server accepts player connections over TCP, matches queued
players into games of three and runs true/false quiz rounds.

Storage, event publishing and the admin API are configured through
QUIZMATCH_* environment variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			matchMode, err := model.ParseMatchMode(mode)
			if err != nil {
				return err
			}

			cfg, err := factory.ConfigFromEnv(factory.DefaultConfig())
			if err != nil {
				return err
			}
			cfg.Port = port
			cfg.Matchmaking.Mode = matchMode

			logger := NewServerLogger(cmd.OutOrStdout(), cfg.LogLevel)
			slog.SetDefault(logger)

			if err := RunServer(cmd.Context(), cfg, logger); err != nil {
				logger.Error("server failed", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", factory.DefaultPort, "TCP port for player connections")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(model.MatchModeFIFO), "Matchmaking mode: fifo, ranked")

	cmd.AddCommand(newAdminCmd())

	return cmd
}

// NewServerLogger creates the JSON logger used by the server
func NewServerLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// RunServer wires the application and serves until ctx is cancelled or a signal arrives
func RunServer(ctx context.Context, cfg factory.Config, logger *slog.Logger) error {
	app, err := factory.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	var adminLn net.Listener
	if cfg.Admin.Addr != "" {
		adminLn, err = net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on admin address %s: %w", cfg.Admin.Addr, err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, ln, adminLn); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// ExecuteServer runs the server command
func ExecuteServer() {
	if err := NewServerCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
