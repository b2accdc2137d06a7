package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/quizmatch/internal/client"
)

// DialTimeout bounds the client's connection attempt
const DialTimeout = 10 * time.Second

// NewClientCmd creates the player client root command
func NewClientCmd() *cobra.Command {
	var tokenDir string

	cmd := &cobra.Command{
		Use:   "quizmatch-client <host> <port>",
		Short: "Play quizmatch from the terminal",
		Long: `quizmatch-client connects to a quizmatch server, lets you log in,
register or reconnect with a saved session token, and plays the quiz
interactively.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil || port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port %q", args[1])
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			addr := net.JoinHostPort(args[0], args[1])
			return RunClient(cmd.Context(), addr, cmd.InOrStdin(), cmd.OutOrStdout(), tokenDir, logger)
		},
	}

	cmd.Flags().StringVar(&tokenDir, "token-dir", client.DefaultTokenDir(), "Directory for session tokens (env: QUIZMATCH_TOKEN_DIR)")

	return cmd
}

// RunClient connects to addr and plays one session using in and out as the console
func RunClient(ctx context.Context, addr string, in io.Reader, out io.Writer, tokenDir string, logger *slog.Logger) error {
	dialer := &net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}

	c := client.New(conn, client.NewConsole(in, out), client.NewTokenStore(tokenDir), logger, client.DefaultConfig())
	return c.Run(ctx)
}

// ExecuteClient runs the client command
func ExecuteClient() {
	if err := NewClientCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
