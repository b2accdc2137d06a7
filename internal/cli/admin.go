package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/quizmatch/internal/api/request"
	"github.com/mcoot/quizmatch/internal/api/response"
)

func newAdminCmd() *cobra.Command {
	cfg := DefaultAdminConfig()
	var admin *AdminClient

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Query a running server through its admin API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			admin = NewAdminClient(cfg.AdminURL, cfg.Token)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfg.AdminURL, "admin-url", cfg.AdminURL, "Admin API URL (env: QUIZMATCH_ADMIN_URL)")
	cmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Admin token (env: QUIZMATCH_ADMIN_TOKEN)")
	cmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	// get builds a read-only subcommand that prints the decoded response
	get := func(use, short string, path func(args []string) string, args cobra.PositionalArgs, result func() any) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, a []string) error {
				v := result()
				if err := admin.Get(path(a), v); err != nil {
					return err
				}
				NewOutput(cfg.Output, cmd.OutOrStdout()).Print(deref(v))
				return nil
			},
		}
	}

	cmd.AddCommand(get("health", "Check server health",
		func([]string) string { return "/api/v1/health" }, cobra.NoArgs,
		func() any { return &response.Health{} }))
	cmd.AddCommand(get("queue", "Show the matchmaking queue",
		func([]string) string { return "/api/v1/queue" }, cobra.NoArgs,
		func() any { return &response.QueueStatus{} }))
	cmd.AddCommand(get("games", "Show game pool status and recent games",
		func([]string) string { return "/api/v1/games" }, cobra.NoArgs,
		func() any { return &response.PoolStatus{} }))
	cmd.AddCommand(get("player <username>", "Show a player's rank and status",
		func(a []string) string { return "/api/v1/players/" + url.PathEscape(a[0]) }, cobra.ExactArgs(1),
		func() any { return &response.Player{} }))

	var limit int
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var events []response.Event
			if err := admin.Get("/api/v1/events?limit="+strconv.Itoa(limit), &events); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(events)
			return nil
		},
	}
	eventsCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")
	cmd.AddCommand(eventsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "create-player <username> <password>",
		Short: "Create a player account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var player response.Player
			body := request.CreatePlayerRequest{Username: args[0], Password: args[1]}
			if err := admin.Post("/api/v1/players", body, &player); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(player)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "adjust-rank <username> <delta>",
		Short: "Add delta to a player's rank",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta %q", args[1])
			}
			var player response.Player
			path := "/api/v1/players/" + url.PathEscape(args[0]) + "/rank"
			if err := admin.Post(path, request.AdjustRankRequest{Delta: delta}, &player); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(player)
			return nil
		},
	})

	return cmd
}

// deref turns the pointer results used for decoding back into values for printing
func deref(v any) any {
	switch p := v.(type) {
	case *response.Health:
		return *p
	case *response.QueueStatus:
		return *p
	case *response.PoolStatus:
		return *p
	case *response.Player:
		return *p
	default:
		return v
	}
}
