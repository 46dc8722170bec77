package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/tier"
)

func newConfigCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Server configuration",
	}
	cmd.AddCommand(newConfigShowCommand(r))
	return cmd
}

func newConfigShowCommand(r *runner) *cobra.Command {
	var guildID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the tier roles configured for a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if guildID == "" {
				return NewExitError(ExitCommandError, "--guild is required")
			}
			svc, err := r.open(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			cfg, err := svc.configs.Get(cmd.Context(), guildID)
			if errors.Is(err, guildconfig.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("no configuration for server %s", guildID))
			}
			if err != nil {
				return WrapExitError(ExitFailure, "read config", err)
			}

			return r.printer(cmd).Print(cfg, func(w io.Writer) error {
				return writeServerConfig(w, cfg)
			})
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "server id")
	return cmd
}

func writeServerConfig(w io.Writer, cfg guildconfig.ServerConfig) error {
	if _, err := fmt.Fprintf(w, "%s (%s)\n", cfg.GuildName, cfg.GuildID); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tROLE\tID")
	for _, t := range tier.All {
		ref, ok := cfg.Roles.Get(t)
		if !ok {
			fmt.Fprintf(tw, "%s\t-\t-\n", t.Key())
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Key(), ref.Name, ref.ID)
	}
	return tw.Flush()
}
