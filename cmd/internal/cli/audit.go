package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pinbot/cmd/internal/audit"
)

func newAuditCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log inspection",
	}
	cmd.AddCommand(newAuditTailCommand(r))
	return cmd
}

func newAuditTailCommand(r *runner) *cobra.Command {
	var (
		limit  int
		action string
		code   string
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := audit.Query{Pin: code, Limit: limit}
			if action != "" {
				q.Action = audit.Action(action)
				if !q.Action.Valid() {
					return NewExitError(ExitCommandError, fmt.Sprintf("unknown action %q", action))
				}
			}
			if limit <= 0 {
				return NewExitError(ExitCommandError, "--limit must be positive")
			}

			svc, err := r.open(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			entries, err := svc.audit.List(cmd.Context(), q)
			if err != nil {
				return WrapExitError(ExitFailure, "list audit", err)
			}

			return r.printer(cmd).Print(entries, func(w io.Writer) error {
				return writeAuditTable(w, entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	cmd.Flags().StringVar(&action, "action", "", "only this action (add|update|delete|updateExpiry|archive)")
	cmd.Flags().StringVar(&code, "pin", "", "only entries for this pin")
	return cmd
}

func writeAuditTable(w io.Writer, entries []audit.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No audit entries.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tPIN\tBY\tDETAILS")
	for _, e := range entries {
		code := "-"
		if e.Pin != nil {
			code = *e.Pin
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.PerformedAt.UTC().Format(time.RFC3339), e.Action, code, e.PerformedBy, string(e.Details))
	}
	return tw.Flush()
}
