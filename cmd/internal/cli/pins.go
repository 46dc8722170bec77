package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/tier"
)

func newPinsCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pins",
		Short: "Pin maintenance",
	}
	cmd.AddCommand(newExpiringCommand(r))
	cmd.AddCommand(newArchiveCommand(r))
	cmd.AddCommand(newFlagLettersCommand(r))
	cmd.AddCommand(newBackfillCommand(r))
	return cmd
}

func newExpiringCommand(r *runner) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List pins expiring within N days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return NewExitError(ExitCommandError, "--days must be positive")
			}
			svc, err := r.open(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			pins, err := svc.pins.ExpiringWithin(cmd.Context(), time.Duration(days)*24*time.Hour)
			if err != nil {
				return WrapExitError(ExitFailure, "list expiring", err)
			}
			sort.Slice(pins, func(i, j int) bool { return pins[i].ExpiresAt.Before(pins[j].ExpiresAt) })

			now := r.env.Now()
			return r.printer(cmd).Print(pins, func(w io.Writer) error {
				if len(pins) == 0 {
					_, err := fmt.Fprintf(w, "No pins expire in the next %d days.\n", days)
					return err
				}
				return writePinTable(w, pins, now)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "look-ahead window in days")
	return cmd
}

// ArchiveResult reports a `pins archive` run.
type ArchiveResult struct {
	Archived int      `json:"archived"`
	Codes    []string `json:"codes"`
}

func newArchiveCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Move expired pins to the archive and notify their owners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := r.open(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			moved, archiveErr := svc.pins.ArchiveExpired(cmd.Context(), PerformedBy)
			res := ArchiveResult{Archived: len(moved), Codes: make([]string, 0, len(moved))}
			for _, p := range moved {
				res.Codes = append(res.Codes, p.Code)
			}

			if err := r.printer(cmd).Print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Archived %d pin(s).\n", res.Archived)
				return err
			}); err != nil {
				return err
			}
			if archiveErr != nil {
				return WrapExitError(ExitFailure, "archive", archiveErr)
			}
			return nil
		},
	}
}

func newFlagLettersCommand(r *runner) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "flag-letters",
		Short: "Mark pins whose code contains letters",
		Long: `Mark metadata.containsLetters on every pin whose code has a letter and
report the counts per role. --log-file also writes the affected pins to a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := r.open(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			rep, err := svc.pins.FlagLettered(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "flag letters", err)
			}

			if logFile != "" {
				if err := writeLetterLog(logFile, rep, r.env.Now()); err != nil {
					return WrapExitError(ExitFailure, "write log file", err)
				}
				r.printer(cmd).Logf("wrote %s", logFile)
			}

			return r.printer(cmd).Print(rep, func(w io.Writer) error {
				return writeLetterSummary(w, rep)
			})
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "also write the affected pins to this file")
	return cmd
}

// BackfillResult reports a `pins backfill` run.
type BackfillResult struct {
	Changed int `json:"changed"`
}

func newBackfillCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Fill defaults into legacy pin records and refresh their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := r.open(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			n, err := svc.pins.Backfill(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "backfill", err)
			}
			res := BackfillResult{Changed: n}
			return r.printer(cmd).Print(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated %d record(s).\n", n)
				return err
			})
		},
	}
}

func writePinTable(w io.Writer, pins []pin.Pin, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PIN\tUSER\tROLE\tEXPIRES\tREMAINING")
	for _, p := range pins {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Code, p.UserTag, p.RoleName,
			p.ExpiresAt.UTC().Format(pin.DateLayout),
			tier.FormatRemaining(p.ExpiresAt, now),
		)
	}
	return tw.Flush()
}

func writeLetterSummary(w io.Writer, rep pin.LetterReport) error {
	if _, err := fmt.Fprintf(w, "Scanned %d pin(s); %d contain letters, %d newly marked.\n",
		rep.Scanned, rep.WithLetters, rep.NewlyMarked); err != nil {
		return err
	}
	roles := make([]string, 0, len(rep.ByRole))
	for role := range rep.ByRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		if _, err := fmt.Fprintf(w, "  %s: %d\n", role, rep.ByRole[role]); err != nil {
			return err
		}
	}
	return nil
}

func writeLetterLog(path string, rep pin.LetterReport, now time.Time) error {
	f, err := os.Create(path) // #nosec G304 -- operator-supplied path.
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "Pins with letters, %s\n\n", now.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := writeLetterSummary(f, rep); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return err
	}
	if err := writePinTable(f, rep.Pins, now); err != nil {
		return err
	}
	return f.Close()
}
