// Package cli implements pinctl, the maintenance command line over the same
// stores the bot uses.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"pinbot/cmd/internal/app"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// Env supplies what commands need from the process. Zero fields take defaults.
type Env struct {
	Config func() app.Config
	// Open connects the configured backend.
	Open func(ctx context.Context, cfg app.Config, log *slog.Logger) (*app.Backend, error)
	Now  func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Config == nil {
		e.Config = app.LoadConfig
	}
	if e.Open == nil {
		e.Open = app.OpenBackend
	}
	if e.Now == nil {
		e.Now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// NewRootCommand creates the pinctl root command.
func NewRootCommand(env Env) *cobra.Command {
	env = env.withDefaults()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pinctl",
		Short: "pinctl - pin maintenance",
		Long:  "Maintenance commands for pinbot: migrations, expiry reports, archiving and audit inspection.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	r := &runner{opts: opts, env: env}
	cmd.AddCommand(newMigrateCommand(r))
	cmd.AddCommand(newPinsCommand(r))
	cmd.AddCommand(newAuditCommand(r))
	cmd.AddCommand(newConfigCommand(r))
	cmd.AddCommand(newFeedTokenCommand(r))

	return cmd
}

// Execute runs pinctl with args and returns the process exit code.
func Execute(ctx context.Context, env Env, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(env)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
