package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"pinbot/cmd/internal/app"
	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/notify"
	"pinbot/cmd/internal/pin"
)

// PerformedBy is the audit actor of pinctl changes.
const PerformedBy = "pinctl"

type runner struct {
	opts *RootOptions
	env  Env
}

func (r *runner) printer(cmd *cobra.Command) *Printer {
	return &Printer{
		Format:  r.opts.Format,
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		Verbose: r.opts.Verbose,
	}
}

// logger writes to stderr only in verbose mode.
func (r *runner) logger(cmd *cobra.Command) *slog.Logger {
	if !r.opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(app.NewTextHandler(cmd.ErrOrStderr(), slog.LevelDebug))
}

// services is the slice of the runtime a maintenance command works against.
type services struct {
	backend *app.Backend
	log     *slog.Logger
	audit   *audit.Log
	pins    *pin.Service
	configs *guildconfig.Service
}

// open connects the backend and builds services over it. The caller closes
// the returned backend.
func (r *runner) open(ctx context.Context, cmd *cobra.Command, mutate func(*app.Config)) (*services, error) {
	cfg := r.env.Config()
	// Schema changes belong to `pinctl migrate`.
	cfg.MigrateOnStart = false
	if mutate != nil {
		mutate(&cfg)
	}
	log := r.logger(cmd)

	b, err := r.env.Open(ctx, cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}

	auditLog := audit.NewLog(b.Audit, audit.WithLogger(log), audit.WithClock(r.env.Now))
	pins, err := pin.NewService(b.Pins,
		pin.WithAuditor(auditLog),
		pin.WithArchiveNotifier(notify.NewQueue(b.Notifications, log)),
		pin.WithClock(r.env.Now),
		pin.WithLogger(log),
	)
	if err != nil {
		_ = b.Close(context.Background())
		return nil, WrapExitError(ExitCommandError, "pin service", err)
	}
	configs, err := guildconfig.NewService(b.Configs, guildconfig.WithLogger(log))
	if err != nil {
		_ = b.Close(context.Background())
		return nil, WrapExitError(ExitCommandError, "config service", err)
	}

	return &services{backend: b, log: log, audit: auditLog, pins: pins, configs: configs}, nil
}

func (s *services) close() {
	_ = s.backend.Close(context.Background())
}
