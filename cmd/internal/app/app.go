// Package app wires the pinbot runtime: config, logging, storage, HTTP routes,
// the Discord gateway and scheduled jobs.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/bot"
	"pinbot/cmd/internal/discord"
	"pinbot/cmd/internal/feed"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/metrics"
	"pinbot/cmd/internal/notify"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/reconcile"
	"pinbot/cmd/internal/schedule"
	"pinbot/cmd/security/secret"
)

var (
	_ bot.Directory          = (*discord.Directory)(nil)
	_ reconcile.MemberSource = (*discord.Directory)(nil)
	_ notify.Sender          = (*discord.Directory)(nil)
	_ discord.Handler        = (*bot.Bot)(nil)
)

// App is the pinbot runtime.
type App struct {
	cfg Config
	log Logger

	backend *Backend

	audit   *audit.Log
	pins    *pin.Service
	configs *guildconfig.Service
	feed    *feed.Gateway

	// Nil when DISCORD_TOKEN is unset; the HTTP surface and maintenance jobs still run.
	discord *discord.Client
	bot     *bot.Bot

	runner *schedule.Runner
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	metrics.Init()

	hashCfg, err := secret.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, hashCfg); err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := wire(cfg, log, backend, hashCfg)
	if err != nil {
		_ = backend.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func wire(cfg Config, log Logger, backend *Backend, hashCfg secret.Config) (*App, error) {
	hub := feed.NewHub(log)
	auditLog := audit.NewLog(backend.Audit, audit.WithPublisher(hub), audit.WithLogger(log))
	queue := notify.NewQueue(backend.Notifications, log)

	pins, err := pin.NewService(backend.Pins,
		pin.WithAuditor(auditLog),
		pin.WithArchiveNotifier(queue),
		pin.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	configs, err := guildconfig.NewService(backend.Configs, guildconfig.WithLogger(log))
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		backend: backend,
		audit:   auditLog,
		pins:    pins,
		configs: configs,
		feed:    feed.NewGateway(log, hub, auditLog, hashCfg, cfg.FeedConfig()),
	}

	jobs := []schedule.Job{}
	if cfg.ArchiveEnabled {
		jobs = append(jobs, schedule.ArchiveJob(cfg.ArchiveInterval, pins, log))
	}

	if cfg.DiscordToken == "" {
		log.Info("discord.disabled")
	} else {
		session, err := discord.NewSession(cfg.DiscordToken)
		if err != nil {
			return nil, err
		}
		dir := discord.NewDirectory(session, log)

		engine, err := reconcile.New(backend.Pins, dir,
			reconcile.WithAuditor(auditLog),
			reconcile.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		b, err := bot.New(pins, engine, configs, dir, cfg.BotConfig(), bot.WithLogger(log))
		if err != nil {
			return nil, err
		}

		a.bot = b
		a.discord = discord.NewClient(session, b, log, cfg.DiscordConfig())
		jobs = append(jobs,
			schedule.SweepJob(cfg.SweepInterval, configs, b, cfg.SweepRepair, log),
			schedule.NotifyJob(cfg.NotifyInterval, notify.NewDispatcher(backend.Notifications, dir, notify.WithLogger(log)), log),
		)
	}

	a.runner = schedule.NewRunner(log, jobs...)
	return a, nil
}

// Handler returns the HTTP surface with middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backend, a.feed)
	return WithRequestLogging(mux, a.log)
}

// Run starts the HTTP server, the scheduler and the Discord gateway and
// blocks until context cancellation or a fatal error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"store", a.backend.Kind,
		"discord", a.discord != nil,
		"feed", a.feed.Enabled(),
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.runner.Start(runCtx)

	discordDone := make(chan struct{})
	go func() {
		defer close(discordDone)
		if a.discord == nil {
			return
		}
		if err := a.discord.Run(runCtx); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		runErr = errors.Join(runErr, err)
	}
	a.runner.Wait()
	<-discordDone

	if err := a.backend.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return runErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
