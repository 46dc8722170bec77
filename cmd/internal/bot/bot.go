package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/metrics"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/reconcile"
)

// Config holds the tunables of the command surface.
type Config struct {
	LogChannel       string
	FollowUpTimeout  time.Duration
	CommandRate      float64
	CommandBurst     int
	ActivationRoleID string
	ActivatedRoleID  string
	ZenDownloadURL   string
	CppDownloadURL   string
}

// DefaultConfig returns the defaults used when env keys are unset.
func DefaultConfig() Config {
	return Config{
		LogChannel:      "pin-log",
		FollowUpTimeout: 60 * time.Second,
		CommandRate:     1,
		CommandBurst:    5,
		ZenDownloadURL:  "https://example.com",
		CppDownloadURL:  "https://example.com",
	}
}

// Bot dispatches requests to command handlers.
type Bot struct {
	pins    *pin.Service
	engine  *reconcile.Engine
	configs *guildconfig.Service
	dir     Directory

	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	limiter  *userLimiter
	sessions *followUps
}

// Option configures Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(b *Bot) { b.log = log } }

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option { return func(b *Bot) { b.now = now } }

// New constructs a Bot. Zero Config fields take DefaultConfig values.
func New(pins *pin.Service, engine *reconcile.Engine, configs *guildconfig.Service, dir Directory, cfg Config, opts ...Option) (*Bot, error) {
	if pins == nil || engine == nil || configs == nil || dir == nil {
		return nil, errors.New("bot: pins, engine, configs and directory are required")
	}
	def := DefaultConfig()
	if trim(cfg.LogChannel) == "" {
		cfg.LogChannel = def.LogChannel
	}
	if cfg.FollowUpTimeout <= 0 {
		cfg.FollowUpTimeout = def.FollowUpTimeout
	}
	if cfg.ZenDownloadURL == "" {
		cfg.ZenDownloadURL = def.ZenDownloadURL
	}
	if cfg.CppDownloadURL == "" {
		cfg.CppDownloadURL = def.CppDownloadURL
	}

	b := &Bot{
		pins:    pins,
		engine:  engine,
		configs: configs,
		dir:     dir,
		cfg:     cfg,
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.limiter = newUserLimiter(cfg.CommandRate, cfg.CommandBurst)
	b.sessions = newFollowUps(cfg.FollowUpTimeout)
	return b, nil
}

type handlerFunc func(ctx context.Context, req Request) (Response, error)

// Outcome labels for pinbot_commands_total.
const (
	resultOK          = "ok"
	resultDenied      = "denied"
	resultInvalid     = "invalid"
	resultNotFound    = "not_found"
	resultConflict    = "conflict"
	resultError       = "error"
	resultRateLimited = "rate_limited"
	resultUnknown     = "unknown"
)

// Handle runs one request to completion and never returns an error; failures
// become error embeds.
func (b *Bot) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	name := req.Name()

	resp, result := b.dispatch(ctx, req)

	metrics.CommandsTotal.WithLabelValues(name, result).Inc()
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	b.log.Info("bot.command",
		"command", name,
		"guild_id", req.GuildID,
		"user_id", req.User.ID,
		"result", result,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp
}

func (b *Bot) dispatch(ctx context.Context, req Request) (Response, string) {
	if !b.limiter.allow(req.User.ID, b.now()) {
		return Response{
			Embeds:    []Embed{errorEmbed("Slow Down", "You are sending commands too quickly. Please wait a moment and try again.")},
			Ephemeral: true,
		}, resultRateLimited
	}

	h, admin, ok := b.route(req)
	if !ok {
		return Response{Content: "Unknown command!", Ephemeral: true}, resultUnknown
	}
	if admin && !req.IsAdmin {
		return Response{
			Embeds:    []Embed{errorEmbed("Permission Denied", "You are not authorized to use this command!")},
			Ephemeral: true,
		}, resultDenied
	}

	resp, err := h(ctx, req)
	if err != nil {
		return b.failure(req, err)
	}
	return resp, resultOK
}

func (b *Bot) route(req Request) (handlerFunc, bool, bool) {
	if req.Kind == KindComponent {
		return b.routeComponent(req.CustomID)
	}
	switch req.Command {
	case CmdAddPin:
		switch req.Subcommand {
		case SubAdmin:
			return b.addPinAdmin, true, true
		case SubUser:
			return b.addPinUser, false, true
		}
	case CmdUpdateInfo:
		return b.updateInfo, true, true
	case CmdUpdateExpiry:
		return b.updateExpiry, true, true
	case CmdCheckSubscription:
		return b.checkSubscription, true, true
	case CmdDeletePin:
		return b.deletePin, true, true
	case CmdSearchPin:
		return b.searchPin, true, true
	case CmdViewPins:
		return b.viewPins, false, true
	case CmdAuditReport:
		return b.auditReport, true, true
	case CmdServerConfig:
		switch req.Subcommand {
		case SubSetup:
			return b.serverConfigSetup, true, true
		case SubUpdate:
			return b.serverConfigUpdate, true, true
		}
	case CmdDashboard:
		return b.dashboard, true, true
	}
	return nil, false, false
}

// failure maps a handler error to a user-facing embed and a metrics outcome.
// Expected outcomes get specific text; anything else is logged and reported generically.
func (b *Bot) failure(req Request, err error) (Response, string) {
	var (
		e      Embed
		result = resultInvalid
	)
	switch {
	case errors.Is(err, pin.ErrDuplicateUser):
		e, result = errorEmbed("Pin Exists", "This user already has a pin assigned."), resultConflict
	case errors.Is(err, pin.ErrDuplicatePin):
		e, result = errorEmbed("Pin Exists", "That pin code is already assigned to another user."), resultConflict
	case errors.Is(err, pin.ErrInvalidRole):
		e = errorEmbed("Invalid Role", "Invalid role name provided.")
	case errors.Is(err, pin.ErrInvalidDate):
		e = errorEmbed("Invalid Date Format", "The date provided is not in a valid format (YYYY-MM-DD).")
	case errors.Is(err, errLetterPin):
		e = errorEmbed("Invalid Pin", "The pin contains letters. Please use a valid numeric pin.")
	case errors.Is(err, errPinFormat):
		e = errorEmbed("Invalid Pin", "Pin codes must be 8 to 15 digits.")
	case errors.Is(err, errNoTierRole):
		e = errorEmbed("Invalid Role", "You do not have a valid role to add a pin.")
	case errors.Is(err, pin.ErrMissingSelector):
		e = errorEmbed("Missing Arguments", userText(err, "Please provide either a pin or a user tag."))
	case errors.Is(err, guildconfig.ErrRolesMissing):
		e = errorEmbed("Role Missing", "One or more special roles are missing. "+detail(err))
	case errors.Is(err, guildconfig.ErrUnknownRole):
		e = errorEmbed("Unknown Role", detail(err))
	case errors.Is(err, guildconfig.ErrNotFound):
		e, result = errorEmbed("Configuration Missing", "No server configuration found. Run /serverconfig setup first."), resultNotFound
	case errors.Is(err, pin.ErrNotFound):
		e, result = errorEmbed("Not Found", "No matching pin was found."), resultNotFound
	case errors.Is(err, ErrMemberNotFound):
		e, result = errorEmbed("Member Not Found", "No server member matches that user tag."), resultNotFound
	case errors.Is(err, pin.ErrValidation):
		e = errorEmbed("Invalid Input", detail(err))
	case errors.Is(err, context.DeadlineExceeded):
		e, result = errorEmbed("Timed Out", "The request took too long. Please try again."), resultError
		b.log.Warn("bot.command.timeout", "command", req.Name(), "guild_id", req.GuildID, "err", err)
	default:
		e, result = errorEmbed("Error", "An error occurred while processing your request."), resultError
		b.log.Error("bot.command.fail", "command", req.Name(), "guild_id", req.GuildID, "user_id", req.User.ID, "err", err)
	}
	return Response{Embeds: []Embed{e}, Ephemeral: true}, result
}

// userText returns the message of a bot-raised OpError, or fallback.
func userText(err error, fallback string) string {
	var op pin.OpError
	if errors.As(err, &op) && strings.HasPrefix(op.Op, "bot.") && op.Msg != "" {
		return op.Msg
	}
	return fallback
}

// detail is the message of the innermost descriptive error, for validation text.
func detail(err error) string {
	var op pin.OpError
	if errors.As(err, &op) && op.Msg != "" {
		return op.Msg
	}
	var missing guildconfig.MissingRolesError
	if errors.As(err, &missing) {
		names := make([]string, 0, len(missing.Tiers))
		for _, t := range missing.Tiers {
			names = append(names, t.DisplayName())
		}
		return "Missing: " + strings.Join(names, ", ") + "."
	}
	var unknown guildconfig.UnknownRolesError
	if errors.As(err, &unknown) {
		return fmt.Sprintf("No server role named %s.", strings.Join(unknown.Names, ", "))
	}
	return err.Error()
}

// activity posts e to the guild's log channel, stamped with the invoker.
func (b *Bot) activity(ctx context.Context, req Request, e Embed) {
	b.post(ctx, req.GuildID, withPerformer(e, req.User, b.now()))
}

// post sends e to the log channel. A missing channel is not an error.
func (b *Bot) post(ctx context.Context, guildID string, e Embed) {
	if guildID == "" {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}
	err := b.dir.PostActivity(ctx, guildID, b.cfg.LogChannel, e)
	switch {
	case err == nil:
	case errors.Is(err, ErrChannelNotFound):
		b.log.Warn("bot.activity.no_channel", "guild_id", guildID, "channel", b.cfg.LogChannel)
	default:
		b.log.Error("bot.activity.fail", "guild_id", guildID, "channel", b.cfg.LogChannel, "err", err)
	}
}
