// Package reconcile aligns role membership with pin records.
//
// A run takes one membership snapshot of a role and, per member, either
// creates the missing pin or repairs the stored roleId and status. Runs are
// idempotent. A member that fails is logged and left for the next run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/ids"
	"pinbot/cmd/internal/metrics"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/tier"
	"pinbot/cmd/security/token"
)

const (
	// CodeDigits is the width of generated pin codes.
	CodeDigits = 12
	// codeAttempts bounds regeneration after a pin code collision.
	codeAttempts = 5
	// Source is written into metadata of pins created here and used as performedBy.
	Source = "reconcile"
)

// Member is one holder of a role.
type Member struct {
	ID  string `json:"userId"`
	Tag string `json:"username"`
}

// MemberSource reads guild roles and their members.
type MemberSource interface {
	Roles(ctx context.Context, guildID string) ([]guildconfig.Role, error)
	RoleMembers(ctx context.Context, guildID, roleID string) ([]Member, error)
}

// Target names the role a run reconciles. RoleName is the guild role's name
// and is only displayed; pins are stored under the tier's display name.
type Target struct {
	GuildID  string
	Tier     tier.Tier
	RoleID   string
	RoleName string
	// Trigger labels the run in metrics ("command", "sweep").
	Trigger string
}

// TargetsFor expands a config into one Target per configured tier.
func TargetsFor(cfg guildconfig.ServerConfig, trigger string) []Target {
	out := make([]Target, 0, len(tier.All))
	for _, t := range tier.All {
		ref, ok := cfg.Roles.Get(t)
		if !ok {
			continue
		}
		out = append(out, Target{GuildID: cfg.GuildID, Tier: t, RoleID: ref.ID, RoleName: ref.Name, Trigger: trigger})
	}
	return out
}

// ErrInvalidTarget is returned for a Target without guild, role or tier.
var ErrInvalidTarget = fmt.Errorf("%w: invalid reconcile target", pin.ErrValidation)

// Engine runs reconciliation against a pin store.
type Engine struct {
	pins    pin.Store
	members MemberSource
	gen     func() (string, error)
	auditor pin.Auditor
	now     func() time.Time
	log     *slog.Logger
}

// Option configures Engine.
type Option func(*Engine)

// WithCodeGenerator replaces the pin code generator.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.gen = gen }
}

// WithAuditor records an add entry for every pin the engine creates.
func WithAuditor(a pin.Auditor) Option { return func(e *Engine) { e.auditor = a } }

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(e *Engine) { e.log = log } }

// New constructs an Engine.
func New(pins pin.Store, members MemberSource, opts ...Option) (*Engine, error) {
	if pins == nil || members == nil {
		return nil, pin.OpError{Op: "reconcile.New", Kind: pin.ErrValidation, Msg: "pin store and member source required"}
	}
	e := &Engine{
		pins:    pins,
		members: members,
		gen:     token.NumericGenerator(CodeDigits),
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (t Target) validate() error {
	if t.GuildID == "" || t.RoleID == "" || t.RoleName == "" || !t.Tier.Valid() {
		return ErrInvalidTarget
	}
	return nil
}

// Run reconciles every current member of the target role.
// Per-member failures land in Result.Failures and never stop the batch.
// Cancellation returns the partial result with ctx.Err().
func (e *Engine) Run(ctx context.Context, target Target) (Result, error) {
	res := Result{
		RunID:            ids.NewRunID(),
		Target:           target,
		StartedAt:        e.now(),
		UsersWithoutPins: []Member{},
		Failures:         []Failure{},
	}
	if err := target.validate(); err != nil {
		return res, err
	}

	trigger := target.Trigger
	if trigger == "" {
		trigger = "command"
	}
	metrics.ReconcileRuns.WithLabelValues(trigger).Inc()

	members, err := e.members.RoleMembers(ctx, target.GuildID, target.RoleID)
	if err != nil {
		return res, fmt.Errorf("role members: %w", err)
	}

	log := e.log.With("run_id", res.RunID, "guild_id", target.GuildID, "role", target.RoleName)
	tierLabel := target.Tier.Key()

	for _, m := range members {
		if err := ctx.Err(); err != nil {
			res.FinishedAt = e.now()
			log.Warn("reconcile.cancelled", "processed", res.Processed, "err", err)
			return res, err
		}
		res.Processed++

		outcome, err := e.member(ctx, target, m, &res)
		if err != nil {
			outcome = "failed"
			res.Failures = append(res.Failures, Failure{UserID: m.ID, UserTag: m.Tag, Reason: err.Error()})
			log.Warn("reconcile.member.fail", "user_id", m.ID, "err", err)
		}
		metrics.ReconcileMembers.WithLabelValues(tierLabel, outcome).Inc()
	}

	res.FinishedAt = e.now()
	log.Info("reconcile.run",
		"processed", res.Processed,
		"new", res.NewRecords,
		"updated", res.UpdatedRecords,
		"unchanged", res.NoUpdateNeeded,
		"without_pins", len(res.UsersWithoutPins),
		"failures", len(res.Failures),
	)
	return res, nil
}

// lookup returns the member's pin and whether it belongs to the target tier.
// Pins are matched on the tier parsed from the stored role name, so any
// spelling of the tier counts. A role name that names no tier is claimed by
// the target.
func (e *Engine) lookup(ctx context.Context, target Target, userID string) (pin.Pin, bool, error) {
	p, err := e.pins.FindOne(ctx, pin.Filter{UserID: userID})
	if err != nil {
		if pin.IsNotFound(err) {
			return pin.Pin{}, false, nil
		}
		return pin.Pin{}, false, err
	}
	got, perr := tier.Parse(p.RoleName)
	return p, perr != nil || got == target.Tier, nil
}

func (e *Engine) member(ctx context.Context, target Target, m Member, res *Result) (string, error) {
	existing, ok, err := e.lookup(ctx, target, m.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return e.repair(ctx, target, existing, res)
	}

	// The list reflects state before repair, so it is filled even if creation fails.
	res.UsersWithoutPins = append(res.UsersWithoutPins, m)

	if existing.UserID != "" {
		// userId is unique: a pin on another tier blocks creation until an admin moves it.
		return "", pin.OpError{Op: "reconcile.member", Kind: pin.ErrDuplicateUser, Msg: "pin held for " + existing.RoleName}
	}

	created, err := e.create(ctx, target, m)
	if err != nil {
		return "", err
	}
	res.NewRecords++

	if e.auditor != nil {
		if aerr := e.auditor.Record(ctx, audit.ActionAdd, &created.Code, Source, map[string]any{
			"userId":         created.UserID,
			"userTag":        created.UserTag,
			"roleName":       created.RoleName,
			"roleId":         created.RoleID,
			"expirationDate": created.ExpiresAt,
			"status":         created.Status,
		}); aerr != nil {
			e.log.Error("pin.audit.write.fail", "action", audit.ActionAdd, "pin_id", created.ID, "err", aerr)
			metrics.AuditWriteFailures.WithLabelValues(string(audit.ActionAdd)).Inc()
		}
	}
	return "created", nil
}

func (e *Engine) repair(ctx context.Context, target Target, p pin.Pin, res *Result) (string, error) {
	now := e.now()
	dirty := false
	if name := target.Tier.DisplayName(); p.RoleName != name {
		p.RoleName = name
		dirty = true
	}
	if p.RoleID != target.RoleID {
		p.RoleID = target.RoleID
		dirty = true
	}
	if st := pin.DeriveStatus(p, now); st != p.Status {
		p.Status = st
		dirty = true
	}
	if !dirty {
		res.NoUpdateNeeded++
		return "unchanged", nil
	}

	p.UpdatedAt = now
	if _, err := e.pins.Update(ctx, p); err != nil {
		return "", err
	}
	res.UpdatedRecords++
	return "updated", nil
}

func (e *Engine) create(ctx context.Context, target Target, m Member) (pin.Pin, error) {
	now := e.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return pin.Pin{}, err
	}

	p := pin.Pin{
		ID:        id,
		UserID:    m.ID,
		UserTag:   m.Tag,
		RoleName:  target.Tier.DisplayName(),
		RoleID:    target.RoleID,
		ExpiresAt: target.Tier.ExpiresAt(now),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  pin.Metadata{Source: Source},
	}
	p.Status = pin.DeriveStatus(p, now)

	var lastErr error
	for range codeAttempts {
		code, err := e.gen()
		if err != nil {
			return pin.Pin{}, fmt.Errorf("generate pin: %w", err)
		}
		p.Code = code
		p.Metadata.ContainsLetters = pin.ContainsLetters(code)

		created, err := e.pins.Insert(ctx, p)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, pin.ErrDuplicatePin) {
			return pin.Pin{}, err
		}
		lastErr = err
	}
	return pin.Pin{}, fmt.Errorf("no unique pin after %d attempts: %w", codeAttempts, lastErr)
}

// Missing lists members of the target role without a pin for its tier. It writes nothing.
func (e *Engine) Missing(ctx context.Context, target Target) ([]Member, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	members, err := e.members.RoleMembers(ctx, target.GuildID, target.RoleID)
	if err != nil {
		return nil, fmt.Errorf("role members: %w", err)
	}

	out := []Member{}
	for _, m := range members {
		_, ok, err := e.lookup(ctx, target, m.ID)
		if err != nil {
			return out, err
		}
		if !ok {
			out = append(out, m)
		}
	}
	return out, nil
}
