package guildconfig

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/tier"
)

// Service applies setup and update rules on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(s *Service) { s.log = log } }

// NewService constructs a Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, pin.OpError{Op: "guildconfig.NewService", Kind: pin.ErrValidation, Msg: "store required"}
	}
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Setup locates every tier role by display name and saves the config.
// An existing config has its tier map overwritten.
func (s *Service) Setup(ctx context.Context, guildID, guildName string, roles []Role) (ServerConfig, error) {
	const op = "guildconfig.Setup"
	if strings.TrimSpace(guildID) == "" {
		return ServerConfig{}, pin.OpError{Op: op, Kind: pin.ErrValidation, Msg: "guild id required"}
	}

	var (
		mapped  Roles
		missing []tier.Tier
	)
	for _, t := range tier.All {
		r, ok := findRole(roles, t.DisplayName())
		if !ok {
			missing = append(missing, t)
			continue
		}
		mapped.Set(t, RoleRef{ID: r.ID, Name: r.Name})
	}
	if len(missing) > 0 {
		return ServerConfig{}, MissingRolesError{Tiers: missing}
	}

	now := s.now()
	cfg := ServerConfig{GuildID: guildID, GuildName: guildName, Roles: mapped, CreatedAt: now, UpdatedAt: now}
	saved, err := s.store.Put(ctx, cfg)
	if err != nil {
		return ServerConfig{}, err
	}
	s.log.Info("guildconfig.setup", "guild_id", guildID, "guild_name", guildName)
	return saved, nil
}

// Update points the provided tiers at new roles, resolved by name.
// Tiers absent from changes keep their current role.
func (s *Service) Update(ctx context.Context, guildID string, changes map[tier.Tier]string, roles []Role) (ServerConfig, error) {
	cfg, err := s.store.Get(ctx, guildID)
	if err != nil {
		return ServerConfig{}, err
	}

	var unknown []string
	for _, t := range tier.All {
		name, ok := changes[t]
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		r, found := findRole(roles, name)
		if !found {
			unknown = append(unknown, name)
			continue
		}
		cfg.Roles.Set(t, RoleRef{ID: r.ID, Name: r.Name})
	}
	if len(unknown) > 0 {
		return ServerConfig{}, UnknownRolesError{Names: unknown}
	}

	cfg.UpdatedAt = s.now()
	saved, err := s.store.Put(ctx, cfg)
	if err != nil {
		return ServerConfig{}, err
	}
	s.log.Info("guildconfig.update", "guild_id", guildID, "changed", len(changes))
	return saved, nil
}

// Get returns the config for guildID or ErrNotFound.
func (s *Service) Get(ctx context.Context, guildID string) (ServerConfig, error) {
	return s.store.Get(ctx, guildID)
}

// List returns every stored config.
func (s *Service) List(ctx context.Context) ([]ServerConfig, error) {
	return s.store.List(ctx)
}
