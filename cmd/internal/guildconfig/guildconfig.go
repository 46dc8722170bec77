// Package guildconfig stores the per-guild mapping from tiers to server roles.
package guildconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/tier"
)

// RoleRef points at one server role.
type RoleRef struct {
	ID   string `json:"roleId" bson:"roleId" yaml:"roleId"`
	Name string `json:"roleName" bson:"roleName" yaml:"roleName"`
}

// IsZero reports an unset reference.
func (r RoleRef) IsZero() bool { return r.ID == "" && r.Name == "" }

// Roles is the tier map of a ServerConfig.
type Roles struct {
	Special1M       RoleRef `json:"special1m" bson:"special1m" yaml:"special1m"`
	Special3M       RoleRef `json:"special3m" bson:"special3m" yaml:"special3m"`
	Special1Y       RoleRef `json:"special1y" bson:"special1y" yaml:"special1y"`
	SpecialLifetime RoleRef `json:"specialLifetime" bson:"specialLifetime" yaml:"specialLifetime"`
}

func (r *Roles) slot(t tier.Tier) *RoleRef {
	switch t {
	case tier.Special1M:
		return &r.Special1M
	case tier.Special3M:
		return &r.Special3M
	case tier.Special1Y:
		return &r.Special1Y
	case tier.SpecialLifetime:
		return &r.SpecialLifetime
	}
	return nil
}

// Get returns the role configured for t.
func (r Roles) Get(t tier.Tier) (RoleRef, bool) {
	s := r.slot(t)
	if s == nil || s.IsZero() {
		return RoleRef{}, false
	}
	return *s, true
}

// Set replaces the role for t. Unknown tiers are ignored.
func (r *Roles) Set(t tier.Tier, ref RoleRef) {
	if s := r.slot(t); s != nil {
		*s = ref
	}
}

// TierOf returns the tier whose configured role has the given id.
func (r Roles) TierOf(roleID string) (tier.Tier, bool) {
	for _, t := range tier.All {
		if ref, ok := r.Get(t); ok && ref.ID == roleID {
			return t, true
		}
	}
	return 0, false
}

// ServerConfig is the configuration of one guild.
type ServerConfig struct {
	GuildID   string    `json:"serverId" yaml:"serverId"`
	GuildName string    `json:"serverName" yaml:"serverName"`
	Roles     Roles     `json:"roles" yaml:"roles"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Role is a server role as the platform reports it.
type Role struct {
	ID   string
	Name string
}

// Store persists server configs.
type Store interface {
	Get(ctx context.Context, guildID string) (ServerConfig, error)
	// Put creates or replaces the config, keeping CreatedAt of an existing one.
	Put(ctx context.Context, cfg ServerConfig) (ServerConfig, error)
	List(ctx context.Context) ([]ServerConfig, error)
}

var (
	// ErrNotFound wraps pin.ErrNotFound so callers can share one error taxonomy.
	ErrNotFound = fmt.Errorf("server config %w", pin.ErrNotFound)
	// ErrRolesMissing is returned by Setup when tier roles are absent from the guild.
	ErrRolesMissing = fmt.Errorf("%w: tier roles missing", pin.ErrValidation)
	// ErrUnknownRole is returned by Update for names that match no guild role.
	ErrUnknownRole = fmt.Errorf("%w: unknown role", pin.ErrValidation)
)

// MissingRolesError lists the tiers Setup could not find.
type MissingRolesError struct {
	Tiers []tier.Tier
}

func (e MissingRolesError) Error() string {
	names := make([]string, 0, len(e.Tiers))
	for _, t := range e.Tiers {
		names = append(names, t.DisplayName())
	}
	return ErrRolesMissing.Error() + ": " + strings.Join(names, ", ")
}

func (e MissingRolesError) Unwrap() error { return ErrRolesMissing }

// UnknownRolesError lists names given to Update that match no guild role.
type UnknownRolesError struct {
	Names []string
}

func (e UnknownRolesError) Error() string {
	return ErrUnknownRole.Error() + ": " + strings.Join(e.Names, ", ")
}

func (e UnknownRolesError) Unwrap() error { return ErrUnknownRole }

func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pin.StoreError{Op: op, Err: err}
}

// findRole matches name against roles, ignoring case and surrounding space.
func findRole(roles []Role, name string) (Role, bool) {
	want := strings.TrimSpace(name)
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r.Name), want) {
			return r, true
		}
	}
	return Role{}, false
}
