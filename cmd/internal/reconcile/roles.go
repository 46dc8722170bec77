package reconcile

import (
	"context"
	"fmt"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/tier"
)

// RoleCheck is the validation outcome for one configured tier role.
type RoleCheck struct {
	Tier    tier.Tier
	Role    guildconfig.RoleRef
	Found   bool
	Members int
}

// Field renders the check as an embed field name and value.
func (c RoleCheck) Field() (string, string) {
	if !c.Found {
		return "Role not found", fmt.Sprintf("%s (ID: %s)", c.Role.Name, c.Role.ID)
	}
	return "Role found", fmt.Sprintf("%s (ID: %s) with %d members.", c.Role.Name, c.Role.ID, c.Members)
}

// ValidateRoles checks that every configured tier role still exists and counts its members.
func (e *Engine) ValidateRoles(ctx context.Context, guildID string, roles guildconfig.Roles) ([]RoleCheck, error) {
	present, err := e.members.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("guild roles: %w", err)
	}
	byID := make(map[string]bool, len(present))
	for _, r := range present {
		byID[r.ID] = true
	}

	out := make([]RoleCheck, 0, len(tier.All))
	for _, t := range tier.All {
		ref, _ := roles.Get(t)
		c := RoleCheck{Tier: t, Role: ref, Found: ref.ID != "" && byID[ref.ID]}
		if c.Found {
			members, err := e.members.RoleMembers(ctx, guildID, ref.ID)
			if err != nil {
				return nil, fmt.Errorf("role members: %w", err)
			}
			c.Members = len(members)
		}
		out = append(out, c)
	}
	return out, nil
}
