package bot

import (
	"context"
	"fmt"
	"strings"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/tier"
)

func rolesList(cfg guildconfig.ServerConfig, only map[tier.Tier]string) string {
	var sb strings.Builder
	for _, t := range tier.All {
		if only != nil {
			if _, ok := only[t]; !ok {
				continue
			}
		}
		ref, _ := cfg.Roles.Get(t)
		fmt.Fprintf(&sb, "- %s: %s\n", t.DisplayName(), ref.Name)
	}
	return sb.String()
}

func (b *Bot) serverConfigSetup(ctx context.Context, req Request) (Response, error) {
	roles, err := b.dir.Roles(ctx, req.GuildID)
	if err != nil {
		return Response{}, fmt.Errorf("guild roles: %w", err)
	}
	cfg, err := b.configs.Setup(ctx, req.GuildID, req.GuildName, roles)
	if err != nil {
		b.activity(ctx, req, Embed{Title: bold("Setup Server Config Error"), Description: detail(err), Color: ColorError})
		return Response{}, err
	}

	b.activity(ctx, req, Embed{
		Title:       bold("Server Configured"),
		Description: fmt.Sprintf("**Server:** %s\n**Roles Configured:**\n%s", cfg.GuildName, rolesList(cfg, nil)),
		Color:       ColorSuccess,
	})
	return Response{
		Embeds:    []Embed{successEmbed("Server Configured", fmt.Sprintf("Server configuration completed successfully for %s.", cfg.GuildName))},
		Ephemeral: true,
	}, nil
}

func (b *Bot) serverConfigUpdate(ctx context.Context, req Request) (Response, error) {
	changes := make(map[tier.Tier]string)
	for _, t := range tier.All {
		if v := req.Option(t.Key()); v != "" {
			changes[t] = v
		}
	}
	if len(changes) == 0 {
		return Response{}, pin.OpError{Op: "bot.serverconfig", Kind: pin.ErrMissingSelector, Msg: "Provide at least one role name to update."}
	}

	roles, err := b.dir.Roles(ctx, req.GuildID)
	if err != nil {
		return Response{}, fmt.Errorf("guild roles: %w", err)
	}
	cfg, err := b.configs.Update(ctx, req.GuildID, changes, roles)
	if err != nil {
		b.activity(ctx, req, Embed{Title: bold("Update Server Config Error"), Description: detail(err), Color: ColorError})
		return Response{}, err
	}

	name := cfg.GuildName
	if name == "" {
		name = req.GuildName
	}
	b.activity(ctx, req, Embed{
		Title:       bold("Server Config Updated"),
		Description: fmt.Sprintf("**Server:** %s\n**Roles Updated:**\n%s", name, rolesList(cfg, changes)),
		Color:       ColorSuccess,
	})
	return Response{
		Embeds:    []Embed{successEmbed("Server Config Updated", fmt.Sprintf("Server configuration updated successfully for %s.", name))},
		Ephemeral: true,
	}, nil
}
