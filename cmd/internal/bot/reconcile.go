package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/reconcile"
	"pinbot/cmd/internal/tier"
)

// Reconciliation triggers.
const (
	TriggerCommand = "command"
	TriggerSweep   = "sweep"
)

const timeExpired = "Time expired. Please run the command again if you need to update records."

func (b *Bot) updateInfo(ctx context.Context, req Request) (Response, error) {
	cfg, err := b.configs.Get(ctx, req.GuildID)
	if err != nil {
		return Response{}, err
	}
	checks, err := b.engine.ValidateRoles(ctx, req.GuildID, cfg.Roles)
	if err != nil {
		return Response{}, err
	}

	fields := make([]Field, 0, len(checks))
	for _, c := range checks {
		name, value := c.Field()
		fields = append(fields, Field{Name: name, Value: value})
	}
	b.sessions.open(req.GuildID, req.User.ID, b.now())

	return Response{
		Embeds:    []Embed{successEmbed("Role Validation Results", "Here are the results of the role validation:", fields...)},
		Ephemeral: true,
		FollowUps: []Response{{
			Content:    "Choose an action:",
			Components: []Row{updateActionRow()},
			Ephemeral:  true,
		}},
	}, nil
}

func rolePageID(t tier.Tier, page int) string {
	return fmt.Sprintf("%s%s-%d", customRolePage, t.Key(), page)
}

func (b *Bot) onUpdateButton(ctx context.Context, req Request) (Response, error) {
	now := b.now()
	if !b.sessions.active(req.GuildID, req.User.ID, now) {
		return Response{Content: timeExpired}, nil
	}

	key := strings.TrimPrefix(req.CustomID, customUpdatePrefix)
	var only tier.Tier
	if key != "all" {
		t, err := tier.Parse(key)
		if err != nil {
			return Response{}, errBadCustomID
		}
		only = t
	}

	cfg, err := b.configs.Get(ctx, req.GuildID)
	if err != nil {
		return Response{}, err
	}
	var targets []reconcile.Target
	for _, tg := range reconcile.TargetsFor(cfg, TriggerCommand) {
		if only == 0 || tg.Tier == only {
			targets = append(targets, tg)
		}
	}
	if len(targets) == 0 {
		return Response{}, guildconfig.MissingRolesError{Tiers: []tier.Tier{only}}
	}

	summary := successEmbed("Records Updated", "Reconciliation finished.")
	var pages []Embed
	var rows []Row
	for _, tg := range targets {
		res, err := b.engine.Run(ctx, tg)
		if err != nil {
			return Response{}, err
		}
		summary.Fields = append(summary.Fields, Field{Name: tg.Tier.DisplayName(), Value: res.Summary()})
		b.sessions.remember(req.GuildID, req.User.ID, tg.Tier, res.UsersWithoutPins, now)

		page := reconcile.Paginate(res.UsersWithoutPins, 1)
		pages = append(pages, usersWithoutPinsEmbed(tg.RoleName, page, now))
		if len(targets) == 1 {
			rows = append(rows, pagerRow(page.Page, page.TotalPages, func(p int) string { return rolePageID(tg.Tier, p) }))
		}
	}

	b.activity(ctx, req, summary)

	embeds := append([]Embed{summary}, pages...)
	if len(embeds) > maxEmbedsPerMsg {
		embeds = embeds[:maxEmbedsPerMsg]
	}
	return Response{Content: "Action processed successfully!", Embeds: embeds, Components: rows}, nil
}

func (b *Bot) onRolePage(ctx context.Context, req Request) (Response, error) {
	rest := strings.TrimPrefix(req.CustomID, customRolePage)
	i := strings.LastIndexByte(rest, '-')
	if i < 0 {
		return Response{}, errBadCustomID
	}
	t, err := tier.Parse(rest[:i])
	if err != nil {
		return Response{}, errBadCustomID
	}
	n, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return Response{}, errBadCustomID
	}

	now := b.now()
	users, ok := b.sessions.missing(req.GuildID, req.User.ID, t, now)
	if !ok {
		return Response{Content: timeExpired}, nil
	}
	cfg, err := b.configs.Get(ctx, req.GuildID)
	if err != nil {
		return Response{}, err
	}
	ref, _ := cfg.Roles.Get(t)

	page := reconcile.Paginate(users, n)
	return Response{
		Embeds:     []Embed{usersWithoutPinsEmbed(ref.Name, page, now)},
		Components: []Row{pagerRow(page.Page, page.TotalPages, func(p int) string { return rolePageID(t, p) })},
	}, nil
}

// auditEmbeds builds the audit summary followed by one users-without-pins
// embed per tier that has any.
func (b *Bot) auditEmbeds(ctx context.Context, guildID string) ([]Embed, error) {
	cfg, err := b.configs.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	roles, err := b.dir.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("guild roles: %w", err)
	}
	present := make(map[string]bool, len(roles))
	for _, r := range roles {
		present[r.ID] = true
	}

	now := b.now()
	var (
		lines  []string
		embeds []Embed
	)
	for _, t := range tier.All {
		ref, ok := cfg.Roles.Get(t)
		if !ok || !present[ref.ID] {
			lines = append(lines, fmt.Sprintf("%s: Role not found.", displayRole(ref, t)))
			continue
		}
		users, err := b.engine.Missing(ctx, reconcile.Target{GuildID: guildID, Tier: t, RoleID: ref.ID, RoleName: ref.Name})
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%s: %d members without pins.", ref.Name, len(users)))
		if len(users) > 0 {
			embeds = append(embeds, usersWithoutPinsEmbed(ref.Name, reconcile.Paginate(users, 1), now))
		}
	}

	summary := Embed{
		Title:       bold("Audit Report Summary"),
		Description: italic("Here is the summary of members without pins."),
		Color:       ColorSuccess,
		Fields: []Field{
			{Name: code("Roles Checked"), Value: strconv.Itoa(len(tier.All))},
			{Name: code("Roles Summary"), Value: strings.Join(lines, "\n")},
		},
		Timestamp: now,
	}
	return append([]Embed{summary}, embeds...), nil
}

func displayRole(ref guildconfig.RoleRef, t tier.Tier) string {
	if ref.Name != "" {
		return ref.Name
	}
	return t.DisplayName()
}

func (b *Bot) auditReport(ctx context.Context, req Request) (Response, error) {
	embeds, err := b.auditEmbeds(ctx, req.GuildID)
	if err != nil {
		return Response{}, err
	}
	return batchEmbeds(embeds), nil
}

// Sweep is the scheduled pass over one guild: it reconciles every configured
// tier when repair is set and posts the audit summary to the log channel.
// Failed tiers are reported together; the others still run.
func (b *Bot) Sweep(ctx context.Context, guildID string, repair bool) error {
	cfg, err := b.configs.Get(ctx, guildID)
	if err != nil {
		return err
	}

	var errs []error
	if repair {
		summary := successEmbed("Scheduled Reconciliation", "Hourly role reconciliation finished.")
		for _, tg := range reconcile.TargetsFor(cfg, TriggerSweep) {
			res, err := b.engine.Run(ctx, tg)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", tg.Tier.Key(), err))
				if ctx.Err() != nil {
					break
				}
				continue
			}
			summary.Fields = append(summary.Fields, Field{Name: tg.Tier.DisplayName(), Value: res.Summary()})
		}
		b.post(ctx, guildID, summary)
	}

	embeds, err := b.auditEmbeds(ctx, guildID)
	if err != nil {
		errs = append(errs, err)
	} else {
		b.post(ctx, guildID, embeds[0])
	}
	return errors.Join(errs...)
}
