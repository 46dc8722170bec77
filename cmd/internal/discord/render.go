package discord

import (
	"strconv"
	"strings"
	"time"

	"pinbot/cmd/internal/bot"

	"github.com/bwmarrin/discordgo"
)

// RenderEmbed converts a bot embed to the wire type.
func RenderEmbed(e bot.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

func renderEmbeds(in []bot.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(in))
	for _, e := range in {
		out = append(out, RenderEmbed(e))
	}
	return out
}

var buttonStyles = map[bot.ButtonStyle]discordgo.ButtonStyle{
	bot.StylePrimary:   discordgo.PrimaryButton,
	bot.StyleSecondary: discordgo.SecondaryButton,
	bot.StyleSuccess:   discordgo.SuccessButton,
	bot.StyleDanger:    discordgo.DangerButton,
	bot.StyleLink:      discordgo.LinkButton,
}

func renderRows(rows []bot.Row) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		ar := discordgo.ActionsRow{}
		for _, b := range row {
			btn := discordgo.Button{Label: b.Label, Style: buttonStyles[b.Style], Disabled: b.Disabled}
			if b.Style == bot.StyleLink {
				btn.URL = b.URL
			} else {
				btn.CustomID = b.CustomID
			}
			ar.Components = append(ar.Components, btn)
		}
		out = append(out, ar)
	}
	return out
}

// Commands converts the bot's definitions for bulk registration.
func Commands(defs []bot.Definition) []*discordgo.ApplicationCommand {
	admin := int64(discordgo.PermissionAdministrator)
	dm := false

	out := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, d := range defs {
		cmd := &discordgo.ApplicationCommand{
			Name:         d.Name,
			Description:  d.Description,
			DMPermission: &dm,
			Options:      options(d.Options),
		}
		if d.AdminOnly {
			cmd.DefaultMemberPermissions = &admin
		}
		for _, sub := range d.Subcommands {
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        sub.Name,
				Description: sub.Description,
				Options:     options(sub.Options),
			})
		}
		out = append(out, cmd)
	}
	return out
}

func options(in []bot.OptionDef) []*discordgo.ApplicationCommandOption {
	out := make([]*discordgo.ApplicationCommandOption, 0, len(in))
	for _, o := range in {
		typ := discordgo.ApplicationCommandOptionString
		if o.Kind == bot.OptionInteger {
			typ = discordgo.ApplicationCommandOptionInteger
		}
		out = append(out, &discordgo.ApplicationCommandOption{
			Type:        typ,
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
		})
	}
	return out
}

// ToRequest converts an interaction. ok is false for interaction types the bot ignores.
func ToRequest(i *discordgo.Interaction, guildName string) (bot.Request, bool) {
	req := bot.Request{GuildID: i.GuildID, GuildName: guildName}
	switch {
	case i.Member != nil && i.Member.User != nil:
		req.User = bot.User{ID: i.Member.User.ID, Tag: Tag(i.Member.User)}
		req.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	case i.User != nil:
		req.User = bot.User{ID: i.User.ID, Tag: Tag(i.User)}
	default:
		return bot.Request{}, false
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		req.Kind = bot.KindCommand
		req.Command = data.Name
		req.Options = make(map[string]string)
		opts := data.Options
		if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			req.Subcommand = opts[0].Name
			opts = opts[0].Options
		}
		for _, o := range opts {
			req.Options[o.Name] = optionValue(o)
		}
	case discordgo.InteractionMessageComponent:
		req.Kind = bot.KindComponent
		req.CustomID = i.MessageComponentData().CustomID
	default:
		return bot.Request{}, false
	}
	return req, true
}

func optionValue(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := o.Value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
