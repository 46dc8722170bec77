package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"pinbot/cmd/internal/bot"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/reconcile"

	"github.com/bwmarrin/discordgo"
)

const (
	// memberPageSize is the REST maximum for list guild members.
	memberPageSize = 1000
	searchLimit    = 100
	channelTTL     = 5 * time.Minute
)

// Directory implements bot.Directory and notify.Sender over the REST API.
// The REST calls do not take a context; ctx is honoured between pages.
type Directory struct {
	api API
	log *slog.Logger
	now func() time.Time

	mu       sync.Mutex
	channels map[string]cachedChannel // guildID + "/" + name
}

type cachedChannel struct {
	id      string
	expires time.Time
}

// NewDirectory wraps api.
func NewDirectory(api API, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		api:      api,
		log:      log,
		now:      time.Now,
		channels: make(map[string]cachedChannel),
	}
}

func (d *Directory) Roles(ctx context.Context, guildID string) ([]guildconfig.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	roles, err := d.api.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("discord: guild roles: %w", err)
	}
	out := make([]guildconfig.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, guildconfig.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

// RoleMembers pages through the whole member list and keeps holders of roleID.
func (d *Directory) RoleMembers(ctx context.Context, guildID, roleID string) ([]reconcile.Member, error) {
	var (
		out   []reconcile.Member
		after string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := d.api.GuildMembers(guildID, after, memberPageSize)
		if err != nil {
			return nil, fmt.Errorf("discord: guild members: %w", err)
		}
		for _, m := range page {
			if m.User == nil || m.User.Bot {
				continue
			}
			if slices.Contains(m.Roles, roleID) {
				out = append(out, reconcile.Member{ID: m.User.ID, Tag: Tag(m.User)})
			}
		}
		if len(page) < memberPageSize {
			return out, nil
		}
		last := page[len(page)-1]
		if last.User == nil {
			return out, nil
		}
		after = last.User.ID
	}
}

func (d *Directory) Member(ctx context.Context, guildID, userID string) (bot.Member, error) {
	if err := ctx.Err(); err != nil {
		return bot.Member{}, err
	}
	m, err := d.api.GuildMember(guildID, userID)
	if err != nil {
		if isNotFound(err, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser) {
			return bot.Member{}, bot.ErrMemberNotFound
		}
		return bot.Member{}, fmt.Errorf("discord: guild member: %w", err)
	}
	return toMember(m), nil
}

// FindMemberByTag searches by prefix and keeps the exact, case-insensitive match.
func (d *Directory) FindMemberByTag(ctx context.Context, guildID, tag string) (bot.Member, error) {
	if err := ctx.Err(); err != nil {
		return bot.Member{}, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return bot.Member{}, bot.ErrMemberNotFound
	}
	query, _, _ := strings.Cut(tag, "#")
	found, err := d.api.GuildMembersSearch(guildID, query, searchLimit)
	if err != nil {
		return bot.Member{}, fmt.Errorf("discord: member search: %w", err)
	}
	for _, m := range found {
		if m.User != nil && strings.EqualFold(Tag(m.User), tag) {
			return toMember(m), nil
		}
	}
	return bot.Member{}, bot.ErrMemberNotFound
}

func (d *Directory) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.api.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("discord: add role: %w", err)
	}
	return nil
}

func (d *Directory) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.api.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
		return fmt.Errorf("discord: remove role: %w", err)
	}
	return nil
}

// PostActivity sends e to the text channel called channel.
func (d *Directory) PostActivity(ctx context.Context, guildID, channel string, e bot.Embed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := d.channelID(guildID, channel)
	if err != nil {
		return err
	}
	if _, err := d.api.ChannelMessageSendEmbed(id, RenderEmbed(e)); err != nil {
		if isNotFound(err, discordgo.ErrCodeUnknownChannel) {
			d.forget(guildID, channel)
			return bot.ErrChannelNotFound
		}
		return fmt.Errorf("discord: send activity: %w", err)
	}
	return nil
}

// SendDM delivers message to the user's direct-message channel.
func (d *Directory) SendDM(ctx context.Context, userID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := d.api.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("discord: open dm: %w", err)
	}
	if _, err := d.api.ChannelMessageSend(ch.ID, message); err != nil {
		return fmt.Errorf("discord: send dm: %w", err)
	}
	return nil
}

func (d *Directory) channelID(guildID, name string) (string, error) {
	key := guildID + "/" + name
	now := d.now()

	d.mu.Lock()
	c, ok := d.channels[key]
	d.mu.Unlock()
	if ok && now.Before(c.expires) {
		return c.id, nil
	}

	channels, err := d.api.GuildChannels(guildID)
	if err != nil {
		return "", fmt.Errorf("discord: guild channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
			d.mu.Lock()
			d.channels[key] = cachedChannel{id: ch.ID, expires: now.Add(channelTTL)}
			d.mu.Unlock()
			return ch.ID, nil
		}
	}
	return "", bot.ErrChannelNotFound
}

func (d *Directory) forget(guildID, name string) {
	d.mu.Lock()
	delete(d.channels, guildID+"/"+name)
	d.mu.Unlock()
}

// Tag is the display tag of u: the bare username, or name#discriminator for
// accounts that never migrated.
func Tag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func toMember(m *discordgo.Member) bot.Member {
	out := bot.Member{RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.ID = m.User.ID
		out.Tag = Tag(m.User)
	}
	return out
}
