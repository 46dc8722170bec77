// Package bot is the platform-neutral command surface.
//
// A chat adapter translates interactions into Request values, calls
// Bot.Handle, and renders the returned Response. Nothing here talks to the
// chat platform directly; guild lookups and side effects go through Directory.
package bot

import (
	"context"
	"errors"
	"time"

	"pinbot/cmd/internal/reconcile"
)

// Kind distinguishes slash commands from message components.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindComponent
)

// User identifies the invoking member.
type User struct {
	ID  string
	Tag string
}

// Request is one interaction.
type Request struct {
	Kind       Kind
	Command    string
	Subcommand string
	Options    map[string]string
	CustomID   string

	GuildID   string
	GuildName string
	User      User
	IsAdmin   bool
}

// Option returns the trimmed string option name, or "".
func (r Request) Option(name string) string {
	return trim(r.Options[name])
}

// Name labels the request in logs and metrics.
func (r Request) Name() string {
	if r.Kind == KindComponent {
		return "component:" + componentName(r.CustomID)
	}
	if r.Subcommand != "" {
		return r.Command + " " + r.Subcommand
	}
	return r.Command
}

// Response is what the adapter renders. FollowUps are sent after the primary
// reply, each as its own message.
type Response struct {
	Content    string
	Embeds     []Embed
	Components []Row
	Ephemeral  bool
	FollowUps  []Response
}

// Colors used by embeds.
const (
	ColorSuccess = 0x00FF00
	ColorError   = 0xFF0000
	ColorInfo    = 0x00AE86
)

// Embed is a rich message block.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   time.Time
}

// Field is one name/value pair inside an Embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// ButtonStyle mirrors the platform's button styles.
type ButtonStyle int

const (
	StylePrimary ButtonStyle = iota + 1
	StyleSecondary
	StyleSuccess
	StyleDanger
	StyleLink
)

// Button is a clickable component. Link buttons carry URL instead of CustomID.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
	URL      string
}

// Row is one action row of buttons.
type Row []Button

// Member is a guild member with the ids of the roles they hold.
type Member struct {
	ID      string
	Tag     string
	RoleIDs []string
}

// HasRole reports whether m holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

var (
	// ErrMemberNotFound is returned by Directory lookups for unknown members.
	ErrMemberNotFound = errors.New("member not found")
	// ErrChannelNotFound is returned by PostActivity when the log channel is missing.
	ErrChannelNotFound = errors.New("channel not found")
)

// Directory is the guild-side view the commands need.
type Directory interface {
	reconcile.MemberSource

	Member(ctx context.Context, guildID, userID string) (Member, error)
	FindMemberByTag(ctx context.Context, guildID, tag string) (Member, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	PostActivity(ctx context.Context, guildID, channel string, e Embed) error
}
