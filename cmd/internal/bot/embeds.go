package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/reconcile"
	"pinbot/cmd/internal/tier"
)

// Platform limits.
const (
	maxDescription   = 4096
	maxFieldValue    = 1024
	maxFields        = 25
	maxEmbedsPerMsg  = 10
	maxCustomIDBytes = 100
)

func bold(s string) string   { return "**" + s + "**" }
func italic(s string) string { return "*" + s + "*" }
func code(s string) string   { return "`" + s + "`" }

func trim(s string) string { return strings.TrimSpace(s) }

// clip shortens s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func errorEmbed(title, desc string) Embed {
	return Embed{Title: bold(title), Description: italic(desc), Color: ColorError}
}

func successEmbed(title, desc string, fields ...Field) Embed {
	return Embed{Title: bold(title), Description: italic(desc), Color: ColorSuccess, Fields: fields}
}

// dateString renders an expiration the way the bot always has ("Mon Jan 02 2006").
func dateString(t time.Time) string {
	if t.IsZero() {
		return "No expiration"
	}
	return t.UTC().Format("Mon Jan 02 2006")
}

func pinAddedEmbed(p pin.Pin, now time.Time) Embed {
	return Embed{
		Title:       bold("Pin Added Successfully!"),
		Description: "Your pin code has been added.",
		Color:       ColorSuccess,
		Fields: []Field{
			{Name: "Pin Code", Value: code(p.Code), Inline: true},
			{Name: "Role", Value: code(p.RoleName), Inline: true},
			{Name: "Expiration", Value: code(tier.FormatRemaining(p.ExpiresAt, now)), Inline: true},
		},
		Footer:    "Added for user: " + p.UserTag,
		Timestamp: now,
	}
}

func usersWithoutPinsEmbed(roleName string, page reconcile.UserPage, now time.Time) Embed {
	fields := make([]Field, 0, len(page.Users))
	for _, u := range page.Users {
		fields = append(fields, Field{
			Name:  code(fmt.Sprintf("%s (%s)", u.Tag, u.ID)),
			Value: "Role: " + code(roleName),
		})
	}
	return Embed{
		Title:       bold(fmt.Sprintf("Users in the %s Role with No Pin Information", roleName)),
		Description: italic("The following users are in the role but have no corresponding pin records in the database:"),
		Color:       ColorError,
		Fields:      fields,
		Footer:      fmt.Sprintf("Page %d of %d", page.Page, page.TotalPages),
		Timestamp:   now,
	}
}

// pagerRow builds Previous/Next buttons; id maps a page number to a custom id.
func pagerRow(page, totalPages int, id func(int) string) Row {
	prev := id(page - 1)
	next := id(page + 1)
	return Row{
		{CustomID: prev, Label: "Previous", Style: StylePrimary, Disabled: page <= 1 || len(prev) > maxCustomIDBytes},
		{CustomID: next, Label: "Next", Style: StylePrimary, Disabled: page >= totalPages || len(next) > maxCustomIDBytes},
	}
}

func updateActionRow() Row {
	row := Row{{CustomID: customUpdateAll, Label: "Update All Records", Style: StylePrimary}}
	for _, t := range tier.All {
		row = append(row, Button{
			CustomID: customUpdatePrefix + t.Key(),
			Label:    fmt.Sprintf("Update %s Records", t.DisplayName()),
			Style:    StylePrimary,
		})
	}
	return row
}

func pinDetails(pins []pin.Pin) string {
	parts := make([]string, 0, len(pins))
	for _, p := range pins {
		parts = append(parts, fmt.Sprintf("**Pin:** %s\n**User:** %s\n**Role:** %s\n**Expires:** %s",
			p.Code, p.UserTag, p.RoleName, dateString(p.ExpiresAt)))
	}
	return clip(strings.Join(parts, "\n\n"), maxDescription)
}

// withPerformer stamps an activity embed with who did it and when.
func withPerformer(e Embed, u User, now time.Time) Embed {
	e.Fields = append(e.Fields, Field{Name: "Performed By", Value: u.Tag})
	e.Timestamp = now
	return e
}

// batchEmbeds splits embeds into one response per maxEmbedsPerMsg.
func batchEmbeds(embeds []Embed) Response {
	if len(embeds) <= maxEmbedsPerMsg {
		return Response{Embeds: embeds, Ephemeral: true}
	}
	out := Response{Embeds: embeds[:maxEmbedsPerMsg], Ephemeral: true}
	for i := maxEmbedsPerMsg; i < len(embeds); i += maxEmbedsPerMsg {
		end := min(i+maxEmbedsPerMsg, len(embeds))
		out.FollowUps = append(out.FollowUps, Response{Embeds: embeds[i:end], Ephemeral: true})
	}
	return out
}
