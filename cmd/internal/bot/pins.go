package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/tier"
)

// SourceCommand marks pins issued through a slash command.
const SourceCommand = "command"

var (
	errLetterPin   = fmt.Errorf("%w: pin contains letters", pin.ErrValidation)
	errPinFormat   = fmt.Errorf("%w: pin must be 8 to 15 digits", pin.ErrValidation)
	errNoTierRole  = fmt.Errorf("%w: caller holds no tier role", pin.ErrValidation)
	errBadCustomID = fmt.Errorf("%w: malformed component id", pin.ErrValidation)
)

// checkCode applies the entry-point rules for a pin code.
func checkCode(c string) error {
	if pin.ContainsLetters(c) {
		return errLetterPin
	}
	if !pin.ValidCode(c) {
		return errPinFormat
	}
	return nil
}

// tierRoles resolves the role of every tier, preferring the server config and
// falling back to a guild role named after the tier.
func (b *Bot) tierRoles(ctx context.Context, guildID string) (map[tier.Tier]guildconfig.RoleRef, error) {
	out := make(map[tier.Tier]guildconfig.RoleRef, len(tier.All))
	cfg, err := b.configs.Get(ctx, guildID)
	switch {
	case err == nil:
		for _, t := range tier.All {
			if ref, ok := cfg.Roles.Get(t); ok {
				out[t] = ref
			}
		}
	case !errors.Is(err, guildconfig.ErrNotFound):
		return nil, err
	}
	if len(out) == len(tier.All) {
		return out, nil
	}

	roles, err := b.dir.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("guild roles: %w", err)
	}
	for _, t := range tier.All {
		if _, ok := out[t]; ok {
			continue
		}
		for _, r := range roles {
			if strings.EqualFold(trim(r.Name), t.DisplayName()) {
				out[t] = guildconfig.RoleRef{ID: r.ID, Name: r.Name}
				break
			}
		}
	}
	return out, nil
}

func (b *Bot) addPinAdmin(ctx context.Context, req Request) (Response, error) {
	c := req.Option("pin")
	tag := req.Option("usertag")
	if err := checkCode(c); err != nil {
		return Response{}, err
	}
	t, err := tier.Parse(req.Option("rolename"))
	if err != nil {
		return Response{}, pin.OpError{Op: "bot.addpin", Kind: pin.ErrInvalidRole, Msg: req.Option("rolename")}
	}

	member, err := b.dir.FindMemberByTag(ctx, req.GuildID, tag)
	if err != nil {
		return Response{}, err
	}
	refs, err := b.tierRoles(ctx, req.GuildID)
	if err != nil {
		return Response{}, err
	}
	ref, ok := refs[t]
	if !ok {
		return Response{}, pin.OpError{Op: "bot.addpin", Kind: pin.ErrInvalidRole, Msg: t.DisplayName() + " role not found"}
	}
	return b.issue(ctx, req, member, t, ref)
}

func (b *Bot) addPinUser(ctx context.Context, req Request) (Response, error) {
	c := req.Option("pin")
	if err := checkCode(c); err != nil {
		return Response{}, err
	}
	member, err := b.dir.Member(ctx, req.GuildID, req.User.ID)
	if err != nil {
		return Response{}, err
	}
	if member.Tag == "" {
		member.Tag = req.User.Tag
	}

	refs, err := b.tierRoles(ctx, req.GuildID)
	if err != nil {
		return Response{}, err
	}
	for _, t := range tier.All {
		if ref, ok := refs[t]; ok && member.HasRole(ref.ID) {
			return b.issue(ctx, req, member, t, ref)
		}
	}
	return Response{}, errNoTierRole
}

// issue adds the pin for member and swaps out the Activation role.
func (b *Bot) issue(ctx context.Context, req Request, member Member, t tier.Tier, ref guildconfig.RoleRef) (Response, error) {
	c := req.Option("pin")
	p, err := b.pins.AddPin(ctx, pin.AddInput{
		Code:        c,
		UserID:      member.ID,
		UserTag:     member.Tag,
		RoleName:    t.DisplayName(),
		RoleID:      ref.ID,
		PerformedBy: req.User.ID,
		Source:      SourceCommand,
	})
	if err != nil {
		b.activity(ctx, req, Embed{
			Title:       "Error Adding Pin",
			Color:       ColorError,
			Description: fmt.Sprintf("**Pin:** %s\n**User:** %s\n**Error:** %s", c, member.Tag, err),
		})
		return Response{}, err
	}

	removed := b.removeActivation(ctx, req.GuildID, member)
	now := b.now()

	desc := fmt.Sprintf("**Pin:** %s\n**User:** %s\n**Role:** %s\n**Expires:** %s", p.Code, p.UserTag, p.RoleName, dateString(p.ExpiresAt))
	if removed {
		desc += "\n**Activation Role Removed:** Yes"
	}
	b.activity(ctx, req, Embed{Title: bold("Pin Added"), Description: desc, Color: ColorSuccess})

	return Response{Embeds: []Embed{pinAddedEmbed(p, now)}, Ephemeral: true}, nil
}

// activationRoleID is the configured Activation role, or the guild role named "Activation".
func (b *Bot) activationRoleID(ctx context.Context, guildID string) string {
	if b.cfg.ActivationRoleID != "" {
		return b.cfg.ActivationRoleID
	}
	roles, err := b.dir.Roles(ctx, guildID)
	if err != nil {
		return ""
	}
	for _, r := range roles {
		if strings.EqualFold(trim(r.Name), "Activation") {
			return r.ID
		}
	}
	return ""
}

func (b *Bot) removeActivation(ctx context.Context, guildID string, m Member) bool {
	roleID := b.activationRoleID(ctx, guildID)
	if roleID == "" || !m.HasRole(roleID) {
		return false
	}
	if err := b.dir.RemoveRole(ctx, guildID, m.ID, roleID); err != nil {
		b.log.Warn("bot.activation.remove.fail", "guild_id", guildID, "user_id", m.ID, "err", err)
		return false
	}
	return true
}

func (b *Bot) updateExpiry(ctx context.Context, req Request) (Response, error) {
	c := req.Option("pin")
	tag := req.Option("usertag")
	date := req.Option("date")
	if c == "" && tag == "" {
		return Response{}, pin.ErrMissingSelector
	}
	if _, err := pin.ParseDate(date); err != nil {
		return Response{}, err
	}
	if c != "" && pin.ContainsLetters(c) {
		return Response{}, errLetterPin
	}

	ch, err := b.pins.UpdateExpiry(ctx, pin.ExpiryInput{Code: c, UserTag: tag, Date: date, PerformedBy: req.User.ID})
	if err != nil {
		return Response{}, err
	}

	oldDate := dateString(ch.Old.ExpirationDate)
	newDate := dateString(ch.New.ExpirationDate)
	b.activity(ctx, req, successEmbed("Pin Expiry Updated", fmt.Sprintf(
		"Pin: %s\nUser Tag: %s\nOld Expiration Date: %s\nNew Expiration Date: %s",
		ch.Pin.Code, ch.Pin.UserTag, oldDate, newDate)))

	return Response{
		Embeds: []Embed{successEmbed("Pin Expiry Updated", "The expiration date has been successfully updated.",
			Field{Name: "Old Expiration Date", Value: oldDate, Inline: true},
			Field{Name: "New Expiration Date", Value: newDate, Inline: true},
		)},
		Ephemeral: true,
	}, nil
}

func (b *Bot) checkSubscription(ctx context.Context, req Request) (Response, error) {
	username := req.Option("username")
	if username == "" {
		return Response{}, pin.ErrMissingSelector
	}
	pins, err := b.pins.FindByUsername(ctx, username)
	if err != nil {
		return Response{}, err
	}
	if len(pins) == 0 {
		msg := fmt.Sprintf("No pins found for user **%s**.", username)
		b.activity(ctx, req, Embed{Title: "No Subscription Found", Color: ColorError, Description: msg})
		return Response{Embeds: []Embed{errorEmbed("No Subscription", msg)}, Ephemeral: true}, nil
	}

	lines := make([]string, 0, len(pins))
	for _, p := range pins {
		lines = append(lines, fmt.Sprintf("**%s** - Expires: %s", p.Code, dateString(p.ExpiresAt)))
	}
	list := clip(strings.Join(lines, "\n"), maxFieldValue*3)
	b.activity(ctx, req, Embed{
		Title:       "Subscription Status Checked",
		Color:       ColorSuccess,
		Description: fmt.Sprintf("**User:** %s\n**Pins:**\n%s", username, list),
	})
	return Response{
		Embeds: []Embed{{
			Title:       bold("Subscription Status"),
			Description: fmt.Sprintf("**Pins for user %s:**\n%s", username, list),
			Color:       ColorSuccess,
		}},
		Ephemeral: true,
	}, nil
}

func (b *Bot) deletePin(ctx context.Context, req Request) (Response, error) {
	c := req.Option("pin")
	tag := req.Option("usertag")

	var (
		e     Embed
		kind  = "Pin"
		value = c
	)
	switch {
	case c != "":
		if _, err := b.pins.DeletePin(ctx, c, req.User.ID); err != nil {
			if pin.IsNotFound(err) {
				return Response{Embeds: []Embed{errorEmbed("No Pin Found", "No pin found with the code: "+c)}, Ephemeral: true}, nil
			}
			return Response{}, err
		}
		e = successEmbed("Pin Deleted", fmt.Sprintf("Pin code %s deleted successfully.", c))
	case tag != "":
		n, err := b.pins.DeletePinsByUserTag(ctx, tag, req.User.ID)
		if err != nil {
			return Response{}, err
		}
		if n == 0 {
			return Response{Embeds: []Embed{errorEmbed("No Pins Found", "No pins found for user tag: "+tag)}, Ephemeral: true}, nil
		}
		kind, value = "User", tag
		e = successEmbed("Pins Deleted", fmt.Sprintf("Deleted %d pins for user %s.", n, tag))
	default:
		return Response{}, pin.OpError{Op: "bot.deletepin", Kind: pin.ErrMissingSelector, Msg: "Please provide either a pin or a user tag to delete pins."}
	}

	b.activity(ctx, req, Embed{
		Title:       "Pin(s) Deleted",
		Color:       ColorSuccess,
		Description: fmt.Sprintf("**Action:** Delete\n**Type:** %s\n**Value:** %s", kind, value),
	})
	return Response{Embeds: []Embed{e}, Ephemeral: true}, nil
}

func searchLabel(f pin.SearchField) string {
	switch f {
	case pin.FieldSearchPin:
		return "Pin"
	case pin.FieldSearchUserTag:
		return "Username"
	case pin.FieldSearchRoleName:
		return "Role"
	}
	return string(f)
}

func searchPageID(f pin.SearchField, page int, term string) string {
	return fmt.Sprintf("%s%s-%d-%s", customSearchPage, f, page, term)
}

func (b *Bot) searchPin(ctx context.Context, req Request) (Response, error) {
	var (
		field pin.SearchField
		term  string
	)
	switch {
	case req.Option("pin") != "":
		field, term = pin.FieldSearchPin, req.Option("pin")
		if pin.ContainsLetters(term) {
			return Response{}, errLetterPin
		}
	case req.Option("username") != "":
		field, term = pin.FieldSearchUserTag, req.Option("username")
	case req.Option("rolename") != "":
		field, term = pin.FieldSearchRoleName, req.Option("rolename")
	default:
		return Response{}, pin.OpError{Op: "bot.searchpin", Kind: pin.ErrMissingSelector, Msg: "Please provide either a pin, a username, or a role name."}
	}

	page := 1
	if raw := req.Option("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			n = 0
		}
		page = n
	}

	resp, res, err := b.search(ctx, field, term, page)
	if err != nil {
		return Response{}, err
	}
	if res.Total > 0 && len(res.Items) > 0 {
		b.activity(ctx, req, successEmbed("Search Results", fmt.Sprintf("Search Type: %s\nSearch Value: %s\nResults: %d", searchLabel(field), term, res.Total)))
	}
	return resp, nil
}

func (b *Bot) onSearchPage(ctx context.Context, req Request) (Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.CustomID, customSearchPage), "-", 3)
	if len(parts) != 3 {
		return Response{}, errBadCustomID
	}
	field := pin.SearchField(parts[0])
	page, err := strconv.Atoi(parts[1])
	if err != nil || !field.Valid() || parts[2] == "" {
		return Response{}, errBadCustomID
	}
	resp, _, err := b.search(ctx, field, parts[2], page)
	return resp, err
}

// search renders one result page, or the No Results / Invalid Page embeds.
func (b *Bot) search(ctx context.Context, field pin.SearchField, term string, page int) (Response, pin.Page, error) {
	res, err := b.pins.Search(ctx, pin.SearchInput{Field: field, Term: term, Page: page})
	switch {
	case errors.Is(err, pin.ErrInvalidPage):
		desc := fmt.Sprintf("Invalid page number: %d.", page)
		if page < 1 {
			desc += " Page number must be greater than 0."
		} else if first, ferr := b.pins.Search(ctx, pin.SearchInput{Field: field, Term: term, Page: 1}); ferr == nil {
			desc += fmt.Sprintf(" Please enter a page number between 1 and %d.", first.TotalPages)
		}
		return Response{Embeds: []Embed{errorEmbed("Invalid Page", desc)}, Ephemeral: true}, res, nil
	case err != nil:
		return Response{}, res, err
	}

	if res.Total == 0 {
		e := errorEmbed("No Results", fmt.Sprintf("No pins found for the provided %s: %s", searchLabel(field), term))
		return Response{Embeds: []Embed{e}, Ephemeral: true}, res, nil
	}

	e := Embed{
		Title:       bold("Search Results"),
		Description: pinDetails(res.Items),
		Color:       ColorSuccess,
		Footer:      fmt.Sprintf("Page %d of %d", res.Page, res.TotalPages),
		Timestamp:   b.now(),
	}
	row := pagerRow(res.Page, res.TotalPages, func(p int) string { return searchPageID(field, p, term) })
	return Response{Embeds: []Embed{e}, Components: []Row{row}, Ephemeral: true}, res, nil
}

func (b *Bot) viewPins(ctx context.Context, req Request) (Response, error) {
	pins, err := b.pins.FindByUserID(ctx, req.User.ID)
	if err != nil {
		return Response{}, err
	}
	if len(pins) == 0 {
		return Response{
			Embeds:    []Embed{{Title: "No Pins Found", Description: "You do not have any pins assigned.", Color: ColorError}},
			Ephemeral: true,
		}, nil
	}

	e := Embed{Title: "Your Pins", Color: ColorInfo}
	for _, p := range pins {
		if len(e.Fields)+3 > maxFields {
			break
		}
		e.Fields = append(e.Fields,
			Field{Name: "Pin Code", Value: p.Code, Inline: true},
			Field{Name: "Role", Value: p.RoleName, Inline: true},
			Field{Name: "Expiration Date", Value: dateString(p.ExpiresAt), Inline: true},
		)
	}
	return Response{Embeds: []Embed{e}, Ephemeral: true}, nil
}
