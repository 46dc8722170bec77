package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"pinbot/cmd/internal/bot"
	"pinbot/cmd/internal/guildconfig"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_RoleMembersPages(t *testing.T) {
	api := newFakeAPI()
	api.members = members(memberPageSize+3, "r1")
	api.members[10].Roles = nil
	api.members[11].User.Bot = true
	d := NewDirectory(api, nil)

	got, err := d.RoleMembers(context.Background(), "g1", "r1")
	require.NoError(t, err)
	assert.Len(t, got, memberPageSize+1)
	assert.Equal(t, []string{"", api.members[memberPageSize-1].User.ID}, api.memberCalls)
	assert.Equal(t, "user00000", got[0].Tag)
}

func TestDirectory_Roles(t *testing.T) {
	api := newFakeAPI()
	api.roles = []*discordgo.Role{{ID: "r1", Name: "Special 1m"}}
	d := NewDirectory(api, nil)

	got, err := d.Roles(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []guildconfig.Role{{ID: "r1", Name: "Special 1m"}}, got)
}

func TestDirectory_MemberLookup(t *testing.T) {
	api := newFakeAPI()
	api.members = []*discordgo.Member{
		member("1", "alice", "r1"),
		member("2", "alicex"),
		{User: &discordgo.User{ID: "3", Username: "legacy", Discriminator: "1234"}},
	}
	d := NewDirectory(api, nil)
	ctx := context.Background()

	m, err := d.Member(ctx, "g1", "1")
	require.NoError(t, err)
	assert.Equal(t, bot.Member{ID: "1", Tag: "alice", RoleIDs: []string{"r1"}}, m)

	_, err = d.Member(ctx, "g1", "404")
	assert.ErrorIs(t, err, bot.ErrMemberNotFound)

	m, err = d.FindMemberByTag(ctx, "g1", "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "1", m.ID)

	m, err = d.FindMemberByTag(ctx, "g1", "legacy#1234")
	require.NoError(t, err)
	assert.Equal(t, "3", m.ID)

	_, err = d.FindMemberByTag(ctx, "g1", "ali")
	assert.ErrorIs(t, err, bot.ErrMemberNotFound)
}

func TestDirectory_PostActivityCachesChannel(t *testing.T) {
	api := newFakeAPI()
	api.channels = []*discordgo.Channel{
		{ID: "v1", Name: "pin-log", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "c1", Name: "pin-log", Type: discordgo.ChannelTypeGuildText},
	}
	d := NewDirectory(api, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	e := bot.Embed{Title: "**Pin Added**", Footer: "f", Timestamp: now}
	require.NoError(t, d.PostActivity(ctx, "g1", "pin-log", e))
	require.NoError(t, d.PostActivity(ctx, "g1", "pin-log", e))
	assert.Equal(t, 1, api.channelCalls)
	require.Len(t, api.sent["c1"], 2)
	assert.Equal(t, "f", api.sent["c1"][0].Footer.Text)

	now = now.Add(channelTTL)
	require.NoError(t, d.PostActivity(ctx, "g1", "pin-log", e))
	assert.Equal(t, 2, api.channelCalls)

	err := d.PostActivity(ctx, "g1", "missing", e)
	assert.ErrorIs(t, err, bot.ErrChannelNotFound)

	api.sendErr = notFoundErr(discordgo.ErrCodeUnknownChannel)
	err = d.PostActivity(ctx, "g1", "pin-log", e)
	assert.ErrorIs(t, err, bot.ErrChannelNotFound)

	api.sendErr = errors.New("boom")
	err = d.PostActivity(ctx, "g1", "pin-log", e)
	require.Error(t, err)
	assert.NotErrorIs(t, err, bot.ErrChannelNotFound)
}

func TestDirectory_RolesAndDM(t *testing.T) {
	api := newFakeAPI()
	d := NewDirectory(api, nil)
	ctx := context.Background()

	require.NoError(t, d.AddRole(ctx, "g1", "u1", "r2"))
	require.NoError(t, d.RemoveRole(ctx, "g1", "u1", "r1"))
	assert.Equal(t, []string{"u1:r2"}, api.roleAdds)
	assert.Equal(t, []string{"u1:r1"}, api.roleRemoves)

	require.NoError(t, d.SendDM(ctx, "u1", "Your pin expires in 3 days."))
	assert.Equal(t, []string{"Your pin expires in 3 days."}, api.dms["dm-u1"])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, d.SendDM(cancelled, "u1", "x"), context.Canceled)
}

func TestTag(t *testing.T) {
	assert.Equal(t, "", Tag(nil))
	assert.Equal(t, "bob", Tag(&discordgo.User{Username: "bob", Discriminator: "0"}))
	assert.Equal(t, "bob", Tag(&discordgo.User{Username: "bob"}))
	assert.Equal(t, "bob#0420", Tag(&discordgo.User{Username: "bob", Discriminator: "0420"}))
}
