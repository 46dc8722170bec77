package discord

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"pinbot/cmd/internal/bot"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	got  []bot.Request
	resp bot.Response
}

func (h *stubHandler) Handle(ctx context.Context, req bot.Request) bot.Response {
	h.got = append(h.got, req)
	return h.resp
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestServe_EphemeralCommandWithFollowUps(t *testing.T) {
	api := newFakeAPI()
	h := &stubHandler{resp: bot.Response{
		Embeds:    []bot.Embed{{Title: "**Role Validation Results**"}},
		Ephemeral: true,
		FollowUps: []bot.Response{{
			Content:    "Choose an action:",
			Components: []bot.Row{{{CustomID: "update-all", Label: "Update All Records"}}},
			Ephemeral:  true,
		}},
	}}
	c := newClient(api, h, quietLogger(), Config{})
	c.guildName = func(string) string { return "Test Guild" }

	c.serve(context.Background(), commandInteraction(true, bot.CmdUpdateInfo))

	require.Len(t, h.got, 1)
	assert.Equal(t, "Test Guild", h.got[0].GuildName)

	require.Len(t, api.responds, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, api.responds[0].Type)
	require.NotNil(t, api.responds[0].Data)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, api.responds[0].Data.Flags)

	require.Len(t, api.edits, 1)
	require.NotNil(t, api.edits[0].Embeds)
	assert.Equal(t, "**Role Validation Results**", (*api.edits[0].Embeds)[0].Title)

	require.Len(t, api.followUps, 1)
	assert.Equal(t, "Choose an action:", api.followUps[0].Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, api.followUps[0].Flags)
	assert.Len(t, api.followUps[0].Components, 1)
}

func TestServe_DeferralKinds(t *testing.T) {
	api := newFakeAPI()
	c := newClient(api, &stubHandler{}, quietLogger(), Config{})

	c.serve(context.Background(), commandInteraction(true, bot.CmdDashboard))
	c.serve(context.Background(), &discordgo.Interaction{
		Type:   discordgo.InteractionMessageComponent,
		Member: &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
		Data:   discordgo.MessageComponentInteractionData{CustomID: "rpage-special1m-2"},
	})

	require.Len(t, api.responds, 2)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, api.responds[0].Type)
	assert.Nil(t, api.responds[0].Data)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, api.responds[1].Type)
	assert.Len(t, api.edits, 2)
}

func TestRegister_OncePerGuild(t *testing.T) {
	api := newFakeAPI()
	c := newClient(api, &stubHandler{}, quietLogger(), Config{Guilds: []string{"g1"}})

	c.register("app", "g1")
	c.register("app", "g1")
	c.register("app", "g2")

	require.Contains(t, api.overwrite, "g1")
	assert.NotContains(t, api.overwrite, "g2")
	assert.Len(t, api.overwrite["g1"], len(bot.Definitions()))
}
