package discord

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type fakeAPI struct {
	mu sync.Mutex

	roles    []*discordgo.Role
	members  []*discordgo.Member
	channels []*discordgo.Channel

	memberCalls  []string
	channelCalls int
	sent         map[string][]*discordgo.MessageEmbed
	dms          map[string][]string
	roleAdds     []string
	roleRemoves  []string
	sendErr      error

	responds  []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followUps []*discordgo.WebhookParams
	overwrite map[string][]*discordgo.ApplicationCommand
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		sent:      map[string][]*discordgo.MessageEmbed{},
		dms:       map[string][]string{},
		overwrite: map[string][]*discordgo.ApplicationCommand{},
	}
}

func notFoundErr(code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "Unknown"},
	}
}

func (f *fakeAPI) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, nil
}

func (f *fakeAPI) GuildMembers(_ string, after string, limit int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls = append(f.memberCalls, after)
	start := 0
	if after != "" {
		for i, m := range f.members {
			if m.User.ID == after {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(f.members))
	return f.members[start:end], nil
}

func (f *fakeAPI) GuildMember(_ string, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	for _, m := range f.members {
		if m.User.ID == userID {
			return m, nil
		}
	}
	return nil, notFoundErr(discordgo.ErrCodeUnknownMember)
}

func (f *fakeAPI) GuildMembersSearch(_ string, query string, limit int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	var out []*discordgo.Member
	for _, m := range f.members {
		if len(out) < limit && len(m.User.Username) >= len(query) && m.User.Username[:len(query)] == query {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(_ string, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.roleAdds = append(f.roleAdds, userID+":"+roleID)
	return nil
}

func (f *fakeAPI) GuildMemberRoleRemove(_ string, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.roleRemoves = append(f.roleRemoves, userID+":"+roleID)
	return nil
}

func (f *fakeAPI) GuildChannels(string, ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.channelCalls++
	return f.channels, nil
}

func (f *fakeAPI) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.dms[channelID] = append(f.dms[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeAPI) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent[channelID] = append(f.sent[channelID], embed)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeAPI) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeAPI) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responds = append(f.responds, resp)
	return nil
}

func (f *fakeAPI) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit)
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = append(f.followUps, data)
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) ApplicationCommandBulkOverwrite(_ string, guildID string, commands []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overwrite[guildID] = commands
	return commands, nil
}

func member(id, username string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: username, Discriminator: "0"}, Roles: roles}
}

func members(n int, role string) []*discordgo.Member {
	out := make([]*discordgo.Member, 0, n)
	for i := range n {
		out = append(out, member(fmt.Sprintf("%05d", i), fmt.Sprintf("user%05d", i), role))
	}
	return out
}
