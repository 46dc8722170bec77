package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pinbot/cmd/internal/bot"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultStatus        = "Managing Pins!"
	defaultHandleTimeout = 10 * time.Second
)

// Handler answers one request.
type Handler interface {
	Handle(ctx context.Context, req bot.Request) bot.Response
}

// Config tunes the gateway client.
type Config struct {
	// AppID defaults to the id of the logged-in bot user.
	AppID string
	// Guilds limits command registration; empty registers in every guild the bot joins.
	Guilds        []string
	Status        string
	HandleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Status == "" {
		c.Status = defaultStatus
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = defaultHandleTimeout
	}
	return c
}

// NewSession creates a bot session with the intents the commands need.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord: token required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return s, nil
}

// Client owns the gateway connection and routes interactions to a Handler.
type Client struct {
	session *discordgo.Session
	api     API
	handler Handler
	log     *slog.Logger
	cfg     Config

	guildName func(guildID string) string

	ctx      context.Context
	inflight sync.WaitGroup

	mu         sync.Mutex
	registered map[string]bool
	allowed    map[string]bool
}

// NewClient wires h to s.
func NewClient(s *discordgo.Session, h Handler, log *slog.Logger, cfg Config) *Client {
	c := newClient(s, h, log, cfg)
	c.session = s
	c.guildName = func(guildID string) string {
		if g, err := s.State.Guild(guildID); err == nil {
			return g.Name
		}
		return ""
	}
	return c
}

func newClient(api API, h Handler, log *slog.Logger, cfg Config) *Client {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	c := &Client{
		api:        api,
		handler:    h,
		log:        log,
		cfg:        cfg,
		guildName:  func(string) string { return "" },
		ctx:        context.Background(),
		registered: make(map[string]bool),
	}
	if len(cfg.Guilds) > 0 {
		c.allowed = make(map[string]bool, len(cfg.Guilds))
		for _, g := range cfg.Guilds {
			c.allowed[g] = true
		}
	}
	return c
}

// Run connects and blocks until ctx is done, then closes the gateway and
// waits for in-flight interactions.
func (c *Client) Run(ctx context.Context) error {
	if c.session == nil {
		return errors.New("discord: client has no session")
	}
	c.ctx = ctx

	removers := []func(){
		c.session.AddHandler(c.onReady),
		c.session.AddHandler(c.onGuildCreate),
		c.session.AddHandler(c.onInteraction),
	}
	defer func() {
		for _, rm := range removers {
			rm()
		}
	}()

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	c.log.Info("discord.connected")

	<-ctx.Done()

	err := c.session.Close()
	c.inflight.Wait()
	c.log.Info("discord.closed")
	if err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	return nil
}

func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := c.cfg.AppID
	switch {
	case appID != "":
	case r.Application != nil && r.Application.ID != "":
		appID = r.Application.ID
	default:
		appID = r.User.ID
	}
	c.log.Info("discord.ready", "user", Tag(r.User), "guilds", len(r.Guilds))

	for _, g := range r.Guilds {
		c.register(appID, g.ID)
	}
	if err := s.UpdateGameStatus(0, c.cfg.Status); err != nil {
		c.log.Warn("discord.status.fail", "err", err)
	}
}

func (c *Client) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	appID := c.cfg.AppID
	if appID == "" {
		if s.State == nil || s.State.User == nil {
			return
		}
		appID = s.State.User.ID
	}
	c.register(appID, g.ID)
}

// register overwrites the guild's commands once per process.
func (c *Client) register(appID, guildID string) {
	c.mu.Lock()
	if c.registered[guildID] || (c.allowed != nil && !c.allowed[guildID]) {
		c.mu.Unlock()
		return
	}
	c.registered[guildID] = true
	c.mu.Unlock()

	cmds, err := c.api.ApplicationCommandBulkOverwrite(appID, guildID, Commands(bot.Definitions()))
	if err != nil {
		c.mu.Lock()
		delete(c.registered, guildID)
		c.mu.Unlock()
		c.log.Error("discord.commands.register.fail", "guild_id", guildID, "err", err)
		return
	}
	c.log.Info("discord.commands.registered", "guild_id", guildID, "count", len(cmds))
}

func (c *Client) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	c.inflight.Add(1)
	defer c.inflight.Done()
	c.serve(c.ctx, ic.Interaction)
}

// serve acknowledges i within the platform deadline, runs the handler and
// edits the deferred reply with the result.
func (c *Client) serve(ctx context.Context, i *discordgo.Interaction) {
	req, ok := ToRequest(i, c.guildName(i.GuildID))
	if !ok {
		return
	}

	if err := c.api.InteractionRespond(i, deferResponse(bot.DeferralFor(req))); err != nil {
		c.log.Warn("discord.interaction.defer.fail", "command", req.Name(), "err", err)
		return
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HandleTimeout)
	defer cancel()
	resp := c.handler.Handle(hctx, req)

	embeds := renderEmbeds(resp.Embeds)
	rows := renderRows(resp.Components)
	edit := &discordgo.WebhookEdit{Content: &resp.Content, Embeds: &embeds, Components: &rows}
	if _, err := c.api.InteractionResponseEdit(i, edit); err != nil {
		c.log.Error("discord.interaction.edit.fail", "command", req.Name(), "err", err)
		return
	}

	for _, fu := range resp.FollowUps {
		params := &discordgo.WebhookParams{
			Content:    fu.Content,
			Embeds:     renderEmbeds(fu.Embeds),
			Components: renderRows(fu.Components),
		}
		if fu.Ephemeral {
			params.Flags = discordgo.MessageFlagsEphemeral
		}
		if _, err := c.api.FollowupMessageCreate(i, true, params); err != nil {
			c.log.Error("discord.interaction.followup.fail", "command", req.Name(), "err", err)
			return
		}
	}
}

func deferResponse(d bot.Deferral) *discordgo.InteractionResponse {
	switch d {
	case bot.DeferUpdate:
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	case bot.DeferReply:
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}
}
