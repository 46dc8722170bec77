package bot

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/reconcile"

	"github.com/stretchr/testify/require"
)

const testGuild = "g1"

type roleChange struct {
	UserID string
	RoleID string
}

type fakeDirectory struct {
	mu        sync.Mutex
	roles     []guildconfig.Role
	members   map[string]*Member
	posts     []Embed
	added     []roleChange
	removed   []roleChange
	noChannel bool
}

func newFakeDirectory() *fakeDirectory {
	d := &fakeDirectory{
		roles: []guildconfig.Role{
			{ID: "r1m", Name: "Special 1m"},
			{ID: "r3m", Name: "Special 3m"},
			{ID: "r1y", Name: "Special 1y"},
			{ID: "rlt", Name: "Special Lifetime"},
			{ID: "ract", Name: "Activation"},
			{ID: "rdone", Name: "Activated"},
		},
		members: map[string]*Member{},
	}
	d.addMember("u1", "alice", "r1m", "ract")
	d.addMember("u2", "bob", "r3m")
	d.addMember("u3", "carol")
	d.addMember("u4", "dave", "rlt")
	return d
}

func (d *fakeDirectory) addMember(id, tag string, roles ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[id] = &Member{ID: id, Tag: tag, RoleIDs: roles}
}

func (d *fakeDirectory) Roles(context.Context, string) ([]guildconfig.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.roles), nil
}

func (d *fakeDirectory) RoleMembers(_ context.Context, _ string, roleID string) ([]reconcile.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []reconcile.Member
	for _, m := range d.members {
		if m.HasRole(roleID) {
			out = append(out, reconcile.Member{ID: m.ID, Tag: m.Tag})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *fakeDirectory) Member(_ context.Context, _ string, userID string) (Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[userID]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return *m, nil
}

func (d *fakeDirectory) FindMemberByTag(_ context.Context, _ string, tag string) (Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.members {
		if m.Tag == tag {
			return *m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (d *fakeDirectory) AddRole(_ context.Context, _ string, userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.members[userID]; ok && !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	d.added = append(d.added, roleChange{userID, roleID})
	return nil
}

func (d *fakeDirectory) RemoveRole(_ context.Context, _ string, userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.members[userID]; ok {
		m.RoleIDs = slices.DeleteFunc(m.RoleIDs, func(id string) bool { return id == roleID })
	}
	d.removed = append(d.removed, roleChange{userID, roleID})
	return nil
}

func (d *fakeDirectory) PostActivity(_ context.Context, _ string, channel string, e Embed) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.noChannel || channel != "pin-log" {
		return ErrChannelNotFound
	}
	d.posts = append(d.posts, e)
	return nil
}

func (d *fakeDirectory) postTitles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.posts))
	for _, p := range d.posts {
		out = append(out, p.Title)
	}
	return out
}

type fixture struct {
	bot    *Bot
	dir    *fakeDirectory
	pins   *pin.Service
	store  *pin.MemoryStore
	audit  *audit.MemoryStore
	now    time.Time
	config Config
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		dir:   newFakeDirectory(),
		store: pin.NewMemoryStore(),
		audit: audit.NewMemoryStore(),
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLog := audit.NewLog(f.audit, audit.WithClock(clock), audit.WithLogger(lg))

	pins, err := pin.NewService(f.store, pin.WithAuditor(auditLog), pin.WithClock(clock), pin.WithLogger(lg))
	require.NoError(t, err)
	f.pins = pins

	engine, err := reconcile.New(f.store, f.dir, reconcile.WithClock(clock), reconcile.WithLogger(lg), reconcile.WithAuditor(auditLog))
	require.NoError(t, err)

	configs, err := guildconfig.NewService(guildconfig.NewMemoryStore(), guildconfig.WithClock(clock), guildconfig.WithLogger(lg))
	require.NoError(t, err)

	f.config = Config{CommandRate: 1000, CommandBurst: 1000, ActivationRoleID: "ract", ActivatedRoleID: "rdone"}
	for _, m := range mutate {
		m(&f.config)
	}
	b, err := New(pins, engine, configs, f.dir, f.config, WithClock(clock), WithLogger(lg))
	require.NoError(t, err)
	f.bot = b
	return f
}

func (f *fixture) command(cmd, sub string, admin bool, user User, opts map[string]string) Response {
	return f.bot.Handle(context.Background(), Request{
		Kind:       KindCommand,
		Command:    cmd,
		Subcommand: sub,
		Options:    opts,
		GuildID:    testGuild,
		GuildName:  "Test Guild",
		User:       user,
		IsAdmin:    admin,
	})
}

func (f *fixture) click(customID string, user User) Response {
	return f.bot.Handle(context.Background(), Request{
		Kind:      KindComponent,
		CustomID:  customID,
		GuildID:   testGuild,
		GuildName: "Test Guild",
		User:      user,
		IsAdmin:   true,
	})
}

func (f *fixture) setup(t *testing.T) {
	t.Helper()
	resp := f.command(CmdServerConfig, SubSetup, true, admin, nil)
	require.Equal(t, "**Server Configured**", title(resp))
}

var (
	admin = User{ID: "admin-1", Tag: "root"}
	alice = User{ID: "u1", Tag: "alice"}
	bob   = User{ID: "u2", Tag: "bob"}
	carol = User{ID: "u3", Tag: "carol"}
	dave  = User{ID: "u4", Tag: "dave"}
)

func (f *fixture) pinCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background(), pin.Filter{})
	require.NoError(t, err)
	return n
}

func title(r Response) string {
	if len(r.Embeds) == 0 {
		return ""
	}
	return r.Embeds[0].Title
}

func field(e Embed, name string) string {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
