package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/pin"
)

func TestPinsExpiring(t *testing.T) {
	f := newFixture()
	f.addPin(t, "11111111", "u1", "special1m", testNow.Add(20*24*time.Hour))
	f.addPin(t, "22222222", "u2", "special3m", testNow.Add(5*24*time.Hour))
	f.addPin(t, "33333333", "u3", "special1y", testNow.Add(200*24*time.Hour))

	code, out, _ := f.run("pins", "expiring", "--days", "30")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "PIN")
	assert.Contains(t, out, "5 days remaining")
	assert.NotContains(t, out, "33333333")
	assert.Less(t, strings.Index(out, "22222222"), strings.Index(out, "11111111"), "soonest first")

	code, out, _ = f.run("--format", "json", "pins", "expiring", "--days", "10")
	require.Equal(t, ExitSuccess, code)
	var pins []pin.Pin
	require.NoError(t, json.Unmarshal([]byte(out), &pins))
	require.Len(t, pins, 1)
	assert.Equal(t, "22222222", pins[0].Code)

	code, out, _ = f.run("pins", "expiring", "--days", "1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No pins expire in the next 1 days.")

	code, _, _ = f.run("pins", "expiring", "--days", "0")
	assert.Equal(t, ExitCommandError, code)
}

func TestPinsArchive(t *testing.T) {
	f := newFixture()
	f.addPin(t, "11111111", "u1", "special1m", testNow.Add(-24*time.Hour))
	f.addPin(t, "22222222", "u2", "special1m", testNow.Add(24*time.Hour))

	code, out, _ := f.run("--format", "json", "pins", "archive")
	require.Equal(t, ExitSuccess, code)

	var res ArchiveResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Archived)
	assert.Equal(t, []string{"11111111"}, res.Codes)

	n, err := f.pins.Count(context.Background(), pin.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := f.entries.List(context.Background(), audit.Query{Action: audit.ActionArchive})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PerformedBy, entries[0].PerformedBy)

	due, err := f.notes.Due(context.Background(), testNow.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "u1", due[0].UserID)
}

func TestPinsFlagLetters(t *testing.T) {
	f := newFixture()
	p := f.addPin(t, "1234ab78", "u1", "special1m", testNow.Add(24*time.Hour))
	p.Metadata.ContainsLetters = false
	_, err := f.pins.Update(context.Background(), p)
	require.NoError(t, err)
	f.addPin(t, "87654321", "u2", "special3m", testNow.Add(24*time.Hour))

	logPath := filepath.Join(t.TempDir(), "letters.log")
	code, out, _ := f.run("pins", "flag-letters", "--log-file", logPath)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Scanned 2 pin(s); 1 contain letters, 1 newly marked.")
	assert.Contains(t, out, "special1m: 1")

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "1234ab78")

	got, err := f.pins.FindOne(context.Background(), pin.Filter{Code: "1234ab78"})
	require.NoError(t, err)
	assert.True(t, got.Metadata.ContainsLetters)
}

func TestPinsBackfill(t *testing.T) {
	f := newFixture()
	f.addPin(t, "11111111", "u1", "special1m", testNow.Add(24*time.Hour))
	legacy := f.addPin(t, "22222222", "u2", "special1m", testNow.Add(24*time.Hour))
	legacy.RoleID, legacy.RoleName = "", ""
	_, err := f.pins.Update(context.Background(), legacy)
	require.NoError(t, err)

	code, out, _ := f.run("--format", "yaml", "pins", "backfill")
	require.Equal(t, ExitSuccess, code)

	var res BackfillResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Changed)

	got, err := f.pins.FindOne(context.Background(), pin.Filter{Code: "22222222"})
	require.NoError(t, err)
	assert.Equal(t, pin.BackfillRoleID, got.RoleID)
}

func TestAuditTail(t *testing.T) {
	f := newFixture()
	log := audit.NewLog(f.entries, audit.WithClock(func() time.Time { return testNow }))
	for _, code := range []string{"11111111", "22222222", "33333333"} {
		code := code
		require.NoError(t, log.Record(context.Background(), audit.ActionAdd, &code, "admin", nil))
	}
	c := "22222222"
	require.NoError(t, log.Record(context.Background(), audit.ActionDelete, &c, "admin", nil))

	code, out, _ := f.run("--format", "json", "audit", "tail", "--limit", "2")
	require.Equal(t, ExitSuccess, code)
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 2)

	code, out, _ = f.run("audit", "tail", "--action", "delete")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "22222222")
	assert.NotContains(t, out, "11111111")

	code, out, _ = f.run("audit", "tail", "--pin", "99999999")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No audit entries.")

	code, _, _ = f.run("audit", "tail", "--action", "rename")
	assert.Equal(t, ExitCommandError, code)
}

func TestConfigShow(t *testing.T) {
	f := newFixture()
	cfg := guildconfig.ServerConfig{GuildID: "g1", GuildName: "Guild"}
	cfg.Roles.Special1M = guildconfig.RoleRef{ID: "r1m", Name: "special1m"}
	_, err := f.configs.Put(context.Background(), cfg)
	require.NoError(t, err)

	code, out, _ := f.run("config", "show", "--guild", "g1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Guild (g1)")
	assert.Contains(t, out, "r1m")

	code, out, _ = f.run("--format", "yaml", "config", "show", "--guild", "g1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "serverId: g1")
	assert.Contains(t, out, "roleId: r1m")

	code, _, stderr := f.run("config", "show", "--guild", "g2")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "no configuration for server g2")

	code, _, _ = f.run("config", "show")
	assert.Equal(t, ExitCommandError, code)
}

func TestMigrate_Memory(t *testing.T) {
	f := newFixture()
	code, out, _ := f.run("migrate")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "nothing to migrate")
}
