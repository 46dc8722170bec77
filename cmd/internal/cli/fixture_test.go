package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pinbot/cmd/internal/app"
	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/ids"
	"pinbot/cmd/internal/notify"
	"pinbot/cmd/internal/pin"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	pins    *pin.MemoryStore
	entries *audit.MemoryStore
	configs *guildconfig.MemoryStore
	notes   *notify.MemoryStore
	openErr error
}

func newFixture() *fixture {
	return &fixture{
		pins:    pin.NewMemoryStore(),
		entries: audit.NewMemoryStore(),
		configs: guildconfig.NewMemoryStore(),
		notes:   notify.NewMemoryStore(),
	}
}

func (f *fixture) env() Env {
	return Env{
		Config: func() app.Config { return app.Config{Store: app.BackendMemory} },
		Open: func(_ context.Context, _ app.Config, _ *slog.Logger) (*app.Backend, error) {
			if f.openErr != nil {
				return nil, f.openErr
			}
			return &app.Backend{
				Kind:          app.BackendMemory,
				Pins:          f.pins,
				Audit:         f.entries,
				Configs:       f.configs,
				Notifications: f.notes,
			}, nil
		},
		Now: func() time.Time { return testNow },
	}
}

// run executes pinctl and returns exit code, stdout and stderr.
func (f *fixture) run(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), f.env(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func (f *fixture) addPin(t *testing.T, code, userID, role string, expires time.Time) pin.Pin {
	t.Helper()
	id, err := ids.NewULID(testNow)
	require.NoError(t, err)
	p := pin.Pin{
		ID:        id,
		Code:      code,
		UserID:    userID,
		UserTag:   "user-" + userID,
		RoleName:  role,
		RoleID:    "r-" + role,
		ExpiresAt: expires,
		CreatedAt: testNow,
		UpdatedAt: testNow,
		Metadata:  pin.Metadata{ContainsLetters: pin.ContainsLetters(code)},
	}
	p.Status = pin.DeriveStatus(p, testNow)
	saved, err := f.pins.Insert(context.Background(), p)
	require.NoError(t, err)
	return saved
}

var errUnreachable = errors.New("connection refused")
