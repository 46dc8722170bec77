package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pinbot/cmd/internal/app"
	"pinbot/cmd/internal/store"
)

// MigrateResult reports what `pinctl migrate` did.
type MigrateResult struct {
	Store   string `json:"store"`
	Schema  string `json:"schema,omitempty"`
	Version int64  `json:"version,omitempty"`
	Message string `json:"message"`
}

func newMigrateCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply embedded goose migrations to PostgreSQL.

With MongoDB, connecting ensures the collection indexes. The memory store has
nothing to migrate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(r, cmd)
		},
	}
}

func runMigrate(r *runner, cmd *cobra.Command) error {
	ctx := cmd.Context()
	p := r.printer(cmd)

	svc, err := r.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer svc.close()

	cfg := r.env.Config()
	res := MigrateResult{Store: svc.backend.Kind}

	switch svc.backend.Kind {
	case app.BackendPostgres:
		schema := cfg.DBSchema
		if schema == "" {
			schema = store.DefaultSchema
		}
		p.Logf("migrating schema %s", schema)
		if err := store.MigratePool(ctx, svc.backend.Pool(), schema); err != nil {
			return WrapExitError(ExitFailure, "migrate", err)
		}
		db := store.OpenSQL(svc.backend.Pool(), schema)
		defer func() { _ = db.Close() }()
		v, err := store.Version(ctx, db)
		if err != nil {
			return WrapExitError(ExitFailure, "read version", err)
		}
		res.Schema, res.Version = schema, v
		res.Message = fmt.Sprintf("schema %s at version %d", schema, v)
	case app.BackendMongo:
		res.Message = "indexes ensured"
	default:
		res.Message = "memory store: nothing to migrate"
	}

	return p.Print(res, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, res.Message)
		return err
	})
}
