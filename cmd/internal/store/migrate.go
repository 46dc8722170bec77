package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenSQL opens a database/sql handle over the pool's connection config with
// search_path pinned to schema. Migrations are written unqualified and land in schema.
func OpenSQL(pool *pgxpool.Pool, schema string) *sql.DB {
	cc := pool.Config().ConnConfig.Copy()
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = map[string]string{}
	}
	cc.RuntimeParams["search_path"] = schema
	return stdlib.OpenDB(*cc)
}

// Migrate creates schema if needed and applies the embedded migrations to it.
func Migrate(ctx context.Context, db *sql.DB, schema string) error {
	if schema == "" {
		schema = DefaultSchema
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", Ident1(schema))); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// MigratePool is Migrate over a pgx pool.
func MigratePool(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if schema == "" {
		schema = DefaultSchema
	}
	db := OpenSQL(pool, schema)
	defer func() { _ = db.Close() }()
	return Migrate(ctx, db, schema)
}

// Version returns the applied migration version for the schema behind db.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
