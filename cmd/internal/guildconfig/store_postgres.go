package guildconfig

import (
	"context"
	"encoding/json"

	"pinbot/cmd/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists configs in the server_configs table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore constructs a PostgresStore. An empty schema uses the default.
func NewPostgresStore(pool *pgxpool.Pool, schema string) *PostgresStore {
	if schema == "" {
		schema = store.DefaultSchema
	}
	return &PostgresStore{pool: pool, schema: schema}
}

func (s *PostgresStore) table() string { return store.Ident(s.schema, "server_configs") }

const pgConfigColumns = `server_id, server_name, roles::text, created_at, updated_at`

func scanConfig(row pgx.Row) (ServerConfig, error) {
	var (
		cfg   ServerConfig
		roles string
	)
	if err := row.Scan(&cfg.GuildID, &cfg.GuildName, &roles, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return ServerConfig{}, err
	}
	if err := json.Unmarshal([]byte(roles), &cfg.Roles); err != nil {
		return ServerConfig{}, err
	}
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return cfg, nil
}

func (s *PostgresStore) Get(ctx context.Context, guildID string) (ServerConfig, error) {
	const op = "guildconfig.PostgresStore.Get"
	cfg, err := scanConfig(s.pool.QueryRow(ctx,
		`SELECT `+pgConfigColumns+` FROM `+s.table()+` WHERE server_id = $1`, guildID))
	if store.IsNoRows(err) {
		return ServerConfig{}, ErrNotFound
	}
	if err != nil {
		return ServerConfig{}, storeErr(op, err)
	}
	return cfg, nil
}

func (s *PostgresStore) Put(ctx context.Context, cfg ServerConfig) (ServerConfig, error) {
	const op = "guildconfig.PostgresStore.Put"
	roles, err := json.Marshal(cfg.Roles)
	if err != nil {
		return ServerConfig{}, storeErr(op, err)
	}
	saved, err := scanConfig(s.pool.QueryRow(ctx, `
		INSERT INTO `+s.table()+` (server_id, server_name, roles, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (server_id) DO UPDATE
		  SET server_name = EXCLUDED.server_name, roles = EXCLUDED.roles, updated_at = EXCLUDED.updated_at
		RETURNING `+pgConfigColumns,
		cfg.GuildID, cfg.GuildName, string(roles), cfg.CreatedAt, cfg.UpdatedAt))
	if err != nil {
		return ServerConfig{}, storeErr(op, err)
	}
	return saved, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]ServerConfig, error) {
	const op = "guildconfig.PostgresStore.List"
	rows, err := s.pool.Query(ctx, `SELECT `+pgConfigColumns+` FROM `+s.table()+` ORDER BY server_id`)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	out := []ServerConfig{}
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}
