package audit

import (
	"context"
	"fmt"
	"strings"

	"pinbot/cmd/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists entries in the audit_log table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore constructs a PostgresStore. An empty schema means the default.
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrInvalidInput
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = store.DefaultSchema
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" || !e.Action.Valid() {
		return ErrInvalidInput
	}
	details := e.Details
	if len(details) == 0 {
		details = []byte(`{}`)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+store.Ident(s.schema, "audit_log")+` (id, action, pin, performed_by, details, performed_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.ID, string(e.Action), e.Pin, e.PerformedBy, string(details), e.PerformedAt,
	)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if q.Pin != "" {
		add("pin = $%d", q.Pin)
	}
	if q.Action != "" {
		add("action = $%d", string(q.Action))
	}
	if !q.Since.IsZero() {
		add("performed_at >= $%d", q.Since)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.limit())

	rows, err := s.pool.Query(ctx,
		`SELECT id, action, pin, performed_by, details::text, performed_at
		   FROM `+store.Ident(s.schema, "audit_log")+where+`
		  ORDER BY performed_at DESC, id DESC
		  LIMIT $`+fmt.Sprint(len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (Entry, error) {
		var (
			e       Entry
			action  string
			details string
		)
		if err := r.Scan(&e.ID, &action, &e.Pin, &e.PerformedBy, &details, &e.PerformedAt); err != nil {
			return Entry{}, err
		}
		e.Action = Action(action)
		e.Details = []byte(details)
		e.PerformedAt = e.PerformedAt.UTC()
		return e, nil
	})
}
