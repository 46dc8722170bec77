package notify

import (
	"context"
	"time"

	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists notifications in the notifications table.
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

func (s *PostgresStore) table() string { return store.Ident(s.schema, "notifications") }

func (s *PostgresStore) Insert(ctx context.Context, n Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (id, user_id, message, send_at, status, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
		n.ID, n.UserID, n.Message, n.SendAt, string(n.Status), n.Attempts, n.LastError, n.CreatedAt)
	if err != nil {
		return pin.StoreError{Op: "notify.PostgresStore.Insert", Err: err}
	}
	return nil
}

func (s *PostgresStore) Due(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	const op = "notify.PostgresStore.Due"
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, message, send_at, status, attempts, COALESCE(last_error, ''), created_at
		  FROM `+s.table()+`
		 WHERE status = 'pending' AND send_at <= $1
		 ORDER BY send_at, id
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, pin.StoreError{Op: op, Err: err}
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var (
			n      Notification
			status string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.SendAt, &status, &n.Attempts, &n.LastError, &n.CreatedAt); err != nil {
			return nil, pin.StoreError{Op: op, Err: err}
		}
		n.Status = Status(status)
		n.SendAt = n.SendAt.UTC()
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, pin.StoreError{Op: op, Err: err}
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, n Notification) error {
	const op = "notify.PostgresStore.Save"
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+` SET status = $2, attempts = $3, last_error = NULLIF($4, '') WHERE id = $1`,
		n.ID, string(n.Status), n.Attempts, n.LastError)
	if err != nil {
		return pin.StoreError{Op: op, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return errNotFound
	}
	return nil
}
