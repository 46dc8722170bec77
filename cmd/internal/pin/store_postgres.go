package pin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pinbot/cmd/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgPinColumns = `id, pin, user_id, user_tag, role_name, role_id, expiration_date, status, created_at, updated_at, metadata`

// PostgresStore persists pins in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "pinbot").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return OpError{Op: "pin.WithSchema", Kind: ErrValidation, Msg: "schema required"}
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: store.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, OpError{Op: "pin.NewPostgresStore", Kind: ErrValidation, Msg: "pool required"}
	}
	return st, nil
}

func (s *PostgresStore) pins() string     { return store.Ident(s.schema, "pins") }
func (s *PostgresStore) archived() string { return store.Ident(s.schema, "archived_pins") }

func (s *PostgresStore) Insert(ctx context.Context, p Pin) (Pin, error) {
	const op = "pin.PostgresStore.Insert"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.pins()+` (`+pgPinColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+pgPinColumns,
		p.ID, p.Code, p.UserID, p.UserTag, p.RoleName, p.RoleID,
		p.ExpiresAt, string(p.Status), p.CreatedAt, p.UpdatedAt, p.Metadata,
	)
	out, err := scanPin(row)
	if err != nil {
		return Pin{}, pgClassify(op, err)
	}
	return out, nil
}

func (s *PostgresStore) FindOne(ctx context.Context, f Filter) (Pin, error) {
	const op = "pin.PostgresStore.FindOne"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}
	where, args := pgWhere(f)
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPinColumns+` FROM `+s.pins()+where+` ORDER BY id LIMIT 1`,
		args...,
	)
	out, err := scanPin(row)
	if err != nil {
		return Pin{}, pgClassify(op, err)
	}
	return out, nil
}

func (s *PostgresStore) Find(ctx context.Context, f Filter) ([]Pin, error) {
	const op = "pin.PostgresStore.Find"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	where, args := pgWhere(f)
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPinColumns+` FROM `+s.pins()+where+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, storeErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Pin, error) { return scanPin(r) })
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, f Filter) (int, error) {
	const op = "pin.PostgresStore.Count"
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	where, args := pgWhere(f)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.pins()+where, args...).Scan(&n); err != nil {
		return 0, storeErr(op, err)
	}
	return n, nil
}

func (s *PostgresStore) Update(ctx context.Context, p Pin) (Pin, error) {
	const op = "pin.PostgresStore.Update"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.pins()+`
		    SET pin = $2,
		        user_id = $3,
		        user_tag = $4,
		        role_name = $5,
		        role_id = $6,
		        expiration_date = $7,
		        status = $8,
		        created_at = $9,
		        updated_at = $10,
		        metadata = $11
		  WHERE id = $1
		RETURNING `+pgPinColumns,
		p.ID, p.Code, p.UserID, p.UserTag, p.RoleName, p.RoleID,
		p.ExpiresAt, string(p.Status), p.CreatedAt, p.UpdatedAt, p.Metadata,
	)
	out, err := scanPin(row)
	if err != nil {
		return Pin{}, pgClassify(op, err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteOne(ctx context.Context, f Filter) (Pin, error) {
	const op = "pin.PostgresStore.DeleteOne"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}
	if f.IsZero() {
		return Pin{}, OpError{Op: op, Kind: ErrMissingSelector}
	}
	where, args := pgWhere(f)
	row := s.pool.QueryRow(ctx,
		`DELETE FROM `+s.pins()+`
		  WHERE id = (SELECT id FROM `+s.pins()+where+` ORDER BY id LIMIT 1)
		RETURNING `+pgPinColumns,
		args...,
	)
	out, err := scanPin(row)
	if err != nil {
		return Pin{}, pgClassify(op, err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteMany(ctx context.Context, f Filter) ([]Pin, error) {
	const op = "pin.PostgresStore.DeleteMany"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.IsZero() {
		return nil, OpError{Op: op, Kind: ErrMissingSelector}
	}
	where, args := pgWhere(f)
	rows, err := s.pool.Query(ctx, `DELETE FROM `+s.pins()+where+` RETURNING `+pgPinColumns, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Pin, error) { return scanPin(r) })
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func (s *PostgresStore) Search(ctx context.Context, q SearchQuery) ([]Pin, int, error) {
	const op = "pin.PostgresStore.Search"
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	col, ok := pgSearchColumn(q.Field)
	if !ok {
		return nil, 0, OpError{Op: op, Kind: ErrValidation, Msg: "unknown search field"}
	}

	cond := ` WHERE ` + col + ` ILIKE '%' || $1 || '%' ESCAPE '\'`
	term := store.EscapeLike(q.Term)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.pins()+cond, term).Scan(&total); err != nil {
		return nil, 0, storeErr(op, err)
	}

	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPinColumns+` FROM `+s.pins()+cond+` ORDER BY id LIMIT $2 OFFSET $3`,
		term, limit, max(q.Offset, 0),
	)
	if err != nil {
		return nil, 0, storeErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Pin, error) { return scanPin(r) })
	if err != nil {
		return nil, 0, storeErr(op, err)
	}
	return out, total, nil
}

func (s *PostgresStore) Archive(ctx context.Context, p Pin, archivedAt time.Time) error {
	const op = "pin.PostgresStore.Archive"
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		`INSERT INTO `+s.archived()+` (
		     id, pin, user_id, user_tag, role_name, role_id, expiration_date, status, created_at, updated_at, archived_at, metadata
		   )
		 SELECT id, pin, user_id, user_tag, role_name, role_id, expiration_date, 'archived', created_at, updated_at, $2, metadata
		   FROM `+s.pins()+`
		  WHERE id = $1`,
		p.ID, archivedAt,
	)
	if err != nil {
		return storeErr(op, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(op, p.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM `+s.pins()+` WHERE id = $1`, p.ID); err != nil {
		return storeErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func scanPin(row pgx.Row) (Pin, error) {
	var (
		p      Pin
		status string
	)
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.UserID,
		&p.UserTag,
		&p.RoleName,
		&p.RoleID,
		&p.ExpiresAt,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Metadata,
	)
	if err != nil {
		return Pin{}, err
	}
	p.Status = Status(status)
	p.ExpiresAt = p.ExpiresAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func pgWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Code != "" {
		add("pin = $%d", f.Code)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.UserTag != "" {
		add("user_tag = $%d", f.UserTag)
	}
	if f.RoleName != "" {
		add("role_name = $%d", f.RoleName)
	}
	if !f.ExpiresFrom.IsZero() {
		add("expiration_date >= $%d", f.ExpiresFrom)
	}
	if !f.ExpiresTo.IsZero() {
		add("expiration_date <= $%d", f.ExpiresTo)
	}
	if !f.ExpiredBefore.IsZero() {
		add("expiration_date < $%d", f.ExpiredBefore)
	}
	if f.Lettered {
		conds = append(conds, "pin ~ '[A-Za-z]'")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func pgSearchColumn(f SearchField) (string, bool) {
	switch f {
	case FieldSearchPin:
		return "pin", true
	case FieldSearchUserTag:
		return "user_tag", true
	case FieldSearchRoleName:
		return "role_name", true
	}
	return "", false
}

func pgClassify(op string, err error) error {
	if store.IsNoRows(err) {
		return notFound(op, "")
	}
	if name, ok := store.UniqueViolation(err); ok {
		if name == "uq_pins_user_id" {
			return ConflictError{Op: op, Field: FieldUserID}
		}
		return ConflictError{Op: op, Field: FieldPin}
	}
	return storeErr(op, err)
}
