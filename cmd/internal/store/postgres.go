package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultSchema is the PostgreSQL schema pinbot tables live in.
const DefaultSchema = "pinbot"

// Ident returns a sanitized schema-qualified identifier.
func Ident(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// UniqueViolation reports the violated constraint name when err is a unique violation (23505).
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" {
		return "", false
	}
	return pgErr.ConstraintName, true
}

// EscapeLike escapes LIKE/ILIKE metacharacters so term matches literally.
// The escape character is a backslash.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// Ident1 returns a sanitized single identifier, such as a schema name.
func Ident1(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
