package store

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain":   "plain",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range cases {
		if got := EscapeLike(in); got != want {
			t.Fatalf("EscapeLike(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestUniqueViolation(t *testing.T) {
	t.Parallel()

	err := &pgconn.PgError{Code: "23505", ConstraintName: "uq_pins_user_id"}
	name, ok := UniqueViolation(err)
	if !ok || name != "uq_pins_user_id" {
		t.Fatalf("UniqueViolation=%q,%v", name, ok)
	}

	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23503"}); ok {
		t.Fatalf("fk violation must not classify as unique")
	}
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Fatalf("plain error must not classify as unique")
	}
}

func TestDuplicateKeyIndex(t *testing.T) {
	t.Parallel()

	err := mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: pinbot.pins index: uq_pins_user_id dup key: { userId: "42" }`,
	}}}

	name, ok := DuplicateKeyIndex(err)
	if !ok {
		t.Fatalf("expected duplicate key classification")
	}
	if name != "uq_pins_user_id" {
		t.Fatalf("index=%q want uq_pins_user_id", name)
	}

	if _, ok := DuplicateKeyIndex(errors.New("other")); ok {
		t.Fatalf("plain error must not classify as duplicate")
	}
}

func TestContainsRegex_QuotesMeta(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile("(?i)" + ContainsRegex("a.b*"))
	if !re.MatchString("xxA.B*yy") {
		t.Fatalf("expected literal match")
	}
	if re.MatchString("aXbbb") {
		t.Fatalf("metacharacters must not be interpreted")
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no embedded migrations")
	}
}

func TestMigrate_CreatesSchemaThenRunsGoose(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "pinbot_it"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	called := false
	orig := gooseUpContext
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		if dir != "migrations" {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := Migrate(context.Background(), db, "pinbot_it"); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if !called {
		t.Fatalf("goose was not invoked")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigrate_PropagatesGooseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE SCHEMA").WillReturnResult(sqlmock.NewResult(0, 0))

	orig := gooseUpContext
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err = Migrate(context.Background(), db, "pinbot_it")
	if err == nil || err.Error() != "migrate: boom" {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}
