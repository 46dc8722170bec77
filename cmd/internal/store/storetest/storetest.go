// Package storetest opens throwaway Postgres schemas and Mongo databases for
// integration tests.
//
// Postgres tests run when PINBOT_DATABASE_URL is set; Mongo tests run when
// PINBOT_MONGO_TEST_URI is set. Outside CI an unreachable server skips the test.
package storetest

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"pinbot/cmd/internal/ids"
	"pinbot/cmd/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// OpenPool connects to PINBOT_DATABASE_URL or skips the test.
func OpenPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PINBOT_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PINBOT_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse PINBOT_DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if ShouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	t.Cleanup(pool.Close)
	return pool
}

// MigratedSchema creates a fresh schema, runs the embedded migrations into it
// and drops it when the test ends.
func MigratedSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "pinbot_it_" + strings.ToLower(ids.MustULID(time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+store.Ident1(schema)+` CASCADE`)
	})

	if err := store.MigratePool(ctx, pool, schema); err != nil {
		t.Fatalf("migrate %s: %v", schema, err)
	}
	return schema
}

// OpenMongo connects to PINBOT_MONGO_TEST_URI and returns a uniquely named
// database that is dropped when the test ends.
func OpenMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := strings.TrimSpace(os.Getenv("PINBOT_MONGO_TEST_URI"))
	if uri == "" {
		t.Skip("integration test skipped: PINBOT_MONGO_TEST_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := store.ConnectMongo(ctx, uri, 3*time.Second)
	if err != nil {
		if ShouldSkip(err) {
			t.Skipf("integration test skipped: MongoDB unreachable: %v", err)
		}
		t.Fatalf("connect mongo: %v", err)
	}

	db := client.Database("pinbot_it_" + strings.ToLower(ids.MustULID(time.Now())))
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer ccancel()
		_ = db.Drop(cctx)
		_ = client.Disconnect(cctx)
	})
	return db
}

// ShouldSkip reports a connectivity error that should skip rather than fail
// a local run. In CI nothing is skipped.
func ShouldSkip(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "context deadline exceeded", "timeout", "dial tcp", "no such host", "server selection error"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
