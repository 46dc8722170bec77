package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/guildconfig"
	"pinbot/cmd/internal/notify"
	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Backend bundles the stores of one storage engine. It owns the underlying
// pool or client.
type Backend struct {
	Kind string

	Pins          pin.Store
	Audit         audit.Store
	Configs       guildconfig.Store
	Notifications notify.Store

	pool  *pgxpool.Pool
	mongo *mongo.Client
}

// OpenBackend connects the engine chosen by cfg.Backend(). Postgres schemas
// are migrated when cfg.MigrateOnStart is set; Mongo stores ensure their
// indexes on construction.
func OpenBackend(ctx context.Context, cfg Config, log *slog.Logger) (*Backend, error) {
	switch kind := cfg.Backend(); kind {
	case BackendMemory:
		log.Info("store.memory")
		return &Backend{
			Kind:          kind,
			Pins:          pin.NewMemoryStore(),
			Audit:         audit.NewMemoryStore(),
			Configs:       guildconfig.NewMemoryStore(),
			Notifications: notify.NewMemoryStore(),
		}, nil
	case BackendPostgres:
		return openPostgres(ctx, cfg, log)
	case BackendMongo:
		return openMongo(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

func openPostgres(ctx context.Context, cfg Config, log *slog.Logger) (*Backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("PINBOT_DATABASE_URL is required for the postgres store")
	}
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Backend, error) {
		pool.Close()
		return nil, err
	}

	if cfg.MigrateOnStart {
		if err := store.MigratePool(ctx, pool, cfg.DBSchema); err != nil {
			return fail(err)
		}
		log.Info("store.migrated", "schema", cfg.DBSchema)
	}

	pins, err := pin.NewPostgresStore(pool, pin.WithSchema(cfg.DBSchema))
	if err != nil {
		return fail(err)
	}
	entries, err := audit.NewPostgresStore(pool, cfg.DBSchema)
	if err != nil {
		return fail(err)
	}

	log.Info("store.postgres", "schema", cfg.DBSchema)
	return &Backend{
		Kind:          BackendPostgres,
		Pins:          pins,
		Audit:         entries,
		Configs:       guildconfig.NewPostgresStore(pool, cfg.DBSchema),
		Notifications: notify.NewPostgresStore(pool, cfg.DBSchema),
		pool:          pool,
	}, nil
}

func openMongo(ctx context.Context, cfg Config, log *slog.Logger) (*Backend, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is required for the mongo store")
	}
	client, err := NewMongoClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Backend, error) {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	name := cfg.MongoDatabase
	if name == "" {
		name = store.DefaultMongoDatabase
	}
	db := client.Database(name)

	pins, err := pin.NewMongoStore(ctx, db)
	if err != nil {
		return fail(err)
	}
	entries, err := audit.NewMongoStore(ctx, db)
	if err != nil {
		return fail(err)
	}
	configs, err := guildconfig.NewMongoStore(ctx, db)
	if err != nil {
		return fail(err)
	}
	notes, err := notify.NewMongoStore(ctx, db)
	if err != nil {
		return fail(err)
	}

	log.Info("store.mongo", "database", name)
	return &Backend{
		Kind:          BackendMongo,
		Pins:          pins,
		Audit:         entries,
		Configs:       configs,
		Notifications: notes,
		mongo:         client,
	}, nil
}

// Durable reports whether records survive a restart.
func (b *Backend) Durable() bool { return b.Kind != BackendMemory }

// Pool exposes the Postgres pool, nil for other engines.
func (b *Backend) Pool() *pgxpool.Pool { return b.pool }

// Ping checks the engine answers within timeout. Memory always answers.
func (b *Backend) Ping(ctx context.Context, timeout time.Duration) error {
	switch {
	case b.pool != nil:
		return PingDB(ctx, b.pool, timeout)
	case b.mongo != nil:
		return store.PingMongo(ctx, b.mongo, timeout)
	}
	return nil
}

// Close releases the pool or client.
func (b *Backend) Close(ctx context.Context) error {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.mongo != nil {
		return b.mongo.Disconnect(ctx)
	}
	return nil
}
