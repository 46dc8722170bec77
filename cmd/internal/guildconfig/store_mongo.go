package guildconfig

import (
	"context"
	"time"

	"pinbot/cmd/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConfigsCollection = "serverconfigs"

type mongoConfig struct {
	GuildID   string    `bson:"serverId"`
	GuildName string    `bson:"serverName"`
	Roles     Roles     `bson:"roles"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d mongoConfig) config() ServerConfig {
	return ServerConfig{
		GuildID:   d.GuildID,
		GuildName: d.GuildName,
		Roles:     d.Roles,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// MongoStore persists configs in the serverconfigs collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore constructs a MongoStore and ensures its unique index.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{coll: db.Collection(mongoConfigsCollection)}
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "serverId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_serverconfigs_server_id"),
	})
	if err != nil {
		return nil, storeErr("guildconfig.NewMongoStore", err)
	}
	return s, nil
}

func (s *MongoStore) Get(ctx context.Context, guildID string) (ServerConfig, error) {
	var doc mongoConfig
	err := s.coll.FindOne(ctx, bson.M{"serverId": guildID}).Decode(&doc)
	if store.IsNoDocuments(err) {
		return ServerConfig{}, ErrNotFound
	}
	if err != nil {
		return ServerConfig{}, storeErr("guildconfig.MongoStore.Get", err)
	}
	return doc.config(), nil
}

func (s *MongoStore) Put(ctx context.Context, cfg ServerConfig) (ServerConfig, error) {
	const op = "guildconfig.MongoStore.Put"
	var doc mongoConfig
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"serverId": cfg.GuildID},
		bson.M{
			"$set": bson.M{
				"serverName": cfg.GuildName,
				"roles":      cfg.Roles,
				"updatedAt":  cfg.UpdatedAt,
			},
			"$setOnInsert": bson.M{"createdAt": cfg.CreatedAt},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return ServerConfig{}, storeErr(op, err)
	}
	return doc.config(), nil
}

func (s *MongoStore) List(ctx context.Context) ([]ServerConfig, error) {
	const op = "guildconfig.MongoStore.List"
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "serverId", Value: 1}}))
	if err != nil {
		return nil, storeErr(op, err)
	}
	var docs []mongoConfig
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(op, err)
	}
	out := make([]ServerConfig, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.config())
	}
	return out, nil
}
