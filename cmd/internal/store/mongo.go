package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultMongoDatabase is used when the URI carries no database name and none is configured.
const DefaultMongoDatabase = "pinbot"

// ConnectMongo connects to uri and verifies the primary is reachable within timeout.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetAppName("pinbot").
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := PingMongo(ctx, client, timeout); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// PingMongo checks the primary answers within timeout.
func PingMongo(parent context.Context, client *mongo.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}

// IsNoDocuments reports whether err is mongo.ErrNoDocuments.
func IsNoDocuments(err error) bool { return errors.Is(err, mongo.ErrNoDocuments) }

// DuplicateKeyIndex reports the index name of a duplicate key error.
// The name is empty when the server message does not carry one.
func DuplicateKeyIndex(err error) (string, bool) {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return "", false
	}
	msg := err.Error()
	i := strings.Index(msg, "index: ")
	if i < 0 {
		return "", true
	}
	rest := msg[i+len("index: "):]
	if j := strings.IndexAny(rest, " ]"); j >= 0 {
		rest = rest[:j]
	}
	return rest, true
}

// ContainsRegex builds a case-insensitive substring regex that matches term literally.
func ContainsRegex(term string) string {
	return regexp.QuoteMeta(term)
}
