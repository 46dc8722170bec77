package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEntry struct {
	ID          string    `bson:"_id"`
	Action      string    `bson:"action"`
	Pin         *string   `bson:"pin,omitempty"`
	PerformedBy string    `bson:"performedBy"`
	Details     bson.M    `bson:"details"`
	PerformedAt time.Time `bson:"performedAt"`
}

// MongoStore persists entries in the auditlogs collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore binds the store to db and ensures its indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, ErrInvalidInput
	}
	coll := db.Collection("auditlogs")
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pin", Value: 1}}, Options: options.Index().SetName("ix_audit_pin")},
		{Keys: bson.D{{Key: "performedBy", Value: 1}}, Options: options.Index().SetName("ix_audit_performed_by")},
		{Keys: bson.D{{Key: "pin", Value: 1}, {Key: "performedAt", Value: 1}}, Options: options.Index().SetName("ix_audit_pin_performed_at")},
	})
	if err != nil {
		return nil, fmt.Errorf("audit indexes: %w", err)
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Append(ctx context.Context, e Entry) error {
	if e.ID == "" || !e.Action.Valid() {
		return ErrInvalidInput
	}
	details := bson.M{}
	if len(e.Details) > 0 {
		if err := json.Unmarshal(e.Details, &details); err != nil {
			return fmt.Errorf("audit details: %w", err)
		}
	}
	_, err := s.coll.InsertOne(ctx, mongoEntry{
		ID:          e.ID,
		Action:      string(e.Action),
		Pin:         e.Pin,
		PerformedBy: e.PerformedBy,
		Details:     details,
		PerformedAt: e.PerformedAt,
	})
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, q Query) ([]Entry, error) {
	filter := bson.D{}
	if q.Pin != "" {
		filter = append(filter, bson.E{Key: "pin", Value: q.Pin})
	}
	if q.Action != "" {
		filter = append(filter, bson.E{Key: "action", Value: string(q.Action)})
	}
	if !q.Since.IsZero() {
		filter = append(filter, bson.E{Key: "performedAt", Value: bson.D{{Key: "$gte", Value: q.Since}}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "performedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(q.limit()))
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	var docs []mongoEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}

	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		raw, err := json.Marshal(d.Details)
		if err != nil {
			return nil, fmt.Errorf("audit details: %w", err)
		}
		out = append(out, Entry{
			ID:          d.ID,
			Action:      Action(d.Action),
			Pin:         d.Pin,
			PerformedBy: d.PerformedBy,
			Details:     raw,
			PerformedAt: d.PerformedAt.UTC(),
		})
	}
	return out, nil
}
