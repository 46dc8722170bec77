package notify

import (
	"context"
	"time"

	"pinbot/cmd/internal/pin"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoNotificationsCollection = "notifications"

type mongoNotification struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Message   string    `bson:"message"`
	SendAt    time.Time `bson:"sendAt"`
	IsSent    bool      `bson:"isSent"`
	Status    string    `bson:"status"`
	Attempts  int       `bson:"attempts"`
	LastError string    `bson:"lastError,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoStore persists notifications in the notifications collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore constructs a MongoStore and ensures its indexes.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{coll: db.Collection(mongoNotificationsCollection)}
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("ix_notifications_user_id")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "sendAt", Value: 1}}, Options: options.Index().SetName("ix_notifications_status_send_at")},
	})
	if err != nil {
		return nil, pin.StoreError{Op: "notify.NewMongoStore", Err: err}
	}
	return s, nil
}

func (s *MongoStore) Insert(ctx context.Context, n Notification) error {
	_, err := s.coll.InsertOne(ctx, mongoNotification{
		ID:        n.ID,
		UserID:    n.UserID,
		Message:   n.Message,
		SendAt:    n.SendAt,
		IsSent:    n.Status == StatusSent,
		Status:    string(n.Status),
		Attempts:  n.Attempts,
		LastError: n.LastError,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return pin.StoreError{Op: "notify.MongoStore.Insert", Err: err}
	}
	return nil
}

func (s *MongoStore) Due(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	const op = "notify.MongoStore.Due"
	cur, err := s.coll.Find(ctx,
		bson.M{"status": string(StatusPending), "sendAt": bson.M{"$lte": now}},
		options.Find().SetSort(bson.D{{Key: "sendAt", Value: 1}, {Key: "_id", Value: 1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, pin.StoreError{Op: op, Err: err}
	}
	var docs []mongoNotification
	if err := cur.All(ctx, &docs); err != nil {
		return nil, pin.StoreError{Op: op, Err: err}
	}

	out := make([]Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, Notification{
			ID:        d.ID,
			UserID:    d.UserID,
			Message:   d.Message,
			SendAt:    d.SendAt.UTC(),
			Status:    Status(d.Status),
			Attempts:  d.Attempts,
			LastError: d.LastError,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *MongoStore) Save(ctx context.Context, n Notification) error {
	res, err := s.coll.UpdateByID(ctx, n.ID, bson.M{"$set": bson.M{
		"status":    string(n.Status),
		"isSent":    n.Status == StatusSent,
		"attempts":  n.Attempts,
		"lastError": n.LastError,
	}})
	if err != nil {
		return pin.StoreError{Op: "notify.MongoStore.Save", Err: err}
	}
	if res.MatchedCount == 0 {
		return errNotFound
	}
	return nil
}
