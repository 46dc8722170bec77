package pin

import (
	"context"
	"strings"
	"time"

	"pinbot/cmd/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the legacy deployment.
const (
	mongoPinsCollection     = "pins"
	mongoArchivedCollection = "archivedpins"
)

type mongoMetadata struct {
	ContainsLetters bool              `bson:"containsLetters,omitempty"`
	Source          string            `bson:"source,omitempty"`
	Labels          map[string]string `bson:"labels,omitempty"`
}

type mongoPin struct {
	ID         string        `bson:"_id"`
	Code       string        `bson:"pin"`
	UserID     string        `bson:"userId"`
	UserTag    string        `bson:"userTag"`
	RoleName   string        `bson:"roleName"`
	RoleID     string        `bson:"roleId"`
	ExpiresAt  time.Time     `bson:"expirationDate"`
	Status     string        `bson:"status"`
	CreatedAt  time.Time     `bson:"createdAt"`
	UpdatedAt  time.Time     `bson:"updatedAt"`
	Metadata   mongoMetadata `bson:"metadata"`
	ArchivedAt *time.Time    `bson:"archivedAt,omitempty"`
}

func toMongoPin(p Pin) mongoPin {
	return mongoPin{
		ID:        p.ID,
		Code:      p.Code,
		UserID:    p.UserID,
		UserTag:   p.UserTag,
		RoleName:  p.RoleName,
		RoleID:    p.RoleID,
		ExpiresAt: p.ExpiresAt,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Metadata: mongoMetadata{
			ContainsLetters: p.Metadata.ContainsLetters,
			Source:          p.Metadata.Source,
			Labels:          p.Metadata.Labels,
		},
	}
}

func (d mongoPin) pin() Pin {
	return Pin{
		ID:        d.ID,
		Code:      d.Code,
		UserID:    d.UserID,
		UserTag:   d.UserTag,
		RoleName:  d.RoleName,
		RoleID:    d.RoleID,
		ExpiresAt: d.ExpiresAt.UTC(),
		Status:    Status(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Metadata: Metadata{
			ContainsLetters: d.Metadata.ContainsLetters,
			Source:          d.Metadata.Source,
			Labels:          d.Metadata.Labels,
		},
	}
}

// MongoStore persists pins in MongoDB.
type MongoStore struct {
	pins     *mongo.Collection
	archived *mongo.Collection
}

// NewMongoStore binds the store to db and ensures its indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, OpError{Op: "pin.NewMongoStore", Kind: ErrValidation, Msg: "database required"}
	}
	s := &MongoStore{
		pins:     db.Collection(mongoPinsCollection),
		archived: db.Collection(mongoArchivedCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, storeErr("pin.NewMongoStore", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.pins.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pin", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uq_pins_pin")},
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uq_pins_user_id")},
		{Keys: bson.D{{Key: "userTag", Value: 1}}, Options: options.Index().SetName("ix_pins_user_tag")},
		{Keys: bson.D{{Key: "roleName", Value: 1}}, Options: options.Index().SetName("ix_pins_role_name")},
		{Keys: bson.D{{Key: "expirationDate", Value: 1}}, Options: options.Index().SetName("ix_pins_expiration_date")},
	})
	if err != nil {
		return err
	}
	_, err = s.archived.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("ix_archived_pins_user_id"),
	})
	return err
}

func (s *MongoStore) Insert(ctx context.Context, p Pin) (Pin, error) {
	const op = "pin.MongoStore.Insert"
	if _, err := s.pins.InsertOne(ctx, toMongoPin(p)); err != nil {
		return Pin{}, mongoClassify(op, err)
	}
	return p.clone(), nil
}

func (s *MongoStore) FindOne(ctx context.Context, f Filter) (Pin, error) {
	const op = "pin.MongoStore.FindOne"
	var doc mongoPin
	err := s.pins.FindOne(ctx, mongoFilter(f), options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})).Decode(&doc)
	if err != nil {
		return Pin{}, mongoClassify(op, err)
	}
	return doc.pin(), nil
}

func (s *MongoStore) Find(ctx context.Context, f Filter) ([]Pin, error) {
	return s.find(ctx, "pin.MongoStore.Find", mongoFilter(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *MongoStore) find(ctx context.Context, op string, filter any, opts *options.FindOptions) ([]Pin, error) {
	cur, err := s.pins.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr(op, err)
	}
	var docs []mongoPin
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(op, err)
	}
	out := make([]Pin, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.pin())
	}
	return out, nil
}

func (s *MongoStore) Count(ctx context.Context, f Filter) (int, error) {
	n, err := s.pins.CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		return 0, storeErr("pin.MongoStore.Count", err)
	}
	return int(n), nil
}

func (s *MongoStore) Update(ctx context.Context, p Pin) (Pin, error) {
	const op = "pin.MongoStore.Update"
	res, err := s.pins.ReplaceOne(ctx, bson.D{{Key: "_id", Value: p.ID}}, toMongoPin(p))
	if err != nil {
		return Pin{}, mongoClassify(op, err)
	}
	if res.MatchedCount == 0 {
		return Pin{}, notFound(op, p.ID)
	}
	return p.clone(), nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, f Filter) (Pin, error) {
	const op = "pin.MongoStore.DeleteOne"
	if f.IsZero() {
		return Pin{}, OpError{Op: op, Kind: ErrMissingSelector}
	}
	var doc mongoPin
	err := s.pins.FindOneAndDelete(ctx, mongoFilter(f),
		options.FindOneAndDelete().SetSort(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		return Pin{}, mongoClassify(op, err)
	}
	return doc.pin(), nil
}

// DeleteMany reads the matches and deletes them by id, so the returned
// snapshots are exactly the removed documents.
func (s *MongoStore) DeleteMany(ctx context.Context, f Filter) ([]Pin, error) {
	const op = "pin.MongoStore.DeleteMany"
	if f.IsZero() {
		return nil, OpError{Op: op, Kind: ErrMissingSelector}
	}
	matched, err := s.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return []Pin{}, nil
	}
	idList := make([]string, 0, len(matched))
	for _, p := range matched {
		idList = append(idList, p.ID)
	}
	if _, err := s.pins.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: idList}}}}); err != nil {
		return nil, storeErr(op, err)
	}
	return matched, nil
}

func (s *MongoStore) Search(ctx context.Context, q SearchQuery) ([]Pin, int, error) {
	const op = "pin.MongoStore.Search"
	if !q.Field.Valid() {
		return nil, 0, OpError{Op: op, Kind: ErrValidation, Msg: "unknown search field"}
	}
	filter := bson.D{{Key: string(q.Field), Value: bson.D{
		{Key: "$regex", Value: store.ContainsRegex(q.Term)},
		{Key: "$options", Value: "i"},
	}}}

	total, err := s.pins.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeErr(op, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(max(q.Offset, 0)))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	out, err := s.find(ctx, op, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

// Archive upserts into the archive before deleting, so a retry after a
// partial failure converges.
func (s *MongoStore) Archive(ctx context.Context, p Pin, archivedAt time.Time) error {
	const op = "pin.MongoStore.Archive"

	var doc mongoPin
	if err := s.pins.FindOne(ctx, bson.D{{Key: "_id", Value: p.ID}}).Decode(&doc); err != nil {
		return mongoClassify(op, err)
	}
	doc.Status = string(StatusArchived)
	doc.ArchivedAt = &archivedAt

	_, err := s.archived.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return storeErr(op, err)
	}
	if _, err := s.pins.DeleteOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func mongoFilter(f Filter) bson.D {
	d := bson.D{}
	if f.Code != "" {
		d = append(d, bson.E{Key: "pin", Value: f.Code})
	}
	if f.UserID != "" {
		d = append(d, bson.E{Key: "userId", Value: f.UserID})
	}
	if f.UserTag != "" {
		d = append(d, bson.E{Key: "userTag", Value: f.UserTag})
	}
	if f.RoleName != "" {
		d = append(d, bson.E{Key: "roleName", Value: f.RoleName})
	}

	exp := bson.D{}
	if !f.ExpiresFrom.IsZero() {
		exp = append(exp, bson.E{Key: "$gte", Value: f.ExpiresFrom})
	}
	if !f.ExpiresTo.IsZero() {
		exp = append(exp, bson.E{Key: "$lte", Value: f.ExpiresTo})
	}
	if !f.ExpiredBefore.IsZero() {
		exp = append(exp, bson.E{Key: "$lt", Value: f.ExpiredBefore})
	}
	if len(exp) > 0 {
		d = append(d, bson.E{Key: "expirationDate", Value: exp})
	}

	if f.Lettered {
		switch {
		case f.Code == "":
			d = append(d, bson.E{Key: "pin", Value: bson.D{{Key: "$regex", Value: "[A-Za-z]"}}})
		case !ContainsLetters(f.Code):
			d = append(d, bson.E{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}})
		}
	}
	return d
}

func mongoClassify(op string, err error) error {
	if store.IsNoDocuments(err) {
		return notFound(op, "")
	}
	if index, ok := store.DuplicateKeyIndex(err); ok {
		if strings.Contains(index, "user_id") {
			return ConflictError{Op: op, Field: FieldUserID}
		}
		return ConflictError{Op: op, Field: FieldPin}
	}
	return storeErr(op, err)
}
