package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// DefaultCollection is the collection used unless WithCollection is given
const DefaultCollection = "tasks"

// Store is a queue.Store backed by a MongoDB collection
type Store struct {
	coll  *mongo.Collection
	clock queue.Clock
}

var _ queue.Store = (*Store)(nil)

// Option configures a Store
type Option func(*storeOptions)

type storeOptions struct {
	collection string
	clock      queue.Clock
}

// WithCollection overrides the collection name
func WithCollection(name string) Option {
	return func(o *storeOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithClock overrides the timestamp source
func WithClock(c queue.Clock) Option {
	return func(o *storeOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// New returns a Store on db and makes sure the claim index exists
func New(ctx context.Context, db *mongo.Database, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, queue.ErrRepositoryNil
	}

	o := storeOptions{collection: DefaultCollection, clock: queue.DefaultClock()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{coll: db.Collection(o.collection), clock: o.clock}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the index ClaimNext filters and sorts on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("status_created"),
	})
	if err != nil {
		return queue.NewStoreError("ensure indexes", err)
	}
	return nil
}

// Collection returns the underlying collection
func (s *Store) Collection() *mongo.Collection {
	return s.coll
}

// Create implements queue.Store
func (s *Store) Create(ctx context.Context, task *queue.Task) (string, error) {
	if err := queue.ValidateNewTask(task); err != nil {
		return "", err
	}

	now := s.clock.Now().UnixMicro()
	doc := document{
		ID:      bson.NewObjectID(),
		Type:    task.Type,
		Status:  string(queue.StatusQueued),
		Payload: task.Payload,
		Created: now,
		Updated: now,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", queue.NewStoreError("create", err)
	}
	return doc.ID.Hex(), nil
}

// Update implements queue.Store
func (s *Store) Update(ctx context.Context, id string, upd queue.Update) error {
	if err := queue.ValidateUpdate(upd); err != nil {
		return err
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	set := bson.D{stampUpdated(s.clock.Now().UnixMicro())}
	if upd.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: statusNames(queue.SourcesOf(upd.Status))}}})
		set = append(set, literal("status", string(upd.Status)))
	}
	if upd.Message != nil {
		set = append(set, literal("message", *upd.Message))
	}
	if upd.Output != nil {
		set = append(set, literal("output", upd.Output))
	}

	res, err := s.coll.UpdateOne(ctx, filter, mongo.Pipeline{{{Key: "$set", Value: set}}})
	if err != nil {
		return queue.NewStoreError("update", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the id is unknown or the status guard failed
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return queue.NewStoreError("update", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, id, upd.Status)
}

// ClaimNext implements queue.Store with a single findAndModify
func (s *Store) ClaimNext(ctx context.Context) (*queue.Task, error) {
	set := bson.D{
		literal("status", string(queue.ClaimTarget)),
		stampUpdated(s.clock.Now().UnixMicro()),
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created", Value: 1}, {Key: "_id", Value: 1}}).
		SetReturnDocument(options.After)

	var doc document
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "status", Value: string(queue.StatusQueued)}},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, queue.NewStoreError("claim", err)
	}
	return doc.task(), nil
}

// Get implements queue.Store
func (s *Store) Get(ctx context.Context, id string) (*queue.Task, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}

	var doc document
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, queue.NewStoreError("get", err)
	}
	return doc.task(), nil
}

// stampUpdated sets updated to now, or one microsecond past the stored
// value when another writer's clock is ahead, so it always increases.
func stampUpdated(now int64) bson.E {
	return bson.E{Key: "updated", Value: bson.D{{Key: "$max", Value: bson.A{
		now,
		bson.D{{Key: "$add", Value: bson.A{"$updated", 1}}},
	}}}}
}

// literal keeps values starting with "$" from being read as field paths
func literal(key string, value any) bson.E {
	return bson.E{Key: key, Value: bson.D{{Key: "$literal", Value: value}}}
}

func statusNames(statuses []queue.Status) bson.A {
	out := make(bson.A, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, string(st))
	}
	return out
}
