// Package mongostore implements docstore.Store over the official MongoDB
// driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/roach88/docsql/internal/docstore"
)

// Store runs operations against one MongoDB database.
type Store struct {
	client *mongo.Client // nil when built with New
	db     *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// Open connects to uri and verifies the connection with a ping against the
// primary. The returned Store owns the client; call Close to disconnect.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, fmt.Errorf("open mongo store: database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("open mongo store: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("open mongo store: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// New wraps an existing database handle. Close is then a no-op; the caller
// keeps ownership of the client.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Close disconnects the client opened by Open.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Find(ctx context.Context, coll string, filter bson.D, opts docstore.FindOptions) (docstore.RowStream, error) {
	fo := options.Find()
	if opts.Projection != nil {
		fo.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	cur, err := s.db.Collection(coll).Find(ctx, orEmpty(filter), fo)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll, err)
	}
	return cur, nil
}

func (s *Store) Aggregate(ctx context.Context, coll string, pipeline mongo.Pipeline) (docstore.RowStream, error) {
	if pipeline == nil {
		pipeline = mongo.Pipeline{}
	}
	cur, err := s.db.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	return cur, nil
}

func (s *Store) CountDocuments(ctx context.Context, coll string, filter bson.D, limit int64) (int64, error) {
	co := options.Count()
	if limit > 0 {
		co.SetLimit(limit)
	}
	n, err := s.db.Collection(coll).CountDocuments(ctx, orEmpty(filter), co)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return n, nil
}

func (s *Store) InsertOne(ctx context.Context, coll string, doc bson.D) (any, error) {
	res, err := s.db.Collection(coll).InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	return res.InsertedID, nil
}

func (s *Store) UpdateMany(ctx context.Context, coll string, filter, update bson.D) (docstore.UpdateResult, error) {
	res, err := s.db.Collection(coll).UpdateMany(ctx, orEmpty(filter), update)
	if err != nil {
		return docstore.UpdateResult{}, fmt.Errorf("update %s: %w", coll, err)
	}
	return docstore.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Store) DeleteMany(ctx context.Context, coll string, filter bson.D) (int64, error) {
	res, err := s.db.Collection(coll).DeleteMany(ctx, orEmpty(filter))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll, err)
	}
	return res.DeletedCount, nil
}

func (s *Store) FindOneAndUpdate(ctx context.Context, coll string, filter, update bson.D) (bson.D, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.D
	err := s.db.Collection(coll).FindOneAndUpdate(ctx, orEmpty(filter), update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find and update in %s: %w", coll, err)
	}
	return doc, nil
}

// orEmpty returns filter, or an empty document when filter is nil. The
// driver rejects nil filters.
func orEmpty(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}
