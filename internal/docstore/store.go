// Package docstore defines the document-store capability that compiled
// operations execute against.
//
// The method set mirrors the MongoDB collection API closely enough that the
// production backend (package mongostore) is a thin adapter, while the
// in-memory backend (package memstore) evaluates the same filters and stages
// for tests and offline use.
package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultMetadataCollection holds one {name, auto: {field_name, seq}}
// document per table that emulates an auto-increment column.
const DefaultMetadataCollection = "__schema__"

// Store executes document operations against named collections.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Find streams the documents of coll matching filter. A nil filter
	// matches every document.
	Find(ctx context.Context, coll string, filter bson.D, opts FindOptions) (RowStream, error)

	// Aggregate runs pipeline over coll.
	Aggregate(ctx context.Context, coll string, pipeline mongo.Pipeline) (RowStream, error)

	// CountDocuments counts the documents matching filter, capped at limit
	// when limit > 0.
	CountDocuments(ctx context.Context, coll string, filter bson.D, limit int64) (int64, error)

	// InsertOne stores doc and returns its _id, generating one when doc
	// carries none.
	InsertOne(ctx context.Context, coll string, doc bson.D) (any, error)

	UpdateMany(ctx context.Context, coll string, filter, update bson.D) (UpdateResult, error)

	// DeleteMany removes every document matching filter and returns how many
	// were removed.
	DeleteMany(ctx context.Context, coll string, filter bson.D) (int64, error)

	// FindOneAndUpdate applies update to the first document matching filter
	// and returns the document as it is after the update. It returns nil, nil
	// when nothing matched.
	FindOneAndUpdate(ctx context.Context, coll string, filter, update bson.D) (bson.D, error)
}

// RowStream iterates over the documents of a read. *mongo.Cursor satisfies
// it.
type RowStream interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// FindOptions shapes a Find. Zero values mean "not set".
type FindOptions struct {
	Projection bson.D
	Sort       bson.D
	Limit      int64
}

// UpdateResult reports the outcome of UpdateMany.
type UpdateResult struct {
	Matched  int64
	Modified int64
}
