// Package memstore is an in-memory docstore.Store.
//
// It evaluates the filter operators, projections, update operators and
// aggregation stages the SQL compiler emits, with server-like typing:
// documents are round-tripped through BSON on the way in and out. It backs
// the test suites, the scenario harness and the CLI's --memory mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docsql/internal/docstore"
)

// Store keeps collections as ordered slices of documents.
//
// Thread-safety: every method holds the store mutex for its whole duration,
// so each operation is atomic with respect to the others.
type Store struct {
	mu          sync.Mutex
	collections map[string][]bson.D
	newID       func() any
}

var _ docstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the ObjectID generator used for documents
// inserted without an _id.
func WithIDGenerator(gen func() any) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]bson.D),
		newID:       func() any { return primitive.NewObjectID() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed inserts docs into coll, assigning ids where missing.
func (s *Store) Seed(coll string, docs ...bson.D) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		if _, err := s.insert(coll, doc); err != nil {
			return fmt.Errorf("seed %s[%d]: %w", coll, i, err)
		}
	}
	return nil
}

// Documents returns a copy of every document in coll, in insertion order.
func (s *Store) Documents(coll string) []bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(coll)
}

// Collections lists the non-empty collections in name order.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.collections))
	for name, docs := range s.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Store) Find(ctx context.Context, coll string, filter bson.D, opts docstore.FindOptions) (docstore.RowStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := filterDocs(s.snapshot(coll), filter)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll, err)
	}
	if len(opts.Sort) > 0 {
		sortDocs(docs, opts.Sort)
	}
	docs = limitDocs(docs, opts.Limit)
	if docs, err = projectDocs(docs, opts.Projection); err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll, err)
	}
	return newStream(docs), nil
}

func (s *Store) Aggregate(ctx context.Context, coll string, pipeline mongo.Pipeline) (docstore.RowStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := runPipeline(s.snapshot(coll), pipeline, s.snapshot)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	return newStream(docs), nil
}

func (s *Store) CountDocuments(ctx context.Context, coll string, filter bson.D, limit int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := filterDocs(s.collections[coll], filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return int64(len(limitDocs(docs, limit))), nil
}

func (s *Store) InsertOne(ctx context.Context, coll string, doc bson.D) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.insert(coll, doc)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	return id, nil
}

func (s *Store) UpdateMany(ctx context.Context, coll string, filter, update bson.D) (docstore.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return docstore.UpdateResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.update(coll, filter, update)
	if err != nil {
		return docstore.UpdateResult{}, fmt.Errorf("update %s: %w", coll, err)
	}
	return res, nil
}

func (s *Store) DeleteMany(ctx context.Context, coll string, filter bson.D) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[coll]
	kept := make([]bson.D, 0, len(docs))
	for _, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, fmt.Errorf("delete from %s: %w", coll, err)
		}
		if !ok {
			kept = append(kept, doc)
		}
	}
	s.collections[coll] = kept
	return int64(len(docs) - len(kept)), nil
}

func (s *Store) FindOneAndUpdate(ctx context.Context, coll string, filter, update bson.D) (bson.D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, doc := range s.collections[coll] {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, fmt.Errorf("find and update in %s: %w", coll, err)
		}
		if !ok {
			continue
		}
		updated, err := s.apply(doc, update)
		if err != nil {
			return nil, fmt.Errorf("find and update in %s: %w", coll, err)
		}
		s.collections[coll][i] = updated
		return cloneDoc(updated), nil
	}
	return nil, nil
}

// insert stores a normalized copy of doc with _id first. Callers hold mu.
func (s *Store) insert(coll string, doc bson.D) (any, error) {
	norm, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	id, ok := lookupPath(norm, "_id")
	if !ok {
		if id, err = normalizeValue(s.newID()); err != nil {
			return nil, err
		}
		norm = append(bson.D{{Key: "_id", Value: id}}, norm...)
	}
	for _, existing := range s.collections[coll] {
		if other, _ := lookupPath(existing, "_id"); equalValues(other, id) {
			return nil, fmt.Errorf("duplicate key: _id %v", id)
		}
	}
	s.collections[coll] = append(s.collections[coll], norm)
	return id, nil
}

func (s *Store) update(coll string, filter, update bson.D) (docstore.UpdateResult, error) {
	var res docstore.UpdateResult
	docs := s.collections[coll]
	for i, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return docstore.UpdateResult{}, err
		}
		if !ok {
			continue
		}
		updated, err := s.apply(doc, update)
		if err != nil {
			return docstore.UpdateResult{}, err
		}
		res.Matched++
		if compareDocs(doc, updated) != 0 {
			res.Modified++
			docs[i] = updated
		}
	}
	return res, nil
}

func (s *Store) apply(doc, update bson.D) (bson.D, error) {
	norm, err := normalize(update)
	if err != nil {
		return nil, err
	}
	return applyUpdate(doc, norm)
}

// snapshot copies a collection so readers never observe later writes.
// Callers hold mu.
func (s *Store) snapshot(coll string) []bson.D {
	docs := s.collections[coll]
	out := make([]bson.D, len(docs))
	for i, doc := range docs {
		out[i] = cloneDoc(doc)
	}
	return out
}

// stream is a RowStream over a precomputed result.
type stream struct {
	docs   []bson.D
	pos    int
	cur    bson.D
	err    error
	closed bool
}

func newStream(docs []bson.D) *stream {
	return &stream{docs: docs}
}

func (st *stream) Next(ctx context.Context) bool {
	if st.closed || st.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		st.err = err
		return false
	}
	if st.pos >= len(st.docs) {
		st.cur = nil
		return false
	}
	st.cur = st.docs[st.pos]
	st.pos++
	return true
}

// Decode unmarshals the current document into v the way the driver does.
func (st *stream) Decode(v any) error {
	if st.cur == nil {
		return fmt.Errorf("decode: no current document")
	}
	raw, err := bson.Marshal(st.cur)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return bson.Unmarshal(raw, v)
}

func (st *stream) Err() error { return st.err }

func (st *stream) Close(context.Context) error {
	st.closed = true
	st.docs, st.cur = nil, nil
	return nil
}
