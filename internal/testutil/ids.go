package testutil

import (
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SequentialIDs generates "<prefix>-0001", "<prefix>-0002", ...
//
// It satisfies journal.IDGenerator, so journal entries written under test
// have stable ids for golden comparison.
type SequentialIDs struct {
	prefix string
	c      Counter
}

// NewSequentialIDs creates a generator. An empty prefix becomes "test".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.c.Next())
}

// ObjectIDs generates ObjectIDs 000000000000000000000001, ...02, ... for
// memstore.WithIDGenerator.
type ObjectIDs struct {
	c Counter
}

// Next returns the next ObjectID as an any, the shape the store expects.
func (g *ObjectIDs) Next() any {
	return ObjectIDFor(g.c.Next())
}

// Reset restarts the sequence at 1.
func (g *ObjectIDs) Reset() {
	g.c.Reset()
}

// ObjectIDFor returns the n-th ObjectID of the sequence.
func ObjectIDFor(n int64) primitive.ObjectID {
	var id primitive.ObjectID
	binary.BigEndian.PutUint64(id[4:], uint64(n))
	return id
}
