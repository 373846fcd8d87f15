package translate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/sqltok"
)

// compileUpdate translates UPDATE t SET a = ?, ... [WHERE ...].
func (c *compiler) compileUpdate(s *stream) (docop.Operation, error) {
	s.next() // UPDATE
	table, err := s.table()
	if err != nil {
		return nil, err
	}
	c.left = table

	if _, err := s.expectKeyword("SET"); err != nil {
		return nil, err
	}
	assignments := s.next()
	if assignments == nil {
		return nil, decodeErrorf("SET", "missing assignments")
	}
	items, err := c.resolve(assignments)
	if err != nil {
		return nil, err
	}
	set := bson.D{}
	for _, item := range items {
		cmp, ok := item.(*cmpExpr)
		if !ok || cmp.op != "$eq" {
			return nil, decodeErrorf(assignments.String(), "SET needs field = value assignments")
		}
		set = append(set, bson.E{Key: cmp.field.Field, Value: cmp.value})
	}

	filter, err := c.trailingWhere(s)
	if err != nil {
		return nil, err
	}
	return &docop.Update{
		Collection: table,
		Filter:     filter,
		Update:     bson.D{{Key: "$set", Value: set}},
	}, nil
}

// compileDelete translates DELETE FROM t [WHERE ...].
func (c *compiler) compileDelete(s *stream) (docop.Operation, error) {
	s.next() // DELETE
	if _, err := s.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := s.table()
	if err != nil {
		return nil, err
	}
	c.left = table

	filter, err := c.trailingWhere(s)
	if err != nil {
		return nil, err
	}
	return &docop.Delete{Collection: table, Filter: filter}, nil
}

// trailingWhere compiles an optional final WHERE clause; anything else left
// in the statement is an error.
func (c *compiler) trailingWhere(s *stream) (bson.D, error) {
	var filter bson.D
	if w, ok := s.peek().(*sqltok.Where); ok {
		s.next()
		f, err := c.compileWhere(w)
		if err != nil {
			return nil, err
		}
		filter = f
	}
	if !s.done() {
		return nil, decodeErrorf(s.peek().String(), "unexpected %s", describe(s.peek()))
	}
	return filter, nil
}
