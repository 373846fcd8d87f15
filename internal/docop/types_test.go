package docop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestFieldRef_Path(t *testing.T) {
	tests := []struct {
		name string
		ref  FieldRef
		left string
		want string
	}{
		{"unqualified", FieldRef{Field: "a"}, "t", "a"},
		{"left table", FieldRef{Table: "t", Field: "a"}, "t", "a"},
		{"joined table", FieldRef{Table: "u", Field: "a"}, "t", "u.a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.Path(tt.left))
		})
	}
}

func TestOperation_KindAndTarget(t *testing.T) {
	ops := []struct {
		op     Operation
		kind   string
		target string
	}{
		{&Find{Collection: "t"}, "find", "t"},
		{&Aggregate{Collection: "t"}, "aggregate", "t"},
		{&Count{Collection: "t"}, "count", "t"},
		{&Insert{Collection: "t"}, "insert", "t"},
		{&Update{Collection: "t"}, "update", "t"},
		{&Delete{Collection: "t"}, "delete", "t"},
		{&NoOp{Statement: "CREATE"}, "noop", ""},
	}
	for _, tt := range ops {
		assert.Equal(t, tt.kind, tt.op.Kind())
		assert.Equal(t, tt.target, tt.op.Target())
	}
}

func TestOperation_TypeSwitchExhaustive(t *testing.T) {
	// Every operation type must be handled by a switch over the sealed set.
	ops := []Operation{
		&Find{}, &Aggregate{}, &Count{}, &Insert{}, &Update{}, &Delete{}, &NoOp{},
	}
	for _, op := range ops {
		handled := false
		switch op.(type) {
		case *Find, *Aggregate, *Count, *Insert, *Update, *Delete, *NoOp:
			handled = true
		}
		assert.True(t, handled, "%T not handled", op)
	}
}

func TestColumns(t *testing.T) {
	find := &Find{Collection: "t", Fields: []FieldRef{{Field: "b"}, {Table: "t", Field: "a"}}}
	assert.Equal(t, []string{"b", "t.a"}, Columns(find))

	assert.Nil(t, Columns(&Find{Collection: "t"}), "SELECT * has no fixed columns")
	assert.Equal(t, []string{"count"}, Columns(&Count{Collection: "t"}))
	assert.Nil(t, Columns(&Delete{Collection: "t"}))
}

func TestStage_BSON(t *testing.T) {
	lookup := Lookup{From: "t", LocalField: "id", ForeignField: "t_id", As: "u"}
	assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "t"},
		{Key: "localField", Value: "id"},
		{Key: "foreignField", Value: "t_id"},
		{Key: "as", Value: "u"},
	}}}, lookup.BSON())

	inner := Unwind{Path: "$u"}
	assert.Equal(t, bson.D{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$u"}}}}, inner.BSON())

	outer := Unwind{Path: "$u", PreserveEmpty: true}
	assert.Equal(t, bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$u"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}, outer.BSON())

	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(3)}}, Limit{N: 3}.BSON())
}

func TestPipeline_BSON(t *testing.T) {
	p := Pipeline{
		Match{Filter: bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: 1}}}}},
		Limit{N: 2},
	}

	got := p.BSON()

	require.Len(t, got, 2)
	assert.Equal(t, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: 1}}}}}},
		{{Key: "$limit", Value: int64(2)}},
	}, got)
}
