package docop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func joinPipeline() Pipeline {
	return Pipeline{
		Lookup{From: "t", LocalField: "id", ForeignField: "t_id", As: "u"},
		Unwind{Path: "$u"},
	}
}

func TestValidate_ValidOperations(t *testing.T) {
	ops := []Operation{
		&Find{Collection: "t", Limit: 5},
		&Count{Collection: "t"},
		&Insert{Collection: "t", Document: bson.D{{Key: "a", Value: 1}}},
		&Update{Collection: "t", Update: bson.D{{Key: "$set", Value: bson.D{{Key: "a", Value: 1}}}}},
		&Delete{Collection: "t"},
		&NoOp{Statement: "DROP"},
		&Aggregate{Collection: "t", Pipeline: append(joinPipeline(),
			Sort{Spec: bson.D{{Key: "a", Value: 1}}},
			Match{Filter: bson.D{}},
			Limit{N: 1},
			Project{Spec: bson.D{{Key: "_id", Value: false}}},
		)},
	}
	for _, op := range ops {
		assert.NoError(t, Validate(op), "%s should validate", op.Kind())
	}
}

func TestValidate_Nil(t *testing.T) {
	require.Error(t, Validate(nil))
}

func TestValidate_EmptyCollection(t *testing.T) {
	err := Validate(&Find{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty collection name")
}

func TestValidate_NegativeLimit(t *testing.T) {
	err := Validate(&Find{Collection: "t", Limit: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative limit")
}

func TestValidate_LookupWithoutUnwind(t *testing.T) {
	op := &Aggregate{Collection: "t", Pipeline: Pipeline{
		Lookup{From: "t", LocalField: "id", ForeignField: "t_id", As: "u"},
		Limit{N: 1},
	}}

	err := Validate(op)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not followed by $unwind")
}

func TestValidate_UnwindAliasMismatch(t *testing.T) {
	op := &Aggregate{Collection: "t", Pipeline: Pipeline{
		Lookup{From: "t", LocalField: "id", ForeignField: "t_id", As: "u"},
		Unwind{Path: "$v"},
	}}

	err := Validate(op)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestValidate_TrailingStageOrder(t *testing.T) {
	op := &Aggregate{Collection: "t", Pipeline: append(joinPipeline(),
		Match{Filter: bson.D{}},
		Sort{Spec: bson.D{{Key: "a", Value: 1}}},
	)}

	err := Validate(op)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "$sort out of order")
}

func TestValidate_LookupAfterTrailingStage(t *testing.T) {
	op := &Aggregate{Collection: "t", Pipeline: Pipeline{
		Match{Filter: bson.D{}},
		Lookup{From: "t", LocalField: "id", ForeignField: "t_id", As: "u"},
		Unwind{Path: "$u"},
	}}

	err := Validate(op)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "$lookup after trailing stages")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	op := &Aggregate{Pipeline: Pipeline{Unwind{Path: "$u"}, Limit{N: -2}}}

	err := Validate(op)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty collection name")
	assert.Contains(t, err.Error(), "without preceding $lookup")
	assert.Contains(t, err.Error(), "negative limit -2")
}
