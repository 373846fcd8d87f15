package docop

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stage is one aggregation pipeline stage.
//
// This is a sealed interface - only types in this package implement it.
type Stage interface {
	stageNode() // Marker method - seals interface to this package

	// BSON renders the stage as a single-key document ({$lookup: {...}}).
	BSON() bson.D
}

// Lookup joins documents of From into the field As.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
}

// Unwind flattens the array at Path ("$alias"). PreserveEmpty keeps
// documents whose array is empty or missing (LEFT OUTER JOIN).
type Unwind struct {
	Path          string
	PreserveEmpty bool
}

// Match filters documents.
type Match struct {
	Filter bson.D
}

// Sort orders documents; Spec maps field paths to 1 or -1.
type Sort struct {
	Spec bson.D
}

// Limit keeps the first N documents.
type Limit struct {
	N int64
}

// Project reshapes documents.
type Project struct {
	Spec bson.D
}

func (Lookup) stageNode()  {}
func (Unwind) stageNode()  {}
func (Match) stageNode()   {}
func (Sort) stageNode()    {}
func (Limit) stageNode()   {}
func (Project) stageNode() {}

func (s Lookup) BSON() bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: s.From},
		{Key: "localField", Value: s.LocalField},
		{Key: "foreignField", Value: s.ForeignField},
		{Key: "as", Value: s.As},
	}}}
}

func (s Unwind) BSON() bson.D {
	spec := bson.D{{Key: "path", Value: s.Path}}
	if s.PreserveEmpty {
		spec = append(spec, bson.E{Key: "preserveNullAndEmptyArrays", Value: true})
	}
	return bson.D{{Key: "$unwind", Value: spec}}
}

func (s Match) BSON() bson.D   { return bson.D{{Key: "$match", Value: s.Filter}} }
func (s Sort) BSON() bson.D    { return bson.D{{Key: "$sort", Value: s.Spec}} }
func (s Limit) BSON() bson.D   { return bson.D{{Key: "$limit", Value: s.N}} }
func (s Project) BSON() bson.D { return bson.D{{Key: "$project", Value: s.Spec}} }

// Pipeline is an ordered, append-only list of stages.
type Pipeline []Stage

// BSON renders the pipeline for the driver.
func (p Pipeline) BSON() mongo.Pipeline {
	out := make(mongo.Pipeline, len(p))
	for i, s := range p {
		out[i] = s.BSON()
	}
	return out
}
