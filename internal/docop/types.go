package docop

import "go.mongodb.org/mongo-driver/bson"

// Operation is a compiled statement.
//
// This is a sealed interface - only types in this package implement it.
type Operation interface {
	operationNode() // Marker method - seals interface to this package

	// Kind names the operation ("find", "aggregate", "count", "insert",
	// "update", "delete", "noop").
	Kind() string

	// Target returns the collection the operation runs against. Empty for NoOp.
	Target() string
}

// FieldRef identifies a column, optionally qualified by its table.
//
// An unqualified reference belongs to the statement's left table; that is
// decided when the reference is rendered, never when it is parsed.
type FieldRef struct {
	Table string // empty when unqualified
	Field string
}

// Path renders the reference for a document filter or sort: the plain field
// when it belongs to the left table, table.field otherwise.
func (f FieldRef) Path(left string) string {
	if f.Table == "" || f.Table == left {
		return f.Field
	}
	return f.Table + "." + f.Field
}

// String renders the reference as written in SQL.
func (f FieldRef) String() string {
	if f.Table == "" {
		return f.Field
	}
	return f.Table + "." + f.Field
}

// Find is a direct filtered read.
//
// Semantics:
//
//	db.<Collection>.find(<Filter>, <Projection>).sort(<Sort>).limit(<Limit>)
//
// Fields is the ordered projection list used to rebuild positional rows.
// An empty Fields means SELECT * (every stored field except _id).
type Find struct {
	Collection string
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Limit      int64 // 0 = no limit

	Fields []FieldRef

	// ReturnConst is set for SELECT (N) FROM ...: every matching row yields N.
	ReturnConst *int64
}

// Aggregate is a multi-stage read used for joins and cross-table projections.
type Aggregate struct {
	Collection  string
	Pipeline    Pipeline
	Fields      []FieldRef
	ReturnConst *int64
}

// Count is the SELECT COUNT(...) FROM t short-circuit: the unfiltered row
// count of Collection.
type Count struct {
	Collection string
}

// Insert writes one document. The auto-increment field, when the metadata
// collection carries a counter for Collection, is added at execution time.
type Insert struct {
	Collection string
	Document   bson.D
}

// Update applies Update (a $set document) to every document matching Filter.
type Update struct {
	Collection string
	Filter     bson.D
	Update     bson.D
}

// Delete removes every document matching Filter.
type Delete struct {
	Collection string
	Filter     bson.D
}

// NoOp is an ignored statement (DDL). Statement holds its keyword.
type NoOp struct {
	Statement string
}

func (*Find) operationNode()      {}
func (*Aggregate) operationNode() {}
func (*Count) operationNode()     {}
func (*Insert) operationNode()    {}
func (*Update) operationNode()    {}
func (*Delete) operationNode()    {}
func (*NoOp) operationNode()      {}

func (*Find) Kind() string      { return "find" }
func (*Aggregate) Kind() string { return "aggregate" }
func (*Count) Kind() string     { return "count" }
func (*Insert) Kind() string    { return "insert" }
func (*Update) Kind() string    { return "update" }
func (*Delete) Kind() string    { return "delete" }
func (*NoOp) Kind() string      { return "noop" }

func (op *Find) Target() string      { return op.Collection }
func (op *Aggregate) Target() string { return op.Collection }
func (op *Count) Target() string     { return op.Collection }
func (op *Insert) Target() string    { return op.Collection }
func (op *Update) Target() string    { return op.Collection }
func (op *Delete) Target() string    { return op.Collection }
func (*NoOp) Target() string         { return "" }

// Columns returns the result column names for a read operation, in
// projection order. It returns nil for SELECT * and for non-read operations.
func Columns(op Operation) []string {
	var fields []FieldRef
	switch o := op.(type) {
	case *Find:
		fields = o.Fields
	case *Aggregate:
		fields = o.Fields
	case *Count:
		return []string{"count"}
	}
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.String()
	}
	return cols
}
