// Package docop defines the compiled document-store operations produced by
// the SQL translator.
//
// An Operation is the abstraction boundary between the translator and the
// store drivers: the translator emits one Operation per statement, the cursor
// executes it against a docstore.Store.
//
//	[SQL text] → [translate] → [docop.Operation] → [docstore.Store]
//
// SEALED INTERFACES:
//
// Operation and Stage are sealed with marker methods. Only types in this
// package implement them, so executors can switch exhaustively:
//
//	switch op := op.(type) {
//	case *docop.Find:
//	case *docop.Aggregate:
//	case *docop.Count:
//	case *docop.Insert, *docop.Update, *docop.Delete:
//	case *docop.NoOp:
//	}
//
// ORDERING:
//
// Every document (filter, projection, sort spec, stage) is a bson.D. Key
// order is significant: projection order drives result column order, and
// sort key order drives sort priority. Maps are never used for documents.
//
// PIPELINES:
//
// Aggregate pipelines are append-only. Lookup stages are always immediately
// followed by an Unwind of the same alias, and the trailing stages appear in
// the fixed order Sort, Match, Limit, Project. Validate enforces both.
package docop
