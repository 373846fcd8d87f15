// Package harness runs SQL conformance scenarios against an in-memory
// document store.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: insert_with_counter
//	description: "INSERT advances the table's auto-increment counter"
//	fixtures:
//	  __schema__:
//	    - { name: people, auto: { field_name: id, seq: 0 } }
//	steps:
//	  - sql: "INSERT INTO people (name) VALUES (?)"
//	    params: ["ann"]
//	    expect:
//	      last_insert_id: 1
//	  - sql: "SELECT id, name FROM people"
//	    expect:
//	      rows: [[1, "ann"]]
//	assertions:
//	  - type: final_state
//	    collection: people
//	    where: { name: "ann" }
//	    expect: { id: 1 }
//
// Fixture and expected documents keep the key order written in the file.
// Each step executes one statement on a single cursor and, for reads,
// fetches its rows ("fetch: all" by default; "one", "many" with "size",
// or "none").
//
// # Assertion Types
//
//   - trace_contains: a statement of the given kind (and collection) ran
//   - trace_order: statements of the given kinds ran in this order
//   - trace_count: exactly count statements of the given kind ran
//   - final_state: exactly one document matches where, and has expect
//   - document_count: the collection holds exactly count documents
//
// # Deterministic Testing
//
// Every run uses a fresh store whose _id values come from
// testutil.ObjectIDs, and an in-memory journal whose entry ids come from
// testutil.SequentialIDs. Fixtures are seeded in collection name order, so
// the same scenario always produces the same trace, which RunWithGolden
// compares against testdata/golden.
package harness
