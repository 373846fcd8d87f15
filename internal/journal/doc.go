// Package journal provides a SQLite-backed log of executed statements.
//
// Every statement a cursor executes is appended with its parameters, the
// compiled operation (as the explain JSON) and its outcome. The journal backs
// the CLI history command and replay, which recompiles recorded statements
// and reports any whose compiled operation no longer matches.
//
// # Ordering
//
// Entries carry a seq from a monotonic logical clock that resumes from the
// highest recorded seq when the journal is reopened. Listings are ordered by
// seq ASC, id ASC COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - schema version tracked with PRAGMA user_version
package journal
