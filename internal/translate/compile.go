// Package translate compiles SQL statements into document-store operations.
//
// Compile is the single entry point: it rewrites positional placeholders,
// tokenizes the text, dispatches on the statement kind and returns one
// docop.Operation. Compilation is pure. It never touches a store, and every
// failure is detected before any operation is returned, so a statement that
// fails to compile can never leave a partial write behind.
//
// Each call owns its compile context (parameters, left table, joined
// tables); Compile is safe for concurrent use.
package translate

import (
	"errors"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/sqltok"
)

// ignoredKinds are DDL statements answered with a NoOp.
var ignoredKinds = map[string]bool{"CREATE": true, "ALTER": true, "DROP": true}

// unsupportedKinds are recognized statement kinds with no translation.
var unsupportedKinds = map[string]bool{"REPLACE": true, "MERGE": true, "TRUNCATE": true}

// Compile translates one SQL statement with positional parameters.
func Compile(sql string, params []any) (docop.Operation, error) {
	op, err := compile(sql, params)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) && ce.Statement == "" {
			ce.Statement = sql
		}
		return nil, err
	}
	return op, nil
}

func compile(sql string, params []any) (docop.Operation, error) {
	rewritten, _ := Rewrite(sql)
	stmts, err := sqltok.Parse(rewritten)
	if err != nil {
		return nil, decodeErrorf("", "%v", err)
	}
	switch len(stmts) {
	case 0:
		return nil, decodeErrorf("", "empty statement")
	case 1:
	default:
		return nil, unsupportedErrorf("%d statements submitted together", len(stmts))
	}

	stmt := stmts[0]
	kind := stmt.Type()
	c := &compiler{sql: stmt.SQL, params: params}
	s := &stream{nodes: stmt.Tokens}

	// Leading tokens before the statement keyword are not valid.
	if first, ok := s.peek().(*sqltok.Token); !ok || first.Value != kind {
		if ignoredKinds[kind] {
			return &docop.NoOp{Statement: kind}, nil
		}
		return nil, decodeErrorf(s.peek().String(), "statement must start with its kind keyword")
	}

	switch {
	case ignoredKinds[kind]:
		return &docop.NoOp{Statement: kind}, nil
	case unsupportedKinds[kind]:
		return nil, unsupportedErrorf("%s statements are not supported", kind)
	}
	switch kind {
	case "SELECT":
		return c.compileSelect(s)
	case "INSERT":
		return c.compileInsert(s)
	case "UPDATE":
		return c.compileUpdate(s)
	case "DELETE":
		return c.compileDelete(s)
	}
	return nil, decodeErrorf(kind, "unrecognized statement kind")
}
