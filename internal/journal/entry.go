package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound is returned by Get for an unknown entry id.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one executed statement.
type Entry struct {
	ID  string
	Seq int64

	SQL string

	// Params is the canonical extended JSON produced by EncodeParams.
	Params string

	Kind       string
	Collection string

	// Operation is the explain JSON of the compiled operation. Empty when
	// the statement failed to compile.
	Operation string

	RowCount int64

	// Error is the failure message, empty on success.
	Error string
}

// Filter narrows List.
type Filter struct {
	Kind  string // empty = every kind
	Limit int    // 0 = no limit; otherwise the most recent Limit entries
}

// Append stamps e with a fresh id and seq and stores it.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	e.ID = j.ids.Generate()
	e.Seq = j.clock.Next()
	if e.Params == "" {
		params, err := EncodeParams(nil)
		if err != nil {
			return Entry{}, fmt.Errorf("append entry: %w", err)
		}
		e.Params = params
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO statements
		(id, seq, sql_text, params, kind, collection, operation, row_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Seq,
		e.SQL,
		e.Params,
		e.Kind,
		e.Collection,
		e.Operation,
		e.RowCount,
		e.Error,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return e, nil
}

// Get returns the entry with the given id.
func (j *Journal) Get(ctx context.Context, id string) (Entry, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, sql_text, params, kind, collection, operation, row_count, error
		FROM statements
		WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// List returns entries ordered by seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) when nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, sql_text, params, kind, collection, operation, row_count, error
		FROM (
			SELECT * FROM statements
			WHERE ? = '' OR kind = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, f.Kind, f.Kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	err := s.Scan(&e.ID, &e.Seq, &e.SQL, &e.Params, &e.Kind, &e.Collection, &e.Operation, &e.RowCount, &e.Error)
	return e, err
}

// EncodeParams renders statement parameters as canonical extended JSON, so
// BSON types survive the round trip through the journal.
func EncodeParams(params []any) (string, error) {
	arr := bson.A(params)
	if arr == nil {
		arr = bson.A{}
	}
	data, err := bson.MarshalExtJSON(bson.D{{Key: "params", Value: arr}}, true, false)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(data), nil
}

// DecodeParams reverses EncodeParams.
func DecodeParams(data string) ([]any, error) {
	if data == "" {
		return nil, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(data), true, &doc); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	for _, e := range doc {
		if e.Key != "params" {
			continue
		}
		arr, ok := e.Value.(bson.A)
		if !ok {
			return nil, fmt.Errorf("decode params: params is %T, not an array", e.Value)
		}
		if len(arr) == 0 {
			return nil, nil
		}
		return []any(arr), nil
	}
	return nil, fmt.Errorf("decode params: missing params array")
}
