// Package cursor executes SQL statements against a document store and
// exposes their results through a relational cursor.
//
// A Cursor moves between three states:
//
//	Idle   --Execute-->  Open  --Close-->  Closed
//	Closed --Execute-->  Open
//
// Execute compiles the statement, validates the compiled operation and only
// then issues it to the store, so a statement that fails to compile never
// leaves a partial write behind. Rows can be fetched only while Open.
//
// A Cursor is owned by a single goroutine. Independent cursors may run
// concurrently over one store.
package cursor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/docstore"
	"github.com/roach88/docsql/internal/journal"
	"github.com/roach88/docsql/internal/translate"
)

type state int

const (
	stateIdle state = iota
	stateOpen
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Recorder receives one entry per executed statement. *journal.Journal
// satisfies it.
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithMetadataCollection names the collection holding auto-increment
// counters. Defaults to docstore.DefaultMetadataCollection.
func WithMetadataCollection(name string) Option {
	return func(c *Cursor) { c.meta = name }
}

// WithJournal records every executed statement, successful or not.
func WithJournal(r Recorder) Option {
	return func(c *Cursor) { c.journal = r }
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cursor) { c.logger = l }
}

// Result reports what Execute did. RowCount is the number of rows a read
// will yield, and 1 for counts, writes and ignored statements.
type Result struct {
	Kind         string
	RowCount     int64
	LastInsertID any

	// Set by UPDATE.
	Matched  int64
	Modified int64

	// Set by DELETE.
	Deleted int64
}

// Cursor runs statements and hands out their rows.
type Cursor struct {
	store   docstore.Store
	meta    string
	journal Recorder
	logger  *slog.Logger

	state   state
	result  Result
	shape   shape
	stream  docstore.RowStream // nil unless the statement was a row-producing read
	scalar  *int64             // COUNT(*) result
	columns []string
}

// New returns an idle cursor over store.
func New(store docstore.Store, opts ...Option) *Cursor {
	c := &Cursor{
		store:  store,
		meta:   docstore.DefaultMetadataCollection,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute compiles sql with params and runs it. Any previous result is
// released first. On failure the cursor is left Idle.
func (c *Cursor) Execute(ctx context.Context, sql string, params []any) (Result, error) {
	if err := c.release(ctx); err != nil {
		c.logger.Warn("failed to close previous result", "error", err)
	}
	c.state = stateIdle

	op, err := translate.Compile(sql, params)
	if err == nil {
		if verr := docop.Validate(op); verr != nil {
			err = fmt.Errorf("invalid compiled operation: %w", verr)
		}
	}
	if err != nil {
		c.logger.Debug("statement failed to compile", "sql", sql, "error", err)
		c.record(ctx, sql, params, nil, Result{}, err)
		return Result{}, err
	}
	c.logger.Debug("compiled statement", "kind", op.Kind(), "collection", op.Target())

	res, err := c.run(ctx, op)
	c.record(ctx, sql, params, op, res, err)
	if err != nil {
		if rerr := c.release(ctx); rerr != nil {
			c.logger.Warn("failed to close partial result", "error", rerr)
		}
		return Result{}, err
	}
	c.result = res
	c.state = stateOpen
	return res, nil
}

// FetchOne returns the next row, or nil once the result is exhausted.
func (c *Cursor) FetchOne(ctx context.Context) (Row, error) {
	if err := c.ready("fetch one"); err != nil {
		return nil, err
	}
	if c.scalar != nil {
		return Row{*c.scalar}, nil
	}
	if c.stream == nil {
		return nil, nil
	}
	return c.next(ctx)
}

// FetchMany returns up to size rows; a size below 1 means 1. The slice is
// empty, never nil, once the result is exhausted.
func (c *Cursor) FetchMany(ctx context.Context, size int) ([]Row, error) {
	if err := c.ready("fetch many"); err != nil {
		return nil, err
	}
	if size < 1 {
		size = 1
	}
	return c.collect(ctx, size)
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll(ctx context.Context) ([]Row, error) {
	if err := c.ready("fetch all"); err != nil {
		return nil, err
	}
	return c.collect(ctx, -1)
}

// Rows iterates over the remaining rows. Iterating a cursor that is not
// Open yields a single ErrInvalidCursorState.
func (c *Cursor) Rows(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if err := c.ready("iterate"); err != nil {
			yield(nil, err)
			return
		}
		if c.scalar != nil {
			yield(Row{*c.scalar}, nil)
			return
		}
		if c.stream == nil {
			return
		}
		for {
			row, err := c.next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if row == nil || !yield(row, nil) {
				return
			}
		}
	}
}

// Columns names the result columns. For SELECT * they are the fields of
// the most recently fetched row.
func (c *Cursor) Columns() []string {
	return c.columns
}

// RowCount returns the row count of the last Execute, or -1 when the cursor
// is not Open.
func (c *Cursor) RowCount() int64 {
	if c.state != stateOpen {
		return -1
	}
	return c.result.RowCount
}

// LastInsertID returns the id of the document inserted by the last
// INSERT: the auto-increment value when the table has a counter, the
// store-generated _id otherwise.
func (c *Cursor) LastInsertID() any {
	return c.result.LastInsertID
}

// Close releases the current result. It is safe to call from any state and
// more than once.
func (c *Cursor) Close(ctx context.Context) error {
	err := c.release(ctx)
	c.state = stateClosed
	if err != nil {
		return fmt.Errorf("close cursor: %w", err)
	}
	return nil
}

func (c *Cursor) ready(action string) error {
	if c.state != stateOpen {
		return fmt.Errorf("%s on %s cursor: %w", action, c.state, ErrInvalidCursorState)
	}
	return nil
}

func (c *Cursor) collect(ctx context.Context, limit int) ([]Row, error) {
	rows := []Row{}
	if c.scalar != nil {
		return append(rows, Row{*c.scalar}), nil
	}
	if c.stream == nil {
		return rows, nil
	}
	for limit < 0 || len(rows) < limit {
		row, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Cursor) next(ctx context.Context) (Row, error) {
	if !c.stream.Next(ctx) {
		if err := c.stream.Err(); err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		return nil, nil
	}
	var doc bson.D
	if err := c.stream.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	row, names := c.shape.row(doc)
	if names != nil {
		c.columns = names
	}
	return row, nil
}

// release closes the stream and forgets the current result.
func (c *Cursor) release(ctx context.Context) error {
	var err error
	if c.stream != nil {
		err = c.stream.Close(ctx)
	}
	c.stream, c.scalar, c.columns = nil, nil, nil
	c.shape = shape{}
	c.result = Result{}
	return err
}

func (c *Cursor) record(ctx context.Context, sql string, params []any, op docop.Operation, res Result, runErr error) {
	if c.journal == nil {
		return
	}
	e := journal.Entry{SQL: sql, RowCount: res.RowCount}
	if encoded, err := journal.EncodeParams(params); err == nil {
		e.Params = encoded
	} else {
		c.logger.Warn("params not journaled", "error", err)
	}
	if op != nil {
		e.Kind, e.Collection = op.Kind(), op.Target()
		if out, err := docop.Explain(op); err == nil {
			e.Operation = string(out)
		}
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	if _, err := c.journal.Append(ctx, e); err != nil {
		c.logger.Warn("journal append failed", "sql", sql, "error", err)
	}
}
