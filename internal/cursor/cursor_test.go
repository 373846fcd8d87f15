package cursor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docstore"
	"github.com/roach88/docsql/internal/docstore/memstore"
	"github.com/roach88/docsql/internal/journal"
	"github.com/roach88/docsql/internal/testutil"
	"github.com/roach88/docsql/internal/translate"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func seeded(t *testing.T, coll string, docs ...bson.D) *memstore.Store {
	t.Helper()
	ids := &testutil.ObjectIDs{}
	s := memstore.New(memstore.WithIDGenerator(ids.Next))
	require.NoError(t, s.Seed(coll, docs...))
	return s
}

func abc() []bson.D {
	return []bson.D{
		{{Key: "a", Value: 1}, {Key: "b", Value: "x"}},
		{{Key: "a", Value: 2}},
		{{Key: "a", Value: 3}, {Key: "b", Value: "z"}},
	}
}

func execute(t *testing.T, c *Cursor, sql string, params ...any) Result {
	t.Helper()
	res, err := c.Execute(context.Background(), sql, params)
	require.NoError(t, err)
	return res
}

func TestCursor_SelectRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)

	res := execute(t, c, "SELECT a, b FROM t WHERE a >= ?", 2)
	assert.Equal(t, "find", res.Kind)
	assert.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, int64(2), c.RowCount())
	assert.Equal(t, []string{"a", "b"}, c.Columns())

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(2), nil}, {int32(3), "z"}}, rows)
}

func TestCursor_ColumnOrderFollowsProjection(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)

	execute(t, c, "SELECT b, a FROM t ORDER BY a DESC LIMIT 1")
	row, err := c.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, Row{"z", int32(3)}, row)
}

func TestCursor_FetchOneUntilExhausted(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)
	execute(t, c, "SELECT a FROM t WHERE a = ?", 1)

	row, err := c.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, Row{int32(1)}, row)

	for range 2 {
		row, err = c.FetchOne(ctx)
		require.NoError(t, err)
		assert.Nil(t, row)
	}
}

func TestCursor_FetchMany(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)
	execute(t, c, "SELECT a FROM t")

	rows, err := c.FetchMany(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(1)}, {int32(2)}}, rows)

	rows, err = c.FetchMany(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(3)}}, rows, "size below 1 fetches one row")

	rows, err = c.FetchMany(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestCursor_Rows(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)
	execute(t, c, "SELECT a FROM t")

	var got []Row
	for row, err := range c.Rows(ctx) {
		require.NoError(t, err)
		got = append(got, row)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []Row{{int32(1)}, {int32(2)}}, got)

	rest, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(3)}}, rest)
}

func TestCursor_InvalidState(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)

	_, err := c.FetchOne(ctx)
	assert.ErrorIs(t, err, ErrInvalidCursorState, "idle")
	assert.Equal(t, int64(-1), c.RowCount())

	execute(t, c, "SELECT a FROM t")
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx), "close is idempotent")

	_, err = c.FetchOne(ctx)
	assert.ErrorIs(t, err, ErrInvalidCursorState)
	_, err = c.FetchMany(ctx, 2)
	assert.ErrorIs(t, err, ErrInvalidCursorState)
	_, err = c.FetchAll(ctx)
	assert.ErrorIs(t, err, ErrInvalidCursorState)
	assert.Contains(t, err.Error(), "closed cursor")

	for _, err := range c.Rows(ctx) {
		assert.ErrorIs(t, err, ErrInvalidCursorState)
	}

	// A closed cursor can execute again.
	execute(t, c, "SELECT a FROM t WHERE a = ?", 3)
	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(3)}}, rows)
}

func TestCursor_FailedCompileLeavesCursorIdle(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)
	execute(t, c, "SELECT a FROM t")

	_, err := c.Execute(ctx, "SELECT a FROM t WHERE a LIKE ?", []any{"x"})
	require.Error(t, err)
	assert.True(t, translate.IsDecodeError(err))

	_, err = c.FetchOne(ctx)
	assert.ErrorIs(t, err, ErrInvalidCursorState)
}

func TestCursor_Count(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)

	res := execute(t, c, "SELECT COUNT(*) FROM t WHERE a = ?", 1)
	assert.Equal(t, "count", res.Kind)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, []string{"count"}, c.Columns())

	// The count ignores the WHERE clause and is returned by every fetch.
	for range 2 {
		row, err := c.FetchOne(ctx)
		require.NoError(t, err)
		assert.Equal(t, Row{int64(3)}, row)
	}
	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(3)}}, rows)
}

func TestCursor_ConstantSelect(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)

	res := execute(t, c, "SELECT (1) AS one FROM t WHERE a > ?", 1)
	assert.Equal(t, int64(2), res.RowCount)

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(1)}, {int64(1)}}, rows)

	row, err := c.FetchOne(ctx)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCursor_SelectStar(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 2}}), quiet)

	execute(t, c, "SELECT * FROM t")
	assert.Nil(t, c.Columns())

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(1), int32(2)}}, rows)
	assert.Equal(t, []string{"a", "b"}, c.Columns())
}

// Joins look documents up in the statement's left table, so these fixtures
// keep both sides of the join in t.
func joinFixture(t *testing.T) *memstore.Store {
	return seeded(t, "t",
		bson.D{{Key: "id", Value: 1}, {Key: "t_id", Value: 1}, {Key: "a", Value: "a1"}, {Key: "b", Value: "b1"}},
		bson.D{{Key: "id", Value: 2}, {Key: "t_id", Value: 1}, {Key: "a", Value: "a2"}, {Key: "b", Value: "b2"}},
	)
}

func TestCursor_InnerJoin(t *testing.T) {
	ctx := context.Background()
	c := New(joinFixture(t), quiet)

	res := execute(t, c, "SELECT t.a, u.b FROM t INNER JOIN u ON t.id = u.t_id")
	assert.Equal(t, "aggregate", res.Kind)
	assert.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, []string{"t.a", "u.b"}, c.Columns())

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{"a1", "b1"}, {"a1", "b2"}}, rows)
}

func TestCursor_LeftJoinKeepsUnmatchedRows(t *testing.T) {
	ctx := context.Background()
	c := New(joinFixture(t), quiet)

	res := execute(t, c, "SELECT t.a, u.b FROM t LEFT OUTER JOIN u ON t.id = u.t_id")
	assert.Equal(t, int64(3), res.RowCount)

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{"a1", "b1"}, {"a1", "b2"}, {"a2", nil}}, rows)
}

// A field from a table that is neither the left table nor joined resolves
// to nil rather than failing.
func TestCursor_UnjoinedTableFieldIsNil(t *testing.T) {
	ctx := context.Background()
	c := New(seeded(t, "t", abc()...), quiet)

	execute(t, c, "SELECT t.a, v.b FROM t WHERE a = ?", 1)

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(1), nil}}, rows)
}

func TestCursor_EmptyAggregateCountsZero(t *testing.T) {
	c := New(joinFixture(t), quiet)

	res := execute(t, c, "SELECT t.a, u.b FROM t INNER JOIN u ON t.id = u.t_id WHERE a = ?", "none")
	assert.Equal(t, int64(0), res.RowCount)
}

func counterStore(t *testing.T, seq int) *memstore.Store {
	t.Helper()
	s := seeded(t, docstore.DefaultMetadataCollection, bson.D{
		{Key: "name", Value: "t"},
		{Key: "auto", Value: bson.D{{Key: "field_name", Value: "id"}, {Key: "seq", Value: seq}}},
	})
	return s
}

func counterSeq(t *testing.T, s *memstore.Store) any {
	t.Helper()
	auto, ok := get(s.Documents(docstore.DefaultMetadataCollection)[0], "auto")
	require.True(t, ok)
	seq, _ := get(auto.(bson.D), "seq")
	return seq
}

func TestCursor_InsertAdvancesCounter(t *testing.T) {
	ctx := context.Background()
	s := counterStore(t, 4)
	c := New(s, quiet)

	res := execute(t, c, "INSERT INTO t (a) VALUES (?)", "x")
	assert.Equal(t, "insert", res.Kind)
	assert.Equal(t, int32(5), res.LastInsertID)
	assert.Equal(t, int32(5), c.LastInsertID())
	assert.Equal(t, int32(5), counterSeq(t, s))

	docs := s.Documents("t")
	require.Len(t, docs, 1)
	assert.Equal(t, bson.D{
		{Key: "_id", Value: testutil.ObjectIDFor(2)},
		{Key: "id", Value: int32(5)},
		{Key: "a", Value: "x"},
	}, docs[0])

	row, err := c.FetchOne(ctx)
	require.NoError(t, err)
	assert.Nil(t, row, "writes leave the cursor open with no rows")
}

func TestCursor_InsertKeepsExplicitAutoField(t *testing.T) {
	s := counterStore(t, 4)
	c := New(s, quiet)

	res := execute(t, c, "INSERT INTO t (id, a) VALUES (?, ?)", 42, "x")
	assert.Equal(t, 42, res.LastInsertID, "explicit values are kept as given")
	assert.Equal(t, int32(5), counterSeq(t, s))
}

func TestCursor_InsertWithoutCounter(t *testing.T) {
	s := seeded(t, "other", bson.D{{Key: "x", Value: 1}})
	c := New(s, quiet)

	res := execute(t, c, "INSERT INTO t (a, b) VALUES (%s, %s)", "x", 2)
	assert.Equal(t, "000000000000000000000002", res.LastInsertID)
	assert.Equal(t, "000000000000000000000002", c.LastInsertID())

	docs := s.Documents("t")
	require.Len(t, docs, 1)
	assert.Equal(t, testutil.ObjectIDFor(2), docs[0][0].Value)
	assert.Len(t, docs[0], 3)
}

func TestCursor_InsertWithoutCounterExplicitID(t *testing.T) {
	s := seeded(t, "other", bson.D{{Key: "x", Value: 1}})
	c := New(s, quiet)

	res := execute(t, c, "INSERT INTO t (_id, a) VALUES (?, ?)", 7, "x")
	assert.Equal(t, "7", res.LastInsertID)
}

func TestCursor_FailedInsertCompileLeavesCounter(t *testing.T) {
	s := counterStore(t, 4)
	c := New(s, quiet)

	_, err := c.Execute(context.Background(), "INSERT INTO t (a) VALUES (?)", []any{"x", "extra"})
	require.Error(t, err)
	assert.Equal(t, int32(4), counterSeq(t, s))
	assert.Empty(t, s.Documents("t"))
}

func TestCursor_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, "t", abc()...)
	c := New(s, quiet)

	res := execute(t, c, "UPDATE t SET b = ? WHERE a IN (?, ?)", "y", 1, 2)
	assert.Equal(t, Result{Kind: "update", RowCount: 1, Matched: 2, Modified: 2}, res)

	res = execute(t, c, "DELETE FROM t WHERE NOT (a = ? OR a = ?)", 1, 2)
	assert.Equal(t, Result{Kind: "delete", RowCount: 1, Deleted: 1}, res)

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	execute(t, c, "SELECT a, b FROM t")
	rows, err = c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(1), "y"}, {int32(2), "y"}}, rows)
}

func TestCursor_DDLIsIgnored(t *testing.T) {
	ctx := context.Background()
	c := New(memstore.New(), quiet)

	res := execute(t, c, "CREATE TABLE t (a int)")
	assert.Equal(t, "noop", res.Kind)
	assert.Equal(t, int64(1), c.RowCount())

	rows, err := c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type failingInsert struct {
	*memstore.Store
}

func (failingInsert) InsertOne(context.Context, string, bson.D) (any, error) {
	return nil, errors.New("disk full")
}

func TestCursor_StoreErrorLeavesCursorIdle(t *testing.T) {
	ctx := context.Background()
	c := New(failingInsert{memstore.New()}, quiet)

	_, err := c.Execute(ctx, "INSERT INTO t (a) VALUES (?)", []any{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = c.FetchOne(ctx)
	assert.ErrorIs(t, err, ErrInvalidCursorState)
}

func TestCursor_StoreErrorAfterRead(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c := New(failingInsert{seeded(t, "t", abc()...)}, WithLogger(logger))

	execute(t, c, "SELECT a FROM t")
	_, err := c.Execute(ctx, "INSERT INTO t (a) VALUES (?)", []any{4})
	require.Error(t, err)

	_, err = c.FetchAll(ctx)
	assert.ErrorIs(t, err, ErrInvalidCursorState)
	assert.Nil(t, c.Columns())
	assert.Empty(t, logs.String(), "closing an in-memory stream does not fail")
}

func TestCursor_Journal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(":memory:", journal.WithIDGenerator(testutil.NewSequentialIDs("entry")))
	require.NoError(t, err)
	defer j.Close()

	c := New(seeded(t, "t", abc()...), quiet, WithJournal(j))
	execute(t, c, "SELECT a FROM t WHERE a > ?", 1)
	_, err = c.Execute(ctx, "SELECT a FROM t WHERE a LIKE ?", []any{"x"})
	require.Error(t, err)

	entries, err := j.List(ctx, journal.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ok := entries[0]
	assert.Equal(t, "entry-0001", ok.ID)
	assert.Equal(t, "find", ok.Kind)
	assert.Equal(t, "t", ok.Collection)
	assert.Equal(t, int64(2), ok.RowCount)
	assert.Contains(t, ok.Operation, `"op": "find"`)
	assert.Empty(t, ok.Error)

	params, err := journal.DecodeParams(ok.Params)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1)}, params)

	failed := entries[1]
	assert.Empty(t, failed.Operation)
	assert.Contains(t, failed.Error, "DECODE_ERROR")
}
