package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/cursor"
	"github.com/roach88/docsql/internal/docstore"
	"github.com/roach88/docsql/internal/docstore/memstore"
	"github.com/roach88/docsql/internal/journal"
	"github.com/roach88/docsql/internal/testutil"
)

// Harness runs one scenario on a fresh store, journal and cursor.
type Harness struct {
	store   *memstore.Store
	journal *journal.Journal
	rec     *recorder
	cursor  *cursor.Cursor
	logger  *slog.Logger
}

// recorder forwards entries to the journal and remembers the last one so
// each step's trace event carries the journal's sequence number.
type recorder struct {
	j    *journal.Journal
	last journal.Entry
}

func (r *recorder) Append(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	out, err := r.j.Append(ctx, e)
	if err != nil {
		return out, err
	}
	r.last = out
	return out, nil
}

// Run executes a scenario and returns its result. The returned error
// reports harness failures such as unusable fixtures; failed
// expectations are recorded in the result instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	ids := &testutil.ObjectIDs{}
	st := memstore.New(memstore.WithIDGenerator(ids.Next))

	if err := SeedFixtures(st, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to seed fixtures: %w", err)
	}

	j, err := journal.Open(":memory:", journal.WithIDGenerator(testutil.NewSequentialIDs(scenario.Name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	meta := scenario.MetadataCollection
	if meta == "" {
		meta = docstore.DefaultMetadataCollection
	}
	rec := &recorder{j: j}
	h := &Harness{
		store:   st,
		journal: j,
		rec:     rec,
		cursor: cursor.New(st,
			cursor.WithJournal(rec),
			cursor.WithLogger(logger),
			cursor.WithMetadataCollection(meta),
		),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	if err := h.cursor.Close(ctx); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Store: st}) {
		result.AddError(msg)
	}

	for _, coll := range st.Collections() {
		for _, doc := range st.Documents(coll) {
			out, err := bson.MarshalExtJSON(doc, false, false)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", coll, err)
			}
			result.State[coll] = append(result.State[coll], string(out))
		}
	}
	return result, nil
}

// runStep executes one statement, fetches its rows and checks the step's
// expectations. Only failures of the harness itself are returned.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	before := h.rec.last.Seq
	res, execErr := h.cursor.Execute(ctx, step.SQL, []any(step.Params))
	if h.rec.last.Seq == before {
		return fmt.Errorf("statement was not journaled")
	}
	entry := h.rec.last

	event := TraceEvent{
		Seq:          entry.Seq,
		SQL:          step.SQL,
		Params:       []any(step.Params),
		Kind:         entry.Kind,
		Collection:   entry.Collection,
		RowCount:     res.RowCount,
		LastInsertID: res.LastInsertID,
	}
	if execErr != nil {
		event.Error = execErr.Error()
	} else if isRead(res.Kind) && step.Fetch != FetchNone {
		rows, err := h.fetch(ctx, step)
		if err != nil {
			event.Error = err.Error()
		} else {
			event.Rows = rows
		}
		event.Columns = h.cursor.Columns()
	}
	result.AddTrace(event)

	h.logger.Info("step completed",
		"step", index,
		"kind", event.Kind,
		"collection", event.Collection,
		"row_count", event.RowCount,
	)

	for _, msg := range checkExpect(step.Expect, event) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", index, step.SQL, msg))
	}
	return nil
}

func (h *Harness) fetch(ctx context.Context, step Step) ([]cursor.Row, error) {
	switch step.Fetch {
	case FetchOne:
		row, err := h.cursor.FetchOne(ctx)
		if err != nil || row == nil {
			return []cursor.Row{}, err
		}
		return []cursor.Row{row}, nil
	case FetchMany:
		return h.cursor.FetchMany(ctx, step.Size)
	default:
		return h.cursor.FetchAll(ctx)
	}
}

func checkExpect(want *Expect, got TraceEvent) []string {
	if want == nil {
		if got.Error != "" {
			return []string{"unexpected error: " + got.Error}
		}
		return nil
	}

	var msgs []string
	if want.Error != "" {
		if got.Error == "" {
			return []string{fmt.Sprintf("expected error containing %q, statement succeeded", want.Error)}
		}
		if !strings.Contains(got.Error, want.Error) {
			msgs = append(msgs, fmt.Sprintf("expected error containing %q, got %q", want.Error, got.Error))
		}
		return msgs
	}
	if got.Error != "" {
		return []string{"unexpected error: " + got.Error}
	}

	if want.RowCount != nil && *want.RowCount != got.RowCount {
		msgs = append(msgs, fmt.Sprintf("row count: expected %d, got %d", *want.RowCount, got.RowCount))
	}
	if want.LastInsertID != nil && !sameValue(want.LastInsertID.Value, got.LastInsertID) {
		msgs = append(msgs, fmt.Sprintf("last insert id: expected %v, got %v", want.LastInsertID.Value, got.LastInsertID))
	}
	if want.Columns != nil && !slices.Equal(want.Columns, got.Columns) {
		msgs = append(msgs, fmt.Sprintf("columns: expected %v, got %v", want.Columns, got.Columns))
	}
	if want.Rows != nil {
		if msg := compareRows(*want.Rows, got.Rows); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func compareRows(want []Values, got []cursor.Row) string {
	if len(want) != len(got) {
		return fmt.Sprintf("rows: expected %d, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !sameValue(bson.A(want[i]), bson.A(got[i])) {
			return fmt.Sprintf("row %d: expected %v, got %v", i, []any(want[i]), []any(got[i]))
		}
	}
	return ""
}

func isRead(kind string) bool {
	return kind == "find" || kind == "aggregate" || kind == "count"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
