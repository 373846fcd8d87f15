package harness

import (
	"bytes"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docstore/memstore"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, kindOrFailed(event), event.SQL)
		}
	}
	return buf.String()
}

func kindOrFailed(e TraceEvent) string {
	if e.Kind == "" {
		return "(failed)"
	}
	return e.Kind
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Kind == a.Kind && (a.Collection == "" || event.Collection == a.Collection) {
			return nil
		}
	}

	want := a.Kind
	if a.Collection != "" {
		want += " on " + a.Collection
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first statement of each kind appears in
// the given order. Other statements may run in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Kind]; !seen && event.Kind != "" {
			positions[event.Kind] = i + 1
		}
	}

	for _, kind := range a.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all kinds present: %v", a.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Kinds); i++ {
		prev, curr := a.Kinds[i-1], a.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d statements of kind %s", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d statements", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState finds the single document in the collection whose
// top-level fields equal Where, then checks the fields in Expect.
func assertFinalState(st *memstore.Store, a Assertion) error {
	var matched []bson.D
	for _, doc := range st.Documents(a.Collection) {
		if hasFields(doc, bson.D(a.Where)) {
			matched = append(matched, doc)
		}
	}

	where := formatDocument(bson.D(a.Where))
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("document in %s where %s", a.Collection, where),
			Actual:   "document not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one document in %s where %s", a.Collection, where),
			Actual:   fmt.Sprintf("%d documents matched (assertion is ambiguous)", len(matched)),
		}
	}

	doc := matched[0]
	for _, want := range a.Expect {
		got, ok := field(doc, want.Key)
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", want.Key),
				Actual:   fmt.Sprintf("document is %s", formatDocument(doc)),
			}
		}
		if !sameValue(want.Value, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", want.Key, want.Value, want.Value),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", want.Key, got, got),
			}
		}
	}
	return nil
}

func assertDocumentCount(st *memstore.Store, a Assertion) error {
	n := len(st.Documents(a.Collection))
	if n != a.Count {
		return &AssertionError{
			Type:     AssertDocumentCount,
			Expected: fmt.Sprintf("%d documents in %s", a.Count, a.Collection),
			Actual:   fmt.Sprintf("%d documents", n),
		}
	}
	return nil
}

func hasFields(doc, want bson.D) bool {
	for _, w := range want {
		got, ok := field(doc, w.Key)
		if !ok || !sameValue(w.Value, got) {
			return false
		}
	}
	return true
}

func field(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// sameValue compares values by their relaxed extended JSON rendering, so
// YAML ints equal stored int32 and int64 values.
func sameValue(a, b any) bool {
	ja, errA := bson.MarshalExtJSON(bson.D{{Key: "v", Value: a}}, false, false)
	jb, errB := bson.MarshalExtJSON(bson.D{{Key: "v", Value: b}}, false, false)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

func formatDocument(doc bson.D) string {
	if len(doc) == 0 {
		return "(no conditions)"
	}
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Sprintf("%v", doc)
	}
	return string(out)
}

// AssertionContext gives assertions access to the final store.
type AssertionContext struct {
	Store *memstore.Store
}

// EvaluateAssertions evaluates every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertDocumentCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a store", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Store, assertion)
			} else {
				err = assertDocumentCount(actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
