package harness

import (
	"github.com/roach88/docsql/internal/cursor"
)

// TraceEvent records one executed statement.
type TraceEvent struct {
	Seq          int64        `json:"seq"`
	SQL          string       `json:"sql"`
	Params       []any        `json:"params,omitempty"`
	Kind         string       `json:"kind,omitempty"`
	Collection   string       `json:"collection,omitempty"`
	RowCount     int64        `json:"row_count"`
	LastInsertID any          `json:"last_insert_id,omitempty"`
	Columns      []string     `json:"columns,omitempty"`
	Rows         []cursor.Row `json:"rows,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed statements in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// State is every non-empty collection after the last step, as relaxed
	// extended JSON documents.
	State map[string][]string `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]string),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed statement.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
