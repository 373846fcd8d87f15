package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// Snapshot renders a trace as indented relaxed extended JSON. Field order
// is fixed, so equal traces always render to equal bytes.
func Snapshot(scenarioName string, trace []TraceEvent) ([]byte, error) {
	events := make(bson.A, len(trace))
	for i, e := range trace {
		doc := bson.D{
			{Key: "seq", Value: e.Seq},
			{Key: "sql", Value: e.SQL},
		}
		if len(e.Params) > 0 {
			doc = append(doc, bson.E{Key: "params", Value: bson.A(e.Params)})
		}
		if e.Kind != "" {
			doc = append(doc, bson.E{Key: "kind", Value: e.Kind})
		}
		if e.Collection != "" {
			doc = append(doc, bson.E{Key: "collection", Value: e.Collection})
		}
		if e.Error != "" {
			doc = append(doc, bson.E{Key: "error", Value: e.Error})
			events[i] = doc
			continue
		}
		doc = append(doc, bson.E{Key: "row_count", Value: e.RowCount})
		if e.LastInsertID != nil {
			doc = append(doc, bson.E{Key: "last_insert_id", Value: e.LastInsertID})
		}
		if len(e.Columns) > 0 {
			doc = append(doc, bson.E{Key: "columns", Value: e.Columns})
		}
		if e.Rows != nil {
			rows := make(bson.A, len(e.Rows))
			for j, r := range e.Rows {
				rows[j] = bson.A(r)
			}
			doc = append(doc, bson.E{Key: "rows", Value: rows})
		}
		events[i] = doc
	}

	raw, err := bson.MarshalExtJSON(bson.D{
		{Key: "scenario", Value: scenarioName},
		{Key: "trace", Value: events},
	}, false, false)
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent trace: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against the golden file
// for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	out, err := Snapshot(scenarioName, result.Trace)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, out)
	return nil
}
