package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Layout(t *testing.T) {
	out, err := Snapshot("tiny", []TraceEvent{
		{Seq: 1, SQL: "DELETE FROM t", Kind: "delete", Collection: "t", RowCount: 1},
		{Seq: 2, SQL: "TRUNCATE t", Error: "UNSUPPORTED_OPERATION: no"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{
  "scenario": "tiny",
  "trace": [
    {
      "seq": 1,
      "sql": "DELETE FROM t",
      "kind": "delete",
      "collection": "t",
      "row_count": 1
    },
    {
      "seq": 2,
      "sql": "TRUNCATE t",
      "error": "UNSUPPORTED_OPERATION: no"
    }
  ]
}
`, string(out))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario := mustParse(t, `
name: deterministic
description: "two runs render identically"
fixtures:
  t:
    - { a: 1 }
steps:
  - sql: "INSERT INTO t (a) VALUES (?)"
    params: [2]
  - sql: "SELECT * FROM t"
`)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first.Trace)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"$oid": "000000000000000000000002"`)
}
