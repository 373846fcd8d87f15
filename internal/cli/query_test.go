package cli

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsql/internal/journal"
)

const peopleFixtures = `
people:
  - {_id: 1, name: ann, age: 31}
  - {_id: 2, name: bob, age: 45}
  - {_id: 3, name: cy, age: 19}
`

func TestQueryCommand_FixturesJSON(t *testing.T) {
	fixtures := writeFile(t, t.TempDir(), "seed.yaml", peopleFixtures)
	cmd := NewQueryCommand(testOptions(t, "json"))

	out, err := execute(t, cmd,
		"--fixtures", fixtures, "--no-journal",
		"SELECT name, age FROM people WHERE age > ? ORDER BY age DESC", "-p", "20",
	)
	require.NoError(t, err)

	var results []StatementResult
	resp := decodeResponse(t, out, &results)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "find", r.Kind)
	assert.Equal(t, int64(2), r.RowCount)
	assert.Equal(t, []string{"name", "age"}, r.Columns)

	var rows [][]any
	require.NoError(t, json.Unmarshal(r.Rows, &rows))
	assert.Equal(t, [][]any{{"bob", float64(45)}, {"ann", float64(31)}}, rows)
}

func TestQueryCommand_Text(t *testing.T) {
	fixtures := writeFile(t, t.TempDir(), "seed.yaml", peopleFixtures)
	cmd := NewQueryCommand(testOptions(t, "text"))

	out, err := execute(t, cmd,
		"--fixtures", fixtures, "--no-journal",
		"SELECT name FROM people WHERE age < ?", "SELECT COUNT(*) FROM people",
		"-p", "40",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "cy")
	assert.NotContains(t, out, "bob")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "(1 row)")
}

func TestQueryCommand_WritesThenReads(t *testing.T) {
	cmd := NewQueryCommand(testOptions(t, "json"))

	out, err := execute(t, cmd, "--memory", "--no-journal",
		"INSERT INTO t (a) VALUES (?)",
		"UPDATE t SET a = ? WHERE a = ?",
		"SELECT a FROM t",
		"DELETE FROM t",
		"CREATE TABLE u (a int)",
		"-p", "1", "-p", "7", "-p", "1",
	)
	require.NoError(t, err)

	var results []StatementResult
	decodeResponse(t, out, &results)
	require.Len(t, results, 5)

	assert.Equal(t, "insert", results[0].Kind)
	var id string
	require.NoError(t, json.Unmarshal(results[0].LastInsertID, &id))
	assert.Len(t, id, 24)

	assert.Equal(t, "update", results[1].Kind)
	assert.Equal(t, int64(1), results[1].Matched)
	assert.Equal(t, int64(1), results[1].Modified)

	assert.JSONEq(t, `[[7]]`, string(results[2].Rows))

	assert.Equal(t, "delete", results[3].Kind)
	assert.Equal(t, int64(1), results[3].Deleted)

	assert.Equal(t, "noop", results[4].Kind)
	assert.Equal(t, int64(1), results[4].RowCount)
}

func TestQueryCommand_StopsAtFirstFailure(t *testing.T) {
	cmd := NewQueryCommand(testOptions(t, "json"))

	out, err := execute(t, cmd, "--memory", "--no-journal", "TRUNCATE t", "SELECT a FROM t")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var results []StatementResult
	resp := decodeResponse(t, out, &results)
	assert.Equal(t, "error", resp.Status)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, "UNSUPPORTED_OPERATION", results[0].Error.Code)
}

func TestQueryCommand_Journals(t *testing.T) {
	opts := testOptions(t, "text")
	cmd := NewQueryCommand(opts)

	_, err := execute(t, cmd, "--memory",
		"INSERT INTO t (a) VALUES (?)", "SELECT a FROM t WHERE a = ?",
		"-p", "1", "-p", "1",
	)
	require.NoError(t, err)

	j, err := journal.Open(opts.Config.JournalPath)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.List(context.Background(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "insert", entries[0].Kind)
	assert.Equal(t, "find", entries[1].Kind)
	assert.Equal(t, "SELECT a FROM t WHERE a = ?", entries[1].SQL)
	assert.Equal(t, int64(1), entries[1].RowCount)
}

func TestQueryCommand_NoDatabase(t *testing.T) {
	cmd := NewQueryCommand(testOptions(t, "text"))

	_, err := execute(t, cmd, "--no-journal", "SELECT a FROM t")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database configured")
}

func TestQueryCommand_BadFixtures(t *testing.T) {
	dir := t.TempDir()
	cmd := NewQueryCommand(testOptions(t, "text"))

	_, err := execute(t, cmd, "--fixtures", dir+"/missing.yaml", "SELECT a FROM t")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	dup := writeFile(t, dir, "dup.yaml", "t:\n  - {_id: 1}\n  - {_id: 1}\n")
	cmd = NewQueryCommand(testOptions(t, "text"))
	_, err = execute(t, cmd, "--fixtures", dup, "SELECT a FROM t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to seed fixtures")
}

func TestQueryCommand_NoJournalLeavesNoFile(t *testing.T) {
	opts := testOptions(t, "text")
	cmd := NewQueryCommand(opts)

	_, err := execute(t, cmd, "--memory", "--no-journal", "SELECT a FROM t")
	require.NoError(t, err)

	_, err = os.Stat(opts.Config.JournalPath)
	assert.True(t, os.IsNotExist(err))
}
