package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/docsql/internal/testutil"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"5", int32(5)},
		{"2.5", 2.5},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{"bare", "bare"},
		{"two words", "two words"},
		{`{"$numberLong": "7"}`, int64(7)},
		{"[1, 2]", bson.A{int32(1), int32(2)}},
		{`{"$oid": "000000000000000000000001"}`, testutil.ObjectIDFor(1)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseParam(tt.raw))
		})
	}
}

func TestParseParams_Empty(t *testing.T) {
	assert.Nil(t, parseParams(nil))
}

func TestSplitParams(t *testing.T) {
	statements := []string{
		"INSERT INTO t (a) VALUES (?)",
		"SELECT a FROM t WHERE a = %s AND b = %s",
		"DELETE FROM t",
	}

	got := splitParams(statements, []any{1, 2, 3, 4})
	assert.Equal(t, [][]any{{1}, {2, 3}, {4}}, got)

	// Too few params: later statements get what is left.
	got = splitParams(statements, []any{1, 2})
	assert.Equal(t, []any{1}, got[0])
	assert.Equal(t, []any{2}, got[1])
	assert.Empty(t, got[2])
}

func TestExtJSON(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"x", `"x"`},
		{int32(5), `5`},
		{int64(5), `5`},
		{nil, `null`},
		{primitive.ObjectID{}, `{"$oid":"000000000000000000000000"}`},
		{[]any{[]any{int32(1), "a"}}, `[[1,"a"]]`},
	}
	for _, tt := range tests {
		got, err := extJSON(tt.value)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "NULL", cellText(nil))
	assert.Equal(t, "ann", cellText("ann"))
	assert.Equal(t, "31", cellText(int32(31)))
	assert.Equal(t, "true", cellText(true))
}
