package sqltok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, sql string) *Statement {
	t.Helper()
	stmts, err := Parse(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParse_SelectShape(t *testing.T) {
	stmt := parseOne(t, "SELECT a, t.b FROM t WHERE a = %(0)s AND (b > %(1)s OR b < %(2)s) ORDER BY a DESC LIMIT 5")

	assert.Equal(t, "SELECT", stmt.Type())
	require.Len(t, stmt.Tokens, 10)

	list, ok := stmt.Tokens[1].(*IdentifierList)
	require.True(t, ok, "select list is %T", stmt.Tokens[1])
	require.Len(t, list.Items, 2)
	assert.Equal(t, &Identifier{Name: "a"}, list.Items[0])
	assert.Equal(t, &Identifier{Parent: "t", Name: "b"}, list.Items[1])

	where, ok := stmt.Tokens[4].(*Where)
	require.True(t, ok)
	require.Len(t, where.Children, 3)
	assert.IsType(t, &Comparison{}, where.Children[0])
	assert.True(t, IsKeyword(where.Children[1], "AND"))
	group, ok := where.Children[2].(*Parenthesis)
	require.True(t, ok)
	require.Len(t, group.Children, 3)
	assert.True(t, IsKeyword(group.Children[1], "OR"))

	assert.True(t, IsKeyword(stmt.Tokens[5], "ORDER"))
	assert.True(t, IsKeyword(stmt.Tokens[6], "BY"))
	assert.Equal(t, &Identifier{Name: "a", Ordering: "DESC"}, stmt.Tokens[7])
	assert.True(t, IsKeyword(stmt.Tokens[8], "LIMIT"))
	assert.Equal(t, "5", stmt.Tokens[9].String())
}

func TestParse_Comparison(t *testing.T) {
	stmt := parseOne(t, "DELETE FROM t WHERE t.a <> 'x'")

	where := stmt.Tokens[3].(*Where)
	cmp, ok := where.Children[0].(*Comparison)
	require.True(t, ok)
	assert.Equal(t, &Identifier{Parent: "t", Name: "a"}, cmp.Left)
	assert.Equal(t, "<>", cmp.Op)
	assert.Equal(t, &Token{Kind: KindString, Value: "x", Pos: 27}, cmp.Right)
}

func TestParse_FunctionsAndAliases(t *testing.T) {
	stmt := parseOne(t, "SELECT COUNT(*) AS n FROM t")

	id, ok := stmt.Tokens[1].(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "n", id.Alias)
	fn, ok := id.Expr.(*Function)
	require.True(t, ok)
	assert.Equal(t, "COUNT", fn.Name)

	stmt = parseOne(t, "SELECT (1) AS one FROM t")
	id = stmt.Tokens[1].(*Identifier)
	assert.IsType(t, &Parenthesis{}, id.Expr)
	assert.Equal(t, "one", id.Alias)

	stmt = parseOne(t, "SELECT a alias FROM t")
	assert.Equal(t, &Identifier{Name: "a", Alias: "alias"}, stmt.Tokens[1])
}

func TestParse_JoinClause(t *testing.T) {
	stmt := parseOne(t, "SELECT * FROM t LEFT OUTER JOIN u ON t.id = u.t_id")

	require.Len(t, stmt.Tokens, 8)
	assert.True(t, IsKeyword(stmt.Tokens[4], "LEFT OUTER JOIN"))
	assert.Equal(t, &Identifier{Name: "u"}, stmt.Tokens[5])
	assert.True(t, IsKeyword(stmt.Tokens[6], "ON"))
	cmp := stmt.Tokens[7].(*Comparison)
	assert.Equal(t, &Identifier{Parent: "u", Name: "t_id"}, cmp.Right)
}

func TestParse_SplitsStatements(t *testing.T) {
	stmts, err := Parse("DELETE FROM a; DELETE FROM b;;")
	require.NoError(t, err)

	require.Len(t, stmts, 2)
	assert.Equal(t, "DELETE FROM a", stmts[0].SQL)
	assert.Equal(t, "DELETE FROM b", stmts[1].SQL)
}

func TestParse_Empty(t *testing.T) {
	stmts, err := Parse("  -- nothing\n")
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestParse_UnbalancedParentheses(t *testing.T) {
	_, err := Parse("SELECT a FROM t WHERE (a = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unclosed")

	_, err = Parse("SELECT a FROM t WHERE a = 1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced")
}

func TestStatement_Type(t *testing.T) {
	tests := map[string]string{
		"select 1":         "SELECT",
		"Insert into t":    "INSERT",
		"CREATE TABLE t":   "CREATE",
		"truncate t":       "TRUNCATE",
		"VACUUM":           "UNKNOWN",
		"update t set a=1": "UPDATE",
	}
	for sql, want := range tests {
		assert.Equal(t, want, parseOne(t, sql).Type(), sql)
	}
}

func TestNode_String(t *testing.T) {
	stmt := parseOne(t, "SELECT a FROM t WHERE a IN (1, 2) AND b = 'x'")
	where := stmt.Tokens[4].(*Where)
	assert.Equal(t, "WHERE a IN (1, 2) AND b = 'x'", where.String())
}
