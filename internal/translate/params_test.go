package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		want  string
		count int
	}{
		{
			name:  "format style",
			sql:   "SELECT a FROM t WHERE a = %s AND b = %s",
			want:  "SELECT a FROM t WHERE a = %(0)s AND b = %(1)s",
			count: 2,
		},
		{
			name:  "qmark style",
			sql:   "UPDATE t SET a = ? WHERE b = ?",
			want:  "UPDATE t SET a = %(0)s WHERE b = %(1)s",
			count: 2,
		},
		{
			name:  "quoted placeholders untouched",
			sql:   "SELECT a FROM t WHERE s = '?' AND n = \"%s\" AND b = ?",
			want:  "SELECT a FROM t WHERE s = '?' AND n = \"%s\" AND b = %(0)s",
			count: 1,
		},
		{
			name:  "escaped quote inside string",
			sql:   "SELECT a FROM t WHERE s = 'it''s ?' AND b = ?",
			want:  "SELECT a FROM t WHERE s = 'it''s ?' AND b = %(0)s",
			count: 1,
		},
		{
			name:  "percent escape",
			sql:   "SELECT a FROM t WHERE b = 100%% AND c = %s",
			want:  "SELECT a FROM t WHERE b = 100% AND c = %(0)s",
			count: 1,
		},
		{
			name:  "no placeholders",
			sql:   "DELETE FROM t",
			want:  "DELETE FROM t",
			count: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := Rewrite(tt.sql)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.count, n)
		})
	}
}

func TestRewrite_CounterResetsPerCall(t *testing.T) {
	first, _ := Rewrite("a = ? AND b = ?")
	second, _ := Rewrite("c = ?")

	assert.Equal(t, "a = %(0)s AND b = %(1)s", first)
	assert.Equal(t, "c = %(0)s", second)
}
