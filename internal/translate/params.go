package translate

import (
	"strconv"
	"strings"
)

// Rewrite replaces positional placeholders (%s and ?) with indexed
// placeholders %(N)s, numbering them from 0 left to right. Placeholders
// inside quoted strings or identifiers are left alone, and %% is unescaped
// to %. It returns the rewritten text and the number of placeholders seen.
//
// Each call starts numbering afresh.
func Rewrite(sql string) (string, int) {
	var b strings.Builder
	b.Grow(len(sql) + 8)

	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '?':
			writePlaceholder(&b, n)
			n++
		case c == '%' && i+1 < len(sql) && sql[i+1] == 's':
			writePlaceholder(&b, n)
			n++
			i++
		case c == '%' && i+1 < len(sql) && sql[i+1] == '%':
			b.WriteByte('%')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), n
}

func writePlaceholder(b *strings.Builder, n int) {
	b.WriteString("%(")
	b.WriteString(strconv.Itoa(n))
	b.WriteString(")s")
}
