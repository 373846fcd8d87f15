package sqltok

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a lexical token.
type Kind int

const (
	KindKeyword     Kind = iota // FROM, WHERE, AND, INNER JOIN, ...
	KindDML                     // SELECT, INSERT, UPDATE, DELETE, ...
	KindDDL                     // CREATE, ALTER, DROP, TRUNCATE
	KindName                    // identifier
	KindPlaceholder             // %(N)s
	KindNumber                  // 42, 3.5
	KindString                  // 'text'
	KindComparison              // = > < >= <= <> !=
	KindPunctuation             // ( ) , . ;
	KindWildcard                // *
	KindOperator                // + - / %
)

var kindNames = map[Kind]string{
	KindKeyword:     "keyword",
	KindDML:         "dml",
	KindDDL:         "ddl",
	KindName:        "name",
	KindPlaceholder: "placeholder",
	KindNumber:      "number",
	KindString:      "string",
	KindComparison:  "comparison",
	KindPunctuation: "punctuation",
	KindWildcard:    "wildcard",
	KindOperator:    "operator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexical token. Keyword values are upper-cased, names are
// NFC-normalized and unquoted, string literals are unquoted.
type Token struct {
	Kind  Kind
	Value string
	Pos   int // byte offset in the statement text
}

func (*Token) node() {}

func (t *Token) String() string {
	if t.Kind == KindString {
		return "'" + strings.ReplaceAll(t.Value, "'", "''") + "'"
	}
	return t.Value
}

// Match reports whether the token has the given kind and, when values are
// supplied, one of the given values.
func (t *Token) Match(kind Kind, values ...string) bool {
	if t == nil || t.Kind != kind {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if t.Value == v {
			return true
		}
	}
	return false
}

var placeholderPattern = regexp.MustCompile(`^%\((\d+)\)s$`)

// PlaceholderIndex returns the parameter index embedded in a %(N)s token.
func (t *Token) PlaceholderIndex() (int, error) {
	if t.Kind != KindPlaceholder {
		return 0, fmt.Errorf("token %q is not a placeholder", t.Value)
	}
	m := placeholderPattern.FindStringSubmatch(t.Value)
	if m == nil {
		return 0, fmt.Errorf("malformed placeholder %q", t.Value)
	}
	return strconv.Atoi(m[1])
}

// IsKeyword reports whether n is a keyword token with one of the given values.
func IsKeyword(n Node, values ...string) bool {
	tok, ok := n.(*Token)
	return ok && tok.Match(KindKeyword, values...)
}

// IsPunct reports whether n is the punctuation token p.
func IsPunct(n Node, p string) bool {
	tok, ok := n.(*Token)
	return ok && tok.Match(KindPunctuation, p)
}

var dmlWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"REPLACE": true, "MERGE": true,
}

var ddlWords = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true,
}

var keywords = map[string]bool{
	"FROM": true, "WHERE": true, "AND": true, "OR": true, "NOT": true, "IN": true,
	"LIKE": true, "ILIKE": true, "BETWEEN": true, "IS": true, "NULL": true,
	"TRUE": true, "FALSE": true, "AS": true, "ON": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true,
	"CROSS": true, "ORDER": true, "BY": true, "GROUP": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "ASC": true, "DESC": true, "SET": true,
	"INTO": true, "VALUES": true, "DISTINCT": true, "UNION": true,
	"EXISTS": true, "ALL": true, "ANY": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true,
}

// aggregate function names grouped into *Function nodes.
var functionNames = map[string]bool{
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true, "AVG": true,
}
