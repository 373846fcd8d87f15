package sqltok

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"golang.org/x/text/unicode/norm"
)

// sqlLexer defines the raw token rules. Rules are tried in order, so
// placeholders must come before the % operator and comments before
// whitespace-sensitive rules.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*(?:[^*]|\*[^/])*\*/`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Placeholder", Pattern: `%\(\d+\)s`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "QuotedIdent", Pattern: "\"(?:[^\"]|\"\")*\"|`[^`]*`"},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "Comparison", Pattern: `>=|<=|<>|!=|=|<|>`},
	{Name: "Punct", Pattern: `[(),.;]`},
	{Name: "Wildcard", Pattern: `\*`},
	{Name: "Operator", Pattern: `[-+/%]`},
	{Name: "Word", Pattern: `[\p{L}_][\p{L}\p{M}\p{N}_$]*`},
})

var symbolNames = func() map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string)
	for name, typ := range sqlLexer.Symbols() {
		names[typ] = name
	}
	return names
}()

// Lex splits statement text into tokens, dropping whitespace and comments.
// Multi-word join keywords are merged into a single keyword token.
func Lex(sql string) ([]Token, error) {
	lex, err := sqlLexer.LexString("", sql)
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}

	toks := make([]Token, 0, len(raw))
	for _, rt := range raw {
		if rt.EOF() {
			break
		}
		tok, keep := classify(symbolNames[rt.Type], rt.Value, rt.Pos.Offset)
		if keep {
			toks = append(toks, tok)
		}
	}
	return mergeJoins(toks), nil
}

func classify(symbol, value string, pos int) (Token, bool) {
	switch symbol {
	case "Comment", "Whitespace":
		return Token{}, false
	case "Placeholder":
		return Token{Kind: KindPlaceholder, Value: value, Pos: pos}, true
	case "String":
		inner := value[1 : len(value)-1]
		return Token{Kind: KindString, Value: strings.ReplaceAll(inner, "''", "'"), Pos: pos}, true
	case "QuotedIdent":
		inner := value[1 : len(value)-1]
		if value[0] == '"' {
			inner = strings.ReplaceAll(inner, `""`, `"`)
		}
		return Token{Kind: KindName, Value: norm.NFC.String(inner), Pos: pos}, true
	case "Number":
		return Token{Kind: KindNumber, Value: value, Pos: pos}, true
	case "Comparison":
		return Token{Kind: KindComparison, Value: value, Pos: pos}, true
	case "Punct":
		return Token{Kind: KindPunctuation, Value: value, Pos: pos}, true
	case "Wildcard":
		return Token{Kind: KindWildcard, Value: value, Pos: pos}, true
	case "Operator":
		return Token{Kind: KindOperator, Value: value, Pos: pos}, true
	}

	upper := strings.ToUpper(value)
	switch {
	case dmlWords[upper]:
		return Token{Kind: KindDML, Value: upper, Pos: pos}, true
	case ddlWords[upper]:
		return Token{Kind: KindDDL, Value: upper, Pos: pos}, true
	case keywords[upper]:
		return Token{Kind: KindKeyword, Value: upper, Pos: pos}, true
	default:
		return Token{Kind: KindName, Value: norm.NFC.String(value), Pos: pos}, true
	}
}

// mergeJoins folds INNER JOIN, LEFT [OUTER] JOIN and friends into one token.
func mergeJoins(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Kind != KindKeyword {
			out = append(out, tok)
			continue
		}
		switch tok.Value {
		case "INNER", "CROSS":
			if i+1 < len(toks) && toks[i+1].Match(KindKeyword, "JOIN") {
				tok.Value += " JOIN"
				i++
			}
		case "LEFT", "RIGHT", "FULL":
			j := i + 1
			words := []string{tok.Value}
			if j < len(toks) && toks[j].Match(KindKeyword, "OUTER") {
				words = append(words, "OUTER")
				j++
			}
			if j < len(toks) && toks[j].Match(KindKeyword, "JOIN") {
				tok.Value = strings.Join(append(words, "JOIN"), " ")
				i = j
			}
		}
		out = append(out, tok)
	}
	return out
}
