package sqltok

import "strings"

// Statement is one grouped statement.
type Statement struct {
	SQL    string
	Tokens []Node
}

// Type returns the statement kind: the first DML or DDL keyword, or UNKNOWN.
func (s *Statement) Type() string {
	for _, n := range s.Tokens {
		if tok, ok := n.(*Token); ok && (tok.Kind == KindDML || tok.Kind == KindDDL) {
			return tok.Value
		}
	}
	return "UNKNOWN"
}

// Parse lexes and groups sql, splitting it into statements on ';'.
// Empty statements are dropped.
func Parse(sql string) ([]*Statement, error) {
	toks, err := Lex(sql)
	if err != nil {
		return nil, err
	}

	var stmts []*Statement
	start, textStart := 0, 0
	flush := func(end, textEnd int) error {
		if end == start {
			return nil
		}
		nodes, err := group(toks[start:end])
		if err != nil {
			return err
		}
		stmts = append(stmts, &Statement{
			SQL:    strings.TrimSpace(sql[textStart:textEnd]),
			Tokens: nodes,
		})
		return nil
	}

	for i := range toks {
		if !toks[i].Match(KindPunctuation, ";") {
			continue
		}
		if err := flush(i, toks[i].Pos); err != nil {
			return nil, err
		}
		start, textStart = i+1, toks[i].Pos+1
	}
	if err := flush(len(toks), len(sql)); err != nil {
		return nil, err
	}
	return stmts, nil
}
