package translate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/sqltok"
)

// compileInsert translates INSERT INTO t (cols) VALUES (vals).
//
// Parameters are popped off the front of the parameter list, one per
// placeholder in VALUES, so column order and parameter order match 1:1.
// Inline constants in VALUES are taken as written.
func (c *compiler) compileInsert(s *stream) (docop.Operation, error) {
	s.next() // INSERT
	if _, err := s.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := s.table()
	if err != nil {
		return nil, err
	}
	c.left = table

	cols, ok := s.next().(*sqltok.Parenthesis)
	if !ok {
		return nil, decodeErrorf(table, "INSERT needs a column list")
	}
	items, err := c.resolve(cols)
	if err != nil {
		return nil, err
	}

	if _, err := s.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	vals, ok := s.next().(*sqltok.Parenthesis)
	if !ok {
		return nil, decodeErrorf("VALUES", "VALUES needs a parenthesized list")
	}
	valueNodes := listItems(vals)
	if len(valueNodes) != len(items) {
		return nil, decodeErrorf(vals.String(), "%d columns but %d values", len(items), len(valueNodes))
	}
	if !s.done() {
		return nil, decodeErrorf(s.peek().String(), "unexpected %s after VALUES", describe(s.peek()))
	}

	params := append([]any(nil), c.params...)
	doc := bson.D{}
	for i, item := range items {
		f, ok := item.(fieldItem)
		if !ok || f.ref.Table != "" {
			return nil, decodeErrorf(cols.String(), "column list must hold plain field names")
		}
		tok, ok := valueNodes[i].(*sqltok.Token)
		if !ok {
			return nil, decodeErrorf(valueNodes[i].String(), "VALUES must hold values")
		}

		var v any
		if tok.Kind == sqltok.KindPlaceholder {
			if len(params) == 0 {
				return nil, decodeErrorf(tok.Value, "no parameter left for column %q", f.ref.Field)
			}
			v, params = params[0], params[1:]
		} else if v, err = c.value(tok); err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: f.ref.Field, Value: v})
	}
	if len(params) > 0 {
		return nil, decodeErrorf(vals.String(), "unexpected params %v", params)
	}

	return &docop.Insert{Collection: table, Document: doc}, nil
}

// listItems returns the comma separated items of a parenthesis.
func listItems(p *sqltok.Parenthesis) []sqltok.Node {
	var out []sqltok.Node
	for _, child := range p.Children {
		switch t := child.(type) {
		case *sqltok.IdentifierList:
			out = append(out, t.Items...)
		default:
			if !sqltok.IsPunct(child, ",") {
				out = append(out, child)
			}
		}
	}
	return out
}
