package translate

import "github.com/roach88/docsql/internal/sqltok"

// stream walks a statement's top-level tokens.
type stream struct {
	nodes []sqltok.Node
	pos   int
}

func (s *stream) done() bool { return s.pos >= len(s.nodes) }

func (s *stream) peek() sqltok.Node {
	if s.done() {
		return nil
	}
	return s.nodes[s.pos]
}

func (s *stream) next() sqltok.Node {
	n := s.peek()
	if n != nil {
		s.pos++
	}
	return n
}

// expectKeyword consumes one of the given keywords or fails naming what was
// found instead.
func (s *stream) expectKeyword(values ...string) (*sqltok.Token, error) {
	n := s.next()
	if n == nil {
		return nil, decodeErrorf("", "expected %v, found end of statement", values)
	}
	if !sqltok.IsKeyword(n, values...) {
		return nil, decodeErrorf(n.String(), "expected %v, found %s", values, describe(n))
	}
	return n.(*sqltok.Token), nil
}

// table consumes a plain table name.
func (s *stream) table() (string, error) {
	n := s.next()
	if n == nil {
		return "", decodeErrorf("", "expected a table name, found end of statement")
	}
	id, ok := n.(*sqltok.Identifier)
	if !ok || id.Expr != nil || id.Parent != "" || id.Name == "*" {
		return "", decodeErrorf(n.String(), "expected a table name, found %s", describe(n))
	}
	if id.Alias != "" {
		return "", decodeErrorf(n.String(), "table aliases are not supported")
	}
	return id.Name, nil
}
