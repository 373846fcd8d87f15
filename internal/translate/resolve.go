package translate

import (
	"strconv"
	"strings"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/sqltok"
)

// resolved is one item produced by the reference resolver.
//
// This is a sealed union: fieldItem, joinRef, *cmpExpr or literal.
type resolved interface {
	resolvedItem()
}

// fieldItem is a column reference with its ORDER BY direction, if any.
type fieldItem struct {
	ref      docop.FieldRef
	ordering string
}

// joinRef is an equality join predicate from an ON clause.
type joinRef struct {
	field docop.FieldRef
	other docop.FieldRef
}

// literal is a bound parameter or inline constant.
type literal struct {
	value any
}

func (fieldItem) resolvedItem() {}
func (joinRef) resolvedItem()   {}
func (*cmpExpr) resolvedItem()  {}
func (literal) resolvedItem()   {}

// operatorMap maps SQL comparison operators to filter operators.
var operatorMap = map[string]string{
	"=":  "$eq",
	">":  "$gt",
	"<":  "$lt",
	">=": "$gte",
	"<=": "$lte",
	"<>": "$ne",
	"!=": "$ne",
}

// compiler is the per-statement compile context. It is never shared
// between statements.
type compiler struct {
	sql    string
	params []any
	left   string
	joined []string
}

// resolve converts a grouped token into semantic items, in source order.
func (c *compiler) resolve(n sqltok.Node) ([]resolved, error) {
	switch t := n.(type) {
	case *sqltok.Identifier:
		ref, err := c.fieldRef(t)
		if err != nil {
			return nil, err
		}
		return []resolved{fieldItem{ref: ref, ordering: t.Ordering}}, nil

	case *sqltok.IdentifierList:
		var out []resolved
		for _, item := range t.Items {
			items, err := c.resolve(item)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil

	case *sqltok.Comparison:
		item, err := c.resolveComparison(t)
		if err != nil {
			return nil, err
		}
		return []resolved{item}, nil

	case *sqltok.Parenthesis:
		var out []resolved
		for _, child := range t.Children {
			if sqltok.IsPunct(child, ",") {
				continue
			}
			items, err := c.resolve(child)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil

	case *sqltok.Token:
		v, err := c.value(t)
		if err != nil {
			return nil, err
		}
		return []resolved{literal{value: v}}, nil
	}
	return nil, decodeErrorf(n.String(), "unexpected %s", describe(n))
}

func (c *compiler) fieldRef(id *sqltok.Identifier) (docop.FieldRef, error) {
	if id.Expr != nil {
		return docop.FieldRef{}, decodeErrorf(id.String(), "expression is not a field reference")
	}
	return docop.FieldRef{Table: id.Parent, Field: id.Name}, nil
}

func (c *compiler) resolveComparison(cmp *sqltok.Comparison) (resolved, error) {
	lhs, ok := cmp.Left.(*sqltok.Identifier)
	if !ok {
		return nil, decodeErrorf(cmp.String(), "left side of comparison must be a field")
	}
	field, err := c.fieldRef(lhs)
	if err != nil {
		return nil, err
	}

	if rhs, ok := cmp.Right.(*sqltok.Identifier); ok {
		other, err := c.fieldRef(rhs)
		if err != nil {
			return nil, err
		}
		if cmp.Op != "=" {
			return nil, decodeErrorf(cmp.String(), "join predicate must be an equality")
		}
		return joinRef{field: field, other: other}, nil
	}

	op, ok := operatorMap[cmp.Op]
	if !ok {
		return nil, decodeErrorf(cmp.String(), "unsupported operator %q", cmp.Op)
	}
	tok, ok := cmp.Right.(*sqltok.Token)
	if !ok {
		return nil, decodeErrorf(cmp.String(), "right side of comparison must be a value")
	}
	v, err := c.value(tok)
	if err != nil {
		return nil, err
	}
	return &cmpExpr{field: field, op: op, value: v}, nil
}

// value returns the literal a token stands for: the bound parameter for a
// placeholder, the constant itself otherwise.
func (c *compiler) value(tok *sqltok.Token) (any, error) {
	switch tok.Kind {
	case sqltok.KindPlaceholder:
		idx, err := tok.PlaceholderIndex()
		if err != nil {
			return nil, decodeErrorf(tok.Value, "%v", err)
		}
		if idx < 0 || idx >= len(c.params) {
			return nil, decodeErrorf(tok.Value, "placeholder %d out of range for %d parameters", idx, len(c.params))
		}
		return c.params[idx], nil
	case sqltok.KindNumber:
		return parseNumber(tok.Value)
	case sqltok.KindString:
		return tok.Value, nil
	case sqltok.KindKeyword:
		switch tok.Value {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		case "NULL":
			return nil, nil
		}
	}
	return nil, decodeErrorf(tok.String(), "unexpected %s", describe(tok))
}

func parseNumber(s string) (any, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, decodeErrorf(s, "malformed number")
	}
	return f, nil
}

// describe names a node for error messages.
func describe(n sqltok.Node) string {
	switch t := n.(type) {
	case *sqltok.Token:
		return t.Kind.String() + " " + strconv.Quote(t.Value)
	case *sqltok.Identifier:
		return "identifier"
	case *sqltok.IdentifierList:
		return "identifier list"
	case *sqltok.Comparison:
		return "comparison"
	case *sqltok.Parenthesis:
		return "parenthesis"
	case *sqltok.Function:
		return "function " + t.Name
	case *sqltok.Where:
		return "WHERE clause"
	}
	return "token"
}
