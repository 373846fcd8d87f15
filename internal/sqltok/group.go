package sqltok

import (
	"fmt"
	"strings"
)

// clauseTerminators end a WHERE group.
var clauseTerminators = []string{"ORDER", "GROUP", "LIMIT", "HAVING", "OFFSET"}

// group builds the node tree for one statement's tokens.
func group(toks []Token) ([]Node, error) {
	nodes, next, err := parseLevel(toks, 0, 0)
	if err != nil {
		return nil, err
	}
	if next != len(toks) {
		return nil, fmt.Errorf("unbalanced ')' at position %d", toks[next].Pos)
	}
	return nodes, nil
}

// parseLevel collects nodes until the closing bracket of the current depth
// (or the end of input at depth 0) and applies the grouping passes.
func parseLevel(toks []Token, pos, depth int) ([]Node, int, error) {
	var nodes []Node
	for pos < len(toks) {
		tok := &toks[pos]
		switch {
		case tok.Match(KindPunctuation, "("):
			children, next, err := parseLevel(toks, pos+1, depth+1)
			if err != nil {
				return nil, 0, err
			}
			if next >= len(toks) {
				return nil, 0, fmt.Errorf("unclosed '(' at position %d", tok.Pos)
			}
			nodes = append(nodes, &Parenthesis{Children: children})
			pos = next + 1
		case tok.Match(KindPunctuation, ")"):
			if depth == 0 {
				return nil, pos, nil
			}
			return groupLevel(nodes), pos, nil
		default:
			nodes = append(nodes, tok)
			pos++
		}
	}
	return groupLevel(nodes), pos, nil
}

func groupLevel(nodes []Node) []Node {
	nodes = groupFunctions(nodes)
	nodes = groupIdentifiers(nodes)
	nodes = groupComparisons(nodes)
	nodes = groupLists(nodes)
	nodes = groupWhere(nodes)
	return nodes
}

func groupFunctions(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		tok, ok := nodes[i].(*Token)
		if ok && tok.Kind == KindName && i+1 < len(nodes) {
			if args, ok := nodes[i+1].(*Parenthesis); ok && functionNames[strings.ToUpper(tok.Value)] {
				out = append(out, &Function{Name: strings.ToUpper(tok.Value), Args: args})
				i++
				continue
			}
		}
		out = append(out, nodes[i])
	}
	return out
}

func groupIdentifiers(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		var id *Identifier
		switch n := nodes[i].(type) {
		case *Token:
			if n.Kind != KindName {
				out = append(out, n)
				continue
			}
			id = &Identifier{Name: n.Value}
			if i+2 < len(nodes) && IsPunct(nodes[i+1], ".") {
				if field, ok := nodes[i+2].(*Token); ok && (field.Kind == KindName || field.Kind == KindWildcard) {
					id.Parent, id.Name = n.Value, field.Value
					i += 2
				}
			}
			i = takeAlias(nodes, i, id, true)
		case *Function:
			id = &Identifier{Expr: n}
			i = takeAlias(nodes, i, id, true)
			if id.Alias == "" {
				out = append(out, n)
				continue
			}
		case *Parenthesis:
			id = &Identifier{Expr: n}
			i = takeAlias(nodes, i, id, false)
			if id.Alias == "" {
				out = append(out, n)
				continue
			}
		default:
			out = append(out, n)
			continue
		}
		if i+1 < len(nodes) && IsKeyword(nodes[i+1], "ASC", "DESC") {
			id.Ordering = nodes[i+1].(*Token).Value
			i++
		}
		if id.Expr != nil {
			id.Name = id.Alias
		}
		out = append(out, id)
	}
	return out
}

// takeAlias consumes "AS name" (or a bare name when allowed) after position i.
func takeAlias(nodes []Node, i int, id *Identifier, bare bool) int {
	if i+2 < len(nodes) && IsKeyword(nodes[i+1], "AS") {
		if name, ok := nodes[i+2].(*Token); ok && name.Kind == KindName {
			id.Alias = name.Value
			return i + 2
		}
	}
	if bare && i+1 < len(nodes) {
		if name, ok := nodes[i+1].(*Token); ok && name.Kind == KindName {
			id.Alias = name.Value
			return i + 1
		}
	}
	return i
}

func isOperand(n Node) bool {
	switch v := n.(type) {
	case *Identifier:
		return v.Expr == nil
	case *Function:
		return true
	case *Token:
		switch v.Kind {
		case KindPlaceholder, KindNumber, KindString:
			return true
		case KindKeyword:
			return v.Match(KindKeyword, "TRUE", "FALSE", "NULL")
		}
	}
	return false
}

func groupComparisons(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		if i+2 < len(nodes) && isOperand(nodes[i]) && isOperand(nodes[i+2]) {
			if op, ok := nodes[i+1].(*Token); ok && op.Kind == KindComparison {
				out = append(out, &Comparison{Left: nodes[i], Op: op.Value, Right: nodes[i+2]})
				i += 2
				continue
			}
		}
		out = append(out, nodes[i])
	}
	return out
}

func isListItem(n Node) bool {
	switch v := n.(type) {
	case *Identifier, *Comparison, *Function:
		return true
	case *Token:
		return isOperand(v) || v.Kind == KindWildcard
	}
	return false
}

func groupLists(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		if !isListItem(nodes[i]) {
			out = append(out, nodes[i])
			continue
		}
		items := []Node{nodes[i]}
		j := i + 1
		for j+1 < len(nodes) && IsPunct(nodes[j], ",") && isListItem(nodes[j+1]) {
			items = append(items, nodes[j+1])
			j += 2
		}
		if len(items) == 1 {
			out = append(out, nodes[i])
			continue
		}
		out = append(out, &IdentifierList{Items: items})
		i = j - 1
	}
	return out
}

func groupWhere(nodes []Node) []Node {
	for i, n := range nodes {
		if !IsKeyword(n, "WHERE") {
			continue
		}
		end := i + 1
		for end < len(nodes) && !IsKeyword(nodes[end], clauseTerminators...) {
			end++
		}
		where := &Where{Children: append([]Node(nil), nodes[i+1:end]...)}
		out := append([]Node(nil), nodes[:i]...)
		out = append(out, where)
		return append(out, nodes[end:]...)
	}
	return nodes
}
