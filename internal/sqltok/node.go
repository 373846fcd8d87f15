package sqltok

import "strings"

// Node is a token or a grouped token sequence.
//
// Node is sealed: only types in this package implement it, so consumers can
// switch over the concrete kinds exhaustively.
type Node interface {
	node()
	String() string
}

// Parenthesis is a bracketed group. Children exclude the brackets.
type Parenthesis struct {
	Children []Node
}

// Function is an aggregate call such as COUNT(*).
type Function struct {
	Name string // upper-cased
	Args *Parenthesis
}

// Identifier is a possibly qualified name (table.field), or an expression
// with an alias when Expr is set.
type Identifier struct {
	Parent   string // qualifying table, empty when unqualified
	Name     string // field name, "*" for table.*, or the alias when Expr is set
	Alias    string
	Ordering string // "ASC", "DESC" or empty
	Expr     Node   // *Function or *Parenthesis for aliased expressions
}

// Comparison is "left op right".
type Comparison struct {
	Left  Node
	Op    string
	Right Node
}

// IdentifierList is a comma separated list of items.
type IdentifierList struct {
	Items []Node
}

// Where holds the tokens following a WHERE keyword up to the next clause.
type Where struct {
	Children []Node
}

func (*Parenthesis) node()    {}
func (*Function) node()       {}
func (*Identifier) node()     {}
func (*Comparison) node()     {}
func (*IdentifierList) node() {}
func (*Where) node()          {}

func (p *Parenthesis) String() string {
	return "(" + joinNodes(p.Children, " ") + ")"
}

func (f *Function) String() string {
	return f.Name + f.Args.String()
}

func (id *Identifier) String() string {
	var b strings.Builder
	switch {
	case id.Expr != nil:
		b.WriteString(id.Expr.String())
	case id.Parent != "":
		b.WriteString(id.Parent + "." + id.Name)
	default:
		b.WriteString(id.Name)
	}
	if id.Alias != "" {
		b.WriteString(" AS " + id.Alias)
	}
	if id.Ordering != "" {
		b.WriteString(" " + id.Ordering)
	}
	return b.String()
}

func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Op + " " + c.Right.String()
}

func (l *IdentifierList) String() string {
	return joinNodes(l.Items, ", ")
}

func (w *Where) String() string {
	return "WHERE " + joinNodes(w.Children, " ")
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
