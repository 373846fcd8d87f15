package translate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/sqltok"
)

// expr is a compiled boolean expression.
//
// This is a sealed union: *cmpExpr, *logicExpr or *inExpr.
type expr interface {
	// render builds the filter fragment. negate forces negation on top of
	// the node's own flag.
	render(left string, negate bool) bson.D
	negate()
}

// cmpExpr is a comparison leaf: {field: {op: value}}.
type cmpExpr struct {
	field   docop.FieldRef
	op      string
	value   any
	negated bool
}

// logicExpr is an AND or OR over its children.
type logicExpr struct {
	or       bool
	children []expr
	negated  bool
}

// inExpr is field IN (values).
type inExpr struct {
	field   docop.FieldRef
	values  bson.A
	negated bool
}

func (e *cmpExpr) negate()   { e.negated = true }
func (e *logicExpr) negate() { e.negated = true }
func (e *inExpr) negate()    { e.negated = true }

func (e *cmpExpr) render(left string, negate bool) bson.D {
	cond := bson.D{{Key: e.op, Value: e.value}}
	if e.negated || negate {
		cond = bson.D{{Key: "$not", Value: cond}}
	}
	return bson.D{{Key: e.field.Path(left), Value: cond}}
}

// render lowers negation one level by De Morgan: a negated AND becomes an
// $or of negated children, a negated OR becomes $nor.
func (e *logicExpr) render(left string, negate bool) bson.D {
	neg := e.negated || negate
	key, childNeg := "$and", false
	switch {
	case !e.or && neg:
		key, childNeg = "$or", true
	case e.or && neg:
		key = "$nor"
	case e.or:
		key = "$or"
	}
	children := make(bson.A, len(e.children))
	for i, child := range e.children {
		children[i] = child.render(left, childNeg)
	}
	return bson.D{{Key: key, Value: children}}
}

func (e *inExpr) render(left string, negate bool) bson.D {
	op := "$in"
	if e.negated || negate {
		op = "$nin"
	}
	return bson.D{{Key: e.field.Path(left), Value: bson.D{{Key: op, Value: e.values}}}}
}

// opKind is a logical connective kind.
type opKind int

const (
	opGeneric opKind = iota
	opOr
	opAnd
	opNot
	opIn
)

// opWeights orders evaluation: heavier connectives are reduced first.
var opWeights = map[opKind]int{
	opGeneric: 50,
	opOr:      4,
	opAnd:     3,
	opNot:     2,
	opIn:      1,
}

// box is an operand slot. Neighboring connectives share the box between
// them, so reducing one connective is visible to the next.
type box struct {
	tok       sqltok.Node
	leaf      expr // materialized tok, cached
	owner     int  // op that consumed this box, -1 when none
	pendingIn int  // IN op taking this box as an operand, -1 when none
}

// pendingOp is a connective awaiting reduction.
type pendingOp struct {
	kind    opKind
	keyword string
	lhs     int // box index, -1 when absent
	rhs     int
	negated bool // NOT IN
	done    bool
	result  expr
	parent  int // op that absorbed this one, -1 while it is a root
}

// boolCompiler reduces one WHERE (or parenthesized) token sequence. Boxes
// and ops live in arenas and refer to each other by index.
type boolCompiler struct {
	c     *compiler
	boxes []box
	ops   []pendingOp
	order []int // op indices by descending weight
}

// compileWhere compiles a WHERE clause into a filter document.
func (c *compiler) compileWhere(w *sqltok.Where) (bson.D, error) {
	e, err := c.compileBool(w.Children, w.String())
	if err != nil {
		return nil, err
	}
	return e.render(c.left, false), nil
}

func (c *compiler) compileBool(nodes []sqltok.Node, clause string) (expr, error) {
	if len(nodes) == 0 {
		return nil, decodeErrorf(clause, "empty condition")
	}
	bc := &boolCompiler{c: c}
	hanging, err := bc.scan(nodes, clause)
	if err != nil {
		return nil, err
	}
	if len(bc.ops) == 0 {
		return bc.sole(hanging, clause)
	}

	last := -1
	for len(bc.order) > 0 {
		idx := bc.order[0]
		bc.order = bc.order[1:]
		if err := bc.evaluate(idx); err != nil {
			return nil, err
		}
		last = idx
	}
	return bc.ops[bc.root(last)].result, nil
}

// scan walks the tokens once, emitting connectives with their operand boxes.
// It returns the hanging box.
func (bc *boolCompiler) scan(nodes []sqltok.Node, clause string) (int, error) {
	hanging := -1
	operand := func(i int, after string) (sqltok.Node, error) {
		if i >= len(nodes) {
			return nil, decodeErrorf(clause, "missing operand after %s", after)
		}
		return nodes[i], nil
	}

	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		tok, isTok := n.(*sqltok.Token)
		if !isTok || tok.Kind != sqltok.KindKeyword || sqltok.IsKeyword(n, "TRUE", "FALSE", "NULL") {
			if hanging >= 0 {
				return -1, decodeErrorf(n.String(), "expected a connective before %s", describe(n))
			}
			hanging = bc.newBox(n)
			continue
		}

		switch tok.Value {
		case "NOT":
			if i+1 < len(nodes) && sqltok.IsKeyword(nodes[i+1], "IN") {
				i++
				if err := bc.emitIn(&i, nodes, hanging, true, clause); err != nil {
					return -1, err
				}
				hanging = bc.ops[len(bc.ops)-1].rhs
				continue
			}
			if hanging >= 0 {
				return -1, decodeErrorf(tok.Value, "NOT must precede its operand")
			}
			i++
			next, err := operand(i, "NOT")
			if err != nil {
				return -1, err
			}
			hanging = bc.newBox(next)
			bc.emit(pendingOp{kind: opNot, lhs: -1, rhs: hanging})

		case "IN":
			if err := bc.emitIn(&i, nodes, hanging, false, clause); err != nil {
				return -1, err
			}
			hanging = bc.ops[len(bc.ops)-1].rhs

		default:
			kind := opGeneric
			switch tok.Value {
			case "AND":
				kind = opAnd
			case "OR":
				kind = opOr
			}
			if hanging < 0 {
				return -1, decodeErrorf(tok.Value, "%s has no left operand", tok.Value)
			}
			i++
			next, err := operand(i, tok.Value)
			if err != nil {
				return -1, err
			}
			negateNext := false
			if sqltok.IsKeyword(next, "NOT") && !(i+1 < len(nodes) && sqltok.IsKeyword(nodes[i+1], "IN")) {
				i++
				if next, err = operand(i, "NOT"); err != nil {
					return -1, err
				}
				negateNext = true
			} else if sqltok.IsKeyword(next, "NOT") {
				return -1, decodeErrorf(tok.Value, "NOT IN needs a field before it")
			}
			rhs := bc.newBox(next)
			bc.emit(pendingOp{kind: kind, keyword: tok.Value, lhs: hanging, rhs: rhs})
			if negateNext {
				bc.emit(pendingOp{kind: opNot, lhs: -1, rhs: rhs})
			}
			hanging = rhs
		}
	}
	return hanging, nil
}

func (bc *boolCompiler) emitIn(i *int, nodes []sqltok.Node, lhs int, negated bool, clause string) error {
	if lhs < 0 {
		return decodeErrorf(clause, "IN has no field")
	}
	*i++
	if *i >= len(nodes) {
		return decodeErrorf(clause, "missing value list after IN")
	}
	rhs := bc.newBox(nodes[*i])
	bc.emit(pendingOp{kind: opIn, lhs: lhs, rhs: rhs, negated: negated})
	idx := len(bc.ops) - 1
	bc.boxes[lhs].pendingIn = idx
	bc.boxes[rhs].pendingIn = idx
	return nil
}

func (bc *boolCompiler) newBox(n sqltok.Node) int {
	bc.boxes = append(bc.boxes, box{tok: n, owner: -1, pendingIn: -1})
	return len(bc.boxes) - 1
}

// emit appends op and inserts it before the first queued op whose weight is
// strictly lower, so equal weights keep source order.
func (bc *boolCompiler) emit(op pendingOp) {
	op.parent = -1
	bc.ops = append(bc.ops, op)
	idx := len(bc.ops) - 1
	w := opWeights[op.kind]

	pos := len(bc.order)
	for i, other := range bc.order {
		if w > opWeights[bc.ops[other].kind] {
			pos = i
			break
		}
	}
	bc.order = append(bc.order, 0)
	copy(bc.order[pos+1:], bc.order[pos:])
	bc.order[pos] = idx
}

// root follows absorption links to the op currently standing for idx.
func (bc *boolCompiler) root(idx int) int {
	for bc.ops[idx].parent >= 0 {
		idx = bc.ops[idx].parent
	}
	return idx
}

func (bc *boolCompiler) evaluate(idx int) error {
	op := &bc.ops[idx]
	if op.done {
		return nil
	}
	switch op.kind {
	case opIn:
		return bc.evaluateIn(idx)
	case opNot:
		return bc.evaluateNot(idx)
	case opAnd, opOr:
		return bc.evaluateLogic(idx)
	default:
		return decodeErrorf(op.keyword, "unsupported connective %s", op.keyword)
	}
}

func (bc *boolCompiler) evaluateLogic(idx int) error {
	isOr := bc.ops[idx].kind == opOr
	node := &logicExpr{or: isOr}
	for _, b := range []int{bc.ops[idx].lhs, bc.ops[idx].rhs} {
		owner, err := bc.operandOwner(b)
		if err != nil {
			return err
		}
		if owner >= 0 {
			r := bc.root(owner)
			if sub, ok := bc.ops[r].result.(*logicExpr); ok && bc.ops[r].kind == bc.ops[idx].kind && sub.or == isOr {
				node.children = append(node.children, sub.children...)
			} else {
				node.children = append(node.children, bc.ops[r].result)
			}
			bc.ops[r].parent = idx
			continue
		}
		leaf, err := bc.materialize(b)
		if err != nil {
			return err
		}
		node.children = append(node.children, leaf)
	}

	op := &bc.ops[idx]
	op.result = node
	op.done = true
	bc.boxes[op.lhs].owner = idx
	bc.boxes[op.rhs].owner = idx
	return nil
}

// operandOwner returns the op already standing in box b, forcing a pending
// IN on b first. It returns -1 when b still holds a raw token.
func (bc *boolCompiler) operandOwner(b int) (int, error) {
	if in := bc.boxes[b].pendingIn; in >= 0 && !bc.ops[in].done {
		if err := bc.evaluateIn(in); err != nil {
			return -1, err
		}
	}
	return bc.boxes[b].owner, nil
}

func (bc *boolCompiler) evaluateNot(idx int) error {
	b := bc.ops[idx].rhs
	if _, err := bc.operandOwner(b); err != nil {
		return err
	}
	leaf, err := bc.materialize(b)
	if err != nil {
		return err
	}
	leaf.negate()

	op := &bc.ops[idx]
	op.result = leaf
	op.done = true
	if owner := bc.boxes[b].owner; owner >= 0 {
		op.parent = bc.root(owner)
	} else {
		bc.boxes[b].owner = idx
	}
	return nil
}

func (bc *boolCompiler) evaluateIn(idx int) error {
	op := &bc.ops[idx]
	lhs, ok := bc.boxes[op.lhs].tok.(*sqltok.Identifier)
	if !ok {
		return decodeErrorf(bc.boxes[op.lhs].tok.String(), "IN needs a field on the left")
	}
	field, err := bc.c.fieldRef(lhs)
	if err != nil {
		return err
	}
	list, ok := bc.boxes[op.rhs].tok.(*sqltok.Parenthesis)
	if !ok {
		return decodeErrorf(bc.boxes[op.rhs].tok.String(), "IN needs a parenthesized value list")
	}
	items, err := bc.c.resolve(list)
	if err != nil {
		return err
	}
	values := make(bson.A, 0, len(items))
	for _, item := range items {
		lit, ok := item.(literal)
		if !ok {
			return decodeErrorf(list.String(), "IN list must hold values only")
		}
		values = append(values, lit.value)
	}

	in := &inExpr{field: field, values: values, negated: op.negated}
	op.result = in
	op.done = true
	for _, b := range []int{op.lhs, op.rhs} {
		bc.boxes[b].leaf = in
		bc.boxes[b].owner = idx
	}
	return nil
}

// materialize compiles the raw token in box b, caching the result so later
// NOTs negate the same node the connectives hold.
func (bc *boolCompiler) materialize(b int) (expr, error) {
	bx := &bc.boxes[b]
	if bx.leaf != nil {
		return bx.leaf, nil
	}
	leaf, err := bc.c.leaf(bx.tok)
	if err != nil {
		return nil, err
	}
	bc.boxes[b].leaf = leaf
	return leaf, nil
}

// sole handles a condition with no connective.
func (bc *boolCompiler) sole(b int, clause string) (expr, error) {
	if b < 0 {
		return nil, decodeErrorf(clause, "empty condition")
	}
	return bc.c.leaf(bc.boxes[b].tok)
}

// leaf compiles a single operand: a comparison or a parenthesized group.
func (c *compiler) leaf(n sqltok.Node) (expr, error) {
	switch t := n.(type) {
	case *sqltok.Comparison:
		item, err := c.resolveComparison(t)
		if err != nil {
			return nil, err
		}
		cmp, ok := item.(*cmpExpr)
		if !ok {
			return nil, decodeErrorf(t.String(), "join predicate outside ON clause")
		}
		return cmp, nil
	case *sqltok.Parenthesis:
		return c.compileBool(t.Children, t.String())
	}
	return nil, decodeErrorf(n.String(), "unexpected %s in condition", describe(n))
}
