package translate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/sqltok"
)

// selectStmt accumulates the clauses of one SELECT.
type selectStmt struct {
	collection string
	fields     []docop.FieldRef
	star       bool
	constant   *int64
	aggregate  bool

	filter   bson.D
	limit    int64
	order    []fieldItem
	pipeline docop.Pipeline
}

func (c *compiler) compileSelect(s *stream) (docop.Operation, error) {
	s.next() // SELECT
	st := &selectStmt{}

	head := s.next()
	if head == nil {
		return nil, decodeErrorf("SELECT", "missing select list")
	}
	switch {
	case isWildcard(head):
		st.star = true
	case isCount(head):
		if _, err := s.expectKeyword("FROM"); err != nil {
			return nil, err
		}
		table, err := s.table()
		if err != nil {
			return nil, err
		}
		return &docop.Count{Collection: table}, nil
	default:
		constant, ok, err := constValue(head)
		if err != nil {
			return nil, err
		}
		if ok {
			st.constant = &constant
			break
		}
		if err := c.selectList(st, head); err != nil {
			return nil, err
		}
	}

	if _, err := s.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := s.table()
	if err != nil {
		return nil, err
	}
	if st.collection == "" {
		st.collection = table
	} else if st.collection != table {
		return nil, decodeErrorf(table, "select list names table %q but FROM names %q", st.collection, table)
	}
	c.left = table

	for !s.done() {
		if err := c.selectClause(st, s); err != nil {
			return nil, err
		}
	}

	if st.aggregate {
		return c.buildAggregate(st), nil
	}
	return c.buildFind(st), nil
}

func (c *compiler) selectList(st *selectStmt, head sqltok.Node) error {
	items, err := c.resolve(head)
	if err != nil {
		return err
	}
	for _, item := range items {
		f, ok := item.(fieldItem)
		if !ok || f.ref.Field == "*" {
			return decodeErrorf(head.String(), "select list must hold field references")
		}
		if f.ref.Table != "" {
			if st.collection == "" {
				st.collection = f.ref.Table
			} else if st.collection != f.ref.Table {
				st.aggregate = true
			}
		}
		st.fields = append(st.fields, f.ref)
	}
	return nil
}

func (c *compiler) selectClause(st *selectStmt, s *stream) error {
	n := s.next()
	if w, ok := n.(*sqltok.Where); ok {
		filter, err := c.compileWhere(w)
		if err != nil {
			return err
		}
		st.filter = filter
		return nil
	}

	switch {
	case sqltok.IsKeyword(n, "LIMIT"):
		limit, err := c.limit(s)
		if err != nil {
			return err
		}
		st.limit = limit
	case sqltok.IsKeyword(n, "INNER JOIN", "JOIN"):
		return c.join(st, s, false)
	case sqltok.IsKeyword(n, "LEFT OUTER JOIN", "LEFT JOIN"):
		return c.join(st, s, true)
	case sqltok.IsKeyword(n, "ORDER"):
		if _, err := s.expectKeyword("BY"); err != nil {
			return err
		}
		keys := s.next()
		if keys == nil {
			return decodeErrorf("ORDER BY", "missing sort keys")
		}
		items, err := c.resolve(keys)
		if err != nil {
			return err
		}
		for _, item := range items {
			f, ok := item.(fieldItem)
			if !ok {
				return decodeErrorf(keys.String(), "ORDER BY must list fields")
			}
			st.order = append(st.order, f)
		}
	default:
		return decodeErrorf(n.String(), "unexpected %s in SELECT", describe(n))
	}
	return nil
}

func (c *compiler) limit(s *stream) (int64, error) {
	n := s.next()
	tok, ok := n.(*sqltok.Token)
	if !ok {
		return 0, decodeErrorf("LIMIT", "LIMIT needs a number")
	}
	v, err := c.value(tok)
	if err != nil {
		return 0, err
	}
	limit, ok := toInt64(v)
	if !ok || limit < 1 {
		return 0, decodeErrorf(tok.String(), "LIMIT needs a positive integer, got %v", v)
	}
	return limit, nil
}

// join lowers INNER JOIN / LEFT OUTER JOIN to a $lookup and $unwind pair.
func (c *compiler) join(st *selectStmt, s *stream, preserveEmpty bool) error {
	st.aggregate = true

	right, err := s.table()
	if err != nil {
		return err
	}
	c.joined = append(c.joined, right)

	if _, err := s.expectKeyword("ON"); err != nil {
		return err
	}
	n := s.next()
	cmp, ok := n.(*sqltok.Comparison)
	if !ok {
		return decodeErrorf("ON", "ON needs an equality between two fields")
	}
	item, err := c.resolveComparison(cmp)
	if err != nil {
		return err
	}
	ref, ok := item.(joinRef)
	if !ok {
		return decodeErrorf(cmp.String(), "ON needs an equality between two fields")
	}

	local, foreign := ref.field.Field, ref.other.Field
	if right != ref.other.Table {
		local, foreign = ref.other.Field, ref.field.Field
	}
	st.pipeline = append(st.pipeline,
		docop.Lookup{From: c.left, LocalField: local, ForeignField: foreign, As: right},
		docop.Unwind{Path: "$" + right, PreserveEmpty: preserveEmpty},
	)
	return nil
}

func (c *compiler) buildFind(st *selectStmt) *docop.Find {
	op := &docop.Find{
		Collection:  st.collection,
		Filter:      st.filter,
		Limit:       st.limit,
		Fields:      st.fields,
		ReturnConst: st.constant,
	}
	switch {
	case st.constant != nil:
		op.Projection = bson.D{{Key: "_id", Value: true}}
	case st.star:
		op.Projection = bson.D{}
	default:
		op.Projection = bson.D{{Key: "_id", Value: false}}
		for _, f := range st.fields {
			op.Projection = append(op.Projection, bson.E{Key: f.Field, Value: true})
		}
	}
	for _, o := range st.order {
		op.Sort = append(op.Sort, bson.E{Key: o.ref.Field, Value: direction(o.ordering)})
	}
	return op
}

func (c *compiler) buildAggregate(st *selectStmt) *docop.Aggregate {
	pipeline := st.pipeline
	if len(st.order) > 0 {
		spec := bson.D{}
		for _, o := range st.order {
			spec = append(spec, bson.E{Key: o.ref.Path(c.left), Value: direction(o.ordering)})
		}
		pipeline = append(pipeline, docop.Sort{Spec: spec})
	}
	if st.filter != nil {
		pipeline = append(pipeline, docop.Match{Filter: st.filter})
	}
	if st.limit > 0 {
		pipeline = append(pipeline, docop.Limit{N: st.limit})
	}
	if len(st.fields) > 0 {
		spec := bson.D{}
		for _, f := range st.fields {
			table := f.Table
			if table == "" {
				table = c.left
			}
			var value any = true
			if table == c.left {
				value = "$" + f.Field
			}
			spec = append(spec, bson.E{Key: table + "." + f.Field, Value: value})
		}
		spec = append(spec, bson.E{Key: "_id", Value: false})
		pipeline = append(pipeline, docop.Project{Spec: spec})
	}
	return &docop.Aggregate{
		Collection:  st.collection,
		Pipeline:    pipeline,
		Fields:      st.fields,
		ReturnConst: st.constant,
	}
}

func direction(ordering string) int {
	if ordering == "DESC" {
		return -1
	}
	return 1
}

func isWildcard(n sqltok.Node) bool {
	tok, ok := n.(*sqltok.Token)
	return ok && tok.Kind == sqltok.KindWildcard
}

func isCount(n sqltok.Node) bool {
	if id, ok := n.(*sqltok.Identifier); ok && id.Expr != nil {
		n = id.Expr
	}
	fn, ok := n.(*sqltok.Function)
	return ok && fn.Name == "COUNT"
}

// constValue recognizes the literal-only select list "(N)".
func constValue(n sqltok.Node) (int64, bool, error) {
	if id, ok := n.(*sqltok.Identifier); ok && id.Expr != nil {
		n = id.Expr
	}
	p, ok := n.(*sqltok.Parenthesis)
	if !ok {
		return 0, false, nil
	}
	if len(p.Children) != 1 {
		return 0, false, decodeErrorf(p.String(), "constant select needs a single integer")
	}
	tok, ok := p.Children[0].(*sqltok.Token)
	if !ok || tok.Kind != sqltok.KindNumber {
		return 0, false, decodeErrorf(p.String(), "constant select needs a single integer")
	}
	v, err := parseNumber(tok.Value)
	if err != nil {
		return 0, false, err
	}
	i, ok := v.(int64)
	if !ok {
		return 0, false, decodeErrorf(p.String(), "constant select needs a single integer")
	}
	return i, true, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
