package memstore

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// matches reports whether doc satisfies filter. Top-level keys are ANDed.
func matches(doc, filter bson.D) (bool, error) {
	for _, e := range filter {
		ok, err := matchElem(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElem(doc bson.D, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		clauses, err := clauseList(e)
		if err != nil {
			return false, err
		}
		return matchLogic(doc, e.Key, clauses)
	}
	if strings.HasPrefix(e.Key, "$") {
		return false, fmt.Errorf("unsupported top-level operator %s", e.Key)
	}

	value, present := lookupPath(doc, e.Key)
	if ops, ok := e.Value.(bson.D); ok && isOperatorDoc(ops) {
		return matchOps(value, present, ops)
	}
	return matchEq(value, e.Value), nil
}

func matchLogic(doc bson.D, kind string, clauses []bson.D) (bool, error) {
	for _, c := range clauses {
		ok, err := matches(doc, c)
		if err != nil {
			return false, err
		}
		switch {
		case kind == "$and" && !ok:
			return false, nil
		case kind == "$or" && ok:
			return true, nil
		case kind == "$nor" && ok:
			return false, nil
		}
	}
	return kind != "$or", nil
}

func clauseList(e bson.E) ([]bson.D, error) {
	items := toArray(e.Value)
	if len(items) == 0 {
		return nil, fmt.Errorf("%s needs a non-empty array", e.Key)
	}
	out := make([]bson.D, len(items))
	for i, item := range items {
		d, ok := item.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s entries must be documents, got %T", e.Key, item)
		}
		out[i] = d
	}
	return out, nil
}

func isOperatorDoc(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

// matchOps evaluates an operator document ({$gt: 1, $lt: 5}) against a field
// value. Every operator must hold.
func matchOps(value any, present bool, ops bson.D) (bool, error) {
	for _, op := range ops {
		ok, err := matchOp(value, present, op)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOp(value any, present bool, op bson.E) (bool, error) {
	switch op.Key {
	case "$eq":
		return matchEq(value, op.Value), nil
	case "$ne":
		return !matchEq(value, op.Value), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		return matchRange(value, op.Key, op.Value), nil
	case "$in", "$nin":
		candidates := toArray(op.Value)
		if candidates == nil {
			return false, fmt.Errorf("%s needs an array", op.Key)
		}
		in := false
		for _, c := range candidates {
			if matchEq(value, c) {
				in = true
				break
			}
		}
		return in == (op.Key == "$in"), nil
	case "$not":
		inner, ok := op.Value.(bson.D)
		if !ok || !isOperatorDoc(inner) {
			return false, fmt.Errorf("$not needs an operator document")
		}
		ok, err := matchOps(value, present, inner)
		return !ok, err
	case "$exists":
		want, ok := op.Value.(bool)
		if !ok {
			return false, fmt.Errorf("$exists needs a boolean")
		}
		return present == want, nil
	}
	return false, fmt.Errorf("unsupported operator %s", op.Key)
}

// matchEq follows server equality: a missing field equals null, and an array
// field matches when any element matches.
func matchEq(value, want any) bool {
	if equalValues(value, want) {
		return true
	}
	if arr := toArray(value); arr != nil {
		for _, elem := range arr {
			if equalValues(elem, want) {
				return true
			}
		}
	}
	return false
}

func matchRange(value any, op string, bound any) bool {
	check := func(v any) bool {
		if rank(v) != rank(bound) {
			return false
		}
		c := compareValues(v, bound)
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	}
	if check(value) {
		return true
	}
	if arr := toArray(value); arr != nil && toArray(bound) == nil {
		for _, elem := range arr {
			if check(elem) {
				return true
			}
		}
	}
	return false
}
