package memstore

import (
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// runPipeline applies each stage in order. Collections referenced by $lookup
// are read through source.
func runPipeline(docs []bson.D, pipeline mongo.Pipeline, source func(string) []bson.D) ([]bson.D, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d: a stage holds exactly one operator, got %d", i, len(stage))
		}
		var err error
		docs, err = runStage(docs, stage[0], source)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, stage[0].Key, err)
		}
	}
	return docs, nil
}

func runStage(docs []bson.D, stage bson.E, source func(string) []bson.D) ([]bson.D, error) {
	switch stage.Key {
	case "$match":
		filter, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a filter document")
		}
		return filterDocs(docs, filter)
	case "$sort":
		spec, ok := stage.Value.(bson.D)
		if !ok || len(spec) == 0 {
			return nil, fmt.Errorf("needs a non-empty sort document")
		}
		sortDocs(docs, spec)
		return docs, nil
	case "$limit":
		n, ok := intValue(stage.Value)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("needs a positive integer")
		}
		return limitDocs(docs, n), nil
	case "$skip":
		n, ok := intValue(stage.Value)
		if !ok || n < 0 {
			return nil, fmt.Errorf("needs a non-negative integer")
		}
		if n >= int64(len(docs)) {
			return nil, nil
		}
		return docs[n:], nil
	case "$project":
		spec, ok := stage.Value.(bson.D)
		if !ok || len(spec) == 0 {
			return nil, fmt.Errorf("needs a non-empty projection document")
		}
		return projectDocs(docs, spec)
	case "$lookup":
		spec, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a stage document")
		}
		return lookupDocs(docs, spec, source)
	case "$unwind":
		return unwindDocs(docs, stage.Value)
	case "$count":
		name, ok := stage.Value.(string)
		if !ok || name == "" || strings.HasPrefix(name, "$") || strings.Contains(name, ".") {
			return nil, fmt.Errorf("needs a plain field name")
		}
		if len(docs) == 0 {
			return nil, nil
		}
		return []bson.D{{{Key: name, Value: int32(len(docs))}}}, nil
	}
	return nil, fmt.Errorf("unsupported stage")
}

func filterDocs(docs []bson.D, filter bson.D) ([]bson.D, error) {
	var out []bson.D
	for _, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// sortDocs sorts in place. Missing fields sort as null; ties keep their
// input order.
func sortDocs(docs []bson.D, spec bson.D) {
	slices.SortStableFunc(docs, func(a, b bson.D) int {
		for _, key := range spec {
			av, _ := lookupPath(a, key.Key)
			bv, _ := lookupPath(b, key.Key)
			c := compareValues(av, bv)
			if dir, _ := intValue(key.Value); dir < 0 {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func limitDocs(docs []bson.D, n int64) []bson.D {
	if n > 0 && int64(len(docs)) > n {
		return docs[:n]
	}
	return docs
}

func projectDocs(docs []bson.D, spec bson.D) ([]bson.D, error) {
	out := make([]bson.D, len(docs))
	for i, doc := range docs {
		p, err := project(doc, spec)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// project applies a projection document. An empty spec returns doc
// unchanged. A spec is either inclusive (true/1 or "$path" values, with an
// optional _id exclusion) or exclusive (only false/0 values).
func project(doc, spec bson.D) (bson.D, error) {
	if len(spec) == 0 {
		return doc, nil
	}

	inclusive, keepID := false, true
	for _, e := range spec {
		if e.Key == "_id" {
			keepID = truthy(e.Value)
			if keepID {
				inclusive = true
			}
			continue
		}
		if _, isExpr := e.Value.(string); isExpr || truthy(e.Value) {
			inclusive = true
		} else if inclusive {
			return nil, fmt.Errorf("cannot exclude %s in an inclusion projection", e.Key)
		}
	}

	if !inclusive {
		out := cloneDoc(doc)
		for _, e := range spec {
			out = unsetPath(out, e.Key)
		}
		return out, nil
	}

	out := bson.D{}
	if keepID {
		if id, ok := lookupPath(doc, "_id"); ok {
			out = append(out, bson.E{Key: "_id", Value: cloneValue(id)})
		}
	}
	for _, e := range spec {
		if e.Key == "_id" {
			continue
		}
		if expr, ok := e.Value.(string); ok {
			if !strings.HasPrefix(expr, "$") {
				out = setPath(out, e.Key, expr)
				continue
			}
			if v, ok := lookupPath(doc, expr[1:]); ok {
				out = setPath(out, e.Key, cloneValue(v))
			}
			continue
		}
		if !truthy(e.Value) {
			return nil, fmt.Errorf("cannot exclude %s in an inclusion projection", e.Key)
		}
		if v, ok := lookupPath(doc, e.Key); ok {
			out = setPath(out, e.Key, cloneValue(v))
		}
	}
	return out, nil
}

func lookupDocs(docs []bson.D, spec bson.D, source func(string) []bson.D) ([]bson.D, error) {
	var from, local, foreign, as string
	for _, e := range spec {
		s, ok := e.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", e.Key)
		}
		switch e.Key {
		case "from":
			from = s
		case "localField":
			local = s
		case "foreignField":
			foreign = s
		case "as":
			as = s
		default:
			return nil, fmt.Errorf("unsupported field %s", e.Key)
		}
	}
	if from == "" || local == "" || foreign == "" || as == "" {
		return nil, fmt.Errorf("needs from, localField, foreignField and as")
	}

	foreignDocs := source(from)
	out := make([]bson.D, len(docs))
	for i, doc := range docs {
		lv, _ := lookupPath(doc, local)
		joined := bson.A{}
		for _, f := range foreignDocs {
			fv, _ := lookupPath(f, foreign)
			if matchEq(fv, lv) {
				joined = append(joined, cloneDoc(f))
			}
		}
		out[i] = setPath(cloneDoc(doc), as, joined)
	}
	return out, nil
}

func unwindDocs(docs []bson.D, spec any) ([]bson.D, error) {
	var path string
	preserve := false
	switch s := spec.(type) {
	case string:
		path = s
	case bson.D:
		for _, e := range s {
			switch e.Key {
			case "path":
				path, _ = e.Value.(string)
			case "preserveNullAndEmptyArrays":
				preserve, _ = e.Value.(bool)
			default:
				return nil, fmt.Errorf("unsupported field %s", e.Key)
			}
		}
	default:
		return nil, fmt.Errorf("needs a path or a stage document")
	}
	if !strings.HasPrefix(path, "$") || len(path) < 2 {
		return nil, fmt.Errorf("path must start with $")
	}
	field := path[1:]

	var out []bson.D
	for _, doc := range docs {
		v, ok := lookupPath(doc, field)
		arr := toArray(v)
		switch {
		case !ok || v == nil:
			if preserve {
				out = append(out, doc)
			}
		case arr == nil:
			out = append(out, doc)
		case len(arr) == 0:
			if preserve {
				out = append(out, unsetPath(cloneDoc(doc), field))
			}
		default:
			for _, elem := range arr {
				out = append(out, setPath(cloneDoc(doc), field, cloneValue(elem)))
			}
		}
	}
	return out, nil
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if n, ok := intValue(v); ok {
		return n != 0
	}
	return false
}

func intValue(v any) (int64, bool) {
	if !isIntegral(v) {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	}
	return int64(toFloat(v)), true
}
