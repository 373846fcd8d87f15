package memstore

import (
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// applyUpdate returns a copy of doc with the update operators applied.
// Supported: $set, $unset, $inc.
func applyUpdate(doc, update bson.D) (bson.D, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("update document is empty")
	}
	out := cloneDoc(doc)
	for _, op := range update {
		fields, ok := op.Value.(bson.D)
		if !ok {
			if strings.HasPrefix(op.Key, "$") {
				return nil, fmt.Errorf("%s needs a document", op.Key)
			}
			return nil, fmt.Errorf("update document must contain only operators, found %q", op.Key)
		}
		for _, f := range fields {
			if f.Key == "_id" {
				return nil, fmt.Errorf("%s cannot modify _id", op.Key)
			}
			var err error
			out, err = applyField(out, op.Key, f)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func applyField(doc bson.D, op string, f bson.E) (bson.D, error) {
	switch op {
	case "$set":
		return setPath(doc, f.Key, cloneValue(f.Value)), nil
	case "$unset":
		return unsetPath(doc, f.Key), nil
	case "$inc":
		if rank(f.Value) != rankNumber {
			return nil, fmt.Errorf("$inc needs a number for %s, got %T", f.Key, f.Value)
		}
		cur, ok := lookupPath(doc, f.Key)
		if !ok || cur == nil {
			return setPath(doc, f.Key, f.Value), nil
		}
		if rank(cur) != rankNumber {
			return nil, fmt.Errorf("cannot $inc non-numeric field %s (%T)", f.Key, cur)
		}
		return setPath(doc, f.Key, addNumbers(cur, f.Value)), nil
	}
	return nil, fmt.Errorf("unsupported update operator %s", op)
}

// addNumbers keeps integer arithmetic integral, widening int32 to int64 on
// overflow, and falls back to float64 when either side is fractional.
func addNumbers(a, b any) any {
	if !isIntegral(a) || !isIntegral(b) {
		return toFloat(a) + toFloat(b)
	}
	sum := int64(toFloat(a)) + int64(toFloat(b))
	_, a32 := a.(int32)
	_, b32 := b.(int32)
	if a32 && b32 && sum >= math.MinInt32 && sum <= math.MaxInt32 {
		return int32(sum)
	}
	return sum
}
