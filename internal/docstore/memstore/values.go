package memstore

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalize round-trips doc through BSON so stored values carry the types a
// server would hand back (int becomes int32 or int64, nested documents
// become bson.D, slices become bson.A).
func normalize(doc bson.D) (bson.D, error) {
	if doc == nil {
		doc = bson.D{}
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.D
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = bson.D{}
	}
	return out, nil
}

// normalizeValue normalizes a single value by wrapping it in a document.
func normalizeValue(v any) (any, error) {
	doc, err := normalize(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return nil, err
	}
	return doc[0].Value, nil
}

func cloneDoc(doc bson.D) bson.D {
	if doc == nil {
		return nil
	}
	out := make(bson.D, len(doc))
	for i, e := range doc {
		out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case bson.D:
		return cloneDoc(x)
	case bson.A:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// lookupPath resolves a dotted path through nested documents.
func lookupPath(doc bson.D, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		d, ok := cur.(bson.D)
		if !ok {
			return nil, false
		}
		found := false
		for _, e := range d {
			if e.Key == part {
				cur, found = e.Value, true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return cur, true
}

// setPath returns doc with the dotted path set to v, creating intermediate
// documents as needed. Existing keys keep their position.
func setPath(doc bson.D, path string, v any) bson.D {
	return setParts(doc, strings.Split(path, "."), v)
}

func setParts(doc bson.D, parts []string, v any) bson.D {
	for i, e := range doc {
		if e.Key != parts[0] {
			continue
		}
		if len(parts) == 1 {
			doc[i].Value = v
			return doc
		}
		child, _ := e.Value.(bson.D)
		doc[i].Value = setParts(child, parts[1:], v)
		return doc
	}
	if len(parts) == 1 {
		return append(doc, bson.E{Key: parts[0], Value: v})
	}
	return append(doc, bson.E{Key: parts[0], Value: setParts(nil, parts[1:], v)})
}

// unsetPath returns doc without the dotted path.
func unsetPath(doc bson.D, path string) bson.D {
	return unsetParts(doc, strings.Split(path, "."))
}

func unsetParts(doc bson.D, parts []string) bson.D {
	for i, e := range doc {
		if e.Key != parts[0] {
			continue
		}
		if len(parts) == 1 {
			return append(doc[:i:i], doc[i+1:]...)
		}
		if child, ok := e.Value.(bson.D); ok {
			doc[i].Value = unsetParts(child, parts[1:])
		}
		return doc
	}
	return doc
}

// Canonical BSON comparison order, lowest first.
const (
	rankNull = iota + 1
	rankNumber
	rankString
	rankDocument
	rankArray
	rankBinary
	rankObjectID
	rankBool
	rankDate
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return rankNull
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, float32, float64, primitive.Decimal128:
		return rankNumber
	case string, primitive.Symbol:
		return rankString
	case bson.D:
		return rankDocument
	case bson.A, []any:
		return rankArray
	case primitive.Binary, []byte:
		return rankBinary
	case primitive.ObjectID:
		return rankObjectID
	case bool:
		return rankBool
	case primitive.DateTime, time.Time:
		return rankDate
	default:
		return rankOther
	}
}

// compareValues orders two values the way a sort does: first by type rank,
// then by value.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	case rankDocument:
		return compareDocs(a.(bson.D), b.(bson.D))
	case rankArray:
		return compareArrays(toArray(a), toArray(b))
	case rankBinary:
		return bytes.Compare(binaryData(a), binaryData(b))
	case rankObjectID:
		oa, ob := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(oa[:], ob[:])
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankDate:
		return cmpInt64(toMillis(a), toMillis(b))
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func equalValues(a, b any) bool {
	return rank(a) == rank(b) && compareValues(a, b) == 0
}

func compareDocs(a, b bson.D) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := compareValues(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func compareArrays(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func toArray(v any) []any {
	switch a := v.(type) {
	case bson.A:
		return a
	case []any:
		return a
	}
	return nil
}

func binaryData(v any) []byte {
	switch b := v.(type) {
	case primitive.Binary:
		return b.Data
	case []byte:
		return b
	}
	return nil
}

func toMillis(v any) int64 {
	switch t := v.(type) {
	case primitive.DateTime:
		return int64(t)
	case time.Time:
		return t.UnixMilli()
	}
	return 0
}

func isIntegral(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return true
	}
	return false
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
