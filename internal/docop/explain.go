package docop

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Explain renders op as indented relaxed extended JSON. Keys keep their
// compiled order, so the output is deterministic and suitable for golden
// files and the journal.
func Explain(op Operation) ([]byte, error) {
	doc, err := explainDoc(op)
	if err != nil {
		return nil, err
	}
	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("marshal %s operation: %w", op.Kind(), err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent %s operation: %w", op.Kind(), err)
	}
	return out.Bytes(), nil
}

func explainDoc(op Operation) (bson.D, error) {
	if op == nil {
		return nil, fmt.Errorf("nil operation")
	}
	doc := bson.D{{Key: "op", Value: op.Kind()}}
	if target := op.Target(); target != "" {
		doc = append(doc, bson.E{Key: "collection", Value: target})
	}

	switch o := op.(type) {
	case *Find:
		doc = appendDoc(doc, "filter", o.Filter)
		doc = append(doc, bson.E{Key: "projection", Value: nonNil(o.Projection)})
		doc = appendDoc(doc, "sort", o.Sort)
		if o.Limit > 0 {
			doc = append(doc, bson.E{Key: "limit", Value: o.Limit})
		}
		doc = appendFields(doc, o.Fields, o.ReturnConst)
	case *Aggregate:
		doc = append(doc, bson.E{Key: "pipeline", Value: o.Pipeline.BSON()})
		doc = appendFields(doc, o.Fields, o.ReturnConst)
	case *Count:
	case *Insert:
		doc = append(doc, bson.E{Key: "document", Value: nonNil(o.Document)})
	case *Update:
		doc = append(doc, bson.E{Key: "filter", Value: nonNil(o.Filter)})
		doc = append(doc, bson.E{Key: "update", Value: nonNil(o.Update)})
	case *Delete:
		doc = append(doc, bson.E{Key: "filter", Value: nonNil(o.Filter)})
	case *NoOp:
		doc = append(doc, bson.E{Key: "statement", Value: o.Statement})
	default:
		return nil, fmt.Errorf("unsupported operation type: %T", op)
	}
	return doc, nil
}

func appendDoc(doc bson.D, key string, value bson.D) bson.D {
	if len(value) == 0 {
		return doc
	}
	return append(doc, bson.E{Key: key, Value: value})
}

func appendFields(doc bson.D, fields []FieldRef, constant *int64) bson.D {
	if len(fields) > 0 {
		names := make(bson.A, len(fields))
		for i, f := range fields {
			names[i] = f.String()
		}
		doc = append(doc, bson.E{Key: "fields", Value: names})
	}
	if constant != nil {
		doc = append(doc, bson.E{Key: "returnConst", Value: *constant})
	}
	return doc
}

func nonNil(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}
