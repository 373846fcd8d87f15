package cursor

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docop"
)

// Row is one result tuple, positionally aligned with Columns.
type Row []any

// shape turns stored documents into rows for one read operation.
type shape struct {
	left     string
	fields   []docop.FieldRef
	constant *int64
}

func (s shape) row(doc bson.D) (Row, []string) {
	switch {
	case s.constant != nil:
		return Row{*s.constant}, nil
	case len(s.fields) == 0:
		return starRow(doc)
	}
	row := make(Row, len(s.fields))
	for i, f := range s.fields {
		row[i] = s.value(doc, f)
	}
	return row, nil
}

// value looks a projected field up by plain name, then by the literal
// "table.field" key, then through the nested table document an aggregation
// projection produces. A field found nowhere is nil.
func (s shape) value(doc bson.D, f docop.FieldRef) any {
	if v, ok := get(doc, f.Field); ok {
		return v
	}
	table := f.Table
	if table == "" {
		table = s.left
	}
	if v, ok := get(doc, table+"."+f.Field); ok {
		return v
	}
	if nested, ok := get(doc, table); ok {
		if d, ok := nested.(bson.D); ok {
			if v, ok := get(d, f.Field); ok {
				return v
			}
		}
	}
	return nil
}

// starRow returns every field except _id, in stored order, and their names.
func starRow(doc bson.D) (Row, []string) {
	row := make(Row, 0, len(doc))
	names := make([]string, 0, len(doc))
	for _, e := range doc {
		if e.Key == "_id" {
			continue
		}
		row = append(row, e.Value)
		names = append(names, e.Key)
	}
	return row, names
}

func get(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
