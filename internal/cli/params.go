package cli

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/translate"
)

// parseParam reads a --param value as relaxed extended JSON, so 5 is a
// number, true a boolean, null nil and {"$oid": "..."} an ObjectID.
// Anything that does not parse is taken as a plain string.
func parseParam(s string) any {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+s+`}`), false, &doc); err != nil || len(doc) != 1 {
		return s
	}
	return doc[0].Value
}

func parseParams(raw []string) []any {
	if len(raw) == 0 {
		return nil
	}
	params := make([]any, len(raw))
	for i, s := range raw {
		params[i] = parseParam(s)
	}
	return params
}

// splitParams hands each statement as many params as it has placeholders,
// left to right. The last statement also takes any surplus so the
// compiler can report it.
func splitParams(statements []string, params []any) [][]any {
	out := make([][]any, len(statements))
	rest := params
	for i, sql := range statements {
		_, n := translate.Rewrite(sql)
		if i == len(statements)-1 || n > len(rest) {
			n = len(rest)
		}
		out[i] = rest[:n:n]
		rest = rest[n:]
	}
	return out
}

// extJSON renders v as relaxed extended JSON.
func extJSON(v any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return "", fmt.Errorf("failed to render value: %w", err)
	}
	// Strip the {"v": ... } wrapper.
	return string(data[5 : len(data)-1]), nil
}
