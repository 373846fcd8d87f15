package journal

import (
	"context"
	"fmt"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/translate"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Checked  int
	Diverged []Divergence
}

// Divergence is a journaled statement whose recompilation no longer matches
// what was recorded.
type Divergence struct {
	Entry Entry

	// Operation is the explain JSON of the recompiled operation, empty when
	// recompilation failed.
	Operation string

	// Error is the recompilation error, if any.
	Error string
}

// Replay recompiles every entry matching f and compares the result with the
// recorded operation. Nothing is executed against a store.
//
// An entry that failed to compile when recorded matches when it still fails
// to compile.
func (j *Journal) Replay(ctx context.Context, f Filter) (ReplayResult, error) {
	entries, err := j.List(ctx, f)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	var res ReplayResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		op, err := Recompile(e)
		switch {
		case err != nil && e.Operation == "":
			continue
		case err != nil:
			res.Diverged = append(res.Diverged, Divergence{Entry: e, Error: err.Error()})
		case op != e.Operation:
			res.Diverged = append(res.Diverged, Divergence{Entry: e, Operation: op})
		}
	}
	return res, nil
}

// Recompile compiles the entry's statement with its recorded parameters and
// returns the explain JSON.
func Recompile(e Entry) (string, error) {
	params, err := DecodeParams(e.Params)
	if err != nil {
		return "", err
	}
	op, err := translate.Compile(e.SQL, params)
	if err != nil {
		return "", err
	}
	if err := docop.Validate(op); err != nil {
		return "", err
	}
	out, err := docop.Explain(op)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
