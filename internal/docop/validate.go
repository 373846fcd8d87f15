package docop

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of a compiled operation:
//  1. Every operation except NoOp names a collection
//  2. Limits are non-negative
//  3. Every Lookup is immediately followed by an Unwind of its alias
//  4. Sort, Match, Limit and Project appear after all joins, at most once
//     each, in that order
//
// Validate is a pure function with no side effects.
func Validate(op Operation) error {
	if op == nil {
		return fmt.Errorf("nil operation")
	}
	v := &validator{}
	v.validateOperation(op)
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid %s operation: %s", op.Kind(), strings.Join(v.problems, "; "))
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateOperation(op Operation) {
	if _, ok := op.(*NoOp); !ok && op.Target() == "" {
		v.addProblem("empty collection name")
	}

	switch o := op.(type) {
	case *Find:
		if o.Limit < 0 {
			v.addProblem("negative limit %d", o.Limit)
		}
	case *Aggregate:
		v.validatePipeline(o.Pipeline)
	case *Insert:
		if len(o.Document) == 0 {
			v.addProblem("empty document")
		}
	case *Update:
		if len(o.Update) == 0 {
			v.addProblem("empty update document")
		}
	case *Count, *Delete, *NoOp:
	default:
		v.addProblem("unknown operation type %T", op)
	}
}

// trailingRank orders the stages that follow the joins.
var trailingRank = map[string]int{"sort": 1, "match": 2, "limit": 3, "project": 4}

func (v *validator) validatePipeline(p Pipeline) {
	rank := 0
	for i := 0; i < len(p); i++ {
		var name string
		switch s := p[i].(type) {
		case Lookup:
			if rank > 0 {
				v.addProblem("stage %d: $lookup after trailing stages", i)
			}
			next, ok := stageAt(p, i+1).(Unwind)
			if !ok {
				v.addProblem("stage %d: $lookup %q not followed by $unwind", i, s.As)
				continue
			}
			if next.Path != "$"+s.As {
				v.addProblem("stage %d: $unwind path %q does not match $lookup alias %q", i+1, next.Path, s.As)
			}
			i++
			continue
		case Unwind:
			v.addProblem("stage %d: $unwind without preceding $lookup", i)
			continue
		case Sort:
			name = "sort"
		case Match:
			name = "match"
		case Limit:
			name = "limit"
			if s.N < 0 {
				v.addProblem("stage %d: negative limit %d", i, s.N)
			}
		case Project:
			name = "project"
		default:
			v.addProblem("stage %d: unknown stage type %T", i, s)
			continue
		}
		if trailingRank[name] <= rank {
			v.addProblem("stage %d: $%s out of order", i, name)
		}
		rank = trailingRank[name]
	}
}

func stageAt(p Pipeline, i int) Stage {
	if i < len(p) {
		return p[i]
	}
	return nil
}
