package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/translate"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Params []string
}

// CompiledStatement is the compile output for one statement.
type CompiledStatement struct {
	SQL        string          `json:"sql"`
	Kind       string          `json:"kind,omitempty"`
	Collection string          `json:"collection,omitempty"`
	Operation  json.RawMessage `json:"operation,omitempty"`
	Error      *CLIError       `json:"error,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <sql>...",
		Short: "Show the MongoDB operation a statement compiles to",
		Long: `Compile SQL statements and print the resulting MongoDB operations.

Nothing is executed. Each argument is one statement; --param values are
handed out to the statements' placeholders left to right and are read as
relaxed extended JSON (5, true, null, {"$oid": "..."}), falling back to a
plain string.

Exit codes:
  0 - Every statement compiled
  1 - At least one statement failed to compile

Examples:
  docsql compile "SELECT a FROM t WHERE b = ?" --param 5
  docsql compile "INSERT INTO t (a) VALUES (%s)" --param '"x"' --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "statement parameter (repeatable)")

	return cmd
}

func runCompile(opts *CompileOptions, statements []string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	params := splitParams(statements, parseParams(opts.Params))

	results := make([]CompiledStatement, len(statements))
	var g errgroup.Group
	for i, sql := range statements {
		g.Go(func() error {
			results[i] = compileOne(sql, params[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if out.JSON() {
		var summary *CLIError
		if failed > 0 {
			summary = &CLIError{
				Code:    results[firstFailure(results)].Error.Code,
				Message: fmt.Sprintf("%d of %d statements failed to compile", failed, len(results)),
			}
		}
		if err := out.Result(results, summary); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(out.Writer, "-- %s\n", r.SQL)
			if r.Error != nil {
				fmt.Fprintf(out.Writer, "%s [%s]: %s\n\n", failLabel("Error"), r.Error.Code, r.Error.Message)
				continue
			}
			fmt.Fprintf(out.Writer, "%s\n\n", r.Operation)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d statements failed to compile", failed, len(results)))
	}
	return nil
}

func compileOne(sql string, params []any) CompiledStatement {
	res := CompiledStatement{SQL: sql}
	op, err := translate.Compile(sql, params)
	if err == nil {
		err = docop.Validate(op)
	}
	if err != nil {
		res.Error = toCLIError(err)
		return res
	}
	explain, err := docop.Explain(op)
	if err != nil {
		res.Error = toCLIError(err)
		return res
	}
	res.Kind = op.Kind()
	res.Collection = op.Target()
	res.Operation = explain
	return res
}

func firstFailure(results []CompiledStatement) int {
	for i, r := range results {
		if r.Error != nil {
			return i
		}
	}
	return -1
}
