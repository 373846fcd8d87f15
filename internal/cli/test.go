package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against the in-memory store",
		Long: `Run every .yaml/.yml scenario under a directory.

Each scenario seeds its fixtures into a fresh in-memory store, executes
its steps through a cursor and checks the step expectations and
assertions. Scenarios run concurrently and are reported in path order.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad filter, etc.)

Examples:
  docsql test ./testdata/scenarios
  docsql test ./testdata/scenarios --filter "people_*"
  docsql test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	paths, err := harness.FindScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	if len(paths) == 0 {
		if out.JSON() {
			return out.Success(harness.SuiteResult{})
		}
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	for _, p := range paths {
		out.VerboseLog("scenario %s", p)
	}
	result, err := harness.RunSuite(cmd.Context(), paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	if out.JSON() {
		var failed *CLIError
		if result.Failed > 0 {
			failed = &CLIError{Code: "SCENARIO_FAILED", Message: fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)}
		}
		if err := out.Result(result, failed); err != nil {
			return err
		}
	} else {
		printSuite(out, paths, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func printSuite(out *OutputFormatter, paths []string, result *harness.SuiteResult) {
	failures := make(map[string]harness.ScenarioFailure, len(result.Failures))
	for _, f := range result.Failures {
		failures[f.Path] = f
	}

	w := out.Writer
	for _, p := range paths {
		f, failed := failures[p]
		if !failed {
			fmt.Fprintf(w, "%s %s\n", passLabel("PASS"), p)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", failLabel("FAIL"), p)
		for _, e := range f.Errors {
			// Assertion errors carry an indented trace on following lines.
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

// filterScenarios keeps paths whose file name, without extension, matches
// the glob pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	var kept []string
	for _, p := range paths {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if ok, _ := filepath.Match(pattern, name); ok {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
