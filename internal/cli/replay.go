package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	Kind    string
	Limit   int
}

// ReplayDivergence is one statement whose recompilation changed.
type ReplayDivergence struct {
	ID       string          `json:"id"`
	Seq      int64           `json:"seq"`
	SQL      string          `json:"sql"`
	Recorded json.RawMessage `json:"recorded,omitempty"`
	Current  json.RawMessage `json:"current,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Checked       int                `json:"checked"`
	Diverged      []ReplayDivergence `json:"diverged"`
	Deterministic bool               `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompile journaled statements and verify determinism",
		Long: `Recompile every journaled statement with its recorded parameters and
compare the result with the recorded operation. Nothing is executed.

A statement that failed to compile when it was recorded matches when it
still fails to compile.

Exit codes:
  0 - Every statement recompiles to the recorded operation
  1 - At least one statement diverged
  2 - Command error (journal not found, etc.)

Examples:
  docsql replay
  docsql replay --journal ./.docsql/journal.db --kind update
  docsql replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal path (default from configuration)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only replay statements of this kind")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only replay the most recent N statements")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	j, err := journalFor(opts.RootOptions, opts.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	res, err := j.Replay(cmd.Context(), journal.Filter{Kind: opts.Kind, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay journal", err)
	}

	result := ReplayResult{
		Checked:       res.Checked,
		Diverged:      make([]ReplayDivergence, len(res.Diverged)),
		Deterministic: len(res.Diverged) == 0,
	}
	for i, d := range res.Diverged {
		result.Diverged[i] = divergence(d)
	}

	if out.JSON() {
		var failed *CLIError
		if !result.Deterministic {
			failed = &CLIError{Code: "REPLAY_DIVERGED", Message: fmt.Sprintf("%d of %d statements diverged", len(result.Diverged), result.Checked)}
		}
		if err := out.Result(result, failed); err != nil {
			return err
		}
	} else {
		printReplay(out, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d statements diverged", len(result.Diverged), result.Checked))
	}
	return nil
}

func divergence(d journal.Divergence) ReplayDivergence {
	rd := ReplayDivergence{
		ID:    d.Entry.ID,
		Seq:   d.Entry.Seq,
		SQL:   d.Entry.SQL,
		Error: d.Error,
	}
	if d.Entry.Operation != "" {
		rd.Recorded = json.RawMessage(d.Entry.Operation)
	}
	if d.Operation != "" {
		rd.Current = json.RawMessage(d.Operation)
	}
	return rd
}

func printReplay(out *OutputFormatter, result ReplayResult) {
	w := out.Writer
	if result.Checked == 0 {
		fmt.Fprintln(w, "No statements recorded.")
		return
	}
	for _, d := range result.Diverged {
		fmt.Fprintf(w, "%s [%d] %s\n", failLabel("DIVERGED"), d.Seq, d.SQL)
		if d.Error != "" {
			fmt.Fprintf(w, "    now fails: %s\n", d.Error)
			continue
		}
		if out.Verbose {
			fmt.Fprintf(w, "    recorded: %s\n    current:  %s\n", d.Recorded, d.Current)
		}
	}
	if result.Deterministic {
		fmt.Fprintf(w, "%s %d statements replayed, all deterministic\n", passLabel("OK"), result.Checked)
		return
	}
	fmt.Fprintf(w, "%d of %d statements diverged\n", len(result.Diverged), result.Checked)
}
