package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Kind    string
	Limit   int
}

// HistoryEntry is the JSON form of a journal entry.
type HistoryEntry struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	SQL        string          `json:"sql"`
	Params     json.RawMessage `json:"params"`
	Kind       string          `json:"kind,omitempty"`
	Collection string          `json:"collection,omitempty"`
	Operation  json.RawMessage `json:"operation,omitempty"`
	RowCount   int64           `json:"row_count"`
	Error      string          `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled statements",
		Long: `List statements recorded in the journal, oldest first.

Examples:
  docsql history
  docsql history --kind insert --limit 20
  docsql history --journal ./other.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal path (default from configuration)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show statements of this kind (find, insert, ...)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only show the most recent N statements")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	j, err := journalFor(opts.RootOptions, opts.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.List(cmd.Context(), journal.Filter{Kind: opts.Kind, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if out.JSON() {
		view := make([]HistoryEntry, len(entries))
		for i, e := range entries {
			view[i] = historyEntry(e)
		}
		return out.Success(view)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out.Writer, "No statements recorded.")
		return nil
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		status := strconv.FormatInt(e.RowCount, 10)
		if e.Error != "" {
			status = failLabel("error")
		}
		rows[i] = []string{strconv.FormatInt(e.Seq, 10), e.Kind, e.Collection, status, e.SQL}
	}
	return out.Table([]string{"seq", "kind", "collection", "rows", "sql"}, rows)
}

func historyEntry(e journal.Entry) HistoryEntry {
	h := HistoryEntry{
		ID:         e.ID,
		Seq:        e.Seq,
		SQL:        e.SQL,
		Params:     json.RawMessage(e.Params),
		Kind:       e.Kind,
		Collection: e.Collection,
		RowCount:   e.RowCount,
		Error:      e.Error,
	}
	if e.Operation != "" {
		h.Operation = json.RawMessage(e.Operation)
	}
	return h
}

// journalFor opens an existing journal at path, or at the configured path
// when path is empty.
func journalFor(opts *RootOptions, path string) (*journal.Journal, error) {
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.JournalPath
	}
	return openJournal(path, false)
}
