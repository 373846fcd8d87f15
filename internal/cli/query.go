package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docsql/internal/cursor"
	"github.com/roach88/docsql/internal/docstore"
	"github.com/roach88/docsql/internal/docstore/memstore"
	"github.com/roach88/docsql/internal/docstore/mongostore"
	"github.com/roach88/docsql/internal/harness"
	"github.com/roach88/docsql/internal/journal"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Params    []string
	Memory    bool
	Fixtures  string
	NoJournal bool
	Journal   string
	URI       string
	Database  string
}

// StatementResult is the outcome of one executed statement.
type StatementResult struct {
	SQL          string          `json:"sql"`
	Kind         string          `json:"kind,omitempty"`
	Columns      []string        `json:"columns,omitempty"`
	Rows         json.RawMessage `json:"rows,omitempty"`
	RowCount     int64           `json:"row_count"`
	LastInsertID json.RawMessage `json:"last_insert_id,omitempty"`
	Matched      int64           `json:"matched,omitempty"`
	Modified     int64           `json:"modified,omitempty"`
	Deleted      int64           `json:"deleted,omitempty"`
	Error        *CLIError       `json:"error,omitempty"`

	rows []cursor.Row
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <sql>...",
		Short: "Execute statements and print their rows",
		Long: `Execute SQL statements in order through one cursor.

Statements run against the configured MongoDB database, or against an
in-memory store with --memory or --fixtures. Every statement is recorded
in the journal unless --no-journal is given. Execution stops at the first
failing statement.

Exit codes:
  0 - Every statement succeeded
  1 - A statement failed to compile or execute
  2 - Command error (no database configured, server unreachable, ...)

Examples:
  docsql query "SELECT name, age FROM people WHERE age > ?" --param 30
  docsql query --fixtures seed.yaml "SELECT * FROM people" --format json
  docsql query --memory "INSERT INTO t (a) VALUES (?)" "SELECT a FROM t" -p 1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "statement parameter (repeatable)")
	cmd.Flags().BoolVar(&opts.Memory, "memory", false, "run against an empty in-memory store")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "YAML file of collection -> documents to seed an in-memory store")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "do not record statements")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal path (default from configuration)")
	cmd.Flags().StringVar(&opts.URI, "uri", "", "MongoDB connection string (default from configuration)")
	cmd.Flags().StringVar(&opts.Database, "database", "", "MongoDB database (default from configuration)")

	return cmd
}

func runQuery(opts *QueryOptions, statements []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := newFormatter(cmd, opts.RootOptions)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	curOpts := []cursor.Option{
		cursor.WithMetadataCollection(cfg.MetadataCollection),
		cursor.WithLogger(slog.Default()),
	}
	if !opts.NoJournal {
		path := opts.Journal
		if path == "" {
			path = cfg.JournalPath
		}
		j, err := openJournal(path, true)
		if err != nil {
			return err
		}
		defer j.Close()
		curOpts = append(curOpts, cursor.WithJournal(j))
	}

	cur := cursor.New(store, curOpts...)
	defer cur.Close(ctx)

	params := splitParams(statements, parseParams(opts.Params))
	results := make([]StatementResult, 0, len(statements))
	var failed *CLIError
	for i, sql := range statements {
		out.VerboseLog("executing %s", sql)
		res := executeOne(ctx, cur, sql, params[i])
		results = append(results, res)
		if res.Error != nil {
			failed = res.Error
			break
		}
	}

	if out.JSON() {
		if err := out.Result(results, failed); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if err := printStatement(out, r); err != nil {
				return err
			}
		}
	}

	if failed != nil {
		return NewExitError(ExitFailure, failed.Message)
	}
	return nil
}

func executeOne(ctx context.Context, cur *cursor.Cursor, sql string, params []any) StatementResult {
	res := StatementResult{SQL: sql}
	r, err := cur.Execute(ctx, sql, params)
	if err != nil {
		res.Error = toCLIError(err)
		return res
	}
	res.Kind = r.Kind
	res.RowCount = r.RowCount
	res.Matched = r.Matched
	res.Modified = r.Modified
	res.Deleted = r.Deleted

	if r.LastInsertID != nil {
		id, err := extJSON(r.LastInsertID)
		if err != nil {
			res.Error = toCLIError(err)
			return res
		}
		res.LastInsertID = json.RawMessage(id)
	}

	if !isRead(r.Kind) {
		return res
	}
	rows, err := cur.FetchAll(ctx)
	if err != nil {
		res.Error = toCLIError(err)
		return res
	}
	res.rows = rows
	res.Columns = cur.Columns()

	arr := make([]any, len(rows))
	for i, row := range rows {
		arr[i] = []any(row)
	}
	rendered, err := extJSON(arr)
	if err != nil {
		res.Error = toCLIError(err)
		return res
	}
	res.Rows = json.RawMessage(rendered)
	return res
}

func printStatement(out *OutputFormatter, r StatementResult) error {
	if r.Error != nil {
		return out.Error(r.Error.Code, r.Error.Message, r.SQL)
	}

	switch r.Kind {
	case "find", "aggregate", "count":
		header := r.Columns
		if len(header) == 0 {
			header = []string{"?"}
		}
		cells := make([][]string, len(r.rows))
		for i, row := range r.rows {
			cells[i] = make([]string, len(row))
			for j, v := range row {
				cells[i][j] = cellText(v)
			}
		}
		if err := out.Table(header, cells); err != nil {
			return err
		}
		fmt.Fprintf(out.Writer, "(%d %s)\n", len(r.rows), plural(len(r.rows), "row"))
	case "insert":
		fmt.Fprintf(out.Writer, "INSERT 1, last insert id %s\n", r.LastInsertID)
	case "update":
		fmt.Fprintf(out.Writer, "UPDATE matched %d, modified %d\n", r.Matched, r.Modified)
	case "delete":
		fmt.Fprintf(out.Writer, "DELETE %d\n", r.Deleted)
	default:
		fmt.Fprintln(out.Writer, "OK (ignored)")
	}
	return nil
}

func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	}
	s, err := extJSON(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func isRead(kind string) bool {
	return kind == "find" || kind == "aggregate" || kind == "count"
}

// openStore returns the store the query runs against and a function that
// releases it.
func openStore(ctx context.Context, opts *QueryOptions) (docstore.Store, func(), error) {
	if opts.Memory || opts.Fixtures != "" {
		st := memstore.New()
		if opts.Fixtures != "" {
			fixtures, err := harness.LoadFixtures(opts.Fixtures)
			if err != nil {
				return nil, nil, WrapExitError(ExitCommandError, "failed to load fixtures", err)
			}
			if err := harness.SeedFixtures(st, fixtures); err != nil {
				return nil, nil, WrapExitError(ExitCommandError, "failed to seed fixtures", err)
			}
		}
		return st, func() {}, nil
	}

	cfg := opts.Config
	uri := firstNonEmpty(opts.URI, cfg.MongoURI)
	database := firstNonEmpty(opts.Database, cfg.Database)
	if database == "" {
		return nil, nil, NewExitError(ExitCommandError, "no database configured: set --database or DOCSQL_DATABASE, or use --memory")
	}
	st, err := mongostore.Open(ctx, uri, database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to connect to MongoDB", err)
	}
	return st, func() {
		if err := st.Close(context.Background()); err != nil {
			slog.Warn("failed to disconnect from MongoDB", "error", err)
		}
	}, nil
}

// openJournal opens the journal at path. With create unset, a missing
// file is a command error rather than a fresh journal.
func openJournal(path string, create bool) (*journal.Journal, error) {
	if create {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to create journal directory", err)
			}
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path), err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
