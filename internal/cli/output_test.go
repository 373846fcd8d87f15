package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsql/internal/cursor"
	"github.com/roach88/docsql/internal/translate"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("DECODE_ERROR", "compilation failed", map[string]string{"clause": "LIKE"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DECODE_ERROR", resp.Error.Code)
	assert.Equal(t, "compilation failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Result(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Result([]int{1}, &CLIError{Code: "X", Message: "failed"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, []any{float64(1)}, resp.Data)
	assert.Equal(t, "X", resp.Error.Code)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Error("DECODE_ERROR", "compilation failed", "SELECT"))
	assert.Contains(t, buf.String(), "[DECODE_ERROR]: compilation failed")
	assert.NotContains(t, buf.String(), "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("DECODE_ERROR", "compilation failed", "SELECT"))
	assert.Contains(t, buf.String(), "Details: SELECT")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("executing %s", "SELECT 1")

			assert.Empty(t, buf.String(), "verbose output never goes to the result stream")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "executing SELECT 1")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Table([]string{"name", "age"}, [][]string{{"ann", "31"}, {"bob", "45"}}))

	out := buf.String()
	for _, s := range []string{"name", "age", "ann", "31", "bob", "45"} {
		assert.Contains(t, out, s)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "diverged", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: diverged: inner", wrapped.Error())
}

func TestErrorCode(t *testing.T) {
	_, err := translate.Compile("SELECT a FROM t WHERE a LIKE ?", []any{"x"})
	require.Error(t, err)
	assert.Equal(t, "DECODE_ERROR", errorCode(err))

	_, err = translate.Compile("TRUNCATE t", nil)
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_OPERATION", errorCode(err))

	assert.Equal(t, CodeInvalidState, errorCode(fmt.Errorf("fetch: %w", cursor.ErrInvalidCursorState)))
	assert.Equal(t, CodeExecution, errorCode(errors.New("connection reset")))
	assert.Nil(t, toCLIError(nil))
}
