package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		write      func(*OutputFormatter) error
		wantStatus string
		wantCode   string
		details    bool
	}{
		{
			name:       "success",
			write:      func(f *OutputFormatter) error { return f.Success(map[string]int{"applied": 3}) },
			wantStatus: "ok",
		},
		{
			name:       "error",
			write:      func(f *OutputFormatter) error { return f.Error(CodeStall, "replay stalled", nil) },
			wantStatus: "error",
			wantCode:   CodeStall,
		},
		{
			name: "error with details",
			write: func(f *OutputFormatter) error {
				return f.Error(CodeStall, "replay stalled", []string{"partition:5 never declared (needed by line 2)"})
			},
			wantStatus: "error",
			wantCode:   CodeStall,
			details:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "json", Writer: buf}))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			if tt.wantCode == "" {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.details, resp.Error.Details != nil)
		})
	}
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("replay complete"))
	require.NoError(t, f.Error(CodeStall, "replay stalled", map[string]string{"ref": "partition:5"}))

	out := buf.String()
	assert.Contains(t, out, "replay complete")
	assert.Contains(t, out, "Error [E_STALL]: replay stalled")
	assert.NotContains(t, out, "Details:", "details are verbose-only")

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(CodeStall, "replay stalled", map[string]string{"ref": "partition:5"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		t.Run(fmt.Sprint(verbose), func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: verbose}

			f.VerboseLog("pass %d: resolved %d", 1, 4)
			if verbose {
				assert.Equal(t, "pass 1: resolved 4\n", buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("pass %d", 2)
	assert.Empty(t, out.String(), "diagnostics never corrupt JSON output")
	assert.Equal(t, "pass 2\n", errOut.String())
}

func TestOutputFormatter_JSONIndented(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.JSON(CLIResponse{Status: "ok", Data: map[string]int{"applied": 3}, RunID: "run-1"}))
	assert.Contains(t, buf.String(), "\n  \"status\": \"ok\"")
	assert.Contains(t, buf.String(), `"run_id": "run-1"`)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "stalled", assert.AnError)))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
