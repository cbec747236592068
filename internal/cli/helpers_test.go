package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spy/internal/testutil"
)

// writeLog writes a trace log into a temp dir and returns its path.
func writeLog(t *testing.T, log *testutil.Log) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, os.WriteFile(path, []byte(log.String()), 0644))
	return path
}

// execute runs a subcommand built by newCmd and returns stdout and the error.
// The subcommand runs without the root, so it gets the root's silencing
// explicitly; otherwise cobra appends usage text after failed JSON output.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SilenceUsage, cmd.SilenceErrors = true, true
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
