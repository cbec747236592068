package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spy/internal/store"
	"github.com/roach88/spy/internal/testutil"
)

func TestRunsCommand_RequiresDatabase(t *testing.T) {
	_, err := execute(t, NewRunsCommand, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "a database is required")
}

func TestRunsCommand_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "spy.db")

	out, err := execute(t, NewRunsCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestRunsCommand_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "spy.db")
	_, err := execute(t, NewParseCommand, "text", writeLog(t, testutil.FullLog()), "--db", db)
	require.NoError(t, err)

	out, err := execute(t, NewRunsCommand, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, store.RunOK, resp.Data[0].Status)
	assert.Equal(t, 37, resp.Data[0].Summary.Applied)
	assert.Equal(t, 1, resp.Data[0].Summary.PerKind["TopTask"])
}

func TestRunsCommand_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "spy.db")

	_, err := execute(t, NewRunsCommand, "text", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}
