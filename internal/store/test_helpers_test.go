package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh database in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun opens a fresh store and starts one run in it.
func beginTestRun(t *testing.T) (*Store, *RunState) {
	t.Helper()
	s := createTestStore(t)
	rs, err := s.BeginRun(context.Background(), "test.log")
	require.NoError(t, err)
	return s, rs
}

func mustApply(t *testing.T, ok bool, err error) {
	t.Helper()
	require.NoError(t, err)
	require.True(t, ok)
}

func mustDefer(t *testing.T, ok bool, err error) {
	t.Helper()
	require.NoError(t, err)
	require.False(t, ok)
}

// expect returns a checker for a State call's (applied, err) pair.
func expect(t *testing.T, want bool) func(bool, error) {
	return func(ok bool, err error) {
		t.Helper()
		require.NoError(t, err)
		require.Equal(t, want, ok)
	}
}
