package prefs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/multigram/internal/prefs"
)

func openStore(t *testing.T, path string) *prefs.Store {
	t.Helper()
	s, err := prefs.Open(path, "com.github.danhigham.multigram")
	require.NoError(t, err)
	return s
}

func TestStore_Unset(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), prefs.FileName))
	defer s.Close()

	got, err := s.Strings(prefs.KeyRecentlyUsedSessions)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefs.FileName)

	s := openStore(t, path)
	require.NoError(t, s.SetStrings(prefs.KeyRecentlyUsedSessions, []string{"db1", "db2"}))
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()
	got, err := s.Strings(prefs.KeyRecentlyUsedSessions)
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "db2"}, got)

	require.NoError(t, s.SetStrings(prefs.KeyRecentlyUsedSessions, nil))
	got, err = s.Strings(prefs.KeyRecentlyUsedSessions)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_BucketPerApplication(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefs.FileName)
	s := openStore(t, path)
	require.NoError(t, s.SetStrings(prefs.KeyRecentlyUsedSessions, []string{"db1"}))
	require.NoError(t, s.Close())

	other, err := prefs.Open(path, "other")
	require.NoError(t, err)
	defer other.Close()
	got, err := other.Strings(prefs.KeyRecentlyUsedSessions)
	require.NoError(t, err)
	assert.Nil(t, got)
}
