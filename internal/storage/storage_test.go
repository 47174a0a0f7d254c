package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// backends returns a fresh instance of every backend for contract tests
func backends(t *testing.T) map[string]Storage {
	t.Helper()

	keyring.MockInit()

	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "session.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Storage{
		BackendMemory:  NewMemory(),
		BackendFile:    NewFile(filepath.Join(dir, "nested", "session.json")),
		BackendSQLite:  db,
		BackendKeyring: NewKeyring("api.example.com"),
	}
}

func TestStorage_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Missing key
			_, ok, err := s.Get(KeyAccessToken)
			require.NoError(t, err)
			assert.False(t, ok)

			// Set and get
			require.NoError(t, s.Set(KeyAccessToken, "token-1"))
			require.NoError(t, s.Set(KeyUser, `{"id":"u1"}`))

			v, ok, err := s.Get(KeyAccessToken)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "token-1", v)

			// Overwrite
			require.NoError(t, s.Set(KeyAccessToken, "token-2"))
			v, _, err = s.Get(KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, "token-2", v)

			// Remove leaves other keys alone
			require.NoError(t, s.Remove(KeyAccessToken))
			_, ok, err = s.Get(KeyAccessToken)
			require.NoError(t, err)
			assert.False(t, ok)

			v, ok, err = s.Get(KeyUser)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"id":"u1"}`, v)

			// Removing a missing key is not an error
			require.NoError(t, s.Remove(KeyAccessToken))
		})
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFile(path).Set(KeyAccessToken, "abc"))

	v, ok, err := NewFile(path).Get(KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFile_CorruptContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	f := NewFile(path)
	_, _, err := f.Get(KeyUser)
	assert.Error(t, err)

	// Remove resets an unreadable file so logout can always succeed
	require.NoError(t, f.Remove(KeyUser))
	_, ok, err := f.Get(KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.sqlite")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(KeyUser, `{"id":"u1"}`))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.Get(KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"u1"}`, v)
}

func TestKeyring_NamespacesDoNotCollide(t *testing.T) {
	keyring.MockInit()

	a := NewKeyring("a.example.com")
	b := NewKeyring("b.example.com")

	require.NoError(t, a.Set(KeyAccessToken, "token-a"))

	_, ok, err := b.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyring_ErrorsAreWrapped(t *testing.T) {
	boom := errors.New("keychain locked")
	keyring.MockInitWithError(boom)
	t.Cleanup(keyring.MockInit)

	k := NewKeyring("")
	_, _, err := k.Get(KeyUser)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, k.Set(KeyUser, "x"), boom)
	assert.ErrorIs(t, k.Remove(KeyUser), boom)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(Options{Backend: BackendFile, Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	require.IsType(t, &File{}, s)
	assert.Equal(t, filepath.Join(dir, "s.json"), s.(*File).Path())

	s, err = Open(Options{Backend: "SQLite", Path: filepath.Join(dir, "s.sqlite")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, Close(s))

	s, err = Open(Options{Namespace: "api.example.com"})
	require.NoError(t, err)
	assert.IsType(t, &Keyring{}, s)
	assert.NoError(t, Close(s))

	_, err = Open(Options{Backend: "cookies"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_FileDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	want, err := DefaultFilePath()
	require.NoError(t, err)

	s, err := Open(Options{Backend: BackendFile})
	require.NoError(t, err)
	require.IsType(t, &File{}, s)
	assert.Equal(t, want, s.(*File).Path())
}
