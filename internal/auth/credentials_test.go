package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()
	b := keyringBackend{}

	_, err := b.get(ProxyAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.set(ProxyAPIKey, "secret-1"))
	got, err := b.get(ProxyAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "secret-1", got)

	require.NoError(t, b.remove(ProxyAPIKey))
	require.NoError(t, b.remove(ProxyAPIKey))
	_, err = b.get(ProxyAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	b := fileBackend{dir: func() (string, error) { return dir, nil }}

	_, err := b.get(ProxyAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.set(ProxyAPIKey, "secret-2"))
	got, err := b.get(ProxyAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "secret-2", got)

	info, err := os.Stat(filepath.Join(dir, ProxyAPIKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, b.remove(ProxyAPIKey))
	require.NoError(t, b.remove(ProxyAPIKey))
}

func TestFileBackend_NamesStayInDir(t *testing.T) {
	dir := t.TempDir()
	b := fileBackend{dir: func() (string, error) { return dir, nil }}

	require.NoError(t, b.set("../escape", "x"))
	_, err := os.Stat(filepath.Join(dir, "escape"))
	assert.NoError(t, err)
}

func TestSave_RejectsEmpty(t *testing.T) {
	assert.Error(t, Save("", "x"))
	assert.Error(t, Save(ProxyAPIKey, "  "))
	_, err := Load("")
	assert.Error(t, err)
	assert.Error(t, Delete(""))
}
