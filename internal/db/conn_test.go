package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ventwave.db")
	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, path, d.Path())
	require.NoError(t, d.Migrate())
	require.NoError(t, d.Migrate())

	var n int
	require.NoError(t, d.Conn().QueryRow(`SELECT count(*) FROM analyses`).Scan(&n))
	assert.Zero(t, n)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenMemorySharesOneDatabase(t *testing.T) {
	d, err := Open(MemoryPath)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Migrate())

	_, err = d.Conn().Exec(`INSERT INTO analyses (id, agent, provider, model, created_at) VALUES ('a', 'x', 'gemini', 'm', 't')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, d.Conn().QueryRow(`SELECT count(*) FROM analyses`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	d, err := Open("~/data/ventwave.db")
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, filepath.Join(home, "data", "ventwave.db"), d.Path())
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
