package history

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ventwave/cmd/ventwave/app"
	"ventwave/internal/db"
	hist "ventwave/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	old := app.ConfigPath
	app.ConfigPath = path
	t.Cleanup(func() { app.ConfigPath = old })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	limit = 20
	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(&bytes.Buffer{})
	Cmd.SetArgs(args)
	err := Cmd.Execute()
	return out.String(), err
}

func TestHistoryListsRecentAnalyses(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ventwave.db")
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	store := hist.NewStore(database)
	for _, prompt := range []string{"first waveform", "second waveform"} {
		_, err := store.Record(context.Background(), hist.Analysis{Model: "gemini-2.0-flash-exp", Prompt: prompt, ImageCount: 1})
		require.NoError(t, err)
	}
	require.NoError(t, database.Close())

	useConfig(t, "[db]\nenabled = true\npath = \""+dbPath+"\"\n")

	out, err := run(t, "-n", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "PROMPT")
	assert.Contains(t, lines[1], "second waveform")
	assert.Contains(t, lines[1], "gemini-2.0-flash-exp")
}

func TestHistoryDisabled(t *testing.T) {
	useConfig(t, "[db]\nenabled = false\n")

	_, err := run(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
