package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/ccfm/pkg/state"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadMissingFileIsNoOp(t *testing.T) {
	m := state.NewManager(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, m.Load())
	assert.Empty(t, m.Pages())
}

func TestLoadRejectsUnexpectedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeFile(t, path, `{"version":"1"}`)

	m := state.NewManager(path)
	assert.Error(t, m.Load())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	m := state.NewManager(path)
	m.SetPage("docs/a.md", "123", "A Page", "DOCS", "999", "sha256:abc")
	require.NoError(t, m.Save())

	loaded := state.NewManager(path)
	require.NoError(t, loaded.Load())
	entry := loaded.Page("docs/a.md")
	require.NotNil(t, entry)
	assert.Equal(t, "123", entry.PageID)
	assert.Equal(t, "A Page", entry.Title)
	assert.Equal(t, "DOCS", entry.SpaceKey)
	assert.Equal(t, "sha256:abc", entry.ContentHash)
	assert.NotEmpty(t, entry.DeployedAt)
}

func TestSaveWritesVersionedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	m := state.NewManager(path)
	m.SetPage("docs/a.md", "1", "A", "DOCS", "9", "sha256:x")
	require.NoError(t, m.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.JSONEq(t, `"1"`, string(decoded["version"]))
	assert.Contains(t, string(decoded["pages"]), "docs/a.md")
}

func TestRemovePage(t *testing.T) {
	m := state.NewManager(filepath.Join(t.TempDir(), "state.json"))
	m.SetPage("docs/a.md", "1", "A", "DOCS", "9", "h")
	m.RemovePage("docs/a.md")
	assert.Nil(t, m.Page("docs/a.md"))
}

func TestComputeHashPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.md")
	writeFile(t, path, "hello")

	hash, err := state.ComputeHash(path)
	require.NoError(t, err)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, hash)

	again, err := state.ComputeHash(path)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestHasChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.md")
	writeFile(t, path, "v1")

	m := state.NewManager(filepath.Join(dir, "state.json"))
	assert.True(t, m.HasChanged("f.md", path), "untracked file counts as changed")

	hash, err := state.ComputeHash(path)
	require.NoError(t, err)
	m.SetPage("f.md", "1", "F", "DOCS", "9", hash)
	assert.False(t, m.HasChanged("f.md", path))

	writeFile(t, path, "v2")
	assert.True(t, m.HasChanged("f.md", path))
}

func TestFindOrphans(t *testing.T) {
	m := state.NewManager(filepath.Join(t.TempDir(), "state.json"))
	m.SetPage("docs/kept.md", "1", "Kept", "DOCS", "9", "h")
	m.SetPage("docs/gone.md", "2", "Gone", "DOCS", "9", "h")
	m.SetPage("elsewhere/out.md", "3", "Out", "DOCS", "9", "h")

	orphans := m.FindOrphans([]string{"docs/kept.md"}, "docs")
	assert.Equal(t, []string{"docs/gone.md"}, orphans)
}
