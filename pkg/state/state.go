// Package state persists filepath to page-id mappings between deployments.
//
// The state file maps relative file paths (from the working directory) to
// their Confluence page metadata, enabling changed-files-only deployment,
// orphan detection and plan mode. It is intended to be committed alongside
// the documentation so that CI pipelines and team members share the same
// deployment history.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// Version is the state file schema version.
const Version = "1"

// PageEntry is the stored record for one deployed page.
type PageEntry struct {
	PageID      string `json:"page_id"`
	Title       string `json:"title"`
	SpaceKey    string `json:"space_key"`
	SpaceID     string `json:"space_id"`
	ContentHash string `json:"content_hash"`
	DeployedAt  string `json:"deployed_at"`
}

type stateFile struct {
	Version string                `json:"version"`
	Pages   map[string]*PageEntry `json:"pages"`
}

// Manager tracks deployed pages across runs via a local JSON state file.
type Manager struct {
	path  string
	pages map[string]*PageEntry
}

// NewManager returns a manager for the state file at path. Nothing is read
// from disk until Load is called.
func NewManager(path string) *Manager {
	return &Manager{path: path, pages: map[string]*PageEntry{}}
}

// Load reads the state file. A missing file is not an error.
func (m *Manager) Load() error {
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read state file")
	}

	var data stateFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Wrapf(err, "parse state file %s", m.path)
	}
	if data.Pages == nil {
		return errors.Errorf("state file has unexpected schema: %s", m.path)
	}
	m.pages = data.Pages
	return nil
}

// Save atomically writes the state file (write-then-rename). Parent
// directories are created if missing. Mode 0600 keeps space IDs and page
// titles away from other users on shared systems.
func (m *Manager) Save() error {
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create state directory")
		}
	}

	payload, err := json.MarshalIndent(stateFile{Version: Version, Pages: m.pages}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state")
	}
	if err := renameio.WriteFile(m.path, payload, 0o600); err != nil {
		return errors.Wrap(err, "write state file")
	}
	return nil
}

// Page returns the entry for a relative path, or nil if the path is not
// tracked.
func (m *Manager) Page(relPath string) *PageEntry {
	return m.pages[relPath]
}

// SetPage creates or updates the entry for a deployed page.
func (m *Manager) SetPage(relPath, pageID, title, spaceKey, spaceID, contentHash string) {
	m.pages[relPath] = &PageEntry{
		PageID:      pageID,
		Title:       title,
		SpaceKey:    spaceKey,
		SpaceID:     spaceID,
		ContentHash: contentHash,
		DeployedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// RemovePage drops a page entry, typically after archiving an orphan.
func (m *Manager) RemovePage(relPath string) {
	delete(m.pages, relPath)
}

// Pages returns a copy of all entries keyed by relative path.
func (m *Manager) Pages() map[string]PageEntry {
	out := make(map[string]PageEntry, len(m.pages))
	for rel, entry := range m.pages {
		out[rel] = *entry
	}
	return out
}

// ComputeHash returns the sha256 digest of the file's contents, prefixed
// with "sha256:" for future algorithm flexibility.
func ComputeHash(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// HasChanged reports whether the file content differs from the stored hash.
// Files that were never deployed, or cannot be read, count as changed.
func (m *Manager) HasChanged(relPath, path string) bool {
	entry := m.pages[relPath]
	if entry == nil {
		return true
	}
	hash, err := ComputeHash(path)
	if err != nil {
		return true
	}
	return entry.ContentHash != hash
}

// RelPath returns path relative to the working directory, falling back to
// the input when it is not under it. Stored state keys use this form.
func RelPath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// FindOrphans returns tracked relative paths under docsRoot whose source
// file no longer exists in currentFiles. An orphan means the markdown was
// deleted and the Confluence page may need archiving.
func (m *Manager) FindOrphans(currentFiles []string, docsRoot string) []string {
	current := make(map[string]struct{}, len(currentFiles))
	for _, f := range currentFiles {
		current[RelPath(f)] = struct{}{}
	}

	rootRel := RelPath(docsRoot)

	var orphans []string
	for relPath := range m.pages {
		if !pathWithin(rootRel, relPath) {
			continue
		}
		if _, ok := current[relPath]; !ok {
			orphans = append(orphans, relPath)
		}
	}
	sort.Strings(orphans)
	return orphans
}

func pathWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
