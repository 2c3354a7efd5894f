// Package plan computes what a deploy would do without deploying,
// terraform-style.
package plan

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/athapong/ccfm/pkg/deploy"
	"github.com/athapong/ccfm/pkg/state"
)

// Action classifies what would happen to one page.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionNoOp    Action = "NO_OP"
	ActionArchive Action = "ARCHIVE"
)

// PageAction is the planned action for a single markdown file.
type PageAction struct {
	Path        string
	RelPath     string
	Action      Action
	Title       string
	CurrentHash string
	StoredHash  string // empty for CREATE
	PageID      string // empty for CREATE
}

// OrphanAction is a planned archive for a page whose source file is gone.
type OrphanAction struct {
	RelPath string
	PageID  string
	Title   string
}

// Plan is the complete set of actions the next deploy would take.
type Plan struct {
	PageActions   []PageAction
	OrphanActions []OrphanAction
}

// HasChanges reports whether any deployable action exists. NO_OP entries do
// not count.
func (p *Plan) HasChanges() bool {
	for _, a := range p.PageActions {
		if a.Action != ActionNoOp {
			return true
		}
	}
	return len(p.OrphanActions) > 0
}

// Compute classifies every file against the stored state:
//
//	CREATE  no state entry exists (never deployed)
//	UPDATE  state exists but the content hash changed
//	NO_OP   state exists and the hash is unchanged
//
// With archiveOrphans set, tracked files missing from disk become ARCHIVE
// actions.
func Compute(st *state.Manager, files []string, docsRoot string, archiveOrphans bool) *Plan {
	p := &Plan{}

	sorted := append([]string{}, files...)
	sort.Strings(sorted)

	for _, path := range sorted {
		relPath := state.RelPath(path)
		currentHash, err := state.ComputeHash(path)
		if err != nil {
			currentHash = ""
		}
		title := deploy.DeriveTitle(path)

		entry := st.Page(relPath)
		switch {
		case entry == nil:
			p.PageActions = append(p.PageActions, PageAction{
				Path: path, RelPath: relPath, Action: ActionCreate,
				Title: title, CurrentHash: currentHash,
			})
		case entry.ContentHash != currentHash:
			p.PageActions = append(p.PageActions, PageAction{
				Path: path, RelPath: relPath, Action: ActionUpdate,
				Title: title, CurrentHash: currentHash,
				StoredHash: entry.ContentHash, PageID: entry.PageID,
			})
		default:
			p.PageActions = append(p.PageActions, PageAction{
				Path: path, RelPath: relPath, Action: ActionNoOp,
				Title: title, CurrentHash: currentHash,
				StoredHash: entry.ContentHash, PageID: entry.PageID,
			})
		}
	}

	if archiveOrphans {
		for _, relPath := range st.FindOrphans(files, docsRoot) {
			if entry := st.Page(relPath); entry != nil {
				p.OrphanActions = append(p.OrphanActions, OrphanAction{
					RelPath: relPath,
					PageID:  entry.PageID,
					Title:   entry.Title,
				})
			}
		}
	}

	return p
}

var actionSymbols = map[Action]string{
	ActionCreate: "+",
	ActionUpdate: "~",
	ActionNoOp:   "·",
}

var actionLabels = map[Action]string{
	ActionCreate: "CREATE ",
	ActionUpdate: "UPDATE ",
	ActionNoOp:   "NO-OP  ",
}

// PrintSummary writes the human-readable plan.
func (p *Plan) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CCFM Deploy Plan")
	fmt.Fprintln(w, strings.Repeat("═", 60))
	fmt.Fprintln(w)

	if len(p.PageActions) == 0 && len(p.OrphanActions) == 0 {
		fmt.Fprintln(w, "  No files found to deploy.")
		fmt.Fprintln(w)
		return
	}

	for _, a := range p.PageActions {
		fmt.Fprintf(w, "  %s %-45s %s  %q\n", actionSymbols[a.Action], a.RelPath, actionLabels[a.Action], a.Title)
	}
	for _, o := range p.OrphanActions {
		fmt.Fprintf(w, "  - %-45s ARCHIVE  %q  (file removed)\n", o.RelPath, o.Title)
	}

	var creates, updates, noOps int
	for _, a := range p.PageActions {
		switch a.Action {
		case ActionCreate:
			creates++
		case ActionUpdate:
			updates++
		case ActionNoOp:
			noOps++
		}
	}

	var parts []string
	if creates > 0 {
		parts = append(parts, fmt.Sprintf("%d to create", creates))
	}
	if updates > 0 {
		parts = append(parts, fmt.Sprintf("%d to update", updates))
	}
	if n := len(p.OrphanActions); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to archive", n))
	}
	if noOps > 0 {
		parts = append(parts, fmt.Sprintf("%d unchanged", noOps))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Plan: %s.\n", strings.Join(parts, ", "))

	if p.HasChanges() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Run without --plan to apply.")
	}
	fmt.Fprintln(w)
}
