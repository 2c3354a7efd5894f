package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"

	"github.com/athapong/ccfm/pkg/adf"
	"github.com/athapong/ccfm/pkg/config"
	"github.com/athapong/ccfm/pkg/deploy"
	"github.com/athapong/ccfm/pkg/plan"
	"github.com/athapong/ccfm/pkg/state"
)

// deployTarget is one directory (or single file) routed to one space.
type deployTarget struct {
	space string
	dir   string
	files []string
}

// resolveToken applies the token precedence: an explicit value (flag or
// config file) wins, otherwise the environment is consulted. Must run after
// the env file load so tokens supplied through .env are visible.
func resolveToken(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv("CONFLUENCE_TOKEN")
}

// buildTargets selects what to deploy: a single file, a directory, or the
// config file's deployments routing when neither flag is given. A deployment
// entry without its own space falls back to the global one.
func buildTargets(file, directory, space string, deployments []config.Deployment) ([]deployTarget, error) {
	switch {
	case file != "":
		return []deployTarget{{space: space, files: []string{file}}}, nil
	case directory != "":
		files, err := deploy.ListMarkdownFiles(directory)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", directory)
		}
		return []deployTarget{{space: space, dir: directory, files: files}}, nil
	case len(deployments) > 0:
		var targets []deployTarget
		for _, dep := range deployments {
			files, err := deploy.ListMarkdownFiles(dep.Directory)
			if err != nil {
				return nil, errors.Wrapf(err, "scan %s", dep.Directory)
			}
			targets = append(targets, deployTarget{
				space: config.Fallback(dep.Space, space),
				dir:   dep.Directory,
				files: files,
			})
		}
		return targets, nil
	}
	return nil, errors.New("specify --file, --directory, or deployments in ccfm.yaml")
}

func main() {
	envFile := flag.String("env", ".env", "Path to environment file")
	configPath := flag.String("config", "", "Path to ccfm.yaml config file (default: ccfm.yaml if present)")

	domain := flag.String("domain", "", "Confluence domain")
	email := flag.String("email", "", "User email")
	token := flag.String("token", "", "API token (or set CONFLUENCE_TOKEN env var)")
	space := flag.String("space", "", "Space key")

	file := flag.String("file", "", "Single markdown file to deploy")
	directory := flag.String("directory", "", "Directory to deploy (recursive)")
	docsRoot := flag.String("docs-root", "", "Root documentation directory (default: docs)")
	gitRepoURL := flag.String("git-repo-url", "", "Git repo URL for CI banner")

	dump := flag.Bool("dump", false, "Write ADF to .adf.json files and skip deployment")
	planOnly := flag.Bool("plan", false, "Show what would be deployed without making any changes")
	changedOnly := flag.Bool("changed-only", false, "Only deploy files whose content has changed since last deploy")
	archiveOrphans := flag.Bool("archive-orphans", false, "Archive Confluence pages for markdown files that no longer exist on disk")
	diffMode := flag.Bool("diff", false, "Diff a local file's converted content against the live page (requires --file)")

	statePath := flag.String("state", "", "Path to state file (default: .ccfm-state.json)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && *envFile != ".env" {
		logrus.WithError(err).Warnf("could not load env file %s", *envFile)
	}

	// ccfm.yaml fills in whatever the flags leave unset.
	var deployments []config.Deployment
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = "ccfm.yaml"
	}
	if _, err := os.Stat(cfgPath); err == nil {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			logrus.WithError(err).Fatalf("error loading config file %s", cfgPath)
		}
		*domain = config.Fallback(*domain, cfg.Domain)
		*email = config.Fallback(*email, cfg.Email)
		*token = config.Fallback(*token, cfg.Token)
		*space = config.Fallback(*space, cfg.Space)
		*docsRoot = config.Fallback(*docsRoot, cfg.DocsRoot)
		*gitRepoURL = config.Fallback(*gitRepoURL, cfg.GitRepoURL)
		*statePath = config.Fallback(*statePath, cfg.StateFile)
		deployments = cfg.Deployments
	}
	// The env fallback runs after the env file load, so a token supplied
	// only through .env is picked up.
	*token = resolveToken(*token)
	if *docsRoot == "" {
		*docsRoot = "docs"
	}
	if *statePath == "" {
		*statePath = ".ccfm-state.json"
	}

	st := state.NewManager(*statePath)
	if err := st.Load(); err != nil {
		logrus.WithError(err).Fatal("could not load state file")
	}

	targets, err := buildTargets(*file, *directory, *space, deployments)
	if err != nil {
		logrus.WithError(err).Fatal("no deploy targets")
	}
	var allFiles []string
	for _, tgt := range targets {
		allFiles = append(allFiles, tgt.files...)
	}

	// Plan and dump modes never touch the API, so credentials are optional.
	if !*planOnly && !*dump {
		var missing []string
		for name, value := range map[string]string{"domain": *domain, "email": *email} {
			if value == "" {
				missing = append(missing, "--"+name)
			}
		}
		if *token == "" {
			missing = append(missing, "--token (or CONFLUENCE_TOKEN env var)")
		}
		for _, tgt := range targets {
			if tgt.space == "" {
				missing = append(missing, "--space")
				break
			}
		}
		if len(missing) > 0 {
			logrus.Fatalf("missing required arguments: %s", strings.Join(missing, ", "))
		}
	}

	if *planOnly {
		p := plan.Compute(st, allFiles, *docsRoot, *archiveOrphans)
		p.PrintSummary(os.Stdout)
		if p.HasChanges() {
			os.Exit(2)
		}
		return
	}

	if *changedOnly {
		total := 0
		for i := range targets {
			var changed []string
			for _, f := range targets[i].files {
				if st.HasChanged(state.RelPath(f), f) {
					changed = append(changed, f)
				}
			}
			targets[i].files = changed
			total += len(changed)
		}
		logrus.Infof("--changed-only: %d file(s) with changes", total)
	}

	ctx := context.Background()

	if *dump {
		logrus.Info("dump mode, ADF will be written to .adf.json files")
		d := deploy.NewDeployer(nil, "", *docsRoot, *gitRepoURL, true)
		for _, tgt := range targets {
			for _, f := range tgt.files {
				if _, err := d.DeployPage(ctx, "", f); err != nil {
					logrus.WithError(err).WithField("file", f).Error("dump failed")
				}
			}
		}
		return
	}

	client, err := deploy.NewClient(*domain, *email, *token)
	if err != nil {
		logrus.WithError(err).Fatal("could not create Confluence client")
	}

	if *diffMode {
		if *file == "" {
			logrus.Fatal("--diff requires --file")
		}
		spaceID, err := client.SpaceID(ctx, targets[0].space)
		if err != nil {
			logrus.WithError(err).Fatal("space lookup failed")
		}
		if err := runDiff(ctx, client, st, spaceID, *file); err != nil {
			logrus.WithError(err).Fatal("diff failed")
		}
		return
	}

	for _, tgt := range targets {
		logrus.WithField("space", tgt.space).Info("looking up space")
		spaceID, err := client.SpaceID(ctx, tgt.space)
		if err != nil {
			logrus.WithError(err).Fatal("space lookup failed")
		}
		logrus.WithField("space_id", spaceID).Info("space resolved")

		hierarchyRoot := *docsRoot
		if tgt.dir != "" {
			hierarchyRoot = tgt.dir
		}
		d := deploy.NewDeployer(client, spaceID, hierarchyRoot, *gitRepoURL, false)

		record := func(path, pageID string) {
			hash, err := state.ComputeHash(path)
			if err != nil {
				logrus.WithError(err).WithField("file", path).Warn("could not hash deployed file")
				return
			}
			st.SetPage(state.RelPath(path), pageID, deploy.DeriveTitle(path), tgt.space, spaceID, hash)
			if err := st.Save(); err != nil {
				logrus.WithError(err).Warn("could not save state file")
			}
		}

		if tgt.dir == "" {
			for _, f := range tgt.files {
				parentID, err := d.EnsurePageHierarchy(ctx, f)
				if err != nil {
					logrus.WithError(err).Fatal("hierarchy setup failed")
				}
				pageID, err := d.DeployPage(ctx, parentID, f)
				if err != nil {
					logrus.WithError(err).Fatal("deploy failed")
				}
				if pageID != "" {
					record(f, pageID)
				}
			}
			continue
		}

		results, err := d.DeployTree(ctx, tgt.dir)
		if err != nil {
			logrus.WithError(err).Fatal("deploy failed")
		}
		for _, r := range results {
			if r.PageID != "" {
				record(r.Path, r.PageID)
			}
		}
	}

	if *archiveOrphans {
		orphans := st.FindOrphans(allFiles, *docsRoot)
		if len(orphans) == 0 {
			logrus.Info("no orphaned pages found")
		} else {
			logrus.Infof("archiving %d orphaned page(s)", len(orphans))
			for _, relPath := range orphans {
				entry := st.Page(relPath)
				if entry == nil {
					continue
				}
				if err := client.ArchivePage(ctx, entry.PageID, entry.Title); err != nil {
					logrus.WithError(err).WithField("page", entry.Title).Error("archive failed")
					continue
				}
				st.RemovePage(relPath)
				if err := st.Save(); err != nil {
					logrus.WithError(err).Warn("could not save state file")
				}
			}
		}
	}

	logrus.Info("deployment complete")
}

// runDiff renders the local file and the live page to markdown and prints a
// semantic line diff between them.
func runDiff(ctx context.Context, client *deploy.Client, st *state.Manager, spaceID, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	meta, markdown := deploy.ParseFrontmatter(string(raw))

	title := meta.Title
	if title == "" {
		title = deploy.DeriveTitle(path)
	}

	pageID := ""
	if entry := st.Page(state.RelPath(path)); entry != nil {
		pageID = entry.PageID
	}
	if pageID == "" {
		pageID, err = client.FindPageByTitle(ctx, spaceID, title)
		if err != nil {
			return err
		}
	}
	if pageID == "" {
		return fmt.Errorf("no live page found for %q", title)
	}

	liveTitle, liveMarkdown, err := client.GetPageMarkdown(ctx, pageID)
	if err != nil {
		return err
	}

	localMarkdown := adf.RenderDocument(adf.Convert(markdown))

	fmt.Printf("Comparing %s against page %q (ID: %s)\n\n", filepath.Base(path), liveTitle, pageID)
	if liveTitle != title {
		fmt.Println("Title Changes:")
		fmt.Printf("- %s\n", liveTitle)
		fmt.Printf("+ %s\n\n", title)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(liveMarkdown, localMarkdown, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	fmt.Println("Content Changes:")
	fmt.Println("=================")
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Println("- " + strings.ReplaceAll(d.Text, "\n", "\n- "))
		case diffmatchpatch.DiffInsert:
			fmt.Println("+ " + strings.ReplaceAll(d.Text, "\n", "\n+ "))
		case diffmatchpatch.DiffEqual:
			fmt.Println("  " + strings.ReplaceAll(d.Text, "\n", "\n  "))
		}
	}
	return nil
}
