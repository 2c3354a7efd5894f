package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/ccfm/pkg/adf"
)

// PageContentFile is the per-directory markdown file that turns a container
// page into a full page with front matter.
const PageContentFile = ".page_content.md"

// Deployer drives page deployment for one target space. Client may be nil
// in dump mode, where no API calls are made.
type Deployer struct {
	Client     *Client
	SpaceID    string
	DocsRoot   string
	GitRepoURL string
	Dump       bool

	log *logrus.Entry
}

// NewDeployer wires a deployer for the given space.
func NewDeployer(client *Client, spaceID, docsRoot, gitRepoURL string, dump bool) *Deployer {
	return &Deployer{
		Client:     client,
		SpaceID:    spaceID,
		DocsRoot:   docsRoot,
		GitRepoURL: gitRepoURL,
		Dump:       dump,
		log:        logrus.WithField("component", "deploy"),
	}
}

// DeriveTitle returns the page title for a markdown file: the front matter
// title when present, otherwise the filename stem with dashes replaced by
// spaces and each word capitalized.
func DeriveTitle(path string) string {
	if raw, err := os.ReadFile(path); err == nil {
		meta, _ := ParseFrontmatter(string(raw))
		if meta.Title != "" {
			return meta.Title
		}
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return titleCase(strings.ReplaceAll(stem, "-", " "))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// ListMarkdownFiles returns all *.md files under root in sorted order,
// excluding the container page content files.
func ListMarkdownFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") && d.Name() != PageContentFile {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	sort.Strings(files)
	return files, nil
}

// DeployPage deploys one markdown file and returns the page ID, or "" when
// the page was skipped (deploy_page: false) or only dumped.
//
// The attachment flow has three steps forced by the API: create the page
// first to obtain the pageId the attachment collection needs, upload
// attachments through v1 to get attachment IDs plus fileIds from v2, then
// update the page with file media nodes.
func (d *Deployer) DeployPage(ctx context.Context, parentID, path string) (string, error) {
	log := d.log.WithField("file", filepath.Base(path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	meta, markdown := ParseFrontmatter(string(raw))

	if !meta.DeployPage {
		log.Info("skipping, deploy_page is false")
		return "", nil
	}

	title := meta.Title
	if title == "" {
		title = DeriveTitle(path)
	}
	log.WithFields(logrus.Fields{"title": title, "status": meta.PageStatus}).Info("processing page")

	fileGitURL := ""
	if d.GitRepoURL != "" {
		fileGitURL = d.GitRepoURL + "/" + filepath.ToSlash(path)
	}

	doc := adf.Convert(markdown)
	if meta.CIBanner {
		AddCIBanner(doc, fileGitURL, meta.CIBannerText, meta)
	}

	if d.Dump {
		return "", d.dumpADF(path, doc)
	}

	ResolvePageLinks(ctx, doc, d.Client, d.SpaceID)

	if meta.Parent != "" {
		overrideID, err := d.Client.FindPageByTitle(ctx, d.SpaceID, meta.Parent)
		if err != nil {
			return "", err
		}
		if overrideID != "" {
			parentID = overrideID
			log.WithField("parent", meta.Parent).Info("parent override from front matter")
		} else {
			log.WithField("parent", meta.Parent).Warn("parent page not found, using directory hierarchy")
		}
	}

	pageID, err := d.Client.FindPageByTitle(ctx, d.SpaceID, title)
	if err != nil {
		return "", err
	}
	if pageID != "" {
		log.WithField("page_id", pageID).Info("updating existing page")
		if err := d.Client.UpdatePage(ctx, pageID, title, doc, meta.PageStatus); err != nil {
			return "", err
		}
	} else {
		log.Info("creating new page")
		pageID, err = d.Client.CreatePage(ctx, d.SpaceID, parentID, title, doc, meta.PageStatus)
		if err != nil {
			return "", err
		}
	}

	d.Client.AddLabels(ctx, pageID, labelsWithAuthor(meta))

	if len(meta.Attachments) > 0 {
		attachments := d.uploadAttachments(ctx, pageID, path, meta.Attachments)
		if len(attachments) > 0 {
			log.WithField("count", len(attachments)).Info("resolving attachment media nodes")
			ResolveAttachmentMediaNodes(doc, attachments, pageID)
			if err := d.Client.UpdatePage(ctx, pageID, title, doc, meta.PageStatus); err != nil {
				return "", err
			}
		}
	}

	log.WithField("page_id", pageID).Info("page deployed")
	return pageID, nil
}

func labelsWithAuthor(meta Metadata) []string {
	labels := append([]string{}, meta.Labels...)
	if meta.Author != "" {
		author := strings.ReplaceAll(strings.ToLower(meta.Author), " ", "-")
		labels = append(labels, "author-"+author)
	}
	return labels
}

func (d *Deployer) dumpADF(path string, doc *adf.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode ADF")
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".adf.json"
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}
	d.log.WithField("file", out).Info("ADF written, skipping deployment")
	return nil
}

// uploadAttachments runs the v1 upload + v2 fileId fetch for each declared
// attachment and returns the map the media rewrite needs. Failures are
// logged and skipped so one broken attachment does not sink the page.
func (d *Deployer) uploadAttachments(ctx context.Context, pageID, pagePath string, attachments []Attachment) map[string]AttachmentRef {
	dir, err := filepath.Abs(filepath.Dir(pagePath))
	if err != nil {
		d.log.WithError(err).Warn("could not resolve attachment directory")
		return nil
	}

	out := map[string]AttachmentRef{}
	for _, att := range attachments {
		resolved, err := filepath.Abs(filepath.Join(dir, att.Path))
		if err != nil || !strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			// Path traversal guard: the attachment must stay inside the
			// page's directory.
			d.log.WithField("path", att.Path).Error("skipping unsafe attachment path")
			continue
		}
		if _, err := os.Stat(resolved); err != nil {
			d.log.WithField("path", att.Path).Warn("attachment not found")
			continue
		}

		name := filepath.Base(resolved)
		d.log.WithField("attachment", name).Info("uploading attachment")

		attachmentID, err := d.Client.UploadAttachment(ctx, pageID, resolved)
		if err != nil {
			d.log.WithError(err).WithField("attachment", name).Warn("upload failed")
			continue
		}
		fileID, err := d.Client.AttachmentFileID(ctx, attachmentID)
		if err != nil || fileID == "" {
			d.log.WithField("attachment", name).Warn("could not get fileId")
			continue
		}

		out[name] = AttachmentRef{ID: attachmentID, FileID: fileID, DisplayWidth: att.Width}
	}
	return out
}

// EnsurePageHierarchy creates container pages for each directory between
// DocsRoot and the file, returning the immediate parent's page ID. A
// directory with a .page_content.md file becomes a full page; otherwise a
// placeholder page is created. Files directly under DocsRoot get no parent.
func (d *Deployer) EnsurePageHierarchy(ctx context.Context, path string) (string, error) {
	rel, err := filepath.Rel(d.DocsRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", nil
	}

	dir := filepath.Dir(rel)
	if dir == "." {
		return "", nil
	}

	parentID := ""
	parts := strings.Split(dir, string(filepath.Separator))
	for i, dirName := range parts {
		currentDir := filepath.Join(append([]string{d.DocsRoot}, parts[:i+1]...)...)
		contentFile := filepath.Join(currentDir, PageContentFile)

		title := dirName
		status := "current"
		var doc *adf.Document
		var labels []string

		if raw, err := os.ReadFile(contentFile); err == nil {
			d.log.WithField("page", dirName).Info("ensuring container page with content")
			meta, markdown := ParseFrontmatter(string(raw))
			if meta.Title != "" {
				title = meta.Title
			}
			status = meta.PageStatus
			doc = adf.Convert(markdown)
			if meta.CIBanner {
				fileGitURL := ""
				if d.GitRepoURL != "" {
					fileGitURL = d.GitRepoURL + "/" + filepath.ToSlash(contentFile)
				}
				AddCIBanner(doc, fileGitURL, meta.CIBannerText, meta)
			}
			labels = labelsWithAuthor(meta)
		} else {
			d.log.WithField("page", dirName).Info("ensuring placeholder page")
			doc = adf.Convert(fmt.Sprintf("# %s\n\nContainer page for %s content.", dirName, dirName))
		}

		pageID, err := d.Client.FindPageByTitle(ctx, d.SpaceID, title)
		if err != nil {
			return "", err
		}
		if pageID != "" {
			// Refresh container pages that have real content.
			if _, statErr := os.Stat(contentFile); statErr == nil {
				if err := d.Client.UpdatePage(ctx, pageID, title, doc, status); err != nil {
					return "", err
				}
				if len(labels) > 0 {
					d.Client.AddLabels(ctx, pageID, labels)
				}
			}
			parentID = pageID
		} else {
			pageID, err = d.Client.CreatePage(ctx, d.SpaceID, parentID, title, doc, status)
			if err != nil {
				return "", err
			}
			if len(labels) > 0 {
				d.Client.AddLabels(ctx, pageID, labels)
			}
			parentID = pageID
		}
	}
	return parentID, nil
}

// Result pairs a deployed file with the page it produced.
type Result struct {
	Path   string
	PageID string
}

// DeployTree deploys every markdown file under root. Per-file errors are
// logged and skipped so the rest of the tree still deploys.
func (d *Deployer) DeployTree(ctx context.Context, root string) ([]Result, error) {
	files, err := ListMarkdownFiles(root)
	if err != nil {
		return nil, err
	}
	d.log.WithField("count", len(files)).Info("deploying markdown tree")

	var results []Result
	for _, path := range files {
		parentID := ""
		if !d.Dump {
			parentID, err = d.EnsurePageHierarchy(ctx, path)
			if err != nil {
				d.log.WithError(err).WithField("file", path).Error("hierarchy setup failed")
				continue
			}
		}
		pageID, err := d.DeployPage(ctx, parentID, path)
		if err != nil {
			d.log.WithError(err).WithField("file", path).Error("deploy failed")
			continue
		}
		results = append(results, Result{Path: path, PageID: pageID})
	}
	return results, nil
}
