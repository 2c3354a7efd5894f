// Package deploy publishes converted ADF documents to Confluence Cloud:
// front-matter handling, the REST client, post-conversion tree transforms,
// and the page/tree orchestration.
package deploy

import (
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/sirupsen/logrus"
)

// Attachment is one entry of page_meta.attachments. It accepts either a bare
// path string or a mapping with path, alt and width keys.
type Attachment struct {
	Path  string
	Alt   string
	Width string
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (a *Attachment) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var path string
	if err := unmarshal(&path); err == nil {
		a.Path = path
		return nil
	}
	var m struct {
		Path  string `yaml:"path"`
		Alt   string `yaml:"alt"`
		Width string `yaml:"width"`
	}
	if err := unmarshal(&m); err != nil {
		return err
	}
	a.Path = m.Path
	a.Alt = m.Alt
	a.Width = m.Width
	return nil
}

// Metadata is the normalized front matter of a markdown page.
type Metadata struct {
	// page_meta
	Title       string
	Author      string
	Labels      []string
	Attachments []Attachment
	Parent      string

	// deploy_config
	CIBanner            bool
	CIBannerText        string
	IncludePageMetadata bool
	PageStatus          string
	DeployPage          bool
}

type rawFrontmatter struct {
	PageMeta struct {
		Title       string       `yaml:"title"`
		Author      string       `yaml:"author"`
		Labels      []string     `yaml:"labels"`
		Attachments []Attachment `yaml:"attachments"`
		Parent      string       `yaml:"parent"`
	} `yaml:"page_meta"`
	DeployConfig struct {
		CIBanner            *bool  `yaml:"ci_banner"`
		CIBannerText        string `yaml:"ci_banner_text"`
		IncludePageMetadata *bool  `yaml:"include_page_metadata"`
		PageStatus          string `yaml:"page_status"`
		DeployPage          *bool  `yaml:"deploy_page"`
	} `yaml:"deploy_config"`
}

// ParseFrontmatter splits YAML front matter from a markdown document and
// returns the normalized metadata plus the remaining body. Missing or broken
// front matter degrades to defaults with the full content returned as body.
func ParseFrontmatter(content string) (Metadata, string) {
	meta := Metadata{CIBanner: true, PageStatus: "current", DeployPage: true}

	var raw rawFrontmatter
	rest, err := frontmatter.Parse(strings.NewReader(content), &raw)
	if err != nil {
		logrus.WithError(err).Warn("could not parse front matter, treating file as plain markdown")
		return meta, content
	}

	meta.Title = raw.PageMeta.Title
	meta.Author = raw.PageMeta.Author
	meta.Labels = raw.PageMeta.Labels
	meta.Attachments = raw.PageMeta.Attachments
	meta.Parent = raw.PageMeta.Parent

	if raw.DeployConfig.CIBanner != nil {
		meta.CIBanner = *raw.DeployConfig.CIBanner
	}
	meta.CIBannerText = raw.DeployConfig.CIBannerText
	if raw.DeployConfig.IncludePageMetadata != nil {
		meta.IncludePageMetadata = *raw.DeployConfig.IncludePageMetadata
	}
	if raw.DeployConfig.PageStatus != "" {
		meta.PageStatus = raw.DeployConfig.PageStatus
	}
	if raw.DeployConfig.DeployPage != nil {
		meta.DeployPage = *raw.DeployConfig.DeployPage
	}

	if meta.PageStatus != "current" && meta.PageStatus != "draft" {
		logrus.WithField("page_status", meta.PageStatus).Warn("invalid page_status, using current")
		meta.PageStatus = "current"
	}

	return meta, strings.TrimSpace(string(rest))
}
