package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	confluence "github.com/ctreminiom/go-atlassian/confluence/v2"
	"github.com/ctreminiom/go-atlassian/pkg/infra/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/athapong/ccfm/pkg/adf"
)

// Timeouts for Confluence API calls. CI jobs must not hang when the API is
// slow or unresponsive; uploads get longer because attachments can be large.
const (
	requestTimeout = 30 * time.Second
	uploadTimeout  = 60 * time.Second
)

// Client talks to Confluence Cloud. Page reads, updates and title searches
// go through go-atlassian's v2 client. The endpoints the library does not
// cover cleanly (space lookup, create-with-parent, attachments, labels,
// archive) use the REST API directly.
type Client struct {
	domain string
	email  string
	token  string

	api  *confluence.Client
	http *http.Client
	log  *logrus.Entry
}

// NewClient builds a client for the given Confluence Cloud site.
func NewClient(domain, email, token string) (*Client, error) {
	api, err := confluence.New(nil, "https://"+domain)
	if err != nil {
		return nil, errors.Wrap(err, "create confluence client")
	}
	api.Auth.SetBasicAuth(email, token)

	return &Client{
		domain: domain,
		email:  email,
		token:  token,
		api:    api,
		http:   &http.Client{Timeout: requestTimeout},
		log:    logrus.WithField("component", "confluence"),
	}, nil
}

// rest performs a raw REST call with basic auth and returns the parsed
// response body plus the HTTP status code.
func (c *Client) rest(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (gjson.Result, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return gjson.Result{}, 0, errors.Wrap(err, "build request")
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, 0, errors.Wrapf(err, "%s %s", method, rawURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, resp.StatusCode, errors.Wrap(err, "read response")
	}
	return gjson.ParseBytes(raw), resp.StatusCode, nil
}

func (c *Client) v2URL(path string) string {
	return fmt.Sprintf("https://%s/wiki/api/v2%s", c.domain, path)
}

func (c *Client) v1URL(path string) string {
	return fmt.Sprintf("https://%s/wiki/rest/api%s", c.domain, path)
}

// SpaceID resolves a space key to its numeric space ID.
func (c *Client) SpaceID(ctx context.Context, spaceKey string) (string, error) {
	u := c.v2URL("/spaces") + "?keys=" + url.QueryEscape(spaceKey)
	result, status, err := c.rest(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", errors.Errorf("space lookup failed with status %d: %s", status, result.Raw)
	}

	id := result.Get("results.0.id")
	if !id.Exists() {
		return "", errors.Errorf("space %q not found", spaceKey)
	}
	return id.String(), nil
}

// FindPageByTitle returns the ID of the page with the given title in the
// space, or "" when no such page exists.
func (c *Client) FindPageByTitle(ctx context.Context, spaceID, title string) (string, error) {
	spaceIDInt, err := strconv.Atoi(spaceID)
	if err != nil {
		return "", errors.Wrapf(err, "invalid space ID %q", spaceID)
	}

	options := &models.PageOptionsScheme{
		SpaceIDs: []int{spaceIDInt},
		Title:    title,
	}
	chunk, response, err := c.api.Page.Gets(ctx, options, "", 1)
	if err != nil {
		if response != nil {
			return "", errors.Errorf("page search failed with status %d: %v", response.Code, err)
		}
		return "", errors.Wrap(err, "page search failed")
	}
	if len(chunk.Results) == 0 {
		return "", nil
	}
	return chunk.Results[0].ID, nil
}

// FindPageWebUIURL finds a page by title and returns its canonical webui
// URL. The v2 _links.webui value carries the space key and title slug that
// Confluence's serializer requires; building the URL by hand from the page
// ID loses the slug. Returns "" when the page is not found.
func (c *Client) FindPageWebUIURL(ctx context.Context, spaceID, title string) (string, error) {
	u := c.v2URL("/pages") + "?space-id=" + url.QueryEscape(spaceID) +
		"&title=" + url.QueryEscape(title) + "&limit=1"
	result, status, err := c.rest(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", errors.Errorf("page lookup failed with status %d", status)
	}

	webui := result.Get("results.0._links.webui").String()
	if webui == "" {
		return "", nil
	}
	return "https://" + c.domain + webui, nil
}

// CreatePage creates a page and returns its ID. parentID may be empty for
// top-level pages.
func (c *Client) CreatePage(ctx context.Context, spaceID, parentID, title string, doc *adf.Document, status string) (string, error) {
	bodyValue, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "marshal ADF body")
	}

	payload := map[string]interface{}{
		"spaceId": spaceID,
		"status":  status,
		"title":   title,
		"body": map[string]string{
			"representation": "atlas_doc_format",
			"value":          string(bodyValue),
		},
	}
	if parentID != "" {
		payload["parentId"] = parentID
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal page payload")
	}

	result, statusCode, err := c.rest(ctx, http.MethodPost, c.v2URL("/pages"), bytes.NewReader(raw), "application/json")
	if err != nil {
		return "", err
	}
	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		return "", errors.Errorf("create page %q failed with status %d: %s", title, statusCode, result.Raw)
	}
	return result.Get("id").String(), nil
}

// UpdatePage replaces a page's body and title, bumping the version.
func (c *Client) UpdatePage(ctx context.Context, pageID, title string, doc *adf.Document, status string) error {
	pageIDInt, err := strconv.Atoi(pageID)
	if err != nil {
		return errors.Wrapf(err, "invalid page ID %q", pageID)
	}

	page, response, err := c.api.Page.Get(ctx, pageIDInt, "atlas_doc_format", false, -1)
	if err != nil {
		if response != nil {
			return errors.Errorf("get page failed: %s (endpoint: %s)", response.Bytes.String(), response.Endpoint)
		}
		return errors.Wrap(err, "get page failed")
	}
	if page == nil || page.Version == nil {
		return errors.Errorf("no version information for page %s", pageID)
	}

	bodyValue, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal ADF body")
	}

	payload := &models.PageUpdatePayloadScheme{
		ID:     pageIDInt,
		Status: status,
		Title:  title,
		Body: &models.PageBodyRepresentationScheme{
			Representation: "atlas_doc_format",
			Value:          string(bodyValue),
		},
		Version: &models.PageUpdatePayloadVersionScheme{
			Number:  page.Version.Number + 1,
			Message: fmt.Sprintf("Updated to version %d", page.Version.Number+1),
		},
	}
	if spaceIDInt, err := strconv.Atoi(page.SpaceID); err == nil {
		payload.SpaceID = spaceIDInt
	}

	_, response, err = c.api.Page.Update(ctx, pageIDInt, payload)
	if err != nil {
		if response != nil {
			return errors.Errorf("update page failed: %s (endpoint: %s)", response.Bytes.String(), response.Endpoint)
		}
		return errors.Wrap(err, "update page failed")
	}
	return nil
}

// GetPageMarkdown fetches a page's ADF body and renders it back to
// markdown, for the diff command. Returns the title and rendered body.
func (c *Client) GetPageMarkdown(ctx context.Context, pageID string) (string, string, error) {
	pageIDInt, err := strconv.Atoi(pageID)
	if err != nil {
		return "", "", errors.Wrapf(err, "invalid page ID %q", pageID)
	}

	page, response, err := c.api.Page.Get(ctx, pageIDInt, "atlas_doc_format", false, -1)
	if err != nil {
		if response != nil {
			return "", "", errors.Errorf("get page failed: %s (endpoint: %s)", response.Bytes.String(), response.Endpoint)
		}
		return "", "", errors.Wrap(err, "get page failed")
	}
	if page == nil {
		return "", "", errors.Errorf("no content returned for page %s", pageID)
	}

	var markdown string
	if page.Body != nil && page.Body.AtlasDocFormat != nil {
		var doc adf.Document
		if err := json.Unmarshal([]byte(page.Body.AtlasDocFormat.Value), &doc); err != nil {
			return "", "", errors.Wrap(err, "parse ADF content")
		}
		markdown = adf.RenderDocument(&doc)
	}
	return page.Title, markdown, nil
}

// ArchivePage moves a page to the archive. The v2 API has no archive
// endpoint, so this goes through the v1 bulk archive operation.
func (c *Client) ArchivePage(ctx context.Context, pageID, title string) error {
	pageIDInt, err := strconv.Atoi(pageID)
	if err != nil {
		return errors.Wrapf(err, "invalid page ID %q", pageID)
	}

	raw, err := json.Marshal(map[string]interface{}{
		"pages": []map[string]int{{"id": pageIDInt}},
	})
	if err != nil {
		return errors.Wrap(err, "marshal archive payload")
	}

	result, status, err := c.rest(ctx, http.MethodPost, c.v1URL("/content/archive"), bytes.NewReader(raw), "application/json")
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return errors.Errorf("archive page %q failed with status %d: %s", title, status, result.Raw)
	}

	c.log.WithFields(logrus.Fields{"page_id": pageID, "title": title}).Info("page archived")
	return nil
}

// AddLabels attaches labels to a page through the v1 API, which is still
// the only label write endpoint. The managed-by-ci label is always added so
// generated pages stay identifiable in Confluence.
func (c *Client) AddLabels(ctx context.Context, pageID string, labels []string) {
	all := append([]string{}, labels...)
	managed := false
	for _, l := range all {
		if l == "managed-by-ci" {
			managed = true
		}
	}
	if !managed {
		all = append(all, "managed-by-ci")
	}

	payload := make([]map[string]string, 0, len(all))
	for _, label := range all {
		payload = append(payload, map[string]string{"prefix": "global", "name": label})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.WithError(err).Warn("could not encode labels")
		return
	}

	_, status, err := c.rest(ctx, http.MethodPost, c.v1URL("/content/"+pageID+"/label"), bytes.NewReader(raw), "application/json")
	if err != nil {
		c.log.WithError(err).Warn("could not add labels")
		return
	}
	// 400 means a label already exists; that is fine.
	if status != http.StatusOK && status != http.StatusBadRequest {
		c.log.WithField("status", status).Warn("could not add labels")
	}
}

// UploadAttachment uploads a file to a page through the v1 API and returns
// the attachment ID. v2 has no attachment POST endpoint yet
// (CONFCLOUD-77196), and the v1 response lacks the Media Services fileId,
// which must be fetched separately via AttachmentFileID.
func (c *Client) UploadAttachment(ctx context.Context, pageID, path string) (string, error) {
	baseURL := c.v1URL("/content/" + pageID + "/child/attachment")
	filename := filepath.Base(path)

	// An existing attachment with the same filename is updated in place.
	existing, status, err := c.rest(ctx, http.MethodGet, baseURL+"?filename="+url.QueryEscape(filename), nil, "")
	if err != nil {
		return "", err
	}
	uploadURL := baseURL
	existingID := ""
	if status == http.StatusOK {
		if id := existing.Get("results.0.id"); id.Exists() {
			existingID = id.String()
			uploadURL = baseURL + "/" + existingID + "/data"
			c.log.WithField("attachment_id", existingID).Info("attachment exists, updating")
		}
	}

	fh, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open attachment %s", path)
	}
	defer fh.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "build multipart form")
	}
	if _, err := io.Copy(part, fh); err != nil {
		return "", errors.Wrap(err, "read attachment")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "finalize multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "nocheck")

	client := &http.Client{Timeout: uploadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", filename)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read upload response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.Errorf("upload %s failed with status %d: %s", filename, resp.StatusCode, raw)
	}

	result := gjson.ParseBytes(raw)

	// The create endpoint wraps the attachment in a results array; the
	// update endpoint returns a single object.
	if id := result.Get("results.0.id"); id.Exists() {
		return id.String(), nil
	}
	if id := result.Get("id"); id.Exists() {
		return id.String(), nil
	}
	if existingID != "" {
		return existingID, nil
	}
	return "", errors.Errorf("upload %s returned no attachment ID", filename)
}

// AttachmentFileID fetches the Media Services fileId for an attachment.
// The v1 upload response does not include it, and ADF media nodes cannot
// reference an attachment without it. Returns "" when unavailable.
func (c *Client) AttachmentFileID(ctx context.Context, attachmentID string) (string, error) {
	result, status, err := c.rest(ctx, http.MethodGet, c.v2URL("/attachments/"+attachmentID), nil, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		c.log.WithFields(logrus.Fields{"attachment_id": attachmentID, "status": status}).
			Warn("could not fetch attachment fileId")
		return "", nil
	}
	return result.Get("fileId").String(), nil
}
