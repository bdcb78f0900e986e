package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/webitel/document-exporter/internal/model"
)

// Confluence publishes into a Confluence space. The folder path is
// "SPACEKEY" or "SPACEKEY/parentPageId". HTML files become child pages,
// every other format is attached to the parent page.
//
// Credentials: "email" + "token" for basic auth, or "token" alone as a bearer token.
type Confluence struct {
	client *http.Client
}

func NewConfluence(client *http.Client) *Confluence {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Confluence{client: client}
}

func (c *Confluence) Type() model.IntegrationType { return model.IntegrationConfluence }

type confluenceLinks struct {
	Base     string `json:"base"`
	WebUI    string `json:"webui"`
	Download string `json:"download"`
}

func (c *Confluence) Connect(ctx context.Context, cfg model.IntegrationConfig) error {
	space, _, err := c.location(cfg)
	if err != nil {
		return err
	}
	req, err := c.request(ctx, http.MethodGet, cfg, "/wiki/rest/api/space/"+url.PathEscape(space), nil)
	if err != nil {
		return err
	}
	return Fatal(c.target(cfg), do(c.client, req, c.target(cfg), nil))
}

func (c *Confluence) Transfer(ctx context.Context, file model.File, cfg model.IntegrationConfig) (string, error) {
	space, parent, err := c.location(cfg)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(file.MimeType, "text/html") {
		return c.createPage(ctx, file, cfg, space, parent)
	}
	if parent == "" {
		return "", Fatal(c.target(cfg), stderrors.New("attachments need a parent page in the folder path"))
	}
	return c.attach(ctx, file, cfg, parent)
}

func (c *Confluence) createPage(ctx context.Context, file model.File, cfg model.IntegrationConfig, space, parent string) (string, error) {
	type ref struct {
		ID string `json:"id"`
	}
	page := map[string]any{
		"type":  "page",
		"title": strings.TrimSuffix(file.Name, ".html"),
		"space": map[string]string{"key": space},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          string(file.Data),
				"representation": "storage",
			},
		},
	}
	if parent != "" {
		page["ancestors"] = []ref{{ID: parent}}
	}
	body, err := json.Marshal(page)
	if err != nil {
		return "", err
	}
	req, err := c.request(ctx, http.MethodPost, cfg, "/wiki/rest/api/content", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID    string          `json:"id"`
		Links confluenceLinks `json:"_links"`
	}
	if err := do(c.client, req, c.target(cfg), &out); err != nil {
		return "", err
	}
	return c.link(cfg, out.Links, out.Links.WebUI), nil
}

func (c *Confluence) attach(ctx context.Context, file model.File, cfg model.IntegrationConfig, parent string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	path := "/wiki/rest/api/content/" + url.PathEscape(parent) + "/child/attachment"
	req, err := c.request(ctx, http.MethodPut, cfg, path, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	var out struct {
		Results []struct {
			ID    string          `json:"id"`
			Links confluenceLinks `json:"_links"`
		} `json:"results"`
		Links confluenceLinks `json:"_links"`
	}
	if err := do(c.client, req, c.target(cfg), &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", fmt.Errorf("confluence accepted %s but returned no attachment", file.Name)
	}
	att := out.Results[0].Links
	if att.Base == "" {
		att.Base = out.Links.Base
	}
	return c.link(cfg, att, att.Download), nil
}

func (c *Confluence) Stat(ctx context.Context, cfg model.IntegrationConfig) (model.SyncStats, error) {
	space, parent, err := c.location(cfg)
	if err != nil {
		return model.SyncStats{}, err
	}
	path := "/wiki/rest/api/content?type=page&limit=200&spaceKey=" + url.QueryEscape(space)
	if parent != "" {
		path = "/wiki/rest/api/content/" + url.PathEscape(parent) + "/child/attachment?limit=200"
	}
	req, err := c.request(ctx, http.MethodGet, cfg, path, nil)
	if err != nil {
		return model.SyncStats{}, err
	}
	var out struct {
		Results []struct {
			Extensions struct {
				FileSize int64 `json:"fileSize"`
			} `json:"extensions"`
		} `json:"results"`
	}
	if err := do(c.client, req, c.target(cfg), &out); err != nil {
		return model.SyncStats{}, err
	}
	stats := model.SyncStats{Documents: int64(len(out.Results))}
	for _, r := range out.Results {
		stats.StorageUsed += r.Extensions.FileSize
	}
	return stats, nil
}

func (c *Confluence) location(cfg model.IntegrationConfig) (space, parent string, err error) {
	if cfg.SiteURL == "" {
		return "", "", Fatal(c.target(cfg), stderrors.New("site url is not configured"))
	}
	space, parent, _ = strings.Cut(strings.Trim(cfg.FolderPath, "/"), "/")
	if space == "" {
		return "", "", Fatal(c.target(cfg), stderrors.New("space key is not configured"))
	}
	return space, parent, nil
}

func (c *Confluence) request(ctx context.Context, method string, cfg model.IntegrationConfig, path string, body io.Reader) (*http.Request, error) {
	req, err := newRequest(ctx, method, strings.TrimRight(cfg.SiteURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	email, token := credential(cfg.Credentials, "email"), credential(cfg.Credentials, "token")
	switch {
	case email != "" && token != "":
		req.SetBasicAuth(email, token)
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// link joins the base URL returned by Confluence with a relative link.
func (c *Confluence) link(cfg model.IntegrationConfig, links confluenceLinks, rel string) string {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") {
		return rel
	}
	base := links.Base
	if base == "" {
		base = strings.TrimRight(cfg.SiteURL, "/") + "/wiki"
	}
	return strings.TrimRight(base, "/") + rel
}

func (c *Confluence) target(cfg model.IntegrationConfig) string {
	return "confluence " + cfg.SiteURL
}
