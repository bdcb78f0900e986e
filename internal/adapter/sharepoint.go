package adapter

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/webitel/document-exporter/internal/model"
)

const sharePointDefaultFolder = "Shared Documents"

// SharePoint publishes files into a document library through the SharePoint
// REST API. Credentials: "token" (bearer access token).
type SharePoint struct {
	client *http.Client
}

func NewSharePoint(client *http.Client) *SharePoint {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &SharePoint{client: client}
}

func (s *SharePoint) Type() model.IntegrationType { return model.IntegrationSharePoint }

func (s *SharePoint) Connect(ctx context.Context, cfg model.IntegrationConfig) error {
	req, err := s.request(ctx, http.MethodGet, cfg, "/_api/web", nil)
	if err != nil {
		return err
	}
	// Any refusal during the connection check means the target is unusable.
	return Fatal(s.target(cfg), do(s.client, req, s.target(cfg), nil))
}

func (s *SharePoint) Transfer(ctx context.Context, file model.File, cfg model.IntegrationConfig) (string, error) {
	folder := s.folder(cfg)
	path := "/_api/web/GetFolderByServerRelativeUrl('" + odataQuote(folder) + "')/Files/add(url='" +
		odataQuote(file.Name) + "',overwrite=true)"
	req, err := s.request(ctx, http.MethodPost, cfg, path, bytes.NewReader(file.Data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", file.MimeType)

	var out struct {
		ServerRelativeURL string `json:"ServerRelativeUrl"`
	}
	if err := do(s.client, req, s.target(cfg), &out); err != nil {
		return "", err
	}
	if out.ServerRelativeURL == "" {
		return strings.TrimRight(cfg.SiteURL, "/") + "/" + escapePath(folder) + "/" + url.PathEscape(file.Name), nil
	}
	return siteOrigin(cfg.SiteURL) + escapePath(out.ServerRelativeURL), nil
}

func (s *SharePoint) Stat(ctx context.Context, cfg model.IntegrationConfig) (model.SyncStats, error) {
	path := "/_api/web/GetFolderByServerRelativeUrl('" + odataQuote(s.folder(cfg)) + "')/Files?$select=Length"
	req, err := s.request(ctx, http.MethodGet, cfg, path, nil)
	if err != nil {
		return model.SyncStats{}, err
	}
	var out struct {
		Value []struct {
			Length int64 `json:"Length,string"`
		} `json:"value"`
	}
	if err := do(s.client, req, s.target(cfg), &out); err != nil {
		return model.SyncStats{}, err
	}
	stats := model.SyncStats{Documents: int64(len(out.Value))}
	for _, f := range out.Value {
		stats.StorageUsed += f.Length
	}
	return stats, nil
}

func (s *SharePoint) request(ctx context.Context, method string, cfg model.IntegrationConfig, path string, body io.Reader) (*http.Request, error) {
	if cfg.SiteURL == "" {
		return nil, Fatal(s.target(cfg), stderrors.New("site url is not configured"))
	}
	req, err := newRequest(ctx, method, strings.TrimRight(cfg.SiteURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json;odata=nometadata")
	if token := credential(cfg.Credentials, "token"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (s *SharePoint) folder(cfg model.IntegrationConfig) string {
	folder := strings.Trim(cfg.FolderPath, "/")
	if folder == "" {
		return sharePointDefaultFolder
	}
	return folder
}

func (s *SharePoint) target(cfg model.IntegrationConfig) string {
	return "sharepoint " + cfg.SiteURL
}

// odataQuote escapes a string literal for an OData key segment.
func odataQuote(s string) string {
	return url.PathEscape(strings.ReplaceAll(s, "'", "''"))
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func siteOrigin(site string) string {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return strings.TrimRight(site, "/")
	}
	return u.Scheme + "://" + u.Host
}
