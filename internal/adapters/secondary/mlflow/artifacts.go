package mlflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"mlflow-migrate/internal/core/domain"
)

const (
	proxiedArtifactScheme = "mlflow-artifacts"
	artifactsProxyPrefix  = "/api/2.0/mlflow-artifacts/artifacts"
)

func (c *Client) ListArtifacts(ctx context.Context, runID, dir string) ([]domain.FileInfo, error) {
	var files []domain.FileInfo
	token := ""
	for {
		query := url.Values{"run_id": {runID}}
		if dir != "" {
			query.Set("path", dir)
		}
		if token != "" {
			query.Set("page_token", token)
		}
		var resp struct {
			Files         []fileInfoJSON `json:"files"`
			NextPageToken string         `json:"next_page_token"`
		}
		if err := c.get(ctx, "/artifacts/list", query, &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.Files {
			files = append(files, domain.FileInfo{Path: f.Path, IsDir: f.IsDir, FileSize: f.FileSize})
		}
		if resp.NextPageToken == "" {
			return files, nil
		}
		token = resp.NextPageToken
	}
}

// DownloadArtifact fetches one artifact file through the tracking server.
func (c *Client) DownloadArtifact(ctx context.Context, runID, artifactPath string) ([]byte, error) {
	query := url.Values{"run_id": {runID}, "path": {artifactPath}}
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/get-artifact?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTrackingServer, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, data)
	}
	return data, nil
}

// UploadArtifact writes one artifact file through the tracking server's
// artifact proxy. Only runs whose artifact root is an mlflow-artifacts URI
// can be written this way.
func (c *Client) UploadArtifact(ctx context.Context, runID, artifactPath string, data []byte) error {
	root, err := c.artifactRoot(ctx, runID)
	if err != nil {
		return err
	}
	u, err := url.Parse(root)
	if err != nil {
		return fmt.Errorf("%w: artifact uri %q: %v", domain.ErrInvalidParameter, root, err)
	}
	if u.Scheme != proxiedArtifactScheme {
		return fmt.Errorf("%w: artifact uri %q is not served by the tracking server", domain.ErrInvalidParameter, root)
	}

	target := path.Join(artifactsProxyPrefix, strings.TrimPrefix(u.Path, "/"), artifactPath)
	req, err := c.newRequest(ctx, http.MethodPut, c.baseURL+target, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mimetype.Detect(data).String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTrackingServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) artifactRoot(ctx context.Context, runID string) (string, error) {
	if root, ok := c.artifactRoots.Load(runID); ok {
		return root.(string), nil
	}
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	return run.Info.ArtifactURI, nil
}
