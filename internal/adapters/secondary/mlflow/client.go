package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"mlflow-migrate/internal/config"
	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

const apiPrefix = "/api/2.0/mlflow"

var _ ports.TrackingClient = (*Client)(nil)

// Client talks to one MLflow tracking server over its REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	username   string
	password   string

	// artifact roots of runs, cached for uploads
	artifactRoots sync.Map
}

// NewClient creates a REST client for the tracking server in cfg.
func NewClient(cfg *config.MLflowConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.TrackingURI, "/"),
		token:    cfg.Token,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) TrackingURI() string {
	return c.baseURL
}

// Forward sends a raw request to the tracking server, e.g. for the
// http-client command. The caller closes the response body.
func (c *Client) Forward(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.WithFields(log.Fields{
		"method": method,
		"path":   path,
	}).Debug("forwarding request to tracking server")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tracking server request: %w", err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	reqURL := c.baseURL + apiPrefix + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, reqURL, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, in, out interface{}) error {
	return c.send(ctx, http.MethodPost, endpoint, in, out)
}

func (c *Client) send(ctx context.Context, method, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, method, c.baseURL+apiPrefix+endpoint, bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, method, reqURL string, body io.Reader, out interface{}) error {
	req, err := c.newRequest(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTrackingServer, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError maps an MLflow error envelope
// {"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "..."} to a sentinel.
func apiError(status int, body []byte) error {
	code := gjson.GetBytes(body, "error_code").String()
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	var sentinel error
	switch code {
	case "RESOURCE_DOES_NOT_EXIST", "NOT_FOUND":
		sentinel = domain.ErrResourceNotFound
	case "RESOURCE_ALREADY_EXISTS":
		sentinel = domain.ErrResourceAlreadyExists
	case "PERMISSION_DENIED", "UNAUTHENTICATED":
		sentinel = domain.ErrPermissionDenied
	case "INVALID_PARAMETER_VALUE", "BAD_REQUEST", "INVALID_STATE":
		sentinel = domain.ErrInvalidParameter
	default:
		switch status {
		case http.StatusNotFound:
			sentinel = domain.ErrResourceNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			sentinel = domain.ErrPermissionDenied
		default:
			sentinel = domain.ErrTrackingServer
		}
	}

	if code == "" {
		return fmt.Errorf("%w: http %d: %s", sentinel, status, msg)
	}
	return fmt.Errorf("%w: %s: %s", sentinel, code, msg)
}
