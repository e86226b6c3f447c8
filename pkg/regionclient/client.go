package regionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"p9e.in/geofence/models"
)

// Client talks to the region service over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client for the service rooted at baseURL (e.g.
// "http://localhost:8080/api/v1"). token is sent as a bearer token when set.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// ListRegions fetches every region
func (c *Client) ListRegions(ctx context.Context) ([]models.RegionDTO, error) {
	var resp models.RegionListResponse
	if err := c.do(ctx, http.MethodGet, "/regions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Regions, nil
}

// CreateRegion creates a region and returns the identity assigned by the service
func (c *Client) CreateRegion(ctx context.Context, draft models.RegionDraftDTO) (string, error) {
	var resp models.RegionCreatedResponse
	if err := c.do(ctx, http.MethodPost, "/region", draft, &resp); err != nil {
		return "", err
	}
	if resp.RegionID == "" {
		return "", fmt.Errorf("create region: response carried no region_id")
	}
	return resp.RegionID, nil
}

// UpdateRegion applies patch to region id
func (c *Client) UpdateRegion(ctx context.Context, id string, patch models.RegionPatchDTO) error {
	return c.do(ctx, http.MethodPatch, "/region/"+url.PathEscape(id), patch, nil)
}

// DeleteRegion deletes region id
func (c *Client) DeleteRegion(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/region/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
