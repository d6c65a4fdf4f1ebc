// Package nightscout provides a client for uploading to the Nightscout API
package nightscout

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mrcode/loopbridge/internal/models"
)

// Client handles communication with the Nightscout API. Each upload method
// performs a single attempt; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient creates a new Nightscout client
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	// Add authentication
	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// UploadDeviceStatus posts one device status record
func (c *Client) UploadDeviceStatus(ctx context.Context, record *models.DeviceStatus) error {
	req, err := c.buildRequest(ctx, "POST", "/api/v1/devicestatus", []*models.DeviceStatus{record})
	if err != nil {
		return err
	}

	if _, err := c.doRequest(req); err != nil {
		return fmt.Errorf("uploading device status: %w", err)
	}
	return nil
}

// UploadProfile posts a settings profile document
func (c *Client) UploadProfile(ctx context.Context, profile *models.Profile) error {
	req, err := c.buildRequest(ctx, "POST", "/api/v1/profile", profile)
	if err != nil {
		return err
	}

	if _, err := c.doRequest(req); err != nil {
		return fmt.Errorf("uploading profile: %w", err)
	}
	return nil
}

// UploadTreatments posts careportal treatment documents
func (c *Client) UploadTreatments(ctx context.Context, treatments []models.Treatment) error {
	if len(treatments) == 0 {
		return nil
	}

	req, err := c.buildRequest(ctx, "POST", "/api/v1/treatments", treatments)
	if err != nil {
		return err
	}

	if _, err := c.doRequest(req); err != nil {
		return fmt.Errorf("uploading treatments: %w", err)
	}
	return nil
}

// ServerStatus is the subset of the Nightscout status document used by the
// connection test
type ServerStatus struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	APIEnabled bool   `json:"apiEnabled"`
}

// GetStatus retrieves the Nightscout server status
func (c *Client) GetStatus(ctx context.Context) (*ServerStatus, error) {
	req, err := c.buildRequest(ctx, "GET", "/api/v1/status", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	return &status, nil
}

// TestConnection tests if the connection to Nightscout works
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetStatus(ctx)
	return err
}
