package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig configures the provider API client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration // Default: 30 seconds
}

// Client calls the provider's incremental-sync endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new provider API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: config.BaseURL,
	}
}

type syncRequest struct {
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// SyncTransactions pulls one page of the incremental change feed. An empty
// cursor requests a full initial sync. The returned page carries the cursor
// to persist once the page's writes are durable.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncPage, error) {
	endpoint := fmt.Sprintf("%s/transactions/sync", c.baseURL)

	body, err := json.Marshal(syncRequest{
		AccessToken: accessToken,
		Cursor:      cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var raw rawSyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return raw.normalize(), nil
}

// parseError parses an error response from the provider API, preserving the
// provider's error type and code.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider API error (status %d): failed to read error response", resp.StatusCode)
	}

	perr := &Error{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, perr); err != nil || perr.ErrorCode == "" && perr.ErrorType == "" {
		return fmt.Errorf("provider API error (status %d): %s", resp.StatusCode, string(body))
	}

	return perr
}
