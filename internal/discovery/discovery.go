// Package discovery registers the relay with the external service-discovery
// registry. Registration is best effort: a failed or slow registry never
// blocks or aborts startup.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Registration is the payload accepted by the registry's /register endpoint.
type Registration struct {
	ServiceName string `json:"serviceName"`
	ServiceURL  string `json:"serviceUrl"`
}

// Client talks to a service-discovery registry over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a discovery client for the registry at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Register announces the service to the registry.
func (c *Client) Register(ctx context.Context, serviceName, serviceURL string) error {
	body, err := json.Marshal(Registration{
		ServiceName: serviceName,
		ServiceURL:  serviceURL,
	})
	if err != nil {
		return fmt.Errorf("encoding registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting registration: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry rejected registration: status %d", resp.StatusCode)
	}

	return nil
}
