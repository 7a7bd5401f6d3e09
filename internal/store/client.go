// Package store is a client for the remote REST data store. Each Query
// maps to exactly one HTTP round trip.
package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Client holds connection settings shared by all queries
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a store client. baseURL is the store root; the REST
// prefix is appended here.
func NewClient(baseURL, serviceKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// From starts a new query against table
func (c *Client) From(table string) *Query {
	return &Query{
		client: c,
		table:  table,
		op:     OpSelect,
	}
}

// Ping checks that the store answers at all
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuth(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("store returned status %d", resp.StatusCode)
	}
	return nil
}

// addAuth sets the service key and the bearer credential. An empty token
// falls back to the service key.
func (c *Client) addAuth(req *http.Request, token string) {
	if token == "" {
		token = c.serviceKey
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+token)
}
