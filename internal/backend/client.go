// Package backend is a client for the listings backend REST API.
package backend

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

	"github.com/blackmichael/listing-bot/internal/domain"
)

// Client fetches listings from the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// https://backend.example.com/api.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GetListing implements domain.ListingFetcher.
func (c *Client) GetListing(ctx context.Context, id domain.ListingID) (*domain.Listing, error) {
	if err := domain.ValidateListingID(id); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/rent-listings/"+url.PathEscape(string(id))+"/", &raw); err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}

	listing, err := decodeListing(raw)
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return listing, nil
}

// decodeListing accepts both the enveloped form {"data": {...}} and a bare
// listing object.
func decodeListing(raw json.RawMessage) (*domain.Listing, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	body := raw
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		body = env.Data
	}

	var l domain.Listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("unmarshal listing: %w", err)
	}
	if l.ID == "" && l.PhoneNumber == "" && l.Description == "" {
		return nil, fmt.Errorf("response is not a listing")
	}
	return &l, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrListingNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

var _ domain.ListingFetcher = (*Client)(nil)
