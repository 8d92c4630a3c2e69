// HTTP JSON feed [FeedService] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

const defaultFeedBaseURL string = "http://localhost:8080"

// HTTPFeed reads the feed from a JSON endpoint.
type HTTPFeed struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// NewHTTPFeed creates a new HTTP feed provider.
func NewHTTPFeed(baseURL string, pageSize int, client *http.Client) *HTTPFeed {
	if baseURL == "" {
		baseURL = defaultFeedBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	return &HTTPFeed{
		baseURL:    baseURL,
		pageSize:   pageSize,
		httpClient: client,
	}
}

// Name returns the provider name.
func (h *HTTPFeed) Name() string {
	return "http"
}

// GetFeedItems fetches the first page.
func (h *HTTPFeed) GetFeedItems(ctx context.Context) ([]models.FeedItem, error) {
	return h.NextPage(ctx, 0, h.pageSize)
}

// NextPage fetches limit items starting at offset.
func (h *HTTPFeed) NextPage(ctx context.Context, offset, limit int) ([]models.FeedItem, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", shared.ErrInvalidArgument, offset, limit)
	}

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page FeedPage
	if err := h.doRequest(ctx, "/feed?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return toItems(page.Items, offset)
}

func (h *HTTPFeed) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrFeedUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: %s (status %d)", shared.ErrFeedUnavailable, errResp.Detail, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d", shared.ErrFeedUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrFeedUnavailable, err)
	}
	return nil
}
