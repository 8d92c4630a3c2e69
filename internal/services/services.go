package services

import (
	"fmt"
	"strings"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// FeedService is a remote feed provider that can also page past the first batch.
type FeedService interface {
	models.FeedProvider
	models.Pager

	// Name returns the name of the provider (e.g., "http", "s3")
	Name() string
}

// FeedPage is the wire format of one page of the HTTP feed.
type FeedPage struct {
	Items []FeedEntry `json:"items"`
	Total int         `json:"total"`
}

// FeedEntry is one item as served by the HTTP feed.
type FeedEntry struct {
	ID        string `json:"id"`
	MediaURI  string `json:"media_uri"`
	PosterURI string `json:"poster_uri,omitempty"`
}

// toItems converts entries into feed items positioned from offset, rejecting invalid ones.
func toItems(entries []FeedEntry, offset int) ([]models.FeedItem, error) {
	items := make([]models.FeedItem, 0, len(entries))
	for _, e := range entries {
		item := models.FeedItem{
			ID:        strings.TrimSpace(e.ID),
			MediaURI:  strings.TrimSpace(e.MediaURI),
			PosterURI: strings.TrimSpace(e.PosterURI),
			Position:  offset + len(items),
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrFeedUnavailable, err)
		}
		items = append(items, item)
	}
	return items, nil
}
