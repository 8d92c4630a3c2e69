// Generated in-memory [FeedService] implementation
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

const defaultDemoLength = 50

// DemoFeed serves a fixed number of generated items with mem:// media URIs,
// which the simulated decoder accepts.
type DemoFeed struct {
	length   int
	pageSize int
}

// NewDemoFeed creates a demo feed of length items.
func NewDemoFeed(length, pageSize int) *DemoFeed {
	if length <= 0 {
		length = defaultDemoLength
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &DemoFeed{length: length, pageSize: pageSize}
}

// Name returns the provider name.
func (d *DemoFeed) Name() string {
	return "demo"
}

// GetFeedItems returns the first page.
func (d *DemoFeed) GetFeedItems(ctx context.Context) ([]models.FeedItem, error) {
	return d.NextPage(ctx, 0, d.pageSize)
}

// NextPage returns up to limit items starting at offset; past the end it returns none.
func (d *DemoFeed) NextPage(ctx context.Context, offset, limit int) ([]models.FeedItem, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", shared.ErrInvalidArgument, offset, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := min(offset+limit, d.length)
	items := make([]models.FeedItem, 0, max(end-offset, 0))
	for p := offset; p < end; p++ {
		items = append(items, models.FeedItem{
			ID:        fmt.Sprintf("demo-%03d", p),
			MediaURI:  fmt.Sprintf("mem://demo/%03d.mp4", p),
			PosterURI: fmt.Sprintf("mem://demo/%03d.jpg", p),
			Position:  p,
		})
	}
	return items, nil
}
