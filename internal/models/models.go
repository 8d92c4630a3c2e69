// package models defines the data model for the feed playback core
package models

import (
	"context"
	"fmt"
	"strings"
)

// FeedItem is one playable entry of the feed. Items are immutable once listed;
// a new list from the [FeedProvider] replaces the previous one wholesale.
type FeedItem struct {
	ID        string `json:"id" toml:"id" yaml:"id"`
	MediaURI  string `json:"media_uri" toml:"media_uri" yaml:"media_uri"`
	PosterURI string `json:"poster_uri,omitempty" toml:"poster_uri" yaml:"poster_uri"`
	Position  int    `json:"position" toml:"-" yaml:"-"`
}

// Validate checks that the item can be handed to a decoder.
func (i FeedItem) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("feed item at %d: id is required", i.Position)
	}
	if strings.TrimSpace(i.MediaURI) == "" {
		return fmt.Errorf("feed item %s: media uri is required", i.ID)
	}
	return nil
}

// FeedProvider supplies the ordered list of playable items.
// Implementations include the SQLite feed repository and the HTTP and S3 services.
type FeedProvider interface {
	GetFeedItems(ctx context.Context) ([]FeedItem, error)
}

// Pager is implemented by providers that can extend the feed past its current end.
type Pager interface {
	NextPage(ctx context.Context, offset, limit int) ([]FeedItem, error)
}

// Renumber assigns positions in list order starting at offset.
func Renumber(items []FeedItem, offset int) []FeedItem {
	out := make([]FeedItem, len(items))
	for i, item := range items {
		item.Position = offset + i
		out[i] = item
	}
	return out
}

// Window is the contiguous range of positions eligible for prefetching.
type Window struct {
	Current int
	Radius  int
}

// Lo returns the first position of the window, which may be negative.
func (w Window) Lo() int { return w.Current - w.Radius }

// Hi returns the last position of the window, inclusive.
func (w Window) Hi() int { return w.Current + w.Radius }

// Contains reports whether position falls within [Current-Radius, Current+Radius].
func (w Window) Contains(position int) bool {
	return position >= w.Lo() && position <= w.Hi()
}

// Distance returns how far position is from the window centre.
func (w Window) Distance(position int) int {
	d := position - w.Current
	if d < 0 {
		return -d
	}
	return d
}

func (w Window) String() string {
	return fmt.Sprintf("[%d,%d]", w.Lo(), w.Hi())
}
