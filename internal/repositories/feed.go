package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// FeedRepository stores feed items and serves them in display order.
//
// It implements [models.FeedProvider] and [models.Pager]: the first page is returned by
// GetFeedItems and later pages by NextPage, so the controller can extend the feed as
// the viewer nears its end.
type FeedRepository struct {
	db       *sql.DB
	pageSize int
}

// NewFeedRepository creates a FeedRepository. A pageSize of zero or less makes
// GetFeedItems return the whole feed.
func NewFeedRepository(db *sql.DB, pageSize int) *FeedRepository {
	return &FeedRepository{db: db, pageSize: pageSize}
}

// Create inserts item with the next sequence number, generating an ID when empty.
func (r *FeedRepository) Create(item *models.FeedItem) error {
	if item.ID == "" {
		item.ID = shared.GenerateID()
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(context.Background(), r.db, "feed_items")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO feed_items (id, sequence, media_uri, poster_uri, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, item.ID, sequence, item.MediaURI, item.PosterURI, time.Now()); err != nil {
		return fmt.Errorf("failed to insert feed item: %w", err)
	}
	return nil
}

// Import appends items to the feed, skipping IDs that already exist, and returns how
// many were inserted.
func (r *FeedRepository) Import(items []models.FeedItem) (int, error) {
	inserted := 0
	for i := range items {
		item := items[i]
		if err := r.Create(&item); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				continue
			}
			return inserted, fmt.Errorf("failed to import item %d: %w", i, err)
		}
		inserted++
	}
	return inserted, nil
}

// Get retrieves an item by ID, excluding soft-deleted items
func (r *FeedRepository) Get(id string) (models.FeedItem, error) {
	query := `
		SELECT id, media_uri, poster_uri
		FROM feed_items
		WHERE id = ? AND deleted_at IS NULL
	`

	var item models.FeedItem
	err := r.db.QueryRow(query, id).Scan(&item.ID, &item.MediaURI, &item.PosterURI)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FeedItem{}, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("failed to scan feed item: %w", err)
	}
	return item, nil
}

// Delete soft-deletes an item by ID
func (r *FeedRepository) Delete(id string) error {
	query := `
		UPDATE feed_items
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete feed item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	return nil
}

// Count returns the number of live items.
func (r *FeedRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM feed_items WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count feed items: %w", err)
	}
	return n, nil
}

// List returns every live item in display order with positions assigned.
func (r *FeedRepository) List() ([]models.FeedItem, error) {
	return r.page(context.Background(), 0, -1)
}

// GetFeedItems implements [models.FeedProvider].
func (r *FeedRepository) GetFeedItems(ctx context.Context) ([]models.FeedItem, error) {
	limit := r.pageSize
	if limit <= 0 {
		limit = -1
	}
	return r.page(ctx, 0, limit)
}

// NextPage implements [models.Pager].
func (r *FeedRepository) NextPage(ctx context.Context, offset, limit int) ([]models.FeedItem, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", shared.ErrInvalidArgument, offset, limit)
	}
	return r.page(ctx, offset, limit)
}

func (r *FeedRepository) page(ctx context.Context, offset, limit int) ([]models.FeedItem, error) {
	query := `
		SELECT id, media_uri, poster_uri
		FROM feed_items
		WHERE deleted_at IS NULL
		ORDER BY sequence ASC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed items: %w", err)
	}
	defer rows.Close()

	var items []models.FeedItem
	for rows.Next() {
		var item models.FeedItem
		if err := rows.Scan(&item.ID, &item.MediaURI, &item.PosterURI); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		item.Position = offset + len(items)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}
