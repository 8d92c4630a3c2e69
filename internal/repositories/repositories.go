package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/reel/internal/shared"
)

// sequenced lists the tables that have a "<table>_sequence" counter row.
var sequenced = map[string]bool{"feed_items": true}

// NextSequence increments the counter for table and returns the new value.
//
// Feed items are listed in sequence order, so the sequence is the display position
// of an imported item before soft deletes are taken into account.
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidArgument, table)
	}

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	err := db.QueryRowContext(ctx, query).Scan(&sequence)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("sequence row for %s is missing", table)
	case err != nil:
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
