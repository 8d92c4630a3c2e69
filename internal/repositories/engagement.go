package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

// ViewRepository counts view pings per feed item.
type ViewRepository struct {
	db *sql.DB
}

func NewViewRepository(db *sql.DB) *ViewRepository {
	return &ViewRepository{db: db}
}

// Record adds one view for itemID.
func (r *ViewRepository) Record(itemID string, at time.Time) error {
	query := `
		INSERT INTO view_counts (item_id, views, last_viewed_at)
		VALUES (?, 1, ?)
		ON CONFLICT(item_id) DO UPDATE SET views = views + 1, last_viewed_at = excluded.last_viewed_at
	`

	if _, err := r.db.Exec(query, itemID, at); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}

// Get returns the view count for itemID, zero when it was never viewed.
func (r *ViewRepository) Get(itemID string) (models.ViewCount, error) {
	query := `SELECT item_id, views, last_viewed_at FROM view_counts WHERE item_id = ?`

	var (
		vc   models.ViewCount
		last sql.NullTime
	)
	err := r.db.QueryRow(query, itemID).Scan(&vc.ItemID, &vc.Views, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ViewCount{ItemID: itemID}, nil
	}
	if err != nil {
		return models.ViewCount{}, fmt.Errorf("failed to scan view count: %w", err)
	}
	vc.LastViewedAt = last.Time
	return vc, nil
}

// List returns every view count, most viewed first.
func (r *ViewRepository) List() ([]models.ViewCount, error) {
	query := `
		SELECT v.item_id, v.views, v.last_viewed_at
		FROM view_counts v
		JOIN feed_items f ON f.id = v.item_id
		WHERE f.deleted_at IS NULL
		ORDER BY v.views DESC, f.sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query view counts: %w", err)
	}
	defer rows.Close()

	var out []models.ViewCount
	for rows.Next() {
		var (
			vc   models.ViewCount
			last sql.NullTime
		)
		if err := rows.Scan(&vc.ItemID, &vc.Views, &last); err != nil {
			return nil, fmt.Errorf("failed to scan view count: %w", err)
		}
		vc.LastViewedAt = last.Time
		out = append(out, vc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// InteractionRepository logs forwarded interactions.
type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Record stores ev.
func (r *InteractionRepository) Record(ev models.Interaction) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: interaction kind %q", shared.ErrInvalidInput, ev.Kind)
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	query := `
		INSERT INTO interactions (id, item_id, kind, position, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, shared.GenerateID(), ev.ItemID, string(ev.Kind), ev.Position, ev.At); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// ListByItem returns the interactions recorded for itemID, oldest first.
func (r *InteractionRepository) ListByItem(itemID string) ([]models.Interaction, error) {
	query := `
		SELECT item_id, kind, position, created_at
		FROM interactions
		WHERE item_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var (
			ev   models.Interaction
			kind string
		)
		if err := rows.Scan(&ev.ItemID, &kind, &ev.Position, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		ev.Kind = models.InteractionKind(kind)
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// CountByKind tallies the interactions on itemID per kind.
func (r *InteractionRepository) CountByKind(itemID string) (map[models.InteractionKind]int, error) {
	rows, err := r.db.Query(`SELECT kind, COUNT(*) FROM interactions WHERE item_id = ? GROUP BY kind`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}
	defer rows.Close()

	out := make(map[models.InteractionKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan interaction count: %w", err)
		}
		out[models.InteractionKind(kind)] = n
	}
	return out, rows.Err()
}

type engagement struct {
	view        string
	interaction *models.Interaction
}

// EngagementRecorder moves view pings and interactions off the control loop.
//
// Its hook methods never block: when the buffer is full the record is dropped and
// logged. [EngagementRecorder.Run] writes records until ctx ends.
type EngagementRecorder struct {
	views        *ViewRepository
	interactions *InteractionRepository
	queue        chan engagement
	logger       *log.Logger
}

func NewEngagementRecorder(views *ViewRepository, interactions *InteractionRepository, logger *log.Logger) *EngagementRecorder {
	return &EngagementRecorder{
		views:        views,
		interactions: interactions,
		queue:        make(chan engagement, 64),
		logger:       shared.WithLogger(logger, "component", "engagement"),
	}
}

// OnPositionSettled queues a view ping.
func (e *EngagementRecorder) OnPositionSettled(_ int, itemID string) {
	e.enqueue(engagement{view: itemID})
}

// OnInteraction queues an interaction.
func (e *EngagementRecorder) OnInteraction(ev models.Interaction) {
	e.enqueue(engagement{interaction: &ev})
}

func (e *EngagementRecorder) enqueue(rec engagement) {
	select {
	case e.queue <- rec:
	default:
		e.logger.Warn("engagement buffer full, dropping record")
	}
}

// Run persists queued records until ctx is done, then flushes what is left.
func (e *EngagementRecorder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-e.queue:
			e.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-e.queue:
					e.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (e *EngagementRecorder) write(rec engagement) {
	var err error
	switch {
	case rec.interaction != nil:
		err = e.interactions.Record(*rec.interaction)
	case rec.view != "":
		err = e.views.Record(rec.view, time.Now())
	}
	if err != nil {
		e.logger.Error("failed to persist engagement", "err", err)
	}
}
