package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/address-discovery/internal/models"
)

// FeedCursorRepository implements CursorStore on Postgres
type FeedCursorRepository struct {
	db *PostgresDB
}

// NewFeedCursorRepository creates a new feed cursor repository
func NewFeedCursorRepository(db *PostgresDB) *FeedCursorRepository {
	return &FeedCursorRepository{db: db}
}

var _ CursorStore = (*FeedCursorRepository)(nil)

// GetCursor returns the stored cursor for channel or nil
func (r *FeedCursorRepository) GetCursor(ctx context.Context, channel string) (*models.FeedCursor, error) {
	var c models.FeedCursor
	err := r.db.pool.QueryRow(ctx,
		`SELECT subreddit, after_token, last_seen_ts, updated_at FROM feeds WHERE subreddit = $1`,
		channel,
	).Scan(&c.Subreddit, &c.After, &c.LastSeenTs, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feed cursor: %w", err)
	}
	return &c, nil
}

// SetCursor overwrites the channel's cursor
func (r *FeedCursorRepository) SetCursor(ctx context.Context, channel string, after *string, seenAt time.Time) error {
	query := `
		INSERT INTO feeds (subreddit, after_token, last_seen_ts, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (subreddit) DO UPDATE SET
			after_token = EXCLUDED.after_token,
			last_seen_ts = EXCLUDED.last_seen_ts,
			updated_at = NOW()
	`

	if _, err := r.db.pool.Exec(ctx, query, channel, after, seenAt); err != nil {
		return fmt.Errorf("failed to set feed cursor: %w", err)
	}
	return nil
}

// ListCursors returns every stored cursor ordered by channel
func (r *FeedCursorRepository) ListCursors(ctx context.Context) ([]*models.FeedCursor, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT subreddit, after_token, last_seen_ts, updated_at FROM feeds ORDER BY subreddit`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed cursors: %w", err)
	}
	defer rows.Close()

	cursors := make([]*models.FeedCursor, 0)
	for rows.Next() {
		var c models.FeedCursor
		if err := rows.Scan(&c.Subreddit, &c.After, &c.LastSeenTs, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feed cursor: %w", err)
		}
		cursors = append(cursors, &c)
	}
	return cursors, rows.Err()
}
