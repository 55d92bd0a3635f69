package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/address-discovery/internal/models"
)

// ExtractionEventRepository appends extraction events to ClickHouse
type ExtractionEventRepository struct {
	db *ClickHouseDB
}

// NewExtractionEventRepository creates a new extraction event repository
func NewExtractionEventRepository(db *ClickHouseDB) *ExtractionEventRepository {
	return &ExtractionEventRepository{db: db}
}

// CoinCount is one row of the per-coin event breakdown
type CoinCount struct {
	Coin             string `json:"coin"`
	ValidationStatus string `json:"validation_status"`
	Count            uint64 `json:"count"`
}

// RecordExtractions sends events in a single batch
func (r *ExtractionEventRepository) RecordExtractions(ctx context.Context, events []*models.ExtractionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO extraction_events (
			extraction_id, snapshot_id, source, subreddit, post_id,
			address, coin, validation_status, source_path, extracted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.ExtractionID,
			e.SnapshotID,
			e.Source,
			e.Subreddit,
			e.PostID,
			e.Address,
			e.Coin,
			e.ValidationStatus,
			e.SourcePath,
			e.ExtractedAt,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// CountByCoin aggregates events recorded since the given time
func (r *ExtractionEventRepository) CountByCoin(ctx context.Context, since time.Time) ([]CoinCount, error) {
	query := `
		SELECT coin, validation_status, count() AS n
		FROM extraction_events
		WHERE extracted_at >= ?
		GROUP BY coin, validation_status
		ORDER BY coin, validation_status
	`

	rows, err := r.db.Conn().Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction events: %w", err)
	}
	defer rows.Close()

	var out []CoinCount
	for rows.Next() {
		var c CoinCount
		if err := rows.Scan(&c.Coin, &c.ValidationStatus, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan extraction event count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
