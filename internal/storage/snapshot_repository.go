package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/types"
	"github.com/jackc/pgx/v5"
)

// SnapshotRepository implements SnapshotStore on Postgres
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var _ SnapshotStore = (*SnapshotRepository)(nil)

const snapshotColumns = `id, source, subreddit, post_id, url, raw, sha256, fetched_at, status, created_at`

// FindByPost returns the snapshot for (source, postID) or nil
func (r *SnapshotRepository) FindByPost(ctx context.Context, source, postID string) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE post_id = $1 AND source = $2`

	snap, err := scanSnapshot(r.db.pool.QueryRow(ctx, query, postID, source))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find snapshot: %w", err)
	}
	return snap, nil
}

// Create inserts a snapshot
func (r *SnapshotRepository) Create(ctx context.Context, s *models.Snapshot) error {
	query := `
		INSERT INTO snapshots (id, source, subreddit, post_id, url, raw, sha256, fetched_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.pool.QueryRow(ctx, query,
		s.ID,
		s.Source,
		s.Subreddit,
		s.PostID,
		s.URL,
		s.Raw,
		s.SHA256,
		s.FetchedAt,
		string(s.Status),
	).Scan(&s.CreatedAt)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// ListRecent returns the newest snapshots first
func (r *SnapshotRepository) ListRecent(ctx context.Context, limit int) ([]*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY fetched_at DESC, id DESC LIMIT $1`

	rows, err := r.db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*models.Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Count returns the number of stored snapshots
func (r *SnapshotRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// LatestFetchedAt returns the fetch time of the newest snapshot
func (r *SnapshotRepository) LatestFetchedAt(ctx context.Context) (*time.Time, error) {
	var ts *time.Time
	if err := r.db.pool.QueryRow(ctx, `SELECT MAX(fetched_at) FROM snapshots`).Scan(&ts); err != nil {
		return nil, fmt.Errorf("failed to read latest snapshot time: %w", err)
	}
	return ts, nil
}

func scanSnapshot(row pgx.Row) (*models.Snapshot, error) {
	var s models.Snapshot
	var status string
	err := row.Scan(
		&s.ID,
		&s.Source,
		&s.Subreddit,
		&s.PostID,
		&s.URL,
		&s.Raw,
		&s.SHA256,
		&s.FetchedAt,
		&status,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = types.SnapshotStatus(status)
	return &s, nil
}
