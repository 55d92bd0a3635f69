package storage

import (
	"context"
	"time"

	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/types"
)

// SnapshotStore persists raw item snapshots. At most one snapshot exists per (post_id, source).
type SnapshotStore interface {
	// FindByPost returns nil, nil when no snapshot exists.
	FindByPost(ctx context.Context, source, postID string) (*models.Snapshot, error)
	// Create returns ErrDuplicateKey when (post_id, source) is taken.
	Create(ctx context.Context, s *models.Snapshot) error
	ListRecent(ctx context.Context, limit int) ([]*models.Snapshot, error)
	Count(ctx context.Context) (int64, error)
	// LatestFetchedAt returns nil when the store is empty.
	LatestFetchedAt(ctx context.Context) (*time.Time, error)
}

// ExtractionStore persists extraction records. Unique per (snapshot_id, address, source_path):
// an address repeated inside one body is recorded once, but a body and a comment
// mentioning the same address yield one record each.
type ExtractionStore interface {
	Exists(ctx context.Context, snapshotID, address string, path types.SourcePath) (bool, error)
	// Create returns ErrDuplicateKey when (snapshot_id, address, source_path) is taken.
	Create(ctx context.Context, e *models.Extraction) error
	ListBySnapshot(ctx context.Context, snapshotID string) ([]*models.Extraction, error)
	// ListByStatus pages through extractions ordered by extracted_at, id.
	ListByStatus(ctx context.Context, status types.ValidationStatus, limit, offset int) ([]*models.Extraction, error)
	Count(ctx context.Context) (int64, error)
}

// Sighting is one observation of a confirmed address
type Sighting struct {
	CanonicalAddress string
	Coin             types.CoinType
	ValidationStatus types.ValidationStatus
	SeenAt           time.Time
}

// AddressStore persists per-address aggregates keyed by (canonical_address, coin).
type AddressStore interface {
	// UpsertSighting atomically creates the aggregate with source_count 1 or
	// increments it. created is true iff this call inserted the row.
	UpsertSighting(ctx context.Context, s *Sighting) (created bool, err error)
	// InsertIfAbsent stores a fully built aggregate unless one already exists.
	InsertIfAbsent(ctx context.Context, a *models.Address) (inserted bool, err error)
	// Get returns nil, nil when absent.
	Get(ctx context.Context, canonical string, coin types.CoinType) (*models.Address, error)
	// ListConfirmed returns syntactic_ok aggregates, most recently seen first.
	ListConfirmed(ctx context.Context, limit int) ([]*models.Address, error)
	CountConfirmed(ctx context.Context) (int64, error)
}

// CursorStore persists one pagination cursor per channel.
type CursorStore interface {
	// GetCursor returns nil, nil when the channel has never been ingested.
	GetCursor(ctx context.Context, channel string) (*models.FeedCursor, error)
	SetCursor(ctx context.Context, channel string, after *string, seenAt time.Time) error
	ListCursors(ctx context.Context) ([]*models.FeedCursor, error)
}

// Stores bundles the stores the ingestion service depends on
type Stores struct {
	Snapshots   SnapshotStore
	Extractions ExtractionStore
	Addresses   AddressStore
	Cursors     CursorStore
}

// NewPostgresStores wires every store to the same Postgres pool
func NewPostgresStores(db *PostgresDB) Stores {
	return Stores{
		Snapshots:   NewSnapshotRepository(db),
		Extractions: NewExtractionRepository(db),
		Addresses:   NewAddressRepository(db),
		Cursors:     NewFeedCursorRepository(db),
	}
}
