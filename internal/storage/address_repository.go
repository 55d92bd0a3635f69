package storage

import (
	"context"
	"fmt"

	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/types"
	"github.com/jackc/pgx/v5"
)

// AddressRepository implements AddressStore on Postgres
type AddressRepository struct {
	db *PostgresDB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *PostgresDB) *AddressRepository {
	return &AddressRepository{db: db}
}

var _ AddressStore = (*AddressRepository)(nil)

const addressColumns = `canonical_address, coin, validation_status, first_seen_ts, last_seen_ts,
	source_count, risk_score, metadata, enrichment_id, created_at, updated_at`

// UpsertSighting inserts or increments in a single statement so concurrent
// writers never lose an increment.
func (r *AddressRepository) UpsertSighting(ctx context.Context, s *Sighting) (bool, error) {
	query := `
		INSERT INTO addresses (canonical_address, coin, validation_status, first_seen_ts, last_seen_ts, source_count)
		VALUES ($1, $2, $3, $4, $4, 1)
		ON CONFLICT (canonical_address, coin) DO UPDATE SET
			source_count = addresses.source_count + 1,
			last_seen_ts = GREATEST(addresses.last_seen_ts, EXCLUDED.last_seen_ts),
			updated_at = NOW()
		RETURNING source_count
	`

	var count int64
	err := r.db.pool.QueryRow(ctx, query,
		s.CanonicalAddress,
		string(s.Coin),
		string(s.ValidationStatus),
		s.SeenAt,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to upsert address: %w", err)
	}
	return count == 1, nil
}

// InsertIfAbsent stores a prepared aggregate and leaves existing rows untouched
func (r *AddressRepository) InsertIfAbsent(ctx context.Context, a *models.Address) (bool, error) {
	query := `
		INSERT INTO addresses (
			canonical_address, coin, validation_status, first_seen_ts, last_seen_ts,
			source_count, risk_score, metadata, enrichment_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (canonical_address, coin) DO NOTHING
	`

	tag, err := r.db.pool.Exec(ctx, query,
		a.CanonicalAddress,
		string(a.Coin),
		string(a.ValidationStatus),
		a.FirstSeenTs,
		a.LastSeenTs,
		a.SourceCount,
		a.RiskScore,
		a.Metadata,
		a.EnrichmentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert address: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get retrieves one aggregate
func (r *AddressRepository) Get(ctx context.Context, canonical string, coin types.CoinType) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE canonical_address = $1 AND coin = $2`

	a, err := scanAddress(r.db.pool.QueryRow(ctx, query, canonical, string(coin)))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

// ListConfirmed returns syntactic_ok aggregates, most recently seen first
func (r *AddressRepository) ListConfirmed(ctx context.Context, limit int) ([]*models.Address, error) {
	query := `SELECT ` + addressColumns + `
		FROM addresses
		WHERE validation_status = $1
		ORDER BY last_seen_ts DESC, canonical_address
		LIMIT $2`

	rows, err := r.db.pool.Query(ctx, query, string(types.StatusValid), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]*models.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// CountConfirmed returns the number of syntactic_ok aggregates
func (r *AddressRepository) CountConfirmed(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM addresses WHERE validation_status = $1`, string(types.StatusValid),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}
	return n, nil
}

func scanAddress(row pgx.Row) (*models.Address, error) {
	var a models.Address
	var coin, status string
	err := row.Scan(
		&a.CanonicalAddress,
		&coin,
		&status,
		&a.FirstSeenTs,
		&a.LastSeenTs,
		&a.SourceCount,
		&a.RiskScore,
		&a.Metadata,
		&a.EnrichmentID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Coin = types.CoinType(coin)
	a.ValidationStatus = types.ValidationStatus(status)
	return &a, nil
}
