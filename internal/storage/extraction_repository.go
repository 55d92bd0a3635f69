package storage

import (
	"context"
	"fmt"

	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/types"
	"github.com/jackc/pgx/v5"
)

// ExtractionRepository implements ExtractionStore on Postgres
type ExtractionRepository struct {
	db *PostgresDB
}

// NewExtractionRepository creates a new extraction repository
func NewExtractionRepository(db *PostgresDB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

var _ ExtractionStore = (*ExtractionRepository)(nil)

const extractionColumns = `id, snapshot_id, address, coin_candidate, validation_status, context_snippet, source_path, extracted_at, evidence_score`

// Exists reports whether the address was already recorded for this snapshot and origin
func (r *ExtractionRepository) Exists(ctx context.Context, snapshotID, address string, path types.SourcePath) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM extractions WHERE snapshot_id = $1 AND address = $2 AND source_path = $3)`,
		snapshotID, address, string(path),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check extraction: %w", err)
	}
	return exists, nil
}

// Create inserts an extraction
func (r *ExtractionRepository) Create(ctx context.Context, e *models.Extraction) error {
	query := `
		INSERT INTO extractions (
			id, snapshot_id, address, coin_candidate, validation_status,
			context_snippet, source_path, extracted_at, evidence_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.pool.Exec(ctx, query,
		e.ID,
		e.SnapshotID,
		e.Address,
		string(e.CoinCandidate),
		string(e.ValidationStatus),
		e.ContextSnippet,
		string(e.SourcePath),
		e.ExtractedAt,
		e.EvidenceScore,
	)
	if err != nil {
		if IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create extraction: %w", err)
	}
	return nil
}

// ListBySnapshot returns the extractions of one snapshot in insertion time order
func (r *ExtractionRepository) ListBySnapshot(ctx context.Context, snapshotID string) ([]*models.Extraction, error) {
	query := `SELECT ` + extractionColumns + ` FROM extractions WHERE snapshot_id = $1 ORDER BY extracted_at, id`

	rows, err := r.db.pool.Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	return collectExtractions(rows)
}

// ListByStatus pages through extractions with the given verdict
func (r *ExtractionRepository) ListByStatus(ctx context.Context, status types.ValidationStatus, limit, offset int) ([]*models.Extraction, error) {
	query := `SELECT ` + extractionColumns + `
		FROM extractions
		WHERE validation_status = $1
		ORDER BY extracted_at, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions by status: %w", err)
	}
	return collectExtractions(rows)
}

// Count returns the number of stored extractions
func (r *ExtractionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count extractions: %w", err)
	}
	return n, nil
}

func collectExtractions(rows pgx.Rows) ([]*models.Extraction, error) {
	defer rows.Close()

	out := make([]*models.Extraction, 0)
	for rows.Next() {
		var e models.Extraction
		var coin, status, path string
		if err := rows.Scan(
			&e.ID,
			&e.SnapshotID,
			&e.Address,
			&coin,
			&status,
			&e.ContextSnippet,
			&path,
			&e.ExtractedAt,
			&e.EvidenceScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		e.CoinCandidate = types.CoinType(coin)
		e.ValidationStatus = types.ValidationStatus(status)
		e.SourcePath = types.SourcePath(path)
		out = append(out, &e)
	}
	return out, rows.Err()
}
