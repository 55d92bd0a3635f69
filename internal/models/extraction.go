package models

import (
	"time"

	"github.com/address-discovery/internal/types"
)

// Extraction records one candidate address found in one snapshot.
// Unique per (snapshot_id, address); never updated after insert.
type Extraction struct {
	ID               string                 `json:"id" db:"id"`
	SnapshotID       string                 `json:"snapshot_id" db:"snapshot_id"`
	Address          string                 `json:"address" db:"address"`
	CoinCandidate    types.CoinType         `json:"coin_candidate" db:"coin_candidate"`
	ValidationStatus types.ValidationStatus `json:"validation_status" db:"validation_status"`
	ContextSnippet   string                 `json:"context_snippet" db:"context_snippet"`
	SourcePath       types.SourcePath       `json:"source_path" db:"source_path"`
	ExtractedAt      time.Time              `json:"extracted_at" db:"extracted_at"`
	EvidenceScore    *float64               `json:"evidence_score,omitempty" db:"evidence_score"`
}
