package models

import (
	"encoding/json"
	"time"

	"github.com/address-discovery/internal/types"
)

// Address is the cross-source aggregate for one canonical address per coin.
// One row per (canonical_address, coin); extractions reference it by value only.
type Address struct {
	CanonicalAddress string                 `json:"canonical_address" db:"canonical_address"`
	Coin             types.CoinType         `json:"coin" db:"coin"`
	ValidationStatus types.ValidationStatus `json:"validation_status" db:"validation_status"`
	FirstSeenTs      time.Time              `json:"first_seen_ts" db:"first_seen_ts"`
	LastSeenTs       time.Time              `json:"last_seen_ts" db:"last_seen_ts"`
	SourceCount      int64                  `json:"source_count" db:"source_count"`
	RiskScore        float64                `json:"risk_score" db:"risk_score"`
	Metadata         json.RawMessage        `json:"metadata,omitempty" db:"metadata"`
	EnrichmentID     *string                `json:"enrichment_id,omitempty" db:"enrichment_id"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" db:"updated_at"`
}
