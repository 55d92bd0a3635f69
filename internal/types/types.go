// Package types provides common type definitions for the address discovery pipeline.
package types

// CoinType is the coin label attached to a candidate by the pattern that matched it
type CoinType string

const (
	CoinEthereum CoinType = "ethereum"
	CoinBitcoin  CoinType = "bitcoin"
	// CoinBech32 is a native segwit bitcoin address (bc1...)
	CoinBech32   CoinType = "bech32"
	CoinLitecoin CoinType = "litecoin"
	CoinDoge     CoinType = "doge"
	CoinMonero   CoinType = "monero"
)

// AllCoins lists coin labels in pattern scan order
var AllCoins = []CoinType{CoinEthereum, CoinBitcoin, CoinBech32, CoinLitecoin, CoinDoge, CoinMonero}

// IsValid reports whether c is a known coin label
func (c CoinType) IsValid() bool {
	for _, known := range AllCoins {
		if c == known {
			return true
		}
	}
	return false
}

// ValidationStatus is the verdict produced by the address validator
type ValidationStatus string

const (
	// StatusValid means the address passed the coin's structural/checksum rules
	StatusValid ValidationStatus = "syntactic_ok"
	// StatusInvalid means the address was checked and rejected
	StatusInvalid ValidationStatus = "invalid"
	// StatusUnknown means no validator exists for the coin
	StatusUnknown ValidationStatus = "unknown"
)

// SourcePath records where inside an item a candidate was found
type SourcePath string

const (
	SourcePathPost    SourcePath = "post"
	SourcePathComment SourcePath = "comment"
)

// SourceReddit is the only source tag currently produced
const SourceReddit = "reddit"

// SnapshotStatus is the processing status of a stored snapshot
type SnapshotStatus string

const (
	SnapshotStatusNew SnapshotStatus = "new"
)

// JobStatus represents the status of a queued ingestion job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
