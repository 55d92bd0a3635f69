package models

import "time"

// ExtractionEvent is the denormalized, append-only record mirrored to the
// analytics ledger for every newly stored extraction.
type ExtractionEvent struct {
	ExtractionID     string    `json:"extraction_id"`
	SnapshotID       string    `json:"snapshot_id"`
	Source           string    `json:"source"`
	Subreddit        string    `json:"subreddit"`
	PostID           string    `json:"post_id"`
	Address          string    `json:"address"`
	Coin             string    `json:"coin"`
	ValidationStatus string    `json:"validation_status"`
	SourcePath       string    `json:"source_path"`
	ExtractedAt      time.Time `json:"extracted_at"`
}
