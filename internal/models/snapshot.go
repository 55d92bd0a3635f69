package models

import (
	"encoding/json"
	"time"

	"github.com/address-discovery/internal/types"
)

// Snapshot is the immutable raw record of one fetched item.
// At most one snapshot exists per (post_id, source).
type Snapshot struct {
	ID        string               `json:"id" db:"id"`
	Source    string               `json:"source" db:"source"`
	Subreddit string               `json:"subreddit" db:"subreddit"`
	PostID    string               `json:"post_id" db:"post_id"`
	URL       string               `json:"url" db:"url"`
	Raw       json.RawMessage      `json:"raw" db:"raw"`
	SHA256    string               `json:"sha256" db:"sha256"`
	FetchedAt time.Time            `json:"fetched_at" db:"fetched_at"`
	Status    types.SnapshotStatus `json:"status" db:"status"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
}

// SnapshotSummary is the listing view returned by the snapshots endpoint
type SnapshotSummary struct {
	PostID    string    `json:"post_id"`
	Subreddit string    `json:"subreddit"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Summary projects the snapshot onto its listing view
func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		PostID:    s.PostID,
		Subreddit: s.Subreddit,
		URL:       s.URL,
		FetchedAt: s.FetchedAt,
	}
}
