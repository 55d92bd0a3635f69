package models

import "time"

// FeedCursor stores the last pagination token seen for a channel.
// After is nil when the provider returned no further page.
type FeedCursor struct {
	Subreddit  string    `json:"subreddit" db:"subreddit"`
	After      *string   `json:"after" db:"after_token"`
	LastSeenTs time.Time `json:"last_seen_ts" db:"last_seen_ts"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
