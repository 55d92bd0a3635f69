package adapter

import (
	"context"
	"encoding/json"
	"time"
)

// SourceConnector fetches listing pages and item details from a discussion source
type SourceConnector interface {
	// FetchPage returns one page of the channel's listing. after is the
	// pagination token from a previous page, empty for the head of the feed.
	FetchPage(ctx context.Context, channel, mode string, pageSize int, after string) (*PageResult, error)

	// FetchItemDetail returns the item body and its top-level comments.
	FetchItemDetail(ctx context.Context, channel, itemID string) (*ItemDetailResult, error)
}

// Post is one listing item. Raw keeps the provider's item object verbatim.
type Post struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Selftext   string          `json:"selftext"`
	Permalink  string          `json:"permalink"`
	Subreddit  string          `json:"subreddit"`
	Author     string          `json:"author"`
	CreatedUTC float64         `json:"created_utc"`
	Raw        json.RawMessage `json:"-"`
}

// Text is the extraction input of a post: title and body separated by a newline.
func (p *Post) Text() string {
	return p.Title + "\n" + p.Selftext
}

// Comment is one top-level comment of an item
type Comment struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// PageResult is the outcome of FetchPage. Parsed is false when the body was
// not valid JSON; Items is then empty but SHA256 and StatusCode are still set.
type PageResult struct {
	URL        string
	StatusCode int
	SHA256     string
	Parsed     bool
	Items      []Post
	After      string
	FetchedAt  time.Time
}

// OK reports whether the provider answered with a 2xx status
func (r *PageResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ItemDetailResult is the outcome of FetchItemDetail
type ItemDetailResult struct {
	URL        string
	StatusCode int
	SHA256     string
	Parsed     bool
	Item       *Post
	Comments   []Comment
	FetchedAt  time.Time
}

// OK reports whether the provider answered with a 2xx status
func (r *ItemDetailResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
