package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/address-discovery/internal/adapter"
	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/extractor"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/metrics"
	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/retry"
	"github.com/address-discovery/internal/storage"
	"github.com/address-discovery/internal/types"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

const sourceName = types.SourceReddit

// EventSink receives a copy of every extraction stored by the service.
// Failures are logged and never affect the cycle.
type EventSink interface {
	RecordExtractions(ctx context.Context, events []*models.ExtractionEvent) error
}

// IngestionOptions holds cycle defaults
type IngestionOptions struct {
	Mode          string
	PageSize      int
	FetchComments bool
	// CommentDelay is the pause before every comment fetch
	CommentDelay time.Duration
	// PageDelay is the pause between pages in RunPages
	PageDelay time.Duration
	// PageErrorDelay is the pause after a failed page in RunPages
	PageErrorDelay time.Duration
}

// DefaultIngestionOptions returns the production defaults
func DefaultIngestionOptions() IngestionOptions {
	return IngestionOptions{
		Mode:           "new",
		PageSize:       25,
		FetchComments:  true,
		CommentDelay:   1100 * time.Millisecond,
		PageDelay:      1200 * time.Millisecond,
		PageErrorDelay: 2 * time.Second,
	}
}

// CycleInput is one request to ingest a page of a channel
type CycleInput struct {
	Channel  string `json:"subreddit"`
	Mode     string `json:"mode,omitempty"`
	PageSize int    `json:"limit,omitempty"`
	// FetchComments overrides the service default when set
	FetchComments *bool   `json:"fetch_comments,omitempty"`
	After         *string `json:"after,omitempty"`
}

// CycleResult reports what one cycle stored
type CycleResult struct {
	PostsSaved        int     `json:"posts_saved"`
	ExtractionsFound  int     `json:"extractions_found"`
	NewAddressesAdded int     `json:"new_addresses_added"`
	After             *string `json:"after"`
}

// IngestionService runs fetch-extract-validate-persist cycles
type IngestionService struct {
	connector adapter.SourceConnector
	stores    storage.Stores
	source    extractor.CandidateSource
	events    EventSink
	opts      IngestionOptions

	sleep retry.SleepFunc
	now   func() time.Time
	newID func() string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(connector adapter.SourceConnector, stores storage.Stores, opts IngestionOptions) *IngestionService {
	defaults := DefaultIngestionOptions()
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}

	return &IngestionService{
		connector: connector,
		stores:    stores,
		source:    extractor.RegexSource{},
		opts:      opts,
		sleep:     retry.SleepContext,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// SetEventSink mirrors stored extractions to sink. Pass nil to disable.
func (s *IngestionService) SetEventSink(sink EventSink) {
	s.events = sink
}

// SetCandidateSource replaces the regex extractor
func (s *IngestionService) SetCandidateSource(src extractor.CandidateSource) {
	if src == nil {
		src = extractor.RegexSource{}
	}
	s.source = src
}

// Options returns the effective defaults
func (s *IngestionService) Options() IngestionOptions {
	return s.opts
}

func (s *IngestionService) normalize(in *CycleInput) (mode string, pageSize int, fetchComments bool) {
	mode, pageSize, fetchComments = in.Mode, in.PageSize, s.opts.FetchComments
	if mode == "" {
		mode = s.opts.Mode
	}
	if pageSize <= 0 {
		pageSize = s.opts.PageSize
	}
	if in.FetchComments != nil {
		fetchComments = *in.FetchComments
	}
	return mode, pageSize, fetchComments
}

// RunCycle ingests one page of a channel starting at in.After.
// Only a failure to fetch the page itself is returned as an error; per-item
// failures are logged and the remaining items are still processed.
func (s *IngestionService) RunCycle(ctx context.Context, in *CycleInput) (*CycleResult, error) {
	if in == nil || in.Channel == "" {
		return nil, errors.NewInvalidParameterError("subreddit", "is required")
	}

	// a started cycle always runs to completion; callers stop between cycles
	ctx = context.WithoutCancel(ctx)

	mode, pageSize, fetchComments := s.normalize(in)
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"subreddit": in.Channel,
		"mode":      mode,
	})

	metrics.CyclesTotal.WithLabelValues(in.Channel).Inc()
	start := time.Now()
	defer func() {
		metrics.CycleLatency.WithLabelValues(in.Channel).Observe(time.Since(start).Seconds())
	}()

	after := ""
	if in.After != nil {
		after = *in.After
	}

	page, err := s.connector.FetchPage(ctx, in.Channel, mode, pageSize, after)
	if err != nil {
		metrics.CycleErrors.WithLabelValues(in.Channel).Inc()
		logger.WithError(err).Error("Failed to fetch listing page")
		return nil, err
	}
	if !page.OK() {
		metrics.CycleErrors.WithLabelValues(in.Channel).Inc()
		logger.WithField("status", page.StatusCode).Error("Listing page returned a non-success status")
		return nil, exhaustedStatusError(page.URL, page.StatusCode)
	}

	result := &CycleResult{}
	for i := range page.Items {
		item := &page.Items[i]

		outcome, err := s.processPost(ctx, in.Channel, item, page, fetchComments)
		if err != nil {
			metrics.ItemErrors.WithLabelValues(in.Channel).Inc()
			logger.WithField("postId", item.ID).WithError(err).Error("Failed to process item")
			continue
		}
		result.add(outcome)
	}

	if page.After != "" {
		token := page.After
		result.After = &token
	}

	if err := s.stores.Cursors.SetCursor(ctx, in.Channel, result.After, s.now()); err != nil {
		logger.WithError(err).Error("Failed to persist feed cursor")
	}

	logger.WithFields(map[string]interface{}{
		"items":        len(page.Items),
		"postsSaved":   result.PostsSaved,
		"extractions":  result.ExtractionsFound,
		"newAddresses": result.NewAddressesAdded,
	}).Info("Ingestion cycle completed")

	return result, nil
}

// exhaustedStatusError classifies a non-success answer left after retries
func exhaustedStatusError(url string, status int) error {
	if status == http.StatusTooManyRequests {
		return errors.NewProviderRateLimitError(sourceName)
	}
	return errors.NewProviderStatusError(sourceName, url, status)
}

func (r *CycleResult) add(o itemOutcome) {
	if o.snapshotCreated {
		r.PostsSaved++
	}
	r.ExtractionsFound += o.extractions
	r.NewAddressesAdded += o.newAddresses
}

type itemOutcome struct {
	snapshotID      string
	snapshotCreated bool
	extractions     int
	newAddresses    int
}

func (o *itemOutcome) merge(other itemOutcome) {
	o.extractions += other.extractions
	o.newAddresses += other.newAddresses
}

// processPost stores one listing item and everything extracted from it.
// Items that already have a snapshot are skipped entirely.
func (s *IngestionService) processPost(ctx context.Context, channel string, post *adapter.Post, page *adapter.PageResult, fetchComments bool) (itemOutcome, error) {
	existing, err := s.stores.Snapshots.FindByPost(ctx, sourceName, post.ID)
	if err != nil {
		return itemOutcome{}, errors.NewDatabaseError("find snapshot", err)
	}
	if existing != nil {
		return itemOutcome{snapshotID: existing.ID}, nil
	}

	snap, created, err := s.createSnapshot(ctx, channel, post, page.SHA256, page.FetchedAt)
	if err != nil {
		return itemOutcome{}, err
	}
	if !created {
		// lost a race with another worker; it owns this item
		return itemOutcome{snapshotID: snap.ID}, nil
	}
	metrics.SnapshotsSaved.WithLabelValues(channel).Inc()

	outcome := itemOutcome{snapshotID: snap.ID, snapshotCreated: true}
	seen := mapset.NewThreadUnsafeSet[string]()

	outcome.merge(s.processText(ctx, snap, post.Text(), types.SourcePathPost, seen))

	if fetchComments {
		outcome.merge(s.processComments(ctx, snap, channel, post.ID, seen))
	}

	return outcome, nil
}

// processComments fetches the item's comment tree after the pacing delay and
// extracts from every comment body. Failures are logged and swallowed.
func (s *IngestionService) processComments(ctx context.Context, snap *models.Snapshot, channel, postID string, seen mapset.Set[string]) itemOutcome {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"subreddit": channel,
		"postId":    postID,
	})

	if err := s.sleep(ctx, s.opts.CommentDelay); err != nil {
		logger.WithError(err).Warn("Comment fetch cancelled")
		return itemOutcome{}
	}

	detail, err := s.connector.FetchItemDetail(ctx, channel, postID)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch comments")
		return itemOutcome{}
	}
	if !detail.OK() {
		logger.WithField("status", detail.StatusCode).Warn("Comment fetch returned a non-success status")
		return itemOutcome{}
	}

	return s.processCommentBodies(ctx, snap, detail.Comments, seen)
}

func (s *IngestionService) processCommentBodies(ctx context.Context, snap *models.Snapshot, comments []adapter.Comment, seen mapset.Set[string]) itemOutcome {
	var outcome itemOutcome
	for _, c := range comments {
		if c.Body == "" {
			continue
		}
		outcome.merge(s.processText(ctx, snap, c.Body, types.SourcePathComment, seen))
	}
	return outcome
}

// processText extracts, validates, records and aggregates the candidates of
// one block of text. seen holds the (origin, address) keys already handled
// for this snapshot during the current call chain.
func (s *IngestionService) processText(ctx context.Context, snap *models.Snapshot, text string, path types.SourcePath, seen mapset.Set[string]) itemOutcome {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"snapshotId": snap.ID,
		"sourcePath": path,
	})

	var outcome itemOutcome
	var events []*models.ExtractionEvent
	snippet := extractor.Snippet(text)

	for _, c := range s.source.Candidates(text) {
		address := extractor.Canonicalize(c.Address)
		key := string(path) + "|" + address
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)

		exists, err := s.stores.Extractions.Exists(ctx, snap.ID, address, path)
		if err != nil {
			logger.WithError(err).Error("Failed to check extraction")
			continue
		}
		if exists {
			continue
		}

		status := extractor.Validate(c)
		ext := &models.Extraction{
			ID:               s.newID(),
			SnapshotID:       snap.ID,
			Address:          address,
			CoinCandidate:    c.Coin,
			ValidationStatus: status,
			ContextSnippet:   snippet,
			SourcePath:       path,
			ExtractedAt:      s.now(),
		}
		if err := s.stores.Extractions.Create(ctx, ext); err != nil {
			if storage.IsDuplicateKeyError(err) {
				logger.WithField("address", address).Warn("Extraction already recorded by a concurrent writer")
			} else {
				logger.WithField("address", address).WithError(err).Error("Failed to store extraction")
			}
			continue
		}
		outcome.extractions++
		metrics.ExtractionsSaved.WithLabelValues(snap.Subreddit, string(c.Coin), string(status)).Inc()
		events = append(events, extractionEvent(snap, ext))

		if status != types.StatusValid {
			continue
		}

		created, err := s.stores.Addresses.UpsertSighting(ctx, &storage.Sighting{
			CanonicalAddress: address,
			Coin:             c.Coin,
			ValidationStatus: status,
			SeenAt:           ext.ExtractedAt,
		})
		if err != nil {
			logger.WithField("address", address).WithError(err).Warn("Address upsert failed")
			continue
		}
		if created {
			outcome.newAddresses++
			metrics.NewAddresses.WithLabelValues(string(c.Coin)).Inc()
		}
	}

	s.publish(ctx, events)
	return outcome
}

func (s *IngestionService) publish(ctx context.Context, events []*models.ExtractionEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.RecordExtractions(ctx, events); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to mirror extraction events")
	}
}

func extractionEvent(snap *models.Snapshot, e *models.Extraction) *models.ExtractionEvent {
	return &models.ExtractionEvent{
		ExtractionID:     e.ID,
		SnapshotID:       snap.ID,
		Source:           snap.Source,
		Subreddit:        snap.Subreddit,
		PostID:           snap.PostID,
		Address:          e.Address,
		Coin:             string(e.CoinCandidate),
		ValidationStatus: string(e.ValidationStatus),
		SourcePath:       string(e.SourcePath),
		ExtractedAt:      e.ExtractedAt,
	}
}

// createSnapshot stores a new snapshot. created is false when another writer
// stored the same item first; the existing snapshot is returned instead.
func (s *IngestionService) createSnapshot(ctx context.Context, channel string, post *adapter.Post, sha string, fetchedAt time.Time) (*models.Snapshot, bool, error) {
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}
	snap := &models.Snapshot{
		ID:        s.newID(),
		Source:    sourceName,
		Subreddit: channel,
		PostID:    post.ID,
		URL:       adapter.PermalinkURL(post.Permalink),
		Raw:       post.Raw,
		SHA256:    sha,
		FetchedAt: fetchedAt,
		Status:    types.SnapshotStatusNew,
	}

	err := s.stores.Snapshots.Create(ctx, snap)
	if err == nil {
		return snap, true, nil
	}
	if !storage.IsDuplicateKeyError(err) {
		return nil, false, errors.NewDatabaseError("create snapshot", err)
	}

	logging.FromContext(ctx).WithField("postId", post.ID).Warn("Snapshot already stored by a concurrent writer")
	existing, findErr := s.stores.Snapshots.FindByPost(ctx, sourceName, post.ID)
	if findErr != nil || existing == nil {
		return nil, false, errors.NewDatabaseError("find snapshot", stderrors.Join(err, findErr))
	}
	return existing, false, nil
}

// ErrNoItem is returned by ScanItem when the detail response carries no item
var ErrNoItem = stderrors.New("no post data found in thread")

// ScanResult reports a single-item scan
type ScanResult struct {
	Channel           string `json:"subreddit"`
	PostID            string `json:"post_id"`
	SnapshotID        string `json:"snapshot_id"`
	SnapshotCreated   bool   `json:"snapshot_created"`
	ExtractionsFound  int    `json:"extractions_found"`
	NewAddressesAdded int    `json:"new_addresses_added"`
}

// ScanItem ingests one item by URL, bypassing the listing and the feed cursor.
// Unlike RunCycle, an existing snapshot is reused and the item is rescanned;
// the ledger's uniqueness keeps that idempotent.
func (s *IngestionService) ScanItem(ctx context.Context, itemURL string) (*ScanResult, error) {
	channel, postID, err := adapter.ParseItemURL(itemURL)
	if err != nil {
		return nil, errors.NewInvalidParameterError("url", err.Error())
	}
	ctx = context.WithoutCancel(ctx)

	detail, err := s.connector.FetchItemDetail(ctx, channel, postID)
	if err != nil {
		return nil, err
	}
	if !detail.OK() {
		return nil, exhaustedStatusError(detail.URL, detail.StatusCode)
	}
	if detail.Item == nil {
		return nil, errors.NewProviderError(sourceName, ErrNoItem)
	}

	post := detail.Item
	if post.ID == "" {
		post.ID = postID
	}

	snap, err := s.stores.Snapshots.FindByPost(ctx, sourceName, post.ID)
	if err != nil {
		return nil, errors.NewDatabaseError("find snapshot", err)
	}

	result := &ScanResult{Channel: channel, PostID: post.ID}
	if snap == nil {
		var created bool
		snap, created, err = s.createSnapshot(ctx, channel, post, detail.SHA256, detail.FetchedAt)
		if err != nil {
			return nil, err
		}
		result.SnapshotCreated = created
		if created {
			metrics.SnapshotsSaved.WithLabelValues(channel).Inc()
		}
	}
	result.SnapshotID = snap.ID

	seen := mapset.NewThreadUnsafeSet[string]()
	outcome := s.processText(ctx, snap, post.Text(), types.SourcePathPost, seen)
	outcome.merge(s.processCommentBodies(ctx, snap, detail.Comments, seen))

	result.ExtractionsFound = outcome.extractions
	result.NewAddressesAdded = outcome.newAddresses

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"subreddit":    channel,
		"postId":       post.ID,
		"extractions":  result.ExtractionsFound,
		"newAddresses": result.NewAddressesAdded,
	}).Info("Single item scan completed")

	return result, nil
}

// PagesResult summarises a multi-page run for one channel
type PagesResult struct {
	Channel           string  `json:"subreddit"`
	Pages             int     `json:"pages"`
	PostsSaved        int     `json:"posts_saved"`
	ExtractionsFound  int     `json:"extractions_found"`
	NewAddressesAdded int     `json:"new_addresses_added"`
	Errors            int     `json:"errors"`
	After             *string `json:"after"`
}

// RunPages walks a channel from its stored cursor until targetPosts new items
// were saved, the feed has no next page, or maxPages attempts were made.
// A failed page is logged, paused on and retried from the same token.
func (s *IngestionService) RunPages(ctx context.Context, channel string, targetPosts, maxPages, pageSize int) (*PagesResult, error) {
	cursor, err := s.stores.Cursors.GetCursor(ctx, channel)
	if err != nil {
		return nil, errors.NewDatabaseError("get feed cursor", err)
	}

	var after *string
	if cursor != nil {
		after = cursor.After
	}

	logger := logging.FromContext(ctx).WithField("subreddit", channel)
	out := &PagesResult{Channel: channel, After: after}

	for attempts := 0; out.PostsSaved < targetPosts && attempts < maxPages; attempts++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := s.RunCycle(ctx, &CycleInput{Channel: channel, PageSize: pageSize, After: after})
		if err != nil {
			out.Errors++
			logger.WithError(err).Warn("Page failed, pausing before retry")
			if err := s.sleep(ctx, s.opts.PageErrorDelay); err != nil {
				return out, err
			}
			continue
		}

		out.Pages++
		out.PostsSaved += res.PostsSaved
		out.ExtractionsFound += res.ExtractionsFound
		out.NewAddressesAdded += res.NewAddressesAdded
		after = res.After
		out.After = after

		if after == nil {
			break
		}
		if err := s.sleep(ctx, s.opts.PageDelay); err != nil {
			return out, err
		}
	}

	logger.WithFields(map[string]interface{}{
		"pages":      out.Pages,
		"postsSaved": out.PostsSaved,
		"errors":     out.Errors,
	}).Info("Paginated scrape finished")

	return out, nil
}

// RebuildResult reports a RebuildAggregates run
type RebuildResult struct {
	Extractions int `json:"extractions"`
	Created     int `json:"created"`
	Existing    int `json:"existing"`
	Failed      int `json:"failed"`
}

const rebuildPageSize = 500

// RebuildAggregates recreates missing address aggregates from the stored
// syntactic_ok extractions. Extractions are grouped per (address, coin) first
// so every aggregate is written once with its full count; aggregates that
// already exist are left untouched and are never double counted.
func (s *IngestionService) RebuildAggregates(ctx context.Context) (*RebuildResult, error) {
	type group struct {
		coin  types.CoinType
		addr  string
		first time.Time
		last  time.Time
		count int64
	}
	groups := make(map[string]*group)
	var order []string
	result := &RebuildResult{}

	for offset := 0; ; offset += rebuildPageSize {
		batch, err := s.stores.Extractions.ListByStatus(ctx, types.StatusValid, rebuildPageSize, offset)
		if err != nil {
			return result, errors.NewDatabaseError("list extractions", err)
		}
		for _, e := range batch {
			result.Extractions++
			addr := extractor.Canonicalize(e.Address)
			key := string(e.CoinCandidate) + "|" + addr
			g, ok := groups[key]
			if !ok {
				g = &group{coin: e.CoinCandidate, addr: addr, first: e.ExtractedAt, last: e.ExtractedAt}
				groups[key] = g
				order = append(order, key)
			}
			g.count++
			if e.ExtractedAt.Before(g.first) {
				g.first = e.ExtractedAt
			}
			if e.ExtractedAt.After(g.last) {
				g.last = e.ExtractedAt
			}
		}
		if len(batch) < rebuildPageSize {
			break
		}
	}

	logger := logging.FromContext(ctx)
	for _, key := range order {
		g := groups[key]
		inserted, err := s.stores.Addresses.InsertIfAbsent(ctx, &models.Address{
			CanonicalAddress: g.addr,
			Coin:             g.coin,
			ValidationStatus: types.StatusValid,
			FirstSeenTs:      g.first,
			LastSeenTs:       g.last,
			SourceCount:      g.count,
		})
		if err != nil {
			result.Failed++
			logger.WithField("address", g.addr).WithError(err).Error("Failed to rebuild address")
			continue
		}
		if inserted {
			result.Created++
		} else {
			result.Existing++
		}
	}

	logger.WithFields(map[string]interface{}{
		"extractions": result.Extractions,
		"created":     result.Created,
		"existing":    result.Existing,
		"failed":      result.Failed,
	}).Info("Address aggregates rebuilt")

	return result, nil
}

// RescanHit is one stored snapshot whose payload still contains candidates
type RescanHit struct {
	PostID     string                `json:"post_id"`
	URL        string                `json:"url"`
	Candidates []extractor.Candidate `json:"candidates"`
}

// RescanSnapshots reruns the candidate source over the most recent stored
// payloads without writing anything.
func (s *IngestionService) RescanSnapshots(ctx context.Context, limit int) ([]RescanHit, error) {
	snaps, err := s.stores.Snapshots.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list snapshots", err)
	}

	hits := make([]RescanHit, 0)
	for _, snap := range snaps {
		post, err := adapter.DecodePost(snap.Raw)
		if err != nil {
			logging.FromContext(ctx).WithField("postId", snap.PostID).WithError(err).Warn("Stored payload is not a post")
			continue
		}

		unique := mapset.NewThreadUnsafeSet[extractor.Candidate]()
		var cands []extractor.Candidate
		for _, c := range s.source.Candidates(post.Text()) {
			if unique.Add(c) {
				cands = append(cands, c)
			}
		}
		if len(cands) > 0 {
			hits = append(hits, RescanHit{PostID: snap.PostID, URL: snap.URL, Candidates: cands})
		}
	}
	return hits, nil
}

// PipelineStats is the totals view of the stores
type PipelineStats struct {
	Snapshots      int64      `json:"totalSnapshots"`
	Extractions    int64      `json:"totalExtractions"`
	ValidAddresses int64      `json:"totalAddresses"`
	LastScrape     *time.Time `json:"lastScrape"`
	Cursors        int        `json:"feeds"`
}

// Stats returns pipeline totals
func (s *IngestionService) Stats(ctx context.Context) (*PipelineStats, error) {
	var st PipelineStats
	var err error

	if st.Snapshots, err = s.stores.Snapshots.Count(ctx); err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if st.Extractions, err = s.stores.Extractions.Count(ctx); err != nil {
		return nil, fmt.Errorf("count extractions: %w", err)
	}
	if st.ValidAddresses, err = s.stores.Addresses.CountConfirmed(ctx); err != nil {
		return nil, fmt.Errorf("count addresses: %w", err)
	}
	if st.LastScrape, err = s.stores.Snapshots.LatestFetchedAt(ctx); err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	cursors, err := s.stores.Cursors.ListCursors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	st.Cursors = len(cursors)
	return &st, nil
}

// ListConfirmedAddresses returns syntactic_ok aggregates, most recently seen first
func (s *IngestionService) ListConfirmedAddresses(ctx context.Context, limit int) ([]*models.Address, error) {
	return s.stores.Addresses.ListConfirmed(ctx, limit)
}

// ListRecentSnapshots returns the newest snapshots
func (s *IngestionService) ListRecentSnapshots(ctx context.Context, limit int) ([]*models.Snapshot, error) {
	return s.stores.Snapshots.ListRecent(ctx, limit)
}

// Cursor returns the stored cursor for a channel, nil when absent
func (s *IngestionService) Cursor(ctx context.Context, channel string) (*models.FeedCursor, error) {
	return s.stores.Cursors.GetCursor(ctx, channel)
}
