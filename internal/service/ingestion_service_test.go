package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/address-discovery/internal/adapter"
	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/storage"
	"github.com/address-discovery/internal/storage/memory"
	"github.com/address-discovery/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ethMixed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	ethLower = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	btcAddr  = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	xmrAddr  = "44AFFq5kSiGBoZ4NMDwYtN18obc8AemS33DBLWs3H7otXft3XjrpDtQGv7SqSsaBYBb98uNbr2VBBEt7f2wfn3RVGQBEP3A"
)

// Mock connector for testing

type fakeConnector struct {
	mu          sync.Mutex
	pages       map[string]*adapter.PageResult
	pageErr     error
	details     map[string]*adapter.ItemDetailResult
	detailErrs  map[string]error
	pageCalls   []string
	detailCalls []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		pages:      make(map[string]*adapter.PageResult),
		details:    make(map[string]*adapter.ItemDetailResult),
		detailErrs: make(map[string]error),
	}
}

func (f *fakeConnector) FetchPage(_ context.Context, channel, mode string, pageSize int, after string) (*adapter.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, after)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	page, ok := f.pages[after]
	if !ok {
		return &adapter.PageResult{StatusCode: 200, Parsed: true, Items: []adapter.Post{}}, nil
	}
	cp := *page
	return &cp, nil
}

func (f *fakeConnector) FetchItemDetail(_ context.Context, channel, itemID string) (*adapter.ItemDetailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, itemID)
	if err := f.detailErrs[itemID]; err != nil {
		return nil, err
	}
	if d, ok := f.details[itemID]; ok {
		return d, nil
	}
	return &adapter.ItemDetailResult{StatusCode: 200, Parsed: true, Comments: []adapter.Comment{}}, nil
}

func post(id, title, body string) adapter.Post {
	p := adapter.Post{ID: id, Title: title, Selftext: body, Permalink: "/r/test/comments/" + id + "/t/", Subreddit: "test"}
	raw, _ := json.Marshal(map[string]string{"id": id, "title": title, "selftext": body, "permalink": p.Permalink})
	p.Raw = raw
	return p
}

func page(after string, items ...adapter.Post) *adapter.PageResult {
	return &adapter.PageResult{
		URL:        "https://www.reddit.com/r/test/new.json",
		StatusCode: 200,
		SHA256:     "deadbeef",
		Parsed:     true,
		Items:      items,
		After:      after,
		FetchedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func comments(bodies ...string) *adapter.ItemDetailResult {
	d := &adapter.ItemDetailResult{StatusCode: 200, Parsed: true}
	for i, b := range bodies {
		d.Comments = append(d.Comments, adapter.Comment{ID: fmt.Sprintf("c%d", i), Body: b})
	}
	return d
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

type fixture struct {
	svc     *IngestionService
	conn    *fakeConnector
	stores  storage.Stores
	sleeper *recordingSleeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := newFakeConnector()
	stores := memory.New().Stores()
	svc := NewIngestionService(conn, stores, DefaultIngestionOptions())
	sl := &recordingSleeper{}
	svc.sleep = sl.sleep

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, conn: conn, stores: stores, sleeper: sl}
}

func (f *fixture) extractions(t *testing.T) []*models.Extraction {
	t.Helper()
	all := make([]*models.Extraction, 0)
	for _, st := range []types.ValidationStatus{types.StatusValid, types.StatusInvalid, types.StatusUnknown} {
		list, err := f.stores.Extractions.ListByStatus(context.Background(), st, 1000, 0)
		require.NoError(t, err)
		all = append(all, list...)
	}
	return all
}

func TestRunCycle_IdempotentReingestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("", post("abc123", "hello", "send to "+ethMixed))

	first, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.PostsSaved)
	assert.Equal(t, 1, first.ExtractionsFound)
	assert.Equal(t, 1, first.NewAddressesAdded)

	second, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, &CycleResult{}, second)

	n, _ := f.stores.Snapshots.Count(ctx)
	assert.EqualValues(t, 1, n)
	assert.Len(t, f.extractions(t), 1)

	a, err := f.stores.Addresses.Get(ctx, ethLower, types.CoinEthereum)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.EqualValues(t, 1, a.SourceCount)

	// the second run short-circuits before fetching comments
	assert.Equal(t, []string{"abc123"}, f.conn.detailCalls)
}

func TestRunCycle_CanonicalizesHexAddresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("", post("p1", ethMixed, ""))

	_, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)

	exts := f.extractions(t)
	require.Len(t, exts, 1)
	assert.Equal(t, ethLower, exts[0].Address)
	assert.Equal(t, types.SourcePathPost, exts[0].SourcePath)
	assert.Equal(t, ethMixed+"\n", exts[0].ContextSnippet)

	confirmed, err := f.stores.Addresses.ListConfirmed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, ethLower, confirmed[0].CanonicalAddress)
}

func TestRunCycle_BodyAndCommentYieldTwoRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("", post("p1", "t", "tip "+ethMixed))
	f.conn.details["p1"] = comments("also "+ethLower, "no address", "")

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExtractionsFound)
	assert.Equal(t, 1, res.NewAddressesAdded)

	exts := f.extractions(t)
	require.Len(t, exts, 2)
	paths := []types.SourcePath{exts[0].SourcePath, exts[1].SourcePath}
	assert.ElementsMatch(t, []types.SourcePath{types.SourcePathPost, types.SourcePathComment}, paths)

	a, err := f.stores.Addresses.Get(ctx, ethLower, types.CoinEthereum)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.EqualValues(t, 2, a.SourceCount)
	assert.False(t, a.LastSeenTs.Before(a.FirstSeenTs))
}

func TestRunCycle_RepeatedAddressInOneBodyRecordedOnce(t *testing.T) {
	f := newFixture(t)
	f.conn.pages[""] = page("", post("p1", ethMixed, ethMixed+" and again "+ethLower))

	res, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExtractionsFound)
}

func TestRunCycle_UnverifiableAndInvalidAreNotAggregated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	badBTC := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb"
	f.conn.pages[""] = page("", post("p1", "t", xmrAddr+" "+badBTC+" "+btcAddr))

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewAddressesAdded)

	statuses := map[string]types.ValidationStatus{}
	for _, e := range f.extractions(t) {
		statuses[e.Address] = e.ValidationStatus
	}
	assert.Equal(t, types.StatusUnknown, statuses[xmrAddr])
	assert.Equal(t, types.StatusInvalid, statuses[badBTC])
	assert.Equal(t, types.StatusValid, statuses[btcAddr])

	n, err := f.stores.Addresses.CountConfirmed(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRunCycle_PageFetchFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pageErr = errors.NewProviderError("reddit", stderrors.New("connection reset"))

	_, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.Error(t, err)

	c, err := f.stores.Cursors.GetCursor(ctx, "test")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRunCycle_ExhaustedStatusIsProviderError(t *testing.T) {
	f := newFixture(t)
	f.conn.pages[""] = &adapter.PageResult{StatusCode: 503, URL: "u"}

	_, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test"})
	require.Error(t, err)
	cat := errors.Categorize(err)
	assert.Equal(t, errors.CategoryProvider, cat.Category)
	assert.Equal(t, "PROVIDER_BAD_STATUS", cat.Code)
}

func TestRunCycle_ExhaustedRateLimitIsProviderRateLimit(t *testing.T) {
	f := newFixture(t)
	f.conn.pages[""] = &adapter.PageResult{StatusCode: 429, URL: "u"}

	_, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test"})
	require.Error(t, err)
	cat := errors.Categorize(err)
	assert.Equal(t, errors.CategoryProvider, cat.Category)
	assert.Equal(t, "PROVIDER_RATE_LIMIT", cat.Code)
	assert.False(t, errors.IsUserError(err))
}

func TestRunCycle_UnparsableBodyIsEmptyPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = &adapter.PageResult{StatusCode: 200, Parsed: false, Items: []adapter.Post{}}

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.PostsSaved)
	assert.Nil(t, res.After)

	c, err := f.stores.Cursors.GetCursor(ctx, "test")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Nil(t, c.After)
}

func TestRunCycle_CommentFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("t3_next",
		post("p1", "t", btcAddr),
		post("p2", "t", ethMixed),
	)
	f.conn.detailErrs["p1"] = stderrors.New("timeout")
	f.conn.details["p2"] = &adapter.ItemDetailResult{StatusCode: 500}

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PostsSaved)
	assert.Equal(t, 2, res.ExtractionsFound)
	assert.Equal(t, []string{"p1", "p2"}, f.conn.detailCalls)
}

func TestRunCycle_CommentPacing(t *testing.T) {
	f := newFixture(t)
	f.conn.pages[""] = page("", post("p1", "a", ""), post("p2", "b", ""))

	_, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{1100 * time.Millisecond, 1100 * time.Millisecond}, f.sleeper.delays)
}

func TestRunCycle_FetchCommentsDisabled(t *testing.T) {
	f := newFixture(t)
	f.conn.pages[""] = page("", post("p1", "a", ""))
	off := false

	_, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test", FetchComments: &off})
	require.NoError(t, err)
	assert.Empty(t, f.conn.detailCalls)
	assert.Empty(t, f.sleeper.delays)
}

func TestRunCycle_PaginationResumability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("t3_p2", post("p1", "a", ""), post("p2", "b", ""))
	f.conn.pages["t3_p2"] = page("", post("p3", "c", ""), post("p4", "d", ""))

	first, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	require.NotNil(t, first.After)

	c, err := f.stores.Cursors.GetCursor(ctx, "test")
	require.NoError(t, err)
	require.NotNil(t, c.After)
	assert.Equal(t, "t3_p2", *c.After)

	second, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test", After: c.After})
	require.NoError(t, err)
	assert.Equal(t, 2, second.PostsSaved)
	assert.Nil(t, second.After)
	assert.Equal(t, []string{"", "t3_p2"}, f.conn.pageCalls)

	n, _ := f.stores.Snapshots.Count(ctx)
	assert.EqualValues(t, 4, n)
}

func TestRunCycle_RequiresChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunCycle(context.Background(), &CycleInput{})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.Categorize(err).Category)
}

type captureSink struct {
	events []*models.ExtractionEvent
	err    error
}

func (c *captureSink) RecordExtractions(_ context.Context, events []*models.ExtractionEvent) error {
	c.events = append(c.events, events...)
	return c.err
}

func TestRunCycle_MirrorsEvents(t *testing.T) {
	f := newFixture(t)
	sink := &captureSink{err: stderrors.New("clickhouse down")}
	f.svc.SetEventSink(sink)
	f.conn.pages[""] = page("", post("p1", "t", btcAddr))

	res, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExtractionsFound)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "p1", sink.events[0].PostID)
	assert.Equal(t, "bitcoin", sink.events[0].Coin)
	assert.Equal(t, "post", sink.events[0].SourcePath)
}

func TestScanItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := comments("comment " + btcAddr)
	p := post("abc123", "title", ethMixed)
	detail.Item = &p
	f.conn.details["abc123"] = detail

	res, err := f.svc.ScanItem(ctx, "https://www.reddit.com/r/test/comments/abc123/title/")
	require.NoError(t, err)
	assert.True(t, res.SnapshotCreated)
	assert.Equal(t, "test", res.Channel)
	assert.Equal(t, 2, res.ExtractionsFound)
	assert.Equal(t, 2, res.NewAddressesAdded)

	again, err := f.svc.ScanItem(ctx, "https://reddit.com/r/test/comments/abc123/")
	require.NoError(t, err)
	assert.False(t, again.SnapshotCreated)
	assert.Equal(t, res.SnapshotID, again.SnapshotID)
	assert.Equal(t, 0, again.ExtractionsFound)

	// single item scans never touch the cursor
	c, _ := f.stores.Cursors.GetCursor(ctx, "test")
	assert.Nil(t, c)
}

func TestScanItem_BadURL(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ScanItem(context.Background(), "https://example.com/r/x/comments/abc")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.Categorize(err).Category)

	_, err = f.svc.ScanItem(context.Background(), "https://reddit.com/r/x/")
	require.Error(t, err)
}

func TestScanItem_NoItem(t *testing.T) {
	f := newFixture(t)
	f.conn.details["abc"] = comments()

	_, err := f.svc.ScanItem(context.Background(), "https://reddit.com/r/x/comments/abc/")
	assert.ErrorIs(t, err, ErrNoItem)
}

func TestRunPages_StopsWhenFeedEnds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("t3_a", post("p1", "a", ""))
	f.conn.pages["t3_a"] = page("", post("p2", "b", ""))

	res, err := f.svc.RunPages(ctx, "test", 100, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.PostsSaved)
	assert.Nil(t, res.After)
	assert.Contains(t, f.sleeper.delays, 1200*time.Millisecond)
}

func TestRunPages_ResumesFromCursorAndStopsAtTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := "t3_b"
	require.NoError(t, f.stores.Cursors.SetCursor(ctx, "test", &token, time.Now()))
	f.conn.pages["t3_b"] = page("t3_c", post("p1", "a", ""), post("p2", "b", ""))
	f.conn.pages["t3_c"] = page("t3_d", post("p3", "c", ""))

	res, err := f.svc.RunPages(ctx, "test", 2, 10, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{"t3_b"}, f.conn.pageCalls)
}

func TestRunPages_ErrorsCountTowardsMaxPages(t *testing.T) {
	f := newFixture(t)
	f.conn.pageErr = stderrors.New("boom")

	res, err := f.svc.RunPages(context.Background(), "test", 10, 3, 25)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Errors)
	assert.Equal(t, 0, res.Pages)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, f.sleeper.delays)
}

func TestRebuildAggregates_GroupsAndNeverDoubleCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id, snap, addr string, coin types.CoinType, status types.ValidationStatus, at time.Time) {
		require.NoError(t, f.stores.Extractions.Create(ctx, &models.Extraction{
			ID: id, SnapshotID: snap, Address: addr, CoinCandidate: coin,
			ValidationStatus: status, SourcePath: types.SourcePathPost, ExtractedAt: at,
		}))
	}
	mk("e1", "s1", ethLower, types.CoinEthereum, types.StatusValid, base)
	mk("e2", "s2", ethLower, types.CoinEthereum, types.StatusValid, base.Add(time.Hour))
	mk("e3", "s3", btcAddr, types.CoinBitcoin, types.StatusValid, base)
	mk("e4", "s3", xmrAddr, types.CoinMonero, types.StatusUnknown, base)

	res, err := f.svc.RebuildAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RebuildResult{Extractions: 3, Created: 2}, res)

	a, err := f.stores.Addresses.Get(ctx, ethLower, types.CoinEthereum)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.EqualValues(t, 2, a.SourceCount)
	assert.True(t, a.FirstSeenTs.Equal(base))
	assert.True(t, a.LastSeenTs.Equal(base.Add(time.Hour)))

	again, err := f.svc.RebuildAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 2, again.Existing)

	a, _ = f.stores.Addresses.Get(ctx, ethLower, types.CoinEthereum)
	assert.EqualValues(t, 2, a.SourceCount)
}

func TestRescanSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("", post("p1", "t", btcAddr+" "+btcAddr), post("p2", "nothing", ""))
	_, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	before, _ := f.stores.Extractions.Count(ctx)

	hits, err := f.svc.RescanSnapshots(ctx, 50)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].PostID)
	assert.Len(t, hits[0].Candidates, 1)

	after, _ := f.stores.Extractions.Count(ctx)
	assert.Equal(t, before, after)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("t3_x", post("p1", "t", ethMixed))
	_, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Snapshots)
	assert.EqualValues(t, 1, st.Extractions)
	assert.EqualValues(t, 1, st.ValidAddresses)
	assert.Equal(t, 1, st.Cursors)
	require.NotNil(t, st.LastScrape)
}

type failingCursors struct{ storage.CursorStore }

func (failingCursors) SetCursor(context.Context, string, *string, time.Time) error {
	return stderrors.New("cursor table locked")
}

type flakyAddresses struct {
	storage.AddressStore
	failFor string
}

func (f *flakyAddresses) UpsertSighting(ctx context.Context, s *storage.Sighting) (bool, error) {
	if s.CanonicalAddress == f.failFor {
		return false, stderrors.New("deadlock detected")
	}
	return f.AddressStore.UpsertSighting(ctx, s)
}

func TestRunCycle_CursorWriteFailureKeepsResult(t *testing.T) {
	f := newFixture(t)
	f.svc.stores.Cursors = failingCursors{f.stores.Cursors}
	f.conn.pages[""] = page("t3_next", post("p1", "t", ethMixed), post("p2", "t", btcAddr))

	res, err := f.svc.RunCycle(context.Background(), &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PostsSaved)
	assert.Equal(t, 2, res.ExtractionsFound)
	assert.Equal(t, 2, res.NewAddressesAdded)
	require.NotNil(t, res.After)
	assert.Equal(t, "t3_next", *res.After)

	c, err := f.stores.Cursors.GetCursor(context.Background(), "test")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRunCycle_AggregateFailureDoesNotStopLaterCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.stores.Addresses = &flakyAddresses{AddressStore: f.stores.Addresses, failFor: ethLower}
	f.conn.pages[""] = page("",
		post("p1", "t", ethMixed+" then "+btcAddr),
		post("p2", "t", btcAddr),
	)

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PostsSaved)
	assert.Equal(t, 3, res.ExtractionsFound)
	assert.Equal(t, 1, res.NewAddressesAdded)

	// the extraction is kept even though its aggregate write failed
	assert.Len(t, f.extractions(t), 3)

	eth, err := f.stores.Addresses.Get(ctx, ethLower, types.CoinEthereum)
	require.NoError(t, err)
	assert.Nil(t, eth)

	btc, err := f.stores.Addresses.Get(ctx, btcAddr, types.CoinBitcoin)
	require.NoError(t, err)
	require.NotNil(t, btc)
	assert.EqualValues(t, 2, btc.SourceCount)
}

func TestRunCycle_CancelledCallerStillCompletesCycle(t *testing.T) {
	f := newFixture(t)
	f.svc.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	f.conn.pages[""] = page("t3_next", post("p1", "t", "no address here"))
	f.conn.details["p1"] = comments("tip " + ethMixed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PostsSaved)
	assert.Equal(t, 1, res.ExtractionsFound)

	exts := f.extractions(t)
	require.Len(t, exts, 1)
	assert.Equal(t, types.SourcePathComment, exts[0].SourcePath)

	a, err := f.stores.Addresses.Get(context.Background(), ethLower, types.CoinEthereum)
	require.NoError(t, err)
	require.NotNil(t, a)

	c, err := f.stores.Cursors.GetCursor(context.Background(), "test")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NotNil(t, c.After)
	assert.Equal(t, "t3_next", *c.After)
}

func TestRunCycle_Bech32CaseVariantsShareOneAggregate(t *testing.T) {
	const bech32Lower = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	f := newFixture(t)
	ctx := context.Background()
	f.conn.pages[""] = page("",
		post("p1", "t", bech32Lower),
		post("p2", "t", "BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4"),
	)

	res, err := f.svc.RunCycle(ctx, &CycleInput{Channel: "test"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExtractionsFound)
	assert.Equal(t, 1, res.NewAddressesAdded)

	a, err := f.stores.Addresses.Get(ctx, bech32Lower, types.CoinBech32)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.EqualValues(t, 2, a.SourceCount)
}
