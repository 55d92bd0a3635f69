// Package memory provides mutex-guarded in-memory implementations of the
// storage interfaces. Used by tests and by the ctl demo command, whose
// synthetic addresses must never reach Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/storage"
	"github.com/address-discovery/internal/types"
)

// Store implements every storage interface over maps
type Store struct {
	mu          sync.RWMutex
	snapshots   map[string]*models.Snapshot // by id
	byPost      map[string]string           // source|post_id -> id
	extractions []*models.Extraction
	extKeys     map[string]struct{} // snapshot_id|source_path|address
	addresses   map[string]*models.Address
	cursors     map[string]*models.FeedCursor
	now         func() time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{
		snapshots: make(map[string]*models.Snapshot),
		byPost:    make(map[string]string),
		extKeys:   make(map[string]struct{}),
		addresses: make(map[string]*models.Address),
		cursors:   make(map[string]*models.FeedCursor),
		now:       time.Now,
	}
}

// Stores returns the bundle backed by this store
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Snapshots:   (*snapshotStore)(s),
		Extractions: (*extractionStore)(s),
		Addresses:   (*addressStore)(s),
		Cursors:     (*cursorStore)(s),
	}
}

type (
	snapshotStore   Store
	extractionStore Store
	addressStore    Store
	cursorStore     Store
)

var (
	_ storage.SnapshotStore   = (*snapshotStore)(nil)
	_ storage.ExtractionStore = (*extractionStore)(nil)
	_ storage.AddressStore    = (*addressStore)(nil)
	_ storage.CursorStore     = (*cursorStore)(nil)
)

func postKey(source, postID string) string { return source + "|" + postID }

func addrKey(canonical string, coin types.CoinType) string { return string(coin) + "|" + canonical }

// snapshots

func (s *snapshotStore) FindByPost(_ context.Context, source, postID string) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPost[postKey(source, postID)]
	if !ok {
		return nil, nil
	}
	cp := *s.snapshots[id]
	return &cp, nil
}

func (s *snapshotStore) Create(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := postKey(snap.Source, snap.PostID)
	if _, ok := s.byPost[key]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := s.snapshots[snap.ID]; ok {
		return storage.ErrDuplicateKey
	}
	snap.CreatedAt = s.now()
	cp := *snap
	s.snapshots[snap.ID] = &cp
	s.byPost[key] = snap.ID
	return nil
}

func (s *snapshotStore) ListRecent(_ context.Context, limit int) ([]*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		cp := *snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FetchedAt.Equal(out[j].FetchedAt) {
			return out[i].FetchedAt.After(out[j].FetchedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *snapshotStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.snapshots)), nil
}

func (s *snapshotStore) LatestFetchedAt(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, snap := range s.snapshots {
		if latest == nil || snap.FetchedAt.After(*latest) {
			ts := snap.FetchedAt
			latest = &ts
		}
	}
	return latest, nil
}

// extractions

func extKey(snapshotID, address string, path types.SourcePath) string {
	return snapshotID + "|" + string(path) + "|" + address
}

func (s *extractionStore) Exists(_ context.Context, snapshotID, address string, path types.SourcePath) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.extKeys[extKey(snapshotID, address, path)]
	return ok, nil
}

func (s *extractionStore) Create(_ context.Context, e *models.Extraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := extKey(e.SnapshotID, e.Address, e.SourcePath)
	if _, ok := s.extKeys[key]; ok {
		return storage.ErrDuplicateKey
	}
	s.extKeys[key] = struct{}{}
	cp := *e
	s.extractions = append(s.extractions, &cp)
	return nil
}

func (s *extractionStore) ListBySnapshot(_ context.Context, snapshotID string) ([]*models.Extraction, error) {
	return s.filter(func(e *models.Extraction) bool { return e.SnapshotID == snapshotID }, -1, 0), nil
}

func (s *extractionStore) ListByStatus(_ context.Context, status types.ValidationStatus, limit, offset int) ([]*models.Extraction, error) {
	return s.filter(func(e *models.Extraction) bool { return e.ValidationStatus == status }, limit, offset), nil
}

func (s *extractionStore) filter(keep func(*models.Extraction) bool, limit, offset int) []*models.Extraction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Extraction, 0)
	for _, e := range s.extractions {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExtractedAt.Equal(out[j].ExtractedAt) {
			return out[i].ExtractedAt.Before(out[j].ExtractedAt)
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return []*models.Extraction{}
	}
	out = out[offset:]
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *extractionStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.extractions)), nil
}

// addresses

func (s *addressStore) UpsertSighting(_ context.Context, sg *storage.Sighting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addrKey(sg.CanonicalAddress, sg.Coin)
	now := s.now()
	if a, ok := s.addresses[key]; ok {
		a.SourceCount++
		if sg.SeenAt.After(a.LastSeenTs) {
			a.LastSeenTs = sg.SeenAt
		}
		a.UpdatedAt = now
		return false, nil
	}

	s.addresses[key] = &models.Address{
		CanonicalAddress: sg.CanonicalAddress,
		Coin:             sg.Coin,
		ValidationStatus: sg.ValidationStatus,
		FirstSeenTs:      sg.SeenAt,
		LastSeenTs:       sg.SeenAt,
		SourceCount:      1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return true, nil
}

func (s *addressStore) InsertIfAbsent(_ context.Context, a *models.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addrKey(a.CanonicalAddress, a.Coin)
	if _, ok := s.addresses[key]; ok {
		return false, nil
	}
	cp := *a
	now := s.now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.addresses[key] = &cp
	return true, nil
}

func (s *addressStore) Get(_ context.Context, canonical string, coin types.CoinType) (*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.addresses[addrKey(canonical, coin)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *addressStore) ListConfirmed(_ context.Context, limit int) ([]*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Address, 0)
	for _, a := range s.addresses {
		if a.ValidationStatus == types.StatusValid {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeenTs.Equal(out[j].LastSeenTs) {
			return out[i].LastSeenTs.After(out[j].LastSeenTs)
		}
		return out[i].CanonicalAddress < out[j].CanonicalAddress
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *addressStore) CountConfirmed(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.addresses {
		if a.ValidationStatus == types.StatusValid {
			n++
		}
	}
	return n, nil
}

// cursors

func (s *cursorStore) GetCursor(_ context.Context, channel string) (*models.FeedCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cursors[channel]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *cursorStore) SetCursor(_ context.Context, channel string, after *string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var token *string
	if after != nil {
		v := *after
		token = &v
	}
	s.cursors[channel] = &models.FeedCursor{
		Subreddit:  channel,
		After:      token,
		LastSeenTs: seenAt,
		UpdatedAt:  s.now(),
	}
	return nil
}

func (s *cursorStore) ListCursors(_ context.Context) ([]*models.FeedCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.FeedCursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subreddit < out[j].Subreddit })
	return out, nil
}
