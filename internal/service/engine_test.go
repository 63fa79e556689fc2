package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaerksted/ffsync/internal/adapter"
	"github.com/vaerksted/ffsync/internal/auth"
	"github.com/vaerksted/ffsync/internal/crypto"
	"github.com/vaerksted/ffsync/internal/hawk"
	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/internal/store"
	"github.com/vaerksted/ffsync/models"
)

// fakeStorage is an in-memory stand-in for one storage node.
type fakeStorage struct {
	mu          sync.Mutex
	collections map[string]map[string]models.Record
	clock       float64
	putLog      []string
	listErr     map[string]error
	putErr      map[string]error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		collections: make(map[string]map[string]models.Record),
		clock:       1700000000,
		listErr:     make(map[string]error),
		putErr:      make(map[string]error),
	}
}

// seed stores a record verbatim, keeping its Modified value.
func (f *fakeStorage) seed(collection string, rec models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]models.Record)
	}
	f.collections[collection][rec.ID] = rec
}

func (f *fakeStorage) record(collection, id string) (models.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.collections[collection][id]
	return rec, ok
}

func (f *fakeStorage) puts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.putLog...)
}

func (f *fakeStorage) InfoCollections(_ context.Context) (models.Watermarks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	marks := models.Watermarks{}
	for name, records := range f.collections {
		for _, rec := range records {
			if rec.Modified > marks[name] {
				marks[name] = rec.Modified
			}
		}
	}
	return marks, nil
}

func (f *fakeStorage) GetRecord(_ context.Context, collection, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.collections[collection][id]
	if !ok {
		return models.Record{}, adapter.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStorage) GetRecords(_ context.Context, collection string, params adapter.RecordParams) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.listErr[collection]; err != nil {
		return nil, err
	}
	records, ok := f.collections[collection]
	if !ok {
		return nil, adapter.ErrNotFound
	}

	var out []models.Record
	for _, rec := range records {
		if rec.Modified > params.Newer {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified < out[j].Modified })
	return out, nil
}

func (f *fakeStorage) PutRecord(_ context.Context, collection string, rec models.Record) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.putErr[collection]; err != nil {
		return 0, err
	}
	f.clock += 0.01
	rec.Modified = f.clock
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]models.Record)
	}
	f.collections[collection][rec.ID] = rec
	f.putLog = append(f.putLog, collection+"/"+rec.ID)
	return f.clock, nil
}

func (f *fakeStorage) DeleteRecord(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections[collection], id)
	return nil
}

func (f *fakeStorage) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections = make(map[string]map[string]models.Record)
	return nil
}

type stubSession struct {
	session *auth.StorageSession
	err     error
}

func (s *stubSession) StorageSession(context.Context) (*auth.StorageSession, error) {
	return s.session, s.err
}

type engineFixture struct {
	engine     SyncEngine
	storage    *fakeStorage
	bulk       models.KeyBundle
	syncKey    models.KeyBundle
	bookmarks  store.BookmarkStore
	history    store.HistoryStore
	passwords  store.PasswordStore
	watermarks store.WatermarkStore
}

func testKeyBundle(seed byte) models.KeyBundle {
	enc := make([]byte, 32)
	mac := make([]byte, 32)
	for i := range enc {
		enc[i] = seed + byte(i)
		mac[i] = seed + byte(i) + 0x40
	}
	return models.KeyBundle{EncryptionKey: enc, HMACKey: mac}
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		storage: newFakeStorage(),
		bulk:    testKeyBundle(0x01),
		syncKey: testKeyBundle(0x81),
	}

	f.seedMetaGlobal(t, models.StorageVersion)
	f.seedCryptoKeys(t, models.CryptoKeys{
		ID:         "keys",
		Collection: "crypto",
		Default: []string{
			base64.StdEncoding.EncodeToString(f.bulk.EncryptionKey),
			base64.StdEncoding.EncodeToString(f.bulk.HMACKey),
		},
	})

	db, err := store.NewConnectSQLite(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f.bookmarks = store.NewBookmarkStore(db, logger.Nop())
	f.history = store.NewHistoryStore(db, logger.Nop())
	f.passwords = store.NewPasswordStore(db, logger.Nop())
	f.watermarks = store.NewFileWatermarkStore(filepath.Join(t.TempDir(), "watermarks.json"))

	session := &auth.StorageSession{
		Token: models.StorageToken{
			APIEndpoint: "https://storage.example.org/1.5/1",
			ID:          "token-id",
			Key:         "token-key",
			HashAlg:     "sha256",
			Duration:    3600,
		},
		SyncKey: f.syncKey,
	}

	f.engine = NewSyncEngine(
		&stubSession{session: session},
		func(string, hawk.Credentials) adapter.StorageClient { return f.storage },
		f.bookmarks, f.history, f.passwords, f.watermarks,
		0, logger.Nop(),
	)
	return f
}

func (f *engineFixture) seedMetaGlobal(t *testing.T, version int) {
	t.Helper()
	payload, err := json.Marshal(models.MetaGlobal{SyncID: "sync-1", StorageVersion: version})
	require.NoError(t, err)
	f.storage.seed("meta", models.Record{ID: "global", Modified: 1, Payload: string(payload)})
}

func (f *engineFixture) seedCryptoKeys(t *testing.T, ck models.CryptoKeys) {
	t.Helper()
	rec, err := crypto.EncryptRecord("keys", ck, f.syncKey)
	require.NoError(t, err)
	rec.Modified = 1
	f.storage.seed("crypto", rec)
}

// seedRecord encrypts payload under the bulk bundle and stores it with the
// given server time.
func (f *engineFixture) seedRecord(t *testing.T, collection, id string, payload any, modified float64) {
	t.Helper()
	rec, err := crypto.EncryptRecord(id, payload, f.bulk)
	require.NoError(t, err)
	rec.Modified = modified
	f.storage.seed(collection, rec)
}

func (f *engineFixture) decryptPushed(t *testing.T, collection, id string, target any) {
	t.Helper()
	rec, ok := f.storage.record(collection, id)
	require.True(t, ok, "record %s/%s should exist remotely", collection, id)
	require.NoError(t, crypto.DecryptRecord(rec, f.bulk, target))
}

func outcomeOf(t *testing.T, result models.CycleResult, collection string) models.CollectionResult {
	t.Helper()
	for _, res := range result.Collections {
		if res.Collection == collection {
			return res
		}
	}
	t.Fatalf("no result for collection %s", collection)
	return models.CollectionResult{}
}

func TestRunCycle_PullsAllCollections(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.seedRecord(t, "passwords", "p1", models.PasswordPayload{
		ID: "p1", Hostname: "https://example.org", Username: "user", Password: "hunter2",
	}, 1000)
	f.seedRecord(t, "history", "h1", models.HistoryPayload{
		ID: "h1", HistURI: "https://example.org/", Visits: []models.Visit{{Date: 1, Type: 1}},
	}, 1001)
	f.seedRecord(t, "bookmarks", "b1", models.BookmarkPayload{
		ID: "b1", Type: models.BookmarkTypeBookmark, BmkURI: "https://example.org/", ParentID: "places",
	}, 1002)

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)
	require.False(t, result.Failed())

	for _, collection := range models.CollectionOrder {
		res := outcomeOf(t, result, collection)
		assert.Equal(t, models.OutcomeSynced, res.Outcome, collection)
		assert.Equal(t, 1, res.Pulled, collection)
	}

	pwd, err := f.passwords.GetByGUID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pwd.Password)
	assert.Equal(t, 1000.0, pwd.Modified)

	hist, err := f.history.GetByGUID(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, hist.Visits, 1)

	bmk, err := f.bookmarks.GetByGUID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookmarkRootUnfiled, bmk.ParentID, "places root maps to the local bucket")

	marks, err := f.watermarks.Load()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, marks[models.CollectionPasswords])
	assert.Equal(t, 1001.0, marks[models.CollectionHistory])
	assert.Equal(t, 1002.0, marks[models.CollectionBookmarks])
}

func TestRunCycle_SecondRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.seedRecord(t, "passwords", "p1", models.PasswordPayload{ID: "p1", Password: "x"}, 1000)

	_, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)

	for _, collection := range models.CollectionOrder {
		res := outcomeOf(t, result, collection)
		assert.Equal(t, models.OutcomeSkipped, res.Outcome, collection)
		assert.Zero(t, res.Pulled, collection)
		assert.Zero(t, res.Pushed, collection)
	}
	assert.Empty(t, f.storage.puts(), "a pull-only cycle never writes remotely")
}

func TestRunCycle_TombstoneRemovesLocal(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	require.NoError(t, f.passwords.Upsert(ctx, models.PasswordItem{GUID: "p1", Password: "old", Modified: 500}))
	f.seedRecord(t, "passwords", "p1", models.PasswordPayload{ID: "p1", Deleted: true}, 1000)

	// A tombstone for an id that never existed locally is a no-op.
	f.seedRecord(t, "passwords", "ghost", models.PasswordPayload{ID: "ghost", Deleted: true}, 1001)

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSynced, outcomeOf(t, result, models.CollectionPasswords).Outcome)

	_, err = f.passwords.GetByGUID(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestRunCycle_RemoteWinsOnlyIfStrictlyNewer(t *testing.T) {
	tests := []struct {
		name           string
		remoteModified float64
		wantPassword   string
	}{
		{name: "equal time keeps local", remoteModified: 100, wantPassword: "local"},
		{name: "newer remote overwrites", remoteModified: 101, wantPassword: "remote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newEngineFixture(t)

			require.NoError(t, f.passwords.Upsert(ctx, models.PasswordItem{
				GUID: "p1", Password: "local", Modified: 100,
			}))
			f.seedRecord(t, "passwords", "p1", models.PasswordPayload{
				ID: "p1", Password: "remote",
			}, tt.remoteModified)

			_, err := f.engine.RunCycle(ctx)
			require.NoError(t, err)

			got, err := f.passwords.GetByGUID(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassword, got.Password)
		})
	}
}

func TestRunCycle_PushesBookmarkBeforeFolderWithRootRemap(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	require.NoError(t, f.bookmarks.Upsert(ctx, models.BookmarkItem{
		GUID: "F1", Type: models.BookmarkTypeFolder, Title: "Folder",
		ParentID: models.BookmarkRootUnfiled, Modified: 10,
	}))
	require.NoError(t, f.bookmarks.Upsert(ctx, models.BookmarkItem{
		GUID: "B1", Type: models.BookmarkTypeBookmark, URI: "https://a.example",
		ParentID: "F1", Modified: 11,
	}))

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)
	res := outcomeOf(t, result, models.CollectionBookmarks)
	assert.Equal(t, models.OutcomeSynced, res.Outcome)
	assert.Equal(t, 2, res.Pushed)

	assert.Equal(t, []string{"bookmarks/B1", "bookmarks/F1"}, f.storage.puts(),
		"children are pushed before the folder that references them")

	var folder models.BookmarkPayload
	f.decryptPushed(t, "bookmarks", "F1", &folder)
	assert.Equal(t, models.BookmarkRootPlaces, folder.ParentID, "unfiled remaps to places on push")
	assert.Equal(t, []string{"B1"}, folder.Children)

	var bmk models.BookmarkPayload
	f.decryptPushed(t, "bookmarks", "B1", &bmk)
	assert.Equal(t, "F1", bmk.ParentID)
	assert.Equal(t, "https://a.example", bmk.BmkURI)

	// The pushes advanced the watermark: a second cycle has nothing to do.
	result, err = f.engine.RunCycle(ctx)
	require.NoError(t, err)
	res = outcomeOf(t, result, models.CollectionBookmarks)
	assert.Equal(t, models.OutcomeSkipped, res.Outcome)
	assert.Len(t, f.storage.puts(), 2)
}

func TestRunCycle_PushesTombstonesFirstAndDropsLocalRow(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	require.NoError(t, f.bookmarks.Upsert(ctx, models.BookmarkItem{
		GUID: "keep", Type: models.BookmarkTypeBookmark, ParentID: "unfiled", Modified: 10,
	}))
	require.NoError(t, f.bookmarks.Upsert(ctx, models.BookmarkItem{
		GUID: "dead", ParentID: "unfiled", Modified: 11, Deleted: true,
	}))

	_, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)

	require.Equal(t, []string{"bookmarks/dead", "bookmarks/keep"}, f.storage.puts())

	var tomb models.BookmarkPayload
	f.decryptPushed(t, "bookmarks", "dead", &tomb)
	assert.True(t, tomb.Deleted)

	_, err = f.bookmarks.GetByGUID(ctx, "dead")
	assert.ErrorIs(t, err, store.ErrItemNotFound, "pushed tombstone row is removed locally")
}

func TestRunCycle_CollectionFailureDoesNotAbortCycle(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.seedRecord(t, "passwords", "p1", models.PasswordPayload{ID: "p1", Password: "x"}, 1000)
	f.seedRecord(t, "history", "h1", models.HistoryPayload{ID: "h1"}, 1001)
	f.seedRecord(t, "bookmarks", "b1", models.BookmarkPayload{ID: "b1", Type: "bookmark"}, 1002)
	f.storage.listErr["history"] = fmt.Errorf("boom: %w", adapter.ErrTransport)

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err, "collection failures are reported, not raised")
	assert.True(t, result.Failed())

	assert.Equal(t, models.OutcomeSynced, outcomeOf(t, result, models.CollectionPasswords).Outcome)
	assert.Equal(t, models.OutcomeFailed, outcomeOf(t, result, models.CollectionHistory).Outcome)
	assert.Equal(t, models.OutcomeSynced, outcomeOf(t, result, models.CollectionBookmarks).Outcome)

	marks, err := f.watermarks.Load()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, marks[models.CollectionPasswords], "healthy collections advance")
	assert.Zero(t, marks[models.CollectionHistory], "failed collection keeps its watermark")
}

func TestRunCycle_CancelledPassKeepsWatermark(t *testing.T) {
	f := newEngineFixture(t)

	f.seedRecord(t, "passwords", "p1", models.PasswordPayload{ID: "p1"}, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCancelled, outcomeOf(t, result, models.CollectionPasswords).Outcome)

	marks, err := f.watermarks.Load()
	require.NoError(t, err)
	assert.Zero(t, marks[models.CollectionPasswords])
}

func TestRunCycle_SkipsRecordFailingIntegrity(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.seedRecord(t, "passwords", "good", models.PasswordPayload{ID: "good", Password: "x"}, 1000)

	// A record encrypted under a different bundle fails its HMAC check.
	rec, err := crypto.EncryptRecord("bad", models.PasswordPayload{ID: "bad"}, testKeyBundle(0x33))
	require.NoError(t, err)
	rec.Modified = 999
	f.storage.seed("passwords", rec)

	result, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)

	res := outcomeOf(t, result, models.CollectionPasswords)
	assert.Equal(t, models.OutcomeSynced, res.Outcome, "one bad record never fails the pass")
	assert.Equal(t, 1, res.Pulled)

	_, err = f.passwords.GetByGUID(ctx, "good")
	assert.NoError(t, err)
	_, err = f.passwords.GetByGUID(ctx, "bad")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestRunCycle_RefusesPerCollectionKeys(t *testing.T) {
	f := newEngineFixture(t)
	f.seedCryptoKeys(t, models.CryptoKeys{
		ID:      "keys",
		Default: []string{"QUFB", "QkJC"},
		Collections: map[string][]string{
			"bookmarks": {"QUFB", "QkJC"},
		},
	})

	_, err := f.engine.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrPerCollectionKeys)
}

func TestRunCycle_RefusesUnknownStorageVersion(t *testing.T) {
	f := newEngineFixture(t)
	f.seedMetaGlobal(t, models.StorageVersion+1)

	_, err := f.engine.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrStorageVersion)
}

func TestRunCycle_EmptyServerIsNothingToDo(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	for _, collection := range models.CollectionOrder {
		assert.Equal(t, models.OutcomeSkipped, outcomeOf(t, result, collection).Outcome, collection)
	}
}

func TestEngine_PushHistory(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	item := models.HistoryItem{
		URI:    "https://example.org/page",
		Title:  "Page",
		Visits: []models.Visit{{Date: 1700000000000000, Type: 1}},
	}
	require.NoError(t, f.engine.PushHistory(ctx, item))

	puts := f.storage.puts()
	require.Len(t, puts, 1)

	// The engine minted a guid and stored the row locally with the
	// server-assigned time.
	items, err := f.history.GetModifiedSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].GUID)
	assert.Greater(t, items[0].Modified, 0.0)

	var payload models.HistoryPayload
	f.decryptPushed(t, "history", items[0].GUID, &payload)
	assert.Equal(t, "https://example.org/page", payload.HistURI)
	assert.Len(t, payload.Visits, 1)
}

func TestEngine_PushPassword(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	require.NoError(t, f.engine.PushPassword(ctx, models.PasswordItem{
		GUID: "p1", Hostname: "https://example.org", Username: "u", Password: "s3cret",
	}))

	var payload models.PasswordPayload
	f.decryptPushed(t, "passwords", "p1", &payload)
	assert.Equal(t, "s3cret", payload.Password)

	local, err := f.passwords.GetByGUID(ctx, "p1")
	require.NoError(t, err)
	assert.Greater(t, local.Modified, 0.0)
}

func TestEngine_PushHistoryKeepsLocalRowWhenUploadFails(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.storage.putErr["history"] = fmt.Errorf("boom: %w", adapter.ErrTransport)

	item := models.HistoryItem{
		URI:    "https://example.org/offline",
		Title:  "Offline",
		Visits: []models.Visit{{Date: 1700000000000000, Type: 1}},
	}
	require.Error(t, f.engine.PushHistory(ctx, item))

	// The visit survives the failed upload in the local store.
	items, err := f.history.GetModifiedSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].GUID)
	assert.Equal(t, "https://example.org/offline", items[0].URI)
	assert.Greater(t, items[0].Modified, 0.0)

	// Retrying the kept row completes the upload under the same guid.
	delete(f.storage.putErr, "history")
	require.NoError(t, f.engine.PushHistory(ctx, items[0]))
	assert.Equal(t, []string{"history/" + items[0].GUID}, f.storage.puts())
}

func TestEngine_PushPasswordKeepsLocalRowWhenUploadFails(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.storage.putErr["passwords"] = fmt.Errorf("boom: %w", adapter.ErrTransport)

	require.Error(t, f.engine.PushPassword(ctx, models.PasswordItem{
		GUID: "p1", Hostname: "https://example.org", Username: "u", Password: "s3cret",
	}))

	local, err := f.passwords.GetByGUID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", local.Password)
	assert.Greater(t, local.Modified, 0.0)
	assert.Empty(t, f.storage.puts())
}

func TestEngine_RemoveBookmark(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	require.NoError(t, f.bookmarks.Upsert(ctx, models.BookmarkItem{
		GUID: "b1", Type: models.BookmarkTypeBookmark, ParentID: "unfiled", Modified: 10,
	}))

	require.NoError(t, f.engine.RemoveBookmark(ctx, "b1"))

	var tomb models.BookmarkPayload
	f.decryptPushed(t, "bookmarks", "b1", &tomb)
	assert.True(t, tomb.Deleted)

	_, err := f.bookmarks.GetByGUID(ctx, "b1")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestEngine_PushBookmarksDoesNotMoveWatermark(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	require.NoError(t, f.bookmarks.Upsert(ctx, models.BookmarkItem{
		GUID: "b1", Type: models.BookmarkTypeBookmark, ParentID: "unfiled", Modified: 10,
	}))

	require.NoError(t, f.engine.PushBookmarks(ctx))
	assert.Equal(t, []string{"bookmarks/b1"}, f.storage.puts())

	marks, err := f.watermarks.Load()
	require.NoError(t, err)
	assert.Empty(t, marks)
}
