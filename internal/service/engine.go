package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vaerksted/ffsync/internal/adapter"
	"github.com/vaerksted/ffsync/internal/auth"
	"github.com/vaerksted/ffsync/internal/crypto"
	"github.com/vaerksted/ffsync/internal/hawk"
	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/internal/store"
	"github.com/vaerksted/ffsync/models"
)

// StorageFactory builds a storage client for the endpoint and credentials
// a session resolved to. Indirection point for tests.
type StorageFactory func(endpoint string, creds hawk.Credentials) adapter.StorageClient

type engine struct {
	session    SessionProvider
	newStorage StorageFactory
	bookmarks  store.BookmarkStore
	history    store.HistoryStore
	passwords  store.PasswordStore
	watermarks store.WatermarkStore
	limiter    *rate.Limiter
	log        *logger.Logger

	// Bulk keys are fetched once per storage session and reused until
	// the session rolls over.
	keysFor  *auth.StorageSession
	bulkKeys models.KeyBundle
}

// NewSyncEngine wires a sync engine. pushRate caps record writes per
// second; zero or negative means unlimited.
func NewSyncEngine(
	session SessionProvider,
	newStorage StorageFactory,
	bookmarks store.BookmarkStore,
	history store.HistoryStore,
	passwords store.PasswordStore,
	watermarks store.WatermarkStore,
	pushRate float64,
	log *logger.Logger,
) SyncEngine {
	limit := rate.Inf
	if pushRate > 0 {
		limit = rate.Limit(pushRate)
	}
	return &engine{
		session:    session,
		newStorage: newStorage,
		bookmarks:  bookmarks,
		history:    history,
		passwords:  passwords,
		watermarks: watermarks,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}
}

func (e *engine) RunCycle(ctx context.Context) (models.CycleResult, error) {
	client, keys, err := e.prepare(ctx)
	if err != nil {
		return models.CycleResult{}, err
	}

	if err = e.checkStorageVersion(ctx, client); err != nil {
		return models.CycleResult{}, err
	}

	marks, err := e.watermarks.Load()
	if err != nil {
		return models.CycleResult{}, err
	}

	info, err := client.InfoCollections(ctx)
	if err != nil {
		return models.CycleResult{}, fmt.Errorf("snapshot remote state: %w", err)
	}

	var result models.CycleResult
	for _, collection := range models.CollectionOrder {
		res := e.syncCollection(ctx, client, keys, collection, marks[collection], info)
		result.Collections = append(result.Collections, res)

		switch res.Outcome {
		case models.OutcomeFailed:
			e.log.Err(res.Err).Str("collection", collection).Msg("collection pass failed")
		case models.OutcomeCancelled:
			e.log.Info().Str("collection", collection).Msg("collection pass cancelled")
		default:
			e.log.Debug().Str("collection", collection).
				Str("outcome", string(res.Outcome)).
				Int("pulled", res.Pulled).Int("pushed", res.Pushed).
				Msg("collection pass done")
		}
	}

	e.persistWatermarks(ctx, client, marks, result)
	return result, nil
}

// persistWatermarks reads the post-cycle server state and advances the
// watermark of every synced collection. Failed or cancelled collections
// keep their old watermark so the next cycle retries in full.
func (e *engine) persistWatermarks(ctx context.Context, client adapter.StorageClient, marks models.Watermarks, result models.CycleResult) {
	after, err := client.InfoCollections(ctx)
	if err != nil {
		e.log.Err(err).Msg("post-cycle info/collections failed, watermarks not advanced")
		return
	}

	updated := marks.Clone()
	for _, res := range result.Collections {
		if res.Outcome != models.OutcomeSynced {
			continue
		}
		if v, ok := after[res.Collection]; ok {
			updated[res.Collection] = v
		}
	}

	if err = e.watermarks.Save(updated); err != nil {
		e.log.Err(err).Msg("failed to persist watermarks")
	}
}

func (e *engine) syncCollection(ctx context.Context, client adapter.StorageClient, keys models.KeyBundle, collection string, since float64, info models.Watermarks) models.CollectionResult {
	res := models.CollectionResult{Collection: collection}

	// Local bookmark edits are flushed before the pull so the remote
	// merge cannot clobber tree structure.
	if collection == models.CollectionBookmarks {
		pushed, err := e.pushBookmarksSince(ctx, client, keys, since)
		res.Pushed = pushed
		if err != nil {
			return failCollection(res, err)
		}
	}

	remote, ok := info[collection]
	if !ok || remote == since {
		// Absent collection or unchanged since last cycle: nothing to
		// pull. Local pushes still advance the watermark.
		if res.Pushed > 0 {
			res.Outcome = models.OutcomeSynced
		} else {
			res.Outcome = models.OutcomeSkipped
		}
		return res
	}

	pulled, err := e.pullCollection(ctx, client, keys, collection, since)
	res.Pulled = pulled
	if err != nil {
		return failCollection(res, err)
	}

	res.Outcome = models.OutcomeSynced
	return res
}

func failCollection(res models.CollectionResult, err error) models.CollectionResult {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.Outcome = models.OutcomeCancelled
	} else {
		res.Outcome = models.OutcomeFailed
	}
	res.Err = err
	return res
}

func (e *engine) pullCollection(ctx context.Context, client adapter.StorageClient, keys models.KeyBundle, collection string, since float64) (int, error) {
	records, err := client.GetRecords(ctx, collection, adapter.RecordParams{
		Newer: since,
		Full:  true,
		Sort:  "oldest",
	})
	if errors.Is(err, adapter.ErrNotFound) {
		// The collection does not exist yet: nothing to do.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list %s records: %w", collection, err)
	}

	pulled := 0
	for _, rec := range records {
		if err = ctx.Err(); err != nil {
			return pulled, err
		}

		err = e.applyRecord(ctx, keys, collection, rec)
		if errors.Is(err, crypto.ErrIntegrity) || errors.Is(err, crypto.ErrDecode) {
			// A single undecryptable record is skipped, not fatal.
			e.log.Warn().Str("collection", collection).Str("id", rec.ID).
				Err(err).Msg("skipping undecodable record")
			continue
		}
		if err != nil {
			return pulled, err
		}
		pulled++
	}

	return pulled, nil
}

// applyRecord decrypts one pulled record and applies it to the matching
// local store. Tombstones delete by id; live records win only when
// strictly newer than the local copy.
func (e *engine) applyRecord(ctx context.Context, keys models.KeyBundle, collection string, rec models.Record) error {
	switch collection {
	case models.CollectionPasswords:
		var p models.PasswordPayload
		if err := crypto.DecryptRecord(rec, keys, &p); err != nil {
			return err
		}
		if p.Deleted {
			return e.passwords.Remove(ctx, p.ID)
		}
		local, err := e.passwords.GetByGUID(ctx, p.ID)
		if err == nil && local.Modified >= rec.Modified {
			return nil
		}
		if err != nil && !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
		return e.passwords.Upsert(ctx, passwordItemFromPayload(p, rec.Modified))

	case models.CollectionHistory:
		var p models.HistoryPayload
		if err := crypto.DecryptRecord(rec, keys, &p); err != nil {
			return err
		}
		if p.Deleted {
			return e.history.Remove(ctx, p.ID)
		}
		local, err := e.history.GetByGUID(ctx, p.ID)
		if err == nil && local.Modified >= rec.Modified {
			return nil
		}
		if err != nil && !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
		return e.history.Upsert(ctx, historyItemFromPayload(p, rec.Modified))

	case models.CollectionBookmarks:
		var p models.BookmarkPayload
		if err := crypto.DecryptRecord(rec, keys, &p); err != nil {
			return err
		}
		if p.Deleted {
			return e.bookmarks.Remove(ctx, p.ID)
		}
		local, err := e.bookmarks.GetByGUID(ctx, p.ID)
		if err == nil && local.Modified >= rec.Modified {
			return nil
		}
		if err != nil && !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
		if err = e.bookmarks.Upsert(ctx, bookmarkItemFromPayload(p, rec.Modified)); err != nil {
			return err
		}
		if p.IsFolder() {
			return e.reorderChildren(ctx, p)
		}
		return nil

	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
}

// reorderChildren applies a pulled folder's member order to the local rows
// that already exist. Members that have not been pulled yet get their
// position when their own record arrives.
func (e *engine) reorderChildren(ctx context.Context, folder models.BookmarkPayload) error {
	for pos, childID := range folder.Children {
		child, err := e.bookmarks.GetByGUID(ctx, childID)
		if errors.Is(err, store.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if child.ParentID == folder.ID && child.Position == pos {
			continue
		}
		child.ParentID = folder.ID
		child.Position = pos
		if err = e.bookmarks.Upsert(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// pushBookmarksSince flushes local bookmark changes: tombstones first,
// then live non-folder records, then touched folders child-before-parent.
func (e *engine) pushBookmarksSince(ctx context.Context, client adapter.StorageClient, keys models.KeyBundle, since float64) (int, error) {
	items, err := e.bookmarks.GetModifiedSince(ctx, since)
	if err != nil {
		return 0, err
	}

	var tombstones, plain, folders []models.BookmarkItem
	for _, item := range items {
		switch {
		case item.Deleted:
			tombstones = append(tombstones, item)
		case item.Type == models.BookmarkTypeFolder:
			folders = append(folders, item)
		default:
			plain = append(plain, item)
		}
	}

	pushed := 0
	for _, item := range tombstones {
		if _, err = e.putRecord(ctx, client, keys, models.CollectionBookmarks, item.GUID, models.BookmarkTombstone(item.GUID)); err != nil {
			return pushed, err
		}
		// The remote tombstone is durable; drop the local soft-delete.
		if err = e.bookmarks.Remove(ctx, item.GUID); err != nil {
			return pushed, err
		}
		pushed++
	}

	for _, item := range plain {
		if _, err = e.putRecord(ctx, client, keys, models.CollectionBookmarks, item.GUID, bookmarkPushPayload(item, nil)); err != nil {
			return pushed, err
		}
		pushed++
	}

	for _, folder := range sortFoldersForPush(folders, e.log) {
		children, err := e.bookmarks.GetChildren(ctx, folder.GUID)
		if err != nil {
			return pushed, err
		}
		ids := make([]string, 0, len(children))
		for _, c := range children {
			ids = append(ids, c.GUID)
		}
		if _, err = e.putRecord(ctx, client, keys, models.CollectionBookmarks, folder.GUID, bookmarkPushPayload(folder, ids)); err != nil {
			return pushed, err
		}
		pushed++
	}

	return pushed, nil
}

// putRecord encrypts and uploads one record, paced by the push limiter.
// The returned time is the server-assigned modification time.
func (e *engine) putRecord(ctx context.Context, client adapter.StorageClient, keys models.KeyBundle, collection, id string, payload any) (float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	rec, err := crypto.EncryptRecord(id, payload, keys)
	if err != nil {
		return 0, err
	}

	modified, err := client.PutRecord(ctx, collection, rec)
	if err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return modified, nil
}

func (e *engine) PushHistory(ctx context.Context, item models.HistoryItem) error {
	if item.GUID == "" {
		item.GUID = uuid.NewString()
	}

	// The row is saved locally before anything touches the network, so a
	// failed upload leaves the visit recoverable instead of dropping it.
	item.Modified = nowServerTime()
	if err := e.history.Upsert(ctx, item); err != nil {
		return err
	}

	client, keys, err := e.prepare(ctx)
	if err != nil {
		return err
	}

	modified, err := e.putRecord(ctx, client, keys, models.CollectionHistory, item.GUID, historyPushPayload(item))
	if err != nil {
		return err
	}

	item.Modified = modified
	return e.history.Upsert(ctx, item)
}

func (e *engine) PushPassword(ctx context.Context, item models.PasswordItem) error {
	if item.GUID == "" {
		item.GUID = uuid.NewString()
	}

	// Local save first, same as PushHistory.
	item.Modified = nowServerTime()
	if err := e.passwords.Upsert(ctx, item); err != nil {
		return err
	}

	client, keys, err := e.prepare(ctx)
	if err != nil {
		return err
	}

	modified, err := e.putRecord(ctx, client, keys, models.CollectionPasswords, item.GUID, passwordPushPayload(item))
	if err != nil {
		return err
	}

	item.Modified = modified
	return e.passwords.Upsert(ctx, item)
}

func (e *engine) PushBookmarks(ctx context.Context) error {
	client, keys, err := e.prepare(ctx)
	if err != nil {
		return err
	}

	marks, err := e.watermarks.Load()
	if err != nil {
		return err
	}

	_, err = e.pushBookmarksSince(ctx, client, keys, marks[models.CollectionBookmarks])
	return err
}

func (e *engine) RemoveBookmark(ctx context.Context, guid string) error {
	client, keys, err := e.prepare(ctx)
	if err != nil {
		return err
	}

	// Tombstone locally first so a failed push is retried next cycle.
	if err = e.bookmarks.MarkDeleted(ctx, guid, nowServerTime()); err != nil {
		return err
	}

	if _, err = e.putRecord(ctx, client, keys, models.CollectionBookmarks, guid, models.BookmarkTombstone(guid)); err != nil {
		return err
	}

	return e.bookmarks.Remove(ctx, guid)
}

// nowServerTime is the local wall clock expressed in server time units
// (float seconds).
func nowServerTime() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}

// prepare resolves the storage session, builds a client for its endpoint,
// and returns the bulk key bundle, fetching crypto/keys when the session
// changed since the last call.
func (e *engine) prepare(ctx context.Context) (adapter.StorageClient, models.KeyBundle, error) {
	session, err := e.session.StorageSession(ctx)
	if err != nil {
		return nil, models.KeyBundle{}, err
	}

	client := e.newStorage(session.Token.APIEndpoint, session.HawkCredentials())

	if e.keysFor == session {
		return client, e.bulkKeys, nil
	}

	keys, err := e.fetchBulkKeys(ctx, client, session.SyncKey)
	if err != nil {
		return nil, models.KeyBundle{}, err
	}

	e.keysFor = session
	e.bulkKeys = keys
	return client, keys, nil
}

// fetchBulkKeys downloads and opens the crypto/keys record. Only the
// default bulk bundle is supported; per-collection bundles are refused.
func (e *engine) fetchBulkKeys(ctx context.Context, client adapter.StorageClient, syncKey models.KeyBundle) (models.KeyBundle, error) {
	rec, err := client.GetRecord(ctx, "crypto", "keys")
	if err != nil {
		return models.KeyBundle{}, fmt.Errorf("fetch crypto/keys: %w", err)
	}

	var ck models.CryptoKeys
	if err = crypto.DecryptRecord(rec, syncKey, &ck); err != nil {
		return models.KeyBundle{}, fmt.Errorf("decrypt crypto/keys: %w", err)
	}

	if len(ck.Collections) > 0 {
		return models.KeyBundle{}, ErrPerCollectionKeys
	}
	if len(ck.Default) != 2 {
		return models.KeyBundle{}, fmt.Errorf("crypto/keys default bundle has %d entries, want 2", len(ck.Default))
	}

	encKey, err := base64.StdEncoding.DecodeString(ck.Default[0])
	if err != nil {
		return models.KeyBundle{}, fmt.Errorf("decode bulk encryption key: %w", err)
	}
	hmacKey, err := base64.StdEncoding.DecodeString(ck.Default[1])
	if err != nil {
		return models.KeyBundle{}, fmt.Errorf("decode bulk hmac key: %w", err)
	}

	return models.KeyBundle{EncryptionKey: encKey, HMACKey: hmacKey}, nil
}

// checkStorageVersion validates the plaintext meta/global record before
// touching any encrypted collection.
func (e *engine) checkStorageVersion(ctx context.Context, client adapter.StorageClient) error {
	rec, err := client.GetRecord(ctx, "meta", "global")
	if err != nil {
		return fmt.Errorf("fetch meta/global: %w", err)
	}

	var mg models.MetaGlobal
	if err = json.Unmarshal([]byte(rec.Payload), &mg); err != nil {
		return fmt.Errorf("decode meta/global: %w", err)
	}

	if mg.StorageVersion != models.StorageVersion {
		return fmt.Errorf("%w: server has %d, client speaks %d",
			ErrStorageVersion, mg.StorageVersion, models.StorageVersion)
	}
	return nil
}
