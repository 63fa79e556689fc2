package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

const upsertBookmark = `
	INSERT INTO bookmarks (
		guid,
		type,
		title,
		uri,
		parent_id,
		position,
		tags,
		modified,
		deleted
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (guid) DO UPDATE SET
		type      = excluded.type,
		title     = excluded.title,
		uri       = excluded.uri,
		parent_id = excluded.parent_id,
		position  = excluded.position,
		tags      = excluded.tags,
		modified  = excluded.modified,
		deleted   = excluded.deleted;`

type bookmarkRepository struct {
	*DB
	logger *logger.Logger
}

func NewBookmarkStore(db *DB, logger *logger.Logger) BookmarkStore {
	return &bookmarkRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *bookmarkRepository) GetByGUID(ctx context.Context, guid string) (models.BookmarkItem, error) {
	query, args, err := buildSelectByGUIDQuery("bookmarks", bookmarkColumns, guid)
	if err != nil {
		return models.BookmarkItem{}, fmt.Errorf("build bookmark query: %w", err)
	}

	item, err := scanBookmark(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookmarkItem{}, ErrItemNotFound
	}
	return item, err
}

func (r *bookmarkRepository) GetModifiedSince(ctx context.Context, since float64) ([]models.BookmarkItem, error) {
	query, args, err := buildModifiedSinceQuery("bookmarks", bookmarkColumns, since)
	if err != nil {
		return nil, fmt.Errorf("build bookmark query: %w", err)
	}
	return r.queryBookmarks(ctx, query, args...)
}

func (r *bookmarkRepository) GetChildren(ctx context.Context, parentID string) ([]models.BookmarkItem, error) {
	query, args, err := buildChildrenQuery(parentID)
	if err != nil {
		return nil, fmt.Errorf("build bookmark query: %w", err)
	}
	return r.queryBookmarks(ctx, query, args...)
}

func (r *bookmarkRepository) Upsert(ctx context.Context, item models.BookmarkItem) error {
	log := logger.FromContext(ctx)

	if item.Tags == nil {
		item.Tags = []string{}
	}
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("encode bookmark tags: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, upsertBookmark,
		item.GUID,
		item.Type,
		item.Title,
		item.URI,
		item.ParentID,
		item.Position,
		string(tags),
		item.Modified,
		item.Deleted,
	)
	if err != nil {
		log.Err(err).
			Str("func", "bookmarkRepository.Upsert").
			Str("guid", item.GUID).
			Msg("failed to execute upsert for bookmark")
		return fmt.Errorf("failed to save bookmark (guid=%s): %w", item.GUID, err)
	}

	return nil
}

func (r *bookmarkRepository) MarkDeleted(ctx context.Context, guid string, modified float64) error {
	query, args, err := buildMarkDeletedQuery("bookmarks", guid, modified)
	if err != nil {
		return fmt.Errorf("build bookmark query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark bookmark deleted (guid=%s): %w", guid, err)
	}
	return nil
}

func (r *bookmarkRepository) Remove(ctx context.Context, guid string) error {
	query, args, err := buildRemoveQuery("bookmarks", guid)
	if err != nil {
		return fmt.Errorf("build bookmark query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove bookmark (guid=%s): %w", guid, err)
	}
	return nil
}

func (r *bookmarkRepository) queryBookmarks(ctx context.Context, query string, args ...any) ([]models.BookmarkItem, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "bookmarkRepository.queryBookmarks").
			Msg("failed to execute bookmark query")
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	var items []models.BookmarkItem
	for rows.Next() {
		item, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmark rows: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (models.BookmarkItem, error) {
	var (
		item models.BookmarkItem
		tags string
	)
	err := row.Scan(
		&item.GUID,
		&item.Type,
		&item.Title,
		&item.URI,
		&item.ParentID,
		&item.Position,
		&tags,
		&item.Modified,
		&item.Deleted,
	)
	if err != nil {
		return models.BookmarkItem{}, err
	}

	if err = json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return models.BookmarkItem{}, fmt.Errorf("decode bookmark tags (guid=%s): %w", item.GUID, err)
	}
	return item, nil
}
