// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

func newBookmarkStore(t *testing.T) BookmarkStore {
	t.Helper()
	return NewBookmarkStore(newTestDB(t), logger.Nop())
}

func TestBookmarkStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newBookmarkStore(t)

	item := models.BookmarkItem{
		GUID:     "bmk-1",
		Type:     models.BookmarkTypeBookmark,
		Title:    "Example",
		URI:      "https://example.org/",
		ParentID: models.BookmarkRootUnfiled,
		Position: 3,
		Tags:     []string{"dev", "reading"},
		Modified: 1700000000.12,
	}
	require.NoError(t, s.Upsert(ctx, item))

	got, err := s.GetByGUID(ctx, "bmk-1")
	require.NoError(t, err)
	assert.Equal(t, item, got)

	// Replacing the row keeps the guid unique.
	item.Title = "Example (renamed)"
	item.Modified = 1700000100.00
	require.NoError(t, s.Upsert(ctx, item))

	got, err = s.GetByGUID(ctx, "bmk-1")
	require.NoError(t, err)
	assert.Equal(t, "Example (renamed)", got.Title)

	_, err = s.GetByGUID(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestBookmarkStore_GetModifiedSince(t *testing.T) {
	ctx := context.Background()
	s := newBookmarkStore(t)

	for _, item := range []models.BookmarkItem{
		{GUID: "old", Type: models.BookmarkTypeBookmark, ParentID: "unfiled", Modified: 100},
		{GUID: "new", Type: models.BookmarkTypeBookmark, ParentID: "unfiled", Modified: 200},
		{GUID: "gone", ParentID: "unfiled", Modified: 300, Deleted: true},
	} {
		require.NoError(t, s.Upsert(ctx, item))
	}

	got, err := s.GetModifiedSince(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 2, "strictly-after filter excludes the boundary row")
	assert.Equal(t, "new", got[0].GUID)
	assert.Equal(t, "gone", got[1].GUID)
	assert.True(t, got[1].Deleted, "tombstones are listed")

	all, err := s.GetModifiedSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "zero watermark lists everything")
}

func TestBookmarkStore_GetChildren(t *testing.T) {
	ctx := context.Background()
	s := newBookmarkStore(t)

	for _, item := range []models.BookmarkItem{
		{GUID: "b2", Type: models.BookmarkTypeBookmark, ParentID: "folder-1", Position: 2},
		{GUID: "b1", Type: models.BookmarkTypeBookmark, ParentID: "folder-1", Position: 1},
		{GUID: "other", Type: models.BookmarkTypeBookmark, ParentID: "folder-2", Position: 0},
		{GUID: "dead", Type: models.BookmarkTypeBookmark, ParentID: "folder-1", Position: 3, Deleted: true},
	} {
		require.NoError(t, s.Upsert(ctx, item))
	}

	children, err := s.GetChildren(ctx, "folder-1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "b1", children[0].GUID, "position order")
	assert.Equal(t, "b2", children[1].GUID)
}

func TestBookmarkStore_MarkDeletedAndRemove(t *testing.T) {
	ctx := context.Background()
	s := newBookmarkStore(t)

	require.NoError(t, s.Upsert(ctx, models.BookmarkItem{
		GUID: "bmk-1", Type: models.BookmarkTypeBookmark, ParentID: "unfiled", Modified: 100,
	}))

	require.NoError(t, s.MarkDeleted(ctx, "bmk-1", 150))
	got, err := s.GetByGUID(ctx, "bmk-1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, 150.0, got.Modified)

	require.NoError(t, s.Remove(ctx, "bmk-1"))
	_, err = s.GetByGUID(ctx, "bmk-1")
	assert.ErrorIs(t, err, ErrItemNotFound)

	// Removing an absent row is a no-op.
	require.NoError(t, s.Remove(ctx, "bmk-1"))
}
