// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package store holds the client-side persistence: per-collection sqlite
// repositories, the watermark file, and credential storage (OS keyring
// with a file fallback).
//
// Rows carry a Modified server-time value and a Deleted flag. A row with
// Deleted set is a local tombstone waiting to be pushed; once the remote
// delete succeeds the row is removed for good. Tombstones arriving from
// the server bypass the flag and remove the row directly.
package store

import (
	"context"

	"github.com/vaerksted/ffsync/models"
)

// BookmarkStore is the local bookmarks repository.
type BookmarkStore interface {
	// GetByGUID returns a single row, ErrItemNotFound when absent.
	GetByGUID(ctx context.Context, guid string) (models.BookmarkItem, error)

	// GetModifiedSince lists rows (tombstones included) changed strictly
	// after the given server time. A zero since lists everything.
	GetModifiedSince(ctx context.Context, since float64) ([]models.BookmarkItem, error)

	// GetChildren lists the live members of a folder ordered by position.
	GetChildren(ctx context.Context, parentID string) ([]models.BookmarkItem, error)

	// Upsert inserts or replaces a row keyed by guid.
	Upsert(ctx context.Context, item models.BookmarkItem) error

	// MarkDeleted flags a row as a local tombstone awaiting push.
	MarkDeleted(ctx context.Context, guid string, modified float64) error

	// Remove hard-deletes a row. Removing an absent guid is a no-op.
	Remove(ctx context.Context, guid string) error
}

// HistoryStore is the local history repository. Upsert merges visit lists
// so that concurrent pulls and local browsing never drop a visit.
type HistoryStore interface {
	GetByGUID(ctx context.Context, guid string) (models.HistoryItem, error)
	GetModifiedSince(ctx context.Context, since float64) ([]models.HistoryItem, error)
	Upsert(ctx context.Context, item models.HistoryItem) error
	MarkDeleted(ctx context.Context, guid string, modified float64) error
	Remove(ctx context.Context, guid string) error
}

// PasswordStore is the local saved-credentials repository.
type PasswordStore interface {
	GetByGUID(ctx context.Context, guid string) (models.PasswordItem, error)
	GetModifiedSince(ctx context.Context, since float64) ([]models.PasswordItem, error)
	Upsert(ctx context.Context, item models.PasswordItem) error
	MarkDeleted(ctx context.Context, guid string, modified float64) error
	Remove(ctx context.Context, guid string) error
}

// WatermarkStore persists the per-collection server times between runs.
type WatermarkStore interface {
	Load() (models.Watermarks, error)
	Save(marks models.Watermarks) error
}
