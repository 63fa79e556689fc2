// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service contains the sync engine and the serialized worker that
// owns it. The engine runs one cycle at a time over the three synced
// collections; the worker funnels full cycles and one-shot pushes through
// a single goroutine so no two mutating operations ever overlap.
package service

import (
	"context"

	"github.com/vaerksted/ffsync/internal/auth"
	"github.com/vaerksted/ffsync/models"
)

// SessionProvider yields a valid storage session, re-authenticating behind
// the scenes when needed. *auth.Manager is the production implementation.
type SessionProvider interface {
	StorageSession(ctx context.Context) (*auth.StorageSession, error)
}

// SyncEngine runs sync work against the remote store. Implementations are
// not safe for concurrent use; callers serialize through a SyncWorker.
type SyncEngine interface {
	// RunCycle executes one full sync cycle. Collection-level failures
	// are reported in the result, never as an error; only cycle-fatal
	// conditions (no session, unusable keys, unsupported storage
	// version) surface as err.
	RunCycle(ctx context.Context) (models.CycleResult, error)

	// PushHistory records a single history item locally and uploads it.
	// The local row is written before the upload and survives a failed
	// push.
	PushHistory(ctx context.Context, item models.HistoryItem) error

	// PushPassword records a single saved credential locally and
	// uploads it, with the same local-first guarantee as PushHistory.
	PushPassword(ctx context.Context, item models.PasswordItem) error

	// PushBookmarks flushes all locally-dirty bookmark state without
	// pulling or moving the watermark.
	PushBookmarks(ctx context.Context) error

	// RemoveBookmark tombstones a bookmark remotely and drops the local
	// row once the push succeeds.
	RemoveBookmark(ctx context.Context, guid string) error
}

// SyncWorker is the single-writer task queue in front of a SyncEngine.
type SyncWorker interface {
	// Start launches the worker goroutine and, when the worker was
	// built with a positive interval, a ticker that requests a full
	// cycle each period. The worker exits when ctx is cancelled or
	// Stop is called.
	Start(ctx context.Context)

	// Stop cancels the worker and blocks until it has drained.
	Stop()

	// RequestSync enqueues a full cycle. While a cycle is already
	// queued or running, the request is a no-op.
	RequestSync()

	// PushHistory, PushPassword, PushBookmarks and RemoveBookmark
	// enqueue fire-and-forget one-shot tasks.
	PushHistory(item models.HistoryItem)
	PushPassword(item models.PasswordItem)
	PushBookmarks()
	RemoveBookmark(guid string)
}
