package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaerksted/ffsync/internal/logger"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnectSQLite(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}
