package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

const upsertHistory = `
	INSERT INTO history (
		guid,
		uri,
		title,
		visits,
		modified,
		deleted
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (guid) DO UPDATE SET
		uri      = excluded.uri,
		title    = excluded.title,
		visits   = excluded.visits,
		modified = excluded.modified,
		deleted  = excluded.deleted;`

type historyRepository struct {
	*DB
	logger *logger.Logger

	// mu serializes Upsert's read-merge-write so two writers never drop
	// each other's visits.
	mu sync.Mutex
}

func NewHistoryStore(db *DB, logger *logger.Logger) HistoryStore {
	return &historyRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *historyRepository) GetByGUID(ctx context.Context, guid string) (models.HistoryItem, error) {
	query, args, err := buildSelectByGUIDQuery("history", historyColumns, guid)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("build history query: %w", err)
	}

	item, err := scanHistory(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryItem{}, ErrItemNotFound
	}
	return item, err
}

func (r *historyRepository) GetModifiedSince(ctx context.Context, since float64) ([]models.HistoryItem, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildModifiedSinceQuery("history", historyColumns, since)
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "historyRepository.GetModifiedSince").
			Msg("failed to execute history query")
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var items []models.HistoryItem
	for rows.Next() {
		item, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return items, nil
}

// Upsert inserts or replaces a history row, merging the stored visit list
// into the incoming one so no visit from either side is lost.
func (r *historyRepository) Upsert(ctx context.Context, item models.HistoryItem) error {
	log := logger.FromContext(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.GetByGUID(ctx, item.GUID)
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return err
	}
	if err == nil && !item.Deleted {
		item.Visits = mergeVisits(existing.Visits, item.Visits)
	}

	visits, err := json.Marshal(item.Visits)
	if err != nil {
		return fmt.Errorf("encode history visits: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, upsertHistory,
		item.GUID,
		item.URI,
		item.Title,
		string(visits),
		item.Modified,
		item.Deleted,
	)
	if err != nil {
		log.Err(err).
			Str("func", "historyRepository.Upsert").
			Str("guid", item.GUID).
			Msg("failed to execute upsert for history")
		return fmt.Errorf("failed to save history (guid=%s): %w", item.GUID, err)
	}

	return nil
}

func (r *historyRepository) MarkDeleted(ctx context.Context, guid string, modified float64) error {
	query, args, err := buildMarkDeletedQuery("history", guid, modified)
	if err != nil {
		return fmt.Errorf("build history query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark history deleted (guid=%s): %w", guid, err)
	}
	return nil
}

func (r *historyRepository) Remove(ctx context.Context, guid string) error {
	query, args, err := buildRemoveQuery("history", guid)
	if err != nil {
		return fmt.Errorf("build history query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove history (guid=%s): %w", guid, err)
	}
	return nil
}

// mergeVisits unions two visit lists, deduplicated by (date, type) and
// sorted by date.
func mergeVisits(a, b []models.Visit) []models.Visit {
	type visitKey struct {
		date int64
		typ  int
	}

	seen := make(map[visitKey]struct{}, len(a)+len(b))
	out := make([]models.Visit, 0, len(a)+len(b))
	for _, v := range append(append([]models.Visit{}, a...), b...) {
		k := visitKey{date: v.Date, typ: v.Type}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func scanHistory(row rowScanner) (models.HistoryItem, error) {
	var (
		item   models.HistoryItem
		visits string
	)
	err := row.Scan(
		&item.GUID,
		&item.URI,
		&item.Title,
		&visits,
		&item.Modified,
		&item.Deleted,
	)
	if err != nil {
		return models.HistoryItem{}, err
	}

	if err = json.Unmarshal([]byte(visits), &item.Visits); err != nil {
		return models.HistoryItem{}, fmt.Errorf("decode history visits (guid=%s): %w", item.GUID, err)
	}
	return item, nil
}
