package service

import (
	"sort"

	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

// sortFoldersForPush orders touched folders so that every folder precedes
// its own parent (children are durably on the server before the folder
// record that references them). The order is deterministic: ties and
// roots resolve by guid. A cyclic parent chain cannot occur in a healthy
// tree; if one shows up the cycle members are appended in guid order
// instead of looping forever.
func sortFoldersForPush(folders []models.BookmarkItem, log *logger.Logger) []models.BookmarkItem {
	sorted := append([]models.BookmarkItem(nil), folders...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GUID < sorted[j].GUID })

	byGUID := make(map[string]models.BookmarkItem, len(sorted))
	for _, f := range sorted {
		byGUID[f.GUID] = f
	}

	// pending[f] counts touched folders still queued under f.
	pending := make(map[string]int, len(sorted))
	for _, f := range sorted {
		if _, ok := byGUID[f.ParentID]; ok {
			pending[f.ParentID]++
		}
	}

	queue := make([]models.BookmarkItem, 0, len(sorted))
	for _, f := range sorted {
		if pending[f.GUID] == 0 {
			queue = append(queue, f)
		}
	}

	out := make([]models.BookmarkItem, 0, len(sorted))
	emitted := make(map[string]bool, len(sorted))
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		out = append(out, f)
		emitted[f.GUID] = true

		parent, ok := byGUID[f.ParentID]
		if !ok {
			continue
		}
		pending[parent.GUID]--
		if pending[parent.GUID] == 0 {
			queue = append(queue, parent)
		}
	}

	// Anything left is part of a parent cycle.
	for _, f := range sorted {
		if !emitted[f.GUID] {
			log.Warn().Str("guid", f.GUID).Str("parent", f.ParentID).
				Msg("folder parent cycle detected, pushing in guid order")
			out = append(out, f)
		}
	}

	return out
}
