package service

import "github.com/vaerksted/ffsync/models"

// pushParent remaps the synthetic local bucket to the well-known root so
// remote peers resolve the record against their own tree.
func pushParent(parentID string) string {
	if parentID == "" || parentID == models.BookmarkRootUnfiled {
		return models.BookmarkRootPlaces
	}
	return parentID
}

// bookmarkPushPayload converts a live local row into its wire payload.
// children is only meaningful for folders and lists member ids in
// position order.
func bookmarkPushPayload(item models.BookmarkItem, children []string) models.BookmarkPayload {
	p := models.BookmarkPayload{
		ID:       item.GUID,
		Type:     item.Type,
		Title:    item.Title,
		ParentID: pushParent(item.ParentID),
	}
	if item.Type == models.BookmarkTypeFolder {
		p.Children = children
	} else {
		p.BmkURI = item.URI
		p.Tags = item.Tags
	}
	return p
}

func bookmarkItemFromPayload(p models.BookmarkPayload, modified float64) models.BookmarkItem {
	typ := p.Type
	if typ == "" {
		typ = models.BookmarkTypeBookmark
	}
	parent := p.ParentID
	if parent == "" || parent == models.BookmarkRootPlaces {
		parent = models.BookmarkRootUnfiled
	}
	return models.BookmarkItem{
		GUID:     p.ID,
		Type:     typ,
		Title:    p.Title,
		URI:      p.BmkURI,
		ParentID: parent,
		Tags:     p.Tags,
		Modified: modified,
	}
}

func historyPushPayload(item models.HistoryItem) models.HistoryPayload {
	return models.HistoryPayload{
		ID:      item.GUID,
		HistURI: item.URI,
		Title:   item.Title,
		Visits:  item.Visits,
	}
}

func historyItemFromPayload(p models.HistoryPayload, modified float64) models.HistoryItem {
	return models.HistoryItem{
		GUID:     p.ID,
		URI:      p.HistURI,
		Title:    p.Title,
		Visits:   p.Visits,
		Modified: modified,
	}
}

func passwordPushPayload(item models.PasswordItem) models.PasswordPayload {
	return models.PasswordPayload{
		ID:                  item.GUID,
		Hostname:            item.Hostname,
		FormSubmitURL:       item.FormSubmitURL,
		HTTPRealm:           item.HTTPRealm,
		Username:            item.Username,
		Password:            item.Password,
		UsernameField:       item.UsernameField,
		PasswordField:       item.PasswordField,
		TimeCreated:         item.TimeCreated,
		TimePasswordChanged: item.TimePasswordChanged,
	}
}

func passwordItemFromPayload(p models.PasswordPayload, modified float64) models.PasswordItem {
	return models.PasswordItem{
		GUID:                p.ID,
		Hostname:            p.Hostname,
		FormSubmitURL:       p.FormSubmitURL,
		HTTPRealm:           p.HTTPRealm,
		Username:            p.Username,
		Password:            p.Password,
		UsernameField:       p.UsernameField,
		PasswordField:       p.PasswordField,
		TimeCreated:         p.TimeCreated,
		TimePasswordChanged: p.TimePasswordChanged,
		Modified:            modified,
	}
}
