package models

// Well-known bookmark container ids from the protocol's reference ecosystem.
// Locally the client files parentless bookmarks under BookmarkRootUnfiled;
// on push that synthetic bucket is remapped to BookmarkRootPlaces so remote
// peers resolve it against their own root.
const (
	BookmarkRootPlaces  = "places"
	BookmarkRootUnfiled = "unfiled"
)

// Bookmark record types.
const (
	BookmarkTypeBookmark = "bookmark"
	BookmarkTypeFolder   = "folder"
)

// BookmarkPayload is the decrypted payload of a record in the bookmarks
// collection. The Type field selects the variant:
//
//   - "bookmark": BmkURI, Title and Tags are meaningful;
//   - "folder":   Children lists the member record ids in position order;
//   - Deleted:    a tombstone, only ID is meaningful.
//
// Every live record names exactly one parent folder via ParentID.
type BookmarkPayload struct {
	ID         string   `json:"id"`
	Deleted    bool     `json:"deleted,omitempty"`
	Type       string   `json:"type,omitempty"`
	Title      string   `json:"title,omitempty"`
	BmkURI     string   `json:"bmkUri,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Keyword    string   `json:"keyword,omitempty"`
	ParentID   string   `json:"parentid,omitempty"`
	ParentName string   `json:"parentName,omitempty"`
	Children   []string `json:"children,omitempty"`
}

// IsFolder reports whether the payload describes a live folder.
func (b BookmarkPayload) IsFolder() bool {
	return !b.Deleted && b.Type == BookmarkTypeFolder
}

// BookmarkTombstone returns a deletion marker for the given record id.
func BookmarkTombstone(id string) BookmarkPayload {
	return BookmarkPayload{ID: id, Deleted: true}
}

// BookmarkItem is a bookmark row in the local store. GUID doubles as the
// remote record id. Modified is the local change time in server time units
// (float seconds); Deleted marks a local tombstone awaiting push.
type BookmarkItem struct {
	GUID     string
	Type     string
	Title    string
	URI      string
	ParentID string
	Position int
	Tags     []string
	Modified float64
	Deleted  bool
}
