package models

// Visit is one page visit inside a history record. Date is microseconds
// since the Unix epoch; Type follows the reference ecosystem's transition
// codes (1 = link, 2 = typed, ...).
type Visit struct {
	Date int64 `json:"date"`
	Type int   `json:"type"`
}

// HistoryPayload is the decrypted payload of a record in the history
// collection, or a tombstone when Deleted is set.
type HistoryPayload struct {
	ID      string  `json:"id"`
	Deleted bool    `json:"deleted,omitempty"`
	HistURI string  `json:"histUri,omitempty"`
	Title   string  `json:"title,omitempty"`
	Visits  []Visit `json:"visits,omitempty"`
}

// HistoryItem is a history row in the local store.
type HistoryItem struct {
	GUID     string
	URI      string
	Title    string
	Visits   []Visit
	Modified float64
	Deleted  bool
}
