package models

// Record is a single basic storage object as stored on the Sync 1.5 server.
// Payload carries the JSON serialization of an [EncryptedPayload]; the server
// never sees record plaintext.
//
// Modified is assigned by the server on every write, expressed as seconds
// since the Unix epoch with two decimal places. Clients must never set it.
type Record struct {
	ID        string  `json:"id"`
	Modified  float64 `json:"modified,omitempty"`
	Payload   string  `json:"payload"`
	SortIndex int     `json:"sortindex,omitempty"`
	TTL       int     `json:"ttl,omitempty"`
}

// EncryptedPayload is the envelope stored inside [Record.Payload].
// Ciphertext and IV are standard base64; HMAC is lowercase hex of
// HMAC-SHA256 computed over the base64-encoded ciphertext bytes.
type EncryptedPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"IV"`
	HMAC       string `json:"hmac"`
}

// MetaGlobal is the plaintext payload of the meta/global record. It is the
// only record the client reads unencrypted.
type MetaGlobal struct {
	SyncID         string                `json:"syncID"`
	StorageVersion int                   `json:"storageVersion"`
	Engines        map[string]MetaEngine `json:"engines,omitempty"`
	Declined       []string              `json:"declined,omitempty"`
}

// MetaEngine describes one engine entry inside meta/global.
type MetaEngine struct {
	Version int    `json:"version"`
	SyncID  string `json:"syncID"`
}

// StorageVersion is the Sync storage format this client implements. A
// meta/global record advertising any other version aborts the cycle.
const StorageVersion = 5
