package models

// KeyBundle is a pair of 256-bit keys: one for AES-CBC encryption of record
// payloads and one for their HMAC-SHA256 integrity tag. A single bulk bundle
// protects every record in every collection for the lifetime of a session.
type KeyBundle struct {
	EncryptionKey []byte
	HMACKey       []byte
}

// CryptoKeys is the decrypted payload of the crypto/keys record. Default
// holds the bulk bundle as two base64 strings (encryption key, HMAC key).
// Collections would hold per-collection bundles; this client refuses them.
type CryptoKeys struct {
	ID          string              `json:"id"`
	Collection  string              `json:"collection"`
	Default     []string            `json:"default"`
	Collections map[string][]string `json:"collections,omitempty"`
}
