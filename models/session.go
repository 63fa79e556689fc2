package models

import "time"

// SyncCredentials is the secret bundle persisted in the credential store
// between runs. KeyB is the raw 32-byte class-B key (kB) from the accounts
// server; SessionToken is the raw session token. Password is kept so an
// expired session can be re-established without user interaction.
type SyncCredentials struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	UID          string `json:"uid"`
	SessionToken []byte `json:"session_token"`
	KeyB         []byte `json:"key_b"`
}

// StorageToken is the result of exchanging a browser-id assertion at the
// token server: short-lived HAWK credentials scoped to one storage node.
type StorageToken struct {
	UID         int64  `json:"uid"`
	APIEndpoint string `json:"api_endpoint"`
	ID          string `json:"id"`
	Key         string `json:"key"`
	HashAlg     string `json:"hashalg"`
	Duration    int64  `json:"duration"`
}

// ExpiresAt converts the token's duration (seconds) into an absolute
// deadline measured from the given issue time.
func (t StorageToken) ExpiresAt(issued time.Time) time.Time {
	return issued.Add(time.Duration(t.Duration) * time.Second)
}
