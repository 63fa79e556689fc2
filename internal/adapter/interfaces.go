// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport layer for the three external HTTP
// services ffsync talks to: the per-account storage node, the accounts
// server, and the token server.
//
// Storage and accounts requests are signed with HAWK credentials
// ([github.com/vaerksted/ffsync/internal/hawk]); the token server takes a
// browser-id assertion instead. Transport-level failures are mapped to the
// sentinel values in errors.go so callers can branch with [errors.Is]
// (e.g. [ErrNotFound] for an absent collection, [ErrNetwork] when
// connectivity is down).
package adapter

import (
	"context"

	"github.com/vaerksted/ffsync/internal/hawk"
	"github.com/vaerksted/ffsync/models"
)

// RecordParams narrows a collection listing. Zero values mean "no filter".
type RecordParams struct {
	// IDs restricts the result to the given record ids.
	IDs []string
	// Newer keeps only records modified strictly after this server time.
	Newer float64
	// Limit caps the number of returned records; Offset skips past the
	// first matches (server-side paging).
	Limit  int
	Offset int
	// Sort is one of "newest", "oldest" or "index".
	Sort string
	// Full requests complete records instead of bare ids.
	Full bool
}

// StorageClient is the HAWK-authenticated client for one storage node.
// Implementations map non-2xx responses to the sentinel errors in this
// package and never retry on their own.
type StorageClient interface {
	// InfoCollections returns the server modification time of every
	// collection that exists for the account.
	InfoCollections(ctx context.Context) (models.Watermarks, error)

	// GetRecord fetches a single record by collection and id.
	GetRecord(ctx context.Context, collection, id string) (models.Record, error)

	// GetRecords lists records in a collection, narrowed by params.
	GetRecords(ctx context.Context, collection string, params RecordParams) ([]models.Record, error)

	// PutRecord upserts a record and returns the new collection
	// modification time assigned by the server.
	PutRecord(ctx context.Context, collection string, record models.Record) (float64, error)

	// DeleteRecord removes a single record.
	DeleteRecord(ctx context.Context, collection, id string) error

	// DeleteAll wipes all collections for the account.
	DeleteAll(ctx context.Context) error
}

// AccountClient talks to the accounts server: credential login, session
// key fetch, and identity certificate signing.
type AccountClient interface {
	// Login exchanges email and the derived authPW for session tokens.
	Login(ctx context.Context, email string, authPW []byte) (LoginResponse, error)

	// FetchKeys retrieves the encrypted key bundle for the session. The
	// credentials are derived from the login's key-fetch token.
	FetchKeys(ctx context.Context, creds hawk.Credentials) ([]byte, error)

	// SignCertificate asks the server to certify a public key, returning
	// the serialized identity certificate. The credentials are derived
	// from the session token; duration is in milliseconds.
	SignCertificate(ctx context.Context, creds hawk.Credentials, publicKey PublicKey, duration int64) (string, error)

	// SessionStatus verifies the session token is still accepted.
	SessionStatus(ctx context.Context, creds hawk.Credentials) error
}

// TokenClient exchanges a browser-id assertion for storage credentials.
type TokenClient interface {
	// Exchange presents the assertion and the client state hash, and
	// returns the storage endpoint plus short-lived HAWK credentials.
	Exchange(ctx context.Context, assertion, clientState string) (models.StorageToken, error)
}

// LoginResponse is the accounts server's answer to a successful login.
// Both tokens are raw 32-byte values (decoded from hex).
type LoginResponse struct {
	UID           string
	SessionToken  []byte
	KeyFetchToken []byte
	Verified      bool
}

// PublicKey is the JWK-style public key sent to /certificate/sign. N and E
// are decimal strings, as the browser-id format requires.
type PublicKey struct {
	Algorithm string `json:"algorithm"`
	N         string `json:"n"`
	E         string `json:"e"`
}
