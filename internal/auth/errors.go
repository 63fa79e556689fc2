package auth

import "errors"

var (
	// ErrNotSignedIn means no credentials are available: neither cached
	// in memory nor persisted in the credential store.
	ErrNotSignedIn = errors.New("no sync credentials available")

	// ErrAuthExpired means the stored session was rejected and the single
	// transparent re-login attempt failed as well.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrBadKeyBundle means the /account/keys response failed to verify
	// or had the wrong shape.
	ErrBadKeyBundle = errors.New("invalid account key bundle")

	// ErrUnverifiedAccount means the account exists but its email address
	// has not been confirmed, so no keys can be fetched yet.
	ErrUnverifiedAccount = errors.New("account email not verified")
)
