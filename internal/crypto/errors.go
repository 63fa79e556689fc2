package crypto

import "errors"

var (
	// ErrIntegrity means a record's HMAC did not verify. The record is
	// corrupt or was encrypted under a different key bundle.
	ErrIntegrity = errors.New("record integrity check failed")

	// ErrDecode means a payload was structurally malformed (base64,
	// padding or JSON) despite a valid HMAC.
	ErrDecode = errors.New("malformed record payload")

	// ErrKeyLength means key material of the wrong size was supplied.
	ErrKeyLength = errors.New("invalid key length")
)
