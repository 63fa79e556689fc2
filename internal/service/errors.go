package service

import "errors"

var (
	// ErrPerCollectionKeys means crypto/keys carries per-collection key
	// bundles, which this client does not support. Fatal to the cycle.
	ErrPerCollectionKeys = errors.New("per-collection key bundles are not supported")

	// ErrStorageVersion means meta/global advertises a storage format
	// other than the one this client implements.
	ErrStorageVersion = errors.New("unsupported storage version")
)
