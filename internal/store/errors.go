package store

import "errors"

// ErrItemNotFound is returned when no row matches the requested guid.
var ErrItemNotFound = errors.New("item not found")
