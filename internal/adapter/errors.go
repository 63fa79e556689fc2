package adapter

import "errors"

var (
	// ErrNetwork means the request never reached the server (DNS,
	// connect or timeout failure). The caller aborts the cycle and
	// retries on the next trigger, never in a loop.
	ErrNetwork = errors.New("network unavailable")

	// ErrTransport is a non-2xx response; the wrapping error carries the
	// status code and response body.
	ErrTransport = errors.New("transport error")

	// ErrUnauthorized is a 401: the HAWK credentials or the assertion
	// were rejected, usually because the session token expired.
	ErrUnauthorized = errors.New("request unauthorized")

	// ErrNotFound is a 404: for collection reads this means the
	// collection does not exist yet, which is not a failure.
	ErrNotFound = errors.New("not found")
)
