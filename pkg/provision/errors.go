package provision

import "errors"

var (
	// ErrUpstream wraps any backing-store failure other than "table not found".
	// Fatal to start-up.
	ErrUpstream = errors.New("provision.upstream")

	// ErrTimeout indicates the table did not become active within the wait window.
	ErrTimeout = errors.New("provision.timeout")

	// ErrWaitAbandoned indicates the caller cancelled the wait. Table creation
	// keeps running in the backing store.
	ErrWaitAbandoned = errors.New("provision.wait_abandoned")

	// ErrTableUnavailable indicates the table exists but can never become active
	// (for example, it is being deleted).
	ErrTableUnavailable = errors.New("provision.table_unavailable")

	// ErrInvalidSpec indicates a malformed table spec.
	ErrInvalidSpec = errors.New("provision.invalid_spec")

	// ErrNilClient indicates no backing-store client was supplied.
	ErrNilClient = errors.New("provision.nil_client")
)
