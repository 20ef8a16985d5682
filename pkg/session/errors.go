package session

import "errors"

var (
	// ErrConnectionFailed indicates Open could not reach the backing store.
	ErrConnectionFailed = errors.New("session.connection_failed")

	// ErrUpstream wraps any backing-store fault during read, write, destroy or gc.
	ErrUpstream = errors.New("session.upstream")

	// ErrInvalidSessionID indicates an empty session identifier.
	ErrInvalidSessionID = errors.New("session.invalid_id")

	// ErrTableNotProvisioned indicates a store was built without an active table.
	ErrTableNotProvisioned = errors.New("session.table_not_provisioned")

	// ErrNoClient indicates no backing-store client was supplied.
	ErrNoClient = errors.New("session.no_client")
)
