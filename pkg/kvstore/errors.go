package kvstore

import "errors"

var (
	// ErrTableNotFound is the only signal that triggers table creation.
	ErrTableNotFound = errors.New("kvstore.table_not_found")

	// ErrTableInUse is returned by CreateTable when the table already exists
	// or another creator is still creating it.
	ErrTableInUse = errors.New("kvstore.table_in_use")

	// ErrItemNotFound indicates no record is stored under the given key.
	ErrItemNotFound = errors.New("kvstore.item_not_found")

	// ErrWaitTimeout indicates the table did not become active in time.
	ErrWaitTimeout = errors.New("kvstore.wait_timeout")

	// ErrUnsupportedKeySchema indicates the client cannot express the key schema encoding.
	ErrUnsupportedKeySchema = errors.New("kvstore.unsupported_key_schema")

	// ErrInvalidRequest indicates a malformed table or item request.
	ErrInvalidRequest = errors.New("kvstore.invalid_request")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("kvstore.closed")
)
