package kvstore

import "errors"

var (
	// ErrStoreClosed is returned when an operation is attempted on a closed store.
	ErrStoreClosed = errors.New("kvstore: store is closed")
	// ErrEmptyKey is returned when an operation references an empty key.
	ErrEmptyKey = errors.New("kvstore: key cannot be empty")
)
