package store

import "errors"

var (
	// ErrNotFound indicates the requested key or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable indicates the local store failed. There is no
	// fallback beneath local storage, so this is fatal to the caller.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrRemoteUnavailable indicates the remote store cannot be reached.
	// Recoverable: writes are deferred via sync markers, reads fall back
	// to the local copy.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrBatchTooLarge indicates a batch write exceeded MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)
