package store

import "errors"

// ErrPersistence wraps any underlying pgx/connection failure that survives
// the retry-with-backoff wrapper in New and Store's write paths.
var ErrPersistence = errors.New("store: persistence failure")

// ErrNotFound is returned by MarkCaptured when no opportunity has the given id.
var ErrNotFound = errors.New("store: not found")
