package dalerrors

import "errors"

// ErrConflict is returned when the storage aborted an operation because of
// concurrent access (serialization failure, deadlock, lock timeout). The
// operation may succeed if retried.
var ErrConflict = errors.New("storage conflict")
