package index

import "errors"

// ErrNotFound is returned when the index does not know the requested project
// or resource. Every other failure mode is treated as transient and opaque.
var ErrNotFound = errors.New("not found on index")
