// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// checkout coordinator and handlers to distinguish between different
// failure scenarios without string matching. For example, ErrDuplicateKey
// signals that a uniqueness constraint (idempotency key, payment intent,
// booking reference) rejected an insert.
package repository

import (
    "errors"
    "strings"
)

// ErrNotFound is returned when a requested row does not exist.  Lookups
// across all repositories wrap sql.ErrNoRows into this sentinel so
// callers use a single errors.Is check.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicateKey is returned when an insert violates a uniqueness
// constraint. The checkout and booking layers rely on this to implement
// idempotency: a duplicate means another writer already completed the
// same insert and the caller should read the existing row instead.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrStaleState is returned when a guarded UPDATE matched no rows
// because the row was no longer in the expected state. Callers should
// re-read and decide whether the transition already happened.
var ErrStaleState = errors.New("stale state")

// isDuplicate reports whether the error is a MySQL duplicate entry
// violation (error 1062).
func isDuplicate(err error) bool {
    return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
