package reservation

import (
	"database/sql"
	"errors"

	catalogdb "ms-reservation/internal/catalog/db"
)

// Error taxonomy of the reservation engine. Callers branch with errors.Is;
// none of these propagate as faults past the HTTP boundary.
var (
	// ErrNotFound covers unknown or inactive ticket types, events and holds.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the event exists but cannot be booked, e.g. it is
	// inactive or has already taken place.
	ErrInvalidState = errors.New("event is not available for booking")

	// ErrInsufficientAvailability means the ledger could not cover the
	// requested quantity.
	ErrInsufficientAvailability = errors.New("insufficient availability")

	// ErrExpired means the hold existed but its TTL elapsed.
	ErrExpired = errors.New("hold expired")

	// ErrWriteFailure means the catalog write during confirmation did not
	// complete; the hold is left intact and the confirmation can be retried.
	ErrWriteFailure = errors.New("confirmation write failed")

	// ErrValidation covers malformed input: quantity out of range, missing or
	// malformed customer email.
	ErrValidation = errors.New("invalid request")
)

// isCatalogNotFound matches the two shapes a missing row takes depending on
// whether the catalog implementation wraps sql.ErrNoRows.
func isCatalogNotFound(err error) bool {
	return errors.Is(err, catalogdb.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
