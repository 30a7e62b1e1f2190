package holdstore

import (
	"context"
	"errors"
	"time"

	"ms-reservation/internal/models"
)

var ErrNotFound = errors.New("hold not found")

// ErrAlreadyExists is returned by Put for a duplicate hold ID. Holds are
// immutable once stored; the store never re-writes a stored payload.
var ErrAlreadyExists = errors.New("hold already exists")

// EvictionHandler receives the payload of a hold whose TTL elapsed before it
// was removed. It fires at most once per hold and never for holds that were
// removed first.
type EvictionHandler func(hold *models.Hold)

// Store is a time-indexed table of active holds. The correctness property the
// whole reservation subsystem leans on: for any hold, at most one of
// {Remove returning removed=true, the eviction handler firing} ever happens.
type Store interface {
	Put(ctx context.Context, hold *models.Hold, ttl time.Duration) error
	Get(ctx context.Context, holdID string) (*models.Hold, error)
	// Remove atomically deletes the hold and reports whether this caller won
	// the removal. Callers must branch on removed, not on a prior Get.
	Remove(ctx context.Context, holdID string) (hold *models.Hold, removed bool, err error)
	// HeldQuantity reports the summed quantity of active holds for a ticket
	// type. The ledger subtracts it when hydrating from the catalog.
	HeldQuantity(ctx context.Context, ticketTypeID string) (int, error)
	OnEviction(handler EvictionHandler)
}
