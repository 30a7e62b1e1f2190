// Package ledger is the fast-path counter of sellable units per ticket type.
// Values are lazily hydrated from the catalog and go stale after a fixed
// window; every mutation is a single atomically-applied delta under a per-key
// lock, so there is no raw write to race against.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CatalogSource supplies the durable baseline: capacity minus sold count for
// an active ticket type of an active, future event, and 0 otherwise.
type CatalogSource interface {
	BaseAvailability(ctx context.Context, ticketTypeID string) (int, error)
}

// HeldSource reports the quantity currently claimed by active holds. The
// ledger subtracts it at hydration time so a mid-flight refresh does not
// resurrect units that other customers are holding.
type HeldSource interface {
	HeldQuantity(ctx context.Context, ticketTypeID string) (int, error)
}

type entry struct {
	mu         sync.Mutex
	value      int
	hydratedAt time.Time
}

func (e *entry) stale(ttl time.Duration) bool {
	return e.hydratedAt.IsZero() || time.Since(e.hydratedAt) >= ttl
}

type Ledger struct {
	catalog CatalogSource
	held    HeldSource
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

func New(catalog CatalogSource, held HeldSource, staleness time.Duration) *Ledger {
	return &Ledger{
		catalog: catalog,
		held:    held,
		ttl:     staleness,
		entries: make(map[string]*entry),
	}
}

// Get returns the current available count, hydrating first if the entry is
// absent or older than the staleness window.
func (l *Ledger) Get(ctx context.Context, ticketTypeID string) (int, error) {
	e := l.entry(ticketTypeID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stale(l.ttl) {
		if err := l.hydrateLocked(ctx, e, ticketTypeID); err != nil {
			return 0, err
		}
	}
	return e.value, nil
}

// TryConsume attempts an atomic conditional decrement. It reports false when
// the decrement would drive the value negative; the caller must treat that as
// insufficient availability, never retry with a separate read.
func (l *Ledger) TryConsume(ctx context.Context, ticketTypeID string, quantity int) (bool, error) {
	e := l.entry(ticketTypeID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stale(l.ttl) {
		if err := l.hydrateLocked(ctx, e, ticketTypeID); err != nil {
			return false, err
		}
	}
	if e.value < quantity {
		return false, nil
	}
	e.value -= quantity
	return true, nil
}

// Restore adds released units back. When the entry is absent or stale it
// re-hydrates instead of applying the delta: hydration derives
// capacity - sold - currentlyHeld, and the released hold has already left the
// held count, so a fresh derivation is exact and cannot under-restore.
func (l *Ledger) Restore(ctx context.Context, ticketTypeID string, quantity int) error {
	e := l.entry(ticketTypeID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stale(l.ttl) {
		return l.hydrateLocked(ctx, e, ticketTypeID)
	}
	e.value += quantity
	return nil
}

// Invalidate drops the cached entry so the next access re-hydrates. Called
// when catalog data changes underneath the ledger.
func (l *Ledger) Invalidate(ticketTypeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ticketTypeID)
}

func (l *Ledger) entry(ticketTypeID string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[ticketTypeID]
	if !ok {
		e = &entry{}
		l.entries[ticketTypeID] = e
	}
	return e
}

// hydrateLocked must be called with e.mu held.
func (l *Ledger) hydrateLocked(ctx context.Context, e *entry, ticketTypeID string) error {
	base, err := l.catalog.BaseAvailability(ctx, ticketTypeID)
	if err != nil {
		return fmt.Errorf("hydrate availability for %s: %w", ticketTypeID, err)
	}

	held, err := l.held.HeldQuantity(ctx, ticketTypeID)
	if err != nil {
		return fmt.Errorf("held count for %s: %w", ticketTypeID, err)
	}

	value := base - held
	if value < 0 {
		value = 0
	}
	e.value = value
	e.hydratedAt = time.Now()
	return nil
}
