package holdstore

import (
	"context"
	"sync"
	"time"

	"ms-reservation/internal/models"
)

type memoryEntry struct {
	hold  *models.Hold
	timer *time.Timer
}

// MemoryStore keeps holds in a map with one expiry timer per hold. The timer
// callback and Remove race through the same mutex-guarded delete: whichever
// side finds the entry still present wins, the other sees nothing.
type MemoryStore struct {
	mu      sync.Mutex
	holds   map[string]*memoryEntry
	held    map[string]int
	onEvict EvictionHandler
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holds: make(map[string]*memoryEntry),
		held:  make(map[string]int),
	}
}

func (s *MemoryStore) OnEviction(handler EvictionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = handler
}

func (s *MemoryStore) Put(ctx context.Context, hold *models.Hold, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.holds[hold.HoldID]; exists {
		return ErrAlreadyExists
	}

	holdID := hold.HoldID
	s.holds[holdID] = &memoryEntry{
		hold:  hold,
		timer: time.AfterFunc(ttl, func() { s.expire(holdID) }),
	}
	s.held[hold.TicketTypeID] += hold.Quantity
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, holdID string) (*models.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.holds[holdID]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.hold, nil
}

func (s *MemoryStore) Remove(ctx context.Context, holdID string) (*models.Hold, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.holds[holdID]
	if !ok {
		return nil, false, nil
	}
	entry.timer.Stop()
	s.drop(holdID, entry)
	return entry.hold, true, nil
}

func (s *MemoryStore) HeldQuantity(ctx context.Context, ticketTypeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[ticketTypeID], nil
}

// expire runs on the hold's timer goroutine. If Remove already won, the entry
// is gone and this is a no-op; the eviction handler fires at most once.
func (s *MemoryStore) expire(holdID string) {
	s.mu.Lock()
	entry, ok := s.holds[holdID]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.drop(holdID, entry)
	handler := s.onEvict
	s.mu.Unlock()

	if handler != nil {
		handler(entry.hold)
	}
}

// drop must be called with s.mu held.
func (s *MemoryStore) drop(holdID string, entry *memoryEntry) {
	delete(s.holds, holdID)
	s.held[entry.hold.TicketTypeID] -= entry.hold.Quantity
	if s.held[entry.hold.TicketTypeID] <= 0 {
		delete(s.held, entry.hold.TicketTypeID)
	}
}
