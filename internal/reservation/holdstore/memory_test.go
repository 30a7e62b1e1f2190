package holdstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservation/internal/models"
	"ms-reservation/internal/reservation/holdstore"
	"ms-reservation/internal/utils"
)

func newTestHold(ticketTypeID string, quantity int) *models.Hold {
	now := time.Now()
	return &models.Hold{
		HoldID:        utils.GenerateHoldID(),
		EventID:       "event1",
		TicketTypeID:  ticketTypeID,
		Quantity:      quantity,
		CustomerName:  "Test Customer",
		CustomerEmail: "customer@example.com",
		PricePerUnit:  25.0,
		CreatedAt:     now,
		ExpiresAt:     now.Add(15 * time.Minute),
		TicketSerials: []string{utils.GenerateTicketSerial()},
	}
}

func TestPutGetRemove(t *testing.T) {
	store := holdstore.NewMemoryStore()
	ctx := context.Background()

	hold := newTestHold("tt1", 2)

	// Test case: store and read back
	err := store.Put(ctx, hold, time.Hour)
	require.NoError(t, err)

	got, err := store.Get(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.Equal(t, hold.HoldID, got.HoldID)
	assert.Equal(t, 2, got.Quantity)

	// Test case: remove wins and returns the payload
	removed, ok, err := store.Remove(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hold.HoldID, removed.HoldID)

	// Test case: gone after removal
	_, err = store.Get(ctx, hold.HoldID)
	assert.ErrorIs(t, err, holdstore.ErrNotFound)

	_, ok, err = store.Remove(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutDuplicateRejected(t *testing.T) {
	store := holdstore.NewMemoryStore()
	ctx := context.Background()

	hold := newTestHold("tt1", 1)

	err := store.Put(ctx, hold, time.Hour)
	require.NoError(t, err)

	err = store.Put(ctx, hold, time.Hour)
	assert.ErrorIs(t, err, holdstore.ErrAlreadyExists)
}

func TestHeldQuantityTracksActiveHolds(t *testing.T) {
	store := holdstore.NewMemoryStore()
	ctx := context.Background()

	h1 := newTestHold("tt1", 3)
	h2 := newTestHold("tt1", 2)
	h3 := newTestHold("tt2", 5)

	require.NoError(t, store.Put(ctx, h1, time.Hour))
	require.NoError(t, store.Put(ctx, h2, time.Hour))
	require.NoError(t, store.Put(ctx, h3, time.Hour))

	held, err := store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 5, held)

	held, err = store.HeldQuantity(ctx, "tt2")
	require.NoError(t, err)
	assert.Equal(t, 5, held)

	_, ok, err := store.Remove(ctx, h1.HoldID)
	require.NoError(t, err)
	require.True(t, ok)

	held, err = store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 2, held)

	// Unknown ticket type reads as zero
	held, err = store.HeldQuantity(ctx, "tt-unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, held)
}

func TestExpiryFiresHandlerWithPayload(t *testing.T) {
	store := holdstore.NewMemoryStore()
	ctx := context.Background()

	evicted := make(chan *models.Hold, 1)
	store.OnEviction(func(h *models.Hold) { evicted <- h })

	hold := newTestHold("tt1", 4)
	require.NoError(t, store.Put(ctx, hold, 20*time.Millisecond))

	select {
	case h := <-evicted:
		assert.Equal(t, hold.HoldID, h.HoldID)
		assert.Equal(t, 4, h.Quantity)
		assert.Equal(t, "tt1", h.TicketTypeID)
	case <-time.After(2 * time.Second):
		t.Fatal("Eviction handler was not called")
	}

	// The expired hold is gone and its quantity released
	_, err := store.Get(ctx, hold.HoldID)
	assert.ErrorIs(t, err, holdstore.ErrNotFound)

	held, err := store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, held)
}

func TestRemoveSuppressesExpiry(t *testing.T) {
	store := holdstore.NewMemoryStore()
	ctx := context.Background()

	var fired int32
	store.OnEviction(func(h *models.Hold) { atomic.AddInt32(&fired, 1) })

	hold := newTestHold("tt1", 1)
	require.NoError(t, store.Put(ctx, hold, 30*time.Millisecond))

	_, ok, err := store.Remove(ctx, hold.HoldID)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired), "Handler must not fire for a removed hold")
}

func TestRemoveVsExpiryAtMostOnce(t *testing.T) {
	store := holdstore.NewMemoryStore()
	ctx := context.Background()

	var evictions int32
	store.OnEviction(func(h *models.Hold) { atomic.AddInt32(&evictions, 1) })

	// Race removals against expiry timers firing at roughly the same moment
	holds := make([]*models.Hold, 200)
	for i := range holds {
		holds[i] = newTestHold("tt1", 1)
		require.NoError(t, store.Put(ctx, holds[i], 5*time.Millisecond))
	}

	var removals int32
	var wg sync.WaitGroup
	time.Sleep(4 * time.Millisecond)
	for _, h := range holds {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, ok, err := store.Remove(ctx, id)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&removals, 1)
			}
		}(h.HoldID)
	}
	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	// Every hold leaves the store exactly once, through remove or eviction
	total := atomic.LoadInt32(&removals) + atomic.LoadInt32(&evictions)
	assert.Equal(t, int32(len(holds)), total)

	held, err := store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, held)
}
