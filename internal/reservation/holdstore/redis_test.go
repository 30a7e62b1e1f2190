package holdstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-reservation/internal/models"
	"ms-reservation/internal/reservation/holdstore"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})

	// The store's expiry subscriber depends on keyspace notifications
	require.NoError(t, client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err())

	return client, func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}
}

func TestRedisStoreLifecycle(t *testing.T) {
	client, teardown := setupRedis(t)
	defer teardown()

	store := holdstore.NewRedisStore(client, nil)
	ctx := context.Background()

	hold := newTestHold("tt1", 3)
	require.NoError(t, store.Put(ctx, hold, time.Minute))

	// Duplicate IDs are rejected
	err := store.Put(ctx, hold, time.Minute)
	assert.ErrorIs(t, err, holdstore.ErrAlreadyExists)

	got, err := store.Get(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.Equal(t, hold.HoldID, got.HoldID)
	assert.Equal(t, hold.TicketSerials, got.TicketSerials)

	held, err := store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 3, held)

	// First removal wins, second sees nothing
	removed, ok, err := store.Remove(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hold.HoldID, removed.HoldID)

	_, ok, err = store.Remove(ctx, hold.HoldID)
	require.NoError(t, err)
	assert.False(t, ok)

	held, err = store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, held)
}

func TestRedisStoreExpiryNotification(t *testing.T) {
	client, teardown := setupRedis(t)
	defer teardown()

	store := holdstore.NewRedisStore(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evicted := make(chan *models.Hold, 1)
	store.OnEviction(func(h *models.Hold) { evicted <- h })
	go store.Listen(ctx)

	// Give the subscriber a moment to attach before the key can expire
	time.Sleep(200 * time.Millisecond)

	hold := newTestHold("tt1", 2)
	require.NoError(t, store.Put(ctx, hold, time.Second))

	select {
	case h := <-evicted:
		// The payload survives expiry via the shadow key
		assert.Equal(t, hold.HoldID, h.HoldID)
		assert.Equal(t, 2, h.Quantity)
	case <-time.After(10 * time.Second):
		t.Fatal("Eviction handler was not called for expired hold")
	}

	held, err := store.HeldQuantity(ctx, "tt1")
	require.NoError(t, err)
	assert.Equal(t, 0, held)
}

func TestRedisStoreRemoveSuppressesExpiry(t *testing.T) {
	client, teardown := setupRedis(t)
	defer teardown()

	store := holdstore.NewRedisStore(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evicted := make(chan *models.Hold, 1)
	store.OnEviction(func(h *models.Hold) { evicted <- h })
	go store.Listen(ctx)
	time.Sleep(200 * time.Millisecond)

	hold := newTestHold("tt1", 2)
	require.NoError(t, store.Put(ctx, hold, time.Second))

	_, ok, err := store.Remove(ctx, hold.HoldID)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-evicted:
		t.Fatal("Handler must not fire for a hold that was removed first")
	case <-time.After(3 * time.Second):
	}
}
