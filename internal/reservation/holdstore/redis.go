package holdstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

const (
	holdKeyPrefix = "hold:"
	metaKeyPrefix = "holdmeta:"
	heldKeyPrefix = "held:"

	// metaGrace keeps the shadow payload around past the hold's own TTL so
	// the expiry subscriber can still read it when the keyspace event lands.
	metaGrace = time.Hour
)

// RedisStore keeps each hold under a TTL'd key and reacts to Redis keyspace
// expiry notifications. Because an expired key's value is gone by the time the
// notification arrives, the payload is duplicated under a shadow key with a
// grace period; GETDEL on either key is what makes removal at-most-once.
//
// Requires notify-keyspace-events to include "Ex" (the service enables it on
// startup).
type RedisStore struct {
	Client *redis.Client
	Logger *logger.Logger

	mu      sync.Mutex
	onEvict EvictionHandler
}

func NewRedisStore(client *redis.Client, log *logger.Logger) *RedisStore {
	return &RedisStore{Client: client, Logger: log}
}

func (s *RedisStore) OnEviction(handler EvictionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = handler
}

func (s *RedisStore) Put(ctx context.Context, hold *models.Hold, ttl time.Duration) error {
	payload, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("marshal hold %s: %w", hold.HoldID, err)
	}

	ok, err := s.Client.SetNX(ctx, holdKeyPrefix+hold.HoldID, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store hold %s: %w", hold.HoldID, err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, metaKeyPrefix+hold.HoldID, payload, ttl+metaGrace)
	pipe.IncrBy(ctx, heldKeyPrefix+hold.TicketTypeID, int64(hold.Quantity))
	if _, err := pipe.Exec(ctx); err != nil {
		// Roll the primary key back so a half-written hold is not visible.
		_ = s.Client.Del(ctx, holdKeyPrefix+hold.HoldID).Err()
		return fmt.Errorf("store hold metadata %s: %w", hold.HoldID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, holdID string) (*models.Hold, error) {
	raw, err := s.Client.Get(ctx, holdKeyPrefix+holdID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hold %s: %w", holdID, err)
	}
	return unmarshalHold(raw)
}

func (s *RedisStore) Remove(ctx context.Context, holdID string) (*models.Hold, bool, error) {
	raw, err := s.Client.GetDel(ctx, holdKeyPrefix+holdID).Result()
	if err == redis.Nil {
		// Already removed or expired; the other side owns the resolution.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("remove hold %s: %w", holdID, err)
	}

	hold, err := unmarshalHold(raw)
	if err != nil {
		return nil, false, err
	}

	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, metaKeyPrefix+holdID)
	pipe.DecrBy(ctx, heldKeyPrefix+hold.TicketTypeID, int64(hold.Quantity))
	if _, err := pipe.Exec(ctx); err != nil {
		return hold, true, fmt.Errorf("clean up hold %s: %w", holdID, err)
	}
	return hold, true, nil
}

func (s *RedisStore) HeldQuantity(ctx context.Context, ticketTypeID string) (int, error) {
	raw, err := s.Client.Get(ctx, heldKeyPrefix+ticketTypeID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("held count for %s: %w", ticketTypeID, err)
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("held count for %s: %w", ticketTypeID, err)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// Listen subscribes to keyspace expiry events and dispatches evictions until
// ctx is cancelled. Run it in its own goroutine.
func (s *RedisStore) Listen(ctx context.Context) {
	pubsub := s.Client.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	if s.Logger != nil {
		s.Logger.Info("HOLDSTORE", "Subscribed to Redis keyevent expired notifications")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			if !strings.HasPrefix(msg.Payload, holdKeyPrefix) {
				continue
			}
			s.handleExpired(ctx, strings.TrimPrefix(msg.Payload, holdKeyPrefix))
		}
	}
}

func (s *RedisStore) handleExpired(ctx context.Context, holdID string) {
	raw, err := s.Client.GetDel(ctx, metaKeyPrefix+holdID).Result()
	if err == redis.Nil {
		// Removed explicitly before the event arrived; nothing to evict.
		return
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("HOLDSTORE", fmt.Sprintf("Failed to read expired hold %s: %v", holdID, err))
		}
		return
	}

	hold, err := unmarshalHold(raw)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("HOLDSTORE", fmt.Sprintf("Corrupt payload for expired hold %s: %v", holdID, err))
		}
		return
	}

	if err := s.Client.DecrBy(ctx, heldKeyPrefix+hold.TicketTypeID, int64(hold.Quantity)).Err(); err != nil {
		if s.Logger != nil {
			s.Logger.Error("HOLDSTORE", fmt.Sprintf("Failed to decrement held count for %s: %v", hold.TicketTypeID, err))
		}
	}

	s.mu.Lock()
	handler := s.onEvict
	s.mu.Unlock()
	if handler != nil {
		handler(hold)
	}
}

func unmarshalHold(raw string) (*models.Hold, error) {
	var hold models.Hold
	if err := json.Unmarshal([]byte(raw), &hold); err != nil {
		return nil, fmt.Errorf("unmarshal hold: %w", err)
	}
	return &hold, nil
}
