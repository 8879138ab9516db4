package kafka

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore tracks processed event IDs so redelivered messages are not
// handled twice.
type IdempotencyStore interface {
	// MarkProcessed records an event ID. It returns false if the event was
	// already recorded.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// MemoryIdempotencyStore is an in-process IdempotencyStore with TTL-based
// eviction. Suitable for single-instance consumers; multi-instance deployments
// should back this with Redis.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
}

// NewMemoryIdempotencyStore creates a store that remembers event IDs for ttl
// and holds at most maxSize entries.
func NewMemoryIdempotencyStore(ttl time.Duration, maxSize int) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// MarkProcessed implements IdempotencyStore.
func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, ok := s.seen[eventID]; ok && now.Before(expiry) {
		return false, nil
	}

	// Evict expired entries when at capacity.
	if len(s.seen) >= s.maxSize {
		for id, expiry := range s.seen {
			if now.After(expiry) {
				delete(s.seen, id)
			}
		}
		// Still full: drop an arbitrary entry rather than grow unbounded.
		if len(s.seen) >= s.maxSize {
			for id := range s.seen {
				delete(s.seen, id)
				break
			}
		}
	}

	s.seen[eventID] = now.Add(s.ttl)
	return true, nil
}

// IdempotentHandler wraps a Handler so duplicate events (by event ID) are
// acknowledged without re-processing.
func IdempotentHandler(store IdempotencyStore, topic, groupID string, next Handler) Handler {
	return func(ctx context.Context, event *Event) error {
		first, err := store.MarkProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if !first {
			ConsumerMessagesDuplicate.WithLabelValues(topic, groupID).Inc()
			return nil
		}
		return next(ctx, event)
	}
}
