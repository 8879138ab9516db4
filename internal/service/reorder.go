package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
)

// SuggestionCache stores computed suggestion lists per organization. The Redis
// implementation is used in production; tests substitute an in-memory map.
type SuggestionCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Del(ctx context.Context, key string)
}

// RedisSuggestionCache implements SuggestionCache over Redis. Cache failures
// are logged and treated as misses; the advisor always recomputes on miss.
type RedisSuggestionCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisSuggestionCache creates a Redis-backed suggestion cache.
func NewRedisSuggestionCache(client *redis.Client, logger *slog.Logger) *RedisSuggestionCache {
	return &RedisSuggestionCache{client: client, logger: logger}
}

func (c *RedisSuggestionCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "suggestion cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return val, true
}

func (c *RedisSuggestionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "suggestion cache write failed", slog.String("error", err.Error()))
	}
}

func (c *RedisSuggestionCache) Del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WarnContext(ctx, "suggestion cache delete failed", slog.String("error", err.Error()))
	}
}

// ReorderAdvisorService computes replenishment suggestions on demand from the
// current items and their ledger history. Nothing is persisted; results are
// cached per organization and invalidated on every ledger mutation.
type ReorderAdvisorService struct {
	inventory repository.InventoryRepository
	cache     SuggestionCache
	cacheTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewReorderAdvisorService creates a new reorder advisor. cache may be nil, in
// which case every call recomputes.
func NewReorderAdvisorService(inventory repository.InventoryRepository, cache SuggestionCache, cacheTTL time.Duration, logger *slog.Logger) *ReorderAdvisorService {
	return &ReorderAdvisorService{
		inventory: inventory,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func suggestionCacheKey(orgID string) string {
	return "reorder:suggestions:" + orgID
}

// Suggestions returns the items needing replenishment, most urgent first.
// Items whose urgency is low are omitted.
func (s *ReorderAdvisorService) Suggestions(ctx context.Context, orgID string) ([]domain.ReorderSuggestion, error) {
	key := suggestionCacheKey(orgID)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached []domain.ReorderSuggestion
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			s.cache.Del(ctx, key)
		}
	}

	items, err := s.inventory.ListItems(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	now := s.now()
	suggestions := make([]domain.ReorderSuggestion, 0, len(items))
	for i := range items {
		item := &items[i]
		history, err := s.inventory.ListHistoryForItem(ctx, orgID, item.ID)
		if err != nil {
			return nil, fmt.Errorf("list history for %s: %w", item.SKU, err)
		}
		suggestion := domain.BuildSuggestion(item, history, now)
		if suggestion.Urgency == domain.UrgencyLow {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}
	domain.SortSuggestions(suggestions)

	if s.cache != nil {
		if raw, err := json.Marshal(suggestions); err == nil {
			s.cache.Set(ctx, key, raw, s.cacheTTL)
		}
	}

	s.logger.DebugContext(ctx, "reorder suggestions computed",
		slog.Int("items", len(items)),
		slog.Int("suggestions", len(suggestions)),
	)
	return suggestions, nil
}

// Invalidate drops the cached suggestion list for an organization. Called by
// the stock ledger after every mutation.
func (s *ReorderAdvisorService) Invalidate(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, suggestionCacheKey(orgID))
}
