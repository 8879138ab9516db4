package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute, 100)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.MarkProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryIdempotencyStore_TTLExpiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10*time.Millisecond, 100)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	time.Sleep(20 * time.Millisecond)

	again, err := store.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again, "expired entries should be treated as unseen")
}

func TestMemoryIdempotencyStore_Capacity(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute, 2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		first, err := store.MarkProcessed(ctx, id)
		require.NoError(t, err)
		assert.True(t, first)
	}
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute, 100)
	calls := 0
	handler := IdempotentHandler(store, "test.topic", "test-group", func(ctx context.Context, event *Event) error {
		calls++
		return nil
	})

	event, err := NewEvent("stock.threshold_crossed", "item-1", "inventory_item", "stock-ledger", map[string]string{"sku": "SKU-1"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, handler(context.Background(), event))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_PropagatesHandlerError(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute, 100)
	wantErr := errors.New("boom")
	handler := IdempotentHandler(store, "test.topic", "test-group", func(ctx context.Context, event *Event) error {
		return wantErr
	})

	event, err := NewEvent("stock.threshold_crossed", "item-1", "inventory_item", "stock-ledger", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, handler(context.Background(), event), wantErr)
}
