package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCrossing_LowThreshold(t *testing.T) {
	item := &InventoryItem{ID: "item-1", SKU: "SKU-1", LowStockThreshold: 10}

	crossing := DetectCrossing(item, 12, 9)
	require.NotNil(t, crossing)
	assert.Equal(t, CrossingLow, crossing.Severity)
	assert.Equal(t, 12, crossing.PreviousQuantity)
	assert.Equal(t, 9, crossing.NewQuantity)
	assert.Equal(t, "SKU-1", crossing.SKU)
}

func TestDetectCrossing_Critical(t *testing.T) {
	item := &InventoryItem{SKU: "SKU-1", LowStockThreshold: 10}

	crossing := DetectCrossing(item, 3, 0)
	require.NotNil(t, crossing)
	assert.Equal(t, CrossingCritical, crossing.Severity)
}

func TestDetectCrossing_EdgeTriggeredOnly(t *testing.T) {
	item := &InventoryItem{SKU: "SKU-1", LowStockThreshold: 10}

	// Already below threshold before the mutation: no new crossing.
	assert.Nil(t, DetectCrossing(item, 8, 5))

	// Quantity increased: never a crossing.
	assert.Nil(t, DetectCrossing(item, 5, 20))

	// Unchanged: no crossing.
	assert.Nil(t, DetectCrossing(item, 5, 5))

	// Still above threshold: no crossing.
	assert.Nil(t, DetectCrossing(item, 50, 40))
}

func TestDetectCrossing_CriticalTakesPrecedence(t *testing.T) {
	item := &InventoryItem{SKU: "SKU-1", LowStockThreshold: 10}

	// Drops past the threshold all the way to zero in one mutation.
	crossing := DetectCrossing(item, 15, 0)
	require.NotNil(t, crossing)
	assert.Equal(t, CrossingCritical, crossing.Severity)
}

func TestIsValidEntryType(t *testing.T) {
	for _, et := range ValidEntryTypes() {
		assert.True(t, IsValidEntryType(et))
	}
	assert.False(t, IsValidEntryType("purchase"))
	assert.False(t, IsValidEntryType(""))
}
