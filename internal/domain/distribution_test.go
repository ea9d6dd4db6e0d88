package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistribution_CloneDetachesPointers(t *testing.T) {
	from := "dealer-1"
	delivered := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	d := Distribution{
		ID:           "dist-1",
		FromDealerID: &from,
		ToDealerID:   "dealer-2",
		InventoryIDs: []string{"inv-1"},
		DeliveredAt:  &delivered,
	}

	clone := d.Clone()
	require.NotNil(t, clone.DeliveredAt)
	*clone.DeliveredAt = delivered.Add(time.Hour)
	*clone.FromDealerID = "dealer-9"
	clone.InventoryIDs[0] = "inv-9"

	assert.Equal(t, delivered, *d.DeliveredAt)
	assert.Equal(t, "dealer-1", *d.FromDealerID)
	assert.Equal(t, "inv-1", d.InventoryIDs[0])
}

func TestDistribution_CloneKeepsNilDeliveredAt(t *testing.T) {
	clone := Distribution{ID: "dist-1"}.Clone()

	assert.Nil(t, clone.DeliveredAt)
	assert.Nil(t, clone.FromDealerID)
}
