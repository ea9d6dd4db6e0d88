package domain

import "time"

type MovementType string

const (
	MovementCentralToDealer MovementType = "central_to_dealer"
	MovementDealerToDealer  MovementType = "dealer_to_dealer"
)

func (m MovementType) Valid() bool {
	return m == MovementCentralToDealer || m == MovementDealerToDealer
}

type Distribution struct {
	ID           string
	FromDealerID *string
	ToDealerID   string
	InventoryIDs []string
	Status       DistributionStatus
	MovementType MovementType
	Note         string
	DeliveredAt  *time.Time
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (d Distribution) Clone() Distribution {
	c := d
	if d.InventoryIDs != nil {
		c.InventoryIDs = make([]string, len(d.InventoryIDs))
		copy(c.InventoryIDs, d.InventoryIDs)
	}
	if d.FromDealerID != nil {
		from := *d.FromDealerID
		c.FromDealerID = &from
	}
	if d.DeliveredAt != nil {
		delivered := *d.DeliveredAt
		c.DeliveredAt = &delivered
	}
	return c
}

// Inventory is a physical vehicle tracked by the inventory service. A nil
// DealerID means the unit sits in the central warehouse.
type Inventory struct {
	ID              string
	VIN             string
	VehicleDetailID string
	DealerID        *string
	Status          InventoryStatus
	Version         int
	UpdatedAt       time.Time
}

func (i Inventory) Clone() Inventory {
	c := i
	if i.DealerID != nil {
		dealer := *i.DealerID
		c.DealerID = &dealer
	}
	return c
}
