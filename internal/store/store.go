// Package store defines the transactional persistence boundary used by the
// workflow managers. Every repository method runs inside the transaction that
// produced it; rows returned by a Find method are locked until commit.
//
// Update methods perform an optimistic version check: the entity's Version must
// match the stored row, otherwise CONCURRENT_MODIFICATION is returned. On
// success the entity's Version is incremented in place.
package store

import (
	"context"

	"dealerhub/internal/domain"
)

type OrderRepository interface {
	Insert(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
}

type ContractRepository interface {
	Insert(ctx context.Context, contract *domain.Contract) error
	FindByID(ctx context.Context, id string) (*domain.Contract, error)
	FindByOrderID(ctx context.Context, orderID string) ([]domain.Contract, error)
	Update(ctx context.Context, contract *domain.Contract) error
}

type PaymentRepository interface {
	Insert(ctx context.Context, payment *domain.Payment) error
	FindByReference(ctx context.Context, reference string) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) ([]domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
}

type DistributionRepository interface {
	Insert(ctx context.Context, distribution *domain.Distribution) error
	FindByID(ctx context.Context, id string) (*domain.Distribution, error)
	Update(ctx context.Context, distribution *domain.Distribution) error
	// Reserve claims every inventory unit for the distribution or none of them,
	// failing with INVENTORY_ALREADY_RESERVED when any unit is already held.
	Reserve(ctx context.Context, distributionID string, inventoryIDs []string) error
	Release(ctx context.Context, distributionID string) error
}

type InventoryRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Inventory, error)
	Update(ctx context.Context, inventory *domain.Inventory) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Orders() OrderRepository
	Contracts() ContractRepository
	Payments() PaymentRepository
	Distributions() DistributionRepository
	Inventory() InventoryRepository
}

// Manager runs fn inside a transaction. A nil return commits, anything else
// rolls every write back.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
