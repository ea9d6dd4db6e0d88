package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/store"
)

func strPtr(s string) *string {
	return &s
}

type fixture struct {
	ctx     context.Context
	manager *store.MemoryManager
	machine *StateMachine
}

func newFixture() *fixture {
	m := store.NewMemoryManager()
	m.SeedInventory(
		domain.Inventory{ID: "inv-1", VIN: "VIN0001", VehicleDetailID: "vd-1", Status: domain.InventoryStatusInStock},
		domain.Inventory{ID: "inv-2", VIN: "VIN0002", VehicleDetailID: "vd-1", Status: domain.InventoryStatusInStock},
		domain.Inventory{ID: "inv-3", VIN: "VIN0003", VehicleDetailID: "vd-2", Status: domain.InventoryStatusInStock},
		domain.Inventory{ID: "inv-sold", VIN: "VIN0004", VehicleDetailID: "vd-2", Status: domain.InventoryStatusSold},
		domain.Inventory{ID: "inv-d1", VIN: "VIN0005", VehicleDetailID: "vd-3", DealerID: strPtr("dealer-1"), Status: domain.InventoryStatusInStock},
	)
	return &fixture{
		ctx:     context.Background(),
		manager: m,
		machine: NewStateMachine(zap.NewNop()),
	}
}

func (f *fixture) create(s dto.Shipment) (*domain.Distribution, error) {
	var d *domain.Distribution
	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		d, err = f.machine.Create(ctx, tx, s)
		return err
	})
	return d, err
}

func (f *fixture) transition(id string, to domain.DistributionStatus) (*domain.Distribution, error) {
	var d *domain.Distribution
	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		d, err = f.machine.Transition(ctx, tx, id, to)
		return err
	})
	return d, err
}

func (f *fixture) inventory(t *testing.T, id string) *domain.Inventory {
	t.Helper()
	var unit *domain.Inventory
	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		unit, err = tx.Inventory().FindByID(ctx, id)
		return err
	}))
	return unit
}

func TestCreate(t *testing.T) {
	f := newFixture()

	d, err := f.create(dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-1", "inv-2", "inv-1"}})

	require.NoError(t, err)
	assert.Equal(t, domain.DistributionStatusPending, d.Status)
	assert.Equal(t, domain.MovementCentralToDealer, d.MovementType)
	assert.Equal(t, []string{"inv-1", "inv-2"}, d.InventoryIDs)
}

func TestCreate_InitialStatus(t *testing.T) {
	f := newFixture()

	d, err := f.create(dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-1"}, InitialStatus: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, domain.DistributionStatusConfirmed, d.Status)

	_, err = f.create(dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-2"}, InitialStatus: "in_transit"})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name     string
		shipment dto.Shipment
	}{
		{"no destination", dto.Shipment{InventoryIDs: []string{"inv-1"}}},
		{"no units", dto.Shipment{ToDealerID: "dealer-1"}},
		{"sold unit", dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-sold"}}},
		{"dealer unit shipped as central", dto.Shipment{ToDealerID: "dealer-2", InventoryIDs: []string{"inv-d1"}}},
		{"wrong source dealer", dto.Shipment{FromDealerID: strPtr("dealer-9"), ToDealerID: "dealer-2", InventoryIDs: []string{"inv-d1"}}},
		{"same dealer", dto.Shipment{FromDealerID: strPtr("dealer-1"), ToDealerID: "dealer-1", InventoryIDs: []string{"inv-d1"}}},
		{"unknown movement", dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-1"}, MovementType: "teleport"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.create(tt.shipment)

			_, ok := apperrors.IsValidationError(err)
			assert.True(t, ok, "expected validation error, got %v", err)
		})
	}
}

func TestCreate_UnknownInventory(t *testing.T) {
	f := newFixture()

	_, err := f.create(dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-404"}})

	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestCreate_InventoryExclusivity(t *testing.T) {
	f := newFixture()

	first, err := f.create(dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-1", "inv-2"}})
	require.NoError(t, err)

	_, err = f.create(dto.Shipment{ToDealerID: "dealer-2", InventoryIDs: []string{"inv-3", "inv-2"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInventoryAlreadyReserved))

	_, err = f.transition(first.ID, domain.DistributionStatusCancelled)
	require.NoError(t, err)

	second, err := f.create(dto.Shipment{ToDealerID: "dealer-2", InventoryIDs: []string{"inv-3", "inv-2"}})
	require.NoError(t, err)
	assert.Equal(t, domain.DistributionStatusPending, second.Status)
}

func TestTransition(t *testing.T) {
	f := newFixture()
	d, err := f.create(dto.Shipment{ToDealerID: "dealer-1", InventoryIDs: []string{"inv-1"}})
	require.NoError(t, err)

	for _, to := range []domain.DistributionStatus{
		domain.DistributionStatusInTransit,
		domain.DistributionStatusDelayed,
		domain.DistributionStatusInTransit,
	} {
		d, err = f.transition(d.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, d.Status)
	}

	_, err = f.transition(d.ID, domain.DistributionStatusDelivered)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))

	_, err = f.transition(d.ID, domain.DistributionStatusPending)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))
}

func TestComplete(t *testing.T) {
	f := newFixture()
	d, err := f.create(dto.Shipment{ToDealerID: "dealer-7", InventoryIDs: []string{"inv-1", "inv-2"}})
	require.NoError(t, err)

	err = f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, _, err := f.machine.Complete(ctx, tx, d.ID)
		return err
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition), "pending shipments cannot be delivered")

	_, err = f.transition(d.ID, domain.DistributionStatusInTransit)
	require.NoError(t, err)

	var (
		delivered *domain.Distribution
		moved     []domain.Inventory
	)
	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		delivered, moved, err = f.machine.Complete(ctx, tx, d.ID)
		return err
	}))

	assert.Equal(t, domain.DistributionStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	require.Len(t, moved, 2)
	for _, id := range []string{"inv-1", "inv-2"} {
		unit := f.inventory(t, id)
		require.NotNil(t, unit.DealerID)
		assert.Equal(t, "dealer-7", *unit.DealerID)
		assert.Equal(t, domain.InventoryStatusInStock, unit.Status)
	}

	_, err = f.transition(d.ID, domain.DistributionStatusCancelled)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))

	// delivered units are free to ship onward from their new dealer
	_, err = f.create(dto.Shipment{FromDealerID: strPtr("dealer-7"), ToDealerID: "dealer-8", InventoryIDs: []string{"inv-1"}})
	assert.NoError(t, err)
}

func TestComplete_NotFound(t *testing.T) {
	f := newFixture()

	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, _, err := f.machine.Complete(ctx, tx, "missing")
		return err
	})

	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

type failingInventory struct {
	store.InventoryRepository
	updates int
	failOn  int
}

func (r *failingInventory) Update(ctx context.Context, unit *domain.Inventory) error {
	r.updates++
	if r.updates == r.failOn {
		return errors.New("inventory service unavailable")
	}
	return r.InventoryRepository.Update(ctx, unit)
}

type failingTx struct {
	store.Tx
	inventory *failingInventory
}

func (t failingTx) Inventory() store.InventoryRepository {
	return t.inventory
}

func TestComplete_FailurePartwayLeavesNothingApplied(t *testing.T) {
	f := newFixture()
	d, err := f.create(dto.Shipment{ToDealerID: "dealer-7", InventoryIDs: []string{"inv-1", "inv-2"}})
	require.NoError(t, err)
	_, err = f.transition(d.ID, domain.DistributionStatusInTransit)
	require.NoError(t, err)

	var inv *failingInventory
	err = f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		inv = &failingInventory{InventoryRepository: tx.Inventory(), failOn: 2}
		_, _, err := f.machine.Complete(ctx, failingTx{Tx: tx, inventory: inv}, d.ID)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 2, inv.updates, "the first unit was written before the failure")

	first := f.inventory(t, "inv-1")
	assert.Nil(t, first.DealerID)
	assert.Equal(t, domain.InventoryStatusInStock, first.Status)
	assert.Equal(t, 1, first.Version)

	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		stored, err := tx.Distributions().FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DistributionStatusInTransit, stored.Status)
		assert.Nil(t, stored.DeliveredAt)
		return nil
	}))

	_, err = f.create(dto.Shipment{ToDealerID: "dealer-8", InventoryIDs: []string{"inv-1"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInventoryAlreadyReserved), "reservations survive the failed delivery")

	// the retried delivery still completes
	_, _, err = f.complete(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "dealer-7", *f.inventory(t, "inv-1").DealerID)
}

func (f *fixture) complete(id string) (*domain.Distribution, []domain.Inventory, error) {
	var (
		d     *domain.Distribution
		moved []domain.Inventory
	)
	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		d, moved, err = f.machine.Complete(ctx, tx, id)
		return err
	})
	return d, moved, err
}
