package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/testutil"
)

// newStoredOrder gives the order detail a unique key so several orders can
// share one database.
func newStoredOrder() *domain.Order {
	order := newOrder(uuid.NewString())
	for i := range order.Details {
		order.Details[i].ID = uuid.NewString()
		order.Details[i].OrderID = order.ID
	}
	return order
}

func TestMySQLManager_CommitAndRollback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := context.Background()
	m := NewMySQLManager(db, 5*time.Second)
	committed := newStoredOrder()
	rolledBack := newStoredOrder()

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Orders().Insert(ctx, committed)
	}))

	boom := errors.New("boom")
	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Orders().Insert(ctx, rolledBack); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Orders().FindByID(ctx, committed.ID)
		require.NoError(t, err)

		_, err = tx.Orders().FindByID(ctx, rolledBack.ID)
		_, notFound := apperrors.IsNotFoundError(err)
		assert.True(t, notFound)
		return nil
	}))
}

func TestMySQLManager_PaymentReferenceIsUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := context.Background()
	m := NewMySQLManager(db, 5*time.Second)
	order := newStoredOrder()
	reference := order.ID + "_deposit_01J0000000000000000000000"

	payment := func() *domain.Payment {
		now := time.Now().UTC()
		return &domain.Payment{
			ID:                   uuid.NewString(),
			OrderID:              order.ID,
			Type:                 domain.PaymentTypeDeposit,
			Method:               domain.PaymentMethodVNPay,
			Amount:               order.DepositAmount,
			Status:               domain.PaymentStatusPending,
			TransactionReference: reference,
			Version:              1,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
	}

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Orders().Insert(ctx, order); err != nil {
			return err
		}
		return tx.Payments().Insert(ctx, payment())
	}))

	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Payments().Insert(ctx, payment())
	})
	assert.Error(t, err)
}

func TestMySQLManager_ReservationExclusivity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := context.Background()
	m := NewMySQLManager(db, 5*time.Second)
	unitID := uuid.NewString()
	testutil.InsertInventory(t, db, unitID, "VIN-"+unitID[:8], nil, string(domain.InventoryStatusInStock))

	distribution := func() *domain.Distribution {
		now := time.Now().UTC()
		return &domain.Distribution{
			ID:           uuid.NewString(),
			ToDealerID:   "dealer-1",
			InventoryIDs: []string{unitID},
			Status:       domain.DistributionStatusPending,
			MovementType: domain.MovementCentralToDealer,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	open := func(d *domain.Distribution) error {
		return m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Distributions().Insert(ctx, d); err != nil {
				return err
			}
			return tx.Distributions().Reserve(ctx, d.ID, d.InventoryIDs)
		})
	}

	first := distribution()
	require.NoError(t, open(first))

	err := open(distribution())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInventoryAlreadyReserved))

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Distributions().Release(ctx, first.ID)
	}))
	assert.NoError(t, open(distribution()))
}
