package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
)

func newOrder(id string) *domain.Order {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Order{
		ID:              id,
		CustomerID:      "c-1",
		DealerID:        "d-1",
		Status:          domain.OrderStatusDraftQuotation,
		TotalAmount:     decimal.NewFromInt(100),
		DepositAmount:   decimal.NewFromInt(10),
		PaidFinalAmount: decimal.Zero,
		RemainingAmount: decimal.NewFromInt(90),
		Details:         []domain.OrderDetail{{ID: "od-1", OrderID: id, VehicleDetailID: "vd-1", Quantity: 1}},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestMemoryManager_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Orders().Insert(ctx, newOrder("o-1"))
	}))

	boom := errors.New("boom")
	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := tx.Orders().FindByID(ctx, "o-1")
		require.NoError(t, err)
		order.Status = domain.OrderStatusCancelled
		require.NoError(t, tx.Orders().Update(ctx, order))
		require.NoError(t, tx.Orders().Insert(ctx, newOrder("o-2")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := tx.Orders().FindByID(ctx, "o-1")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusDraftQuotation, order.Status)
		assert.Equal(t, 1, order.Version)

		_, err = tx.Orders().FindByID(ctx, "o-2")
		_, notFound := apperrors.IsNotFoundError(err)
		assert.True(t, notFound)
		return nil
	}))
}

func TestMemoryManager_StaleVersionIsRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Orders().Insert(ctx, newOrder("o-1")))

		first, err := tx.Orders().FindByID(ctx, "o-1")
		require.NoError(t, err)
		stale, err := tx.Orders().FindByID(ctx, "o-1")
		require.NoError(t, err)

		first.Status = domain.OrderStatusReadyForContract
		require.NoError(t, tx.Orders().Update(ctx, first))
		assert.Equal(t, 2, first.Version)

		stale.Status = domain.OrderStatusCancelled
		return tx.Orders().Update(ctx, stale)
	})

	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
}

func TestMemoryManager_FindReturnsDetachedCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Orders().Insert(ctx, newOrder("o-1")))

		order, err := tx.Orders().FindByID(ctx, "o-1")
		require.NoError(t, err)
		order.Status = domain.OrderStatusCancelled
		order.Details[0].Quantity = 9

		again, err := tx.Orders().FindByID(ctx, "o-1")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusDraftQuotation, again.Status)
		assert.Equal(t, 1, again.Details[0].Quantity)
		return nil
	}))
}

func TestMemoryManager_ReservationExclusivity(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Distributions().Reserve(ctx, "dist-1", []string{"inv-1", "inv-2"})
	}))

	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Distributions().Reserve(ctx, "dist-2", []string{"inv-3", "inv-2"})
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInventoryAlreadyReserved))

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Distributions().Release(ctx, "dist-1"))
		return tx.Distributions().Reserve(ctx, "dist-2", []string{"inv-3", "inv-2"})
	}))
}

func TestMemoryManager_PaymentReferenceIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Payments().Insert(ctx, &domain.Payment{ID: "p-1", OrderID: "o-1", TransactionReference: "ref"}))
		return tx.Payments().Insert(ctx, &domain.Payment{ID: "p-2", OrderID: "o-1", TransactionReference: "ref"})
	})
	assert.ErrorContains(t, err, "already exists")
	_, internal := apperrors.IsInternalError(err)
	assert.True(t, internal, "a key collision is a storage fault, not a client error")
}

func TestMemoryManager_DuplicateOrderIsInternal(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Orders().Insert(ctx, newOrder("o-1"))
	}))

	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Orders().Insert(ctx, newOrder("o-1"))
	})

	ie, ok := apperrors.IsInternalError(err)
	require.True(t, ok)
	assert.Equal(t, "inserting order", ie.Message)
	assert.ErrorContains(t, ie.Cause, "o-1 already exists")
}

func TestMemoryManager_CancelledContext(t *testing.T) {
	m := NewMemoryManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	_, internal := apperrors.IsInternalError(err)
	assert.True(t, internal)
	assert.False(t, called)
}

func TestMemoryManager_SeedInventory(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()
	m.SeedInventory(domain.Inventory{ID: "inv-1", VIN: "VIN1", Status: domain.InventoryStatusInStock})

	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		inv, err := tx.Inventory().FindByID(ctx, "inv-1")
		require.NoError(t, err)
		assert.Equal(t, 1, inv.Version)
		assert.Nil(t, inv.DealerID)
		return nil
	}))
}
