package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	orderservice "dealerhub/internal/order/service"
	"dealerhub/internal/payment/gateway"
	"dealerhub/internal/store"
)

type mockGateway struct {
	CreatePaymentURLFunc func(ctx context.Context, req gateway.PaymentRequest) (string, error)
}

func (m *mockGateway) CreatePaymentURL(ctx context.Context, req gateway.PaymentRequest) (string, error) {
	return m.CreatePaymentURLFunc(ctx, req)
}

type fixture struct {
	ctx         context.Context
	manager     *store.MemoryManager
	orders      *orderservice.Lifecycle
	gateway     *mockGateway
	coordinator *Coordinator
}

func newFixture() *fixture {
	orders := orderservice.NewLifecycle(zap.NewNop())
	gw := &mockGateway{
		CreatePaymentURLFunc: func(_ context.Context, req gateway.PaymentRequest) (string, error) {
			return "https://pay.test/?ref=" + req.Reference, nil
		},
	}
	return &fixture{
		ctx:         context.Background(),
		manager:     store.NewMemoryManager(),
		orders:      orders,
		gateway:     gw,
		coordinator: NewCoordinator(orders, gw, zap.NewNop()),
	}
}

func (f *fixture) submit(t *testing.T, total, deposit int64) *domain.Order {
	t.Helper()
	var order *domain.Order
	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = f.orders.Submit(ctx, tx, dto.Quotation{
			CustomerID:    "customer-1",
			DealerID:      "dealer-1",
			TotalAmount:   decimal.NewFromInt(total),
			DepositAmount: decimal.NewFromInt(deposit),
			Lines:         []dto.QuotationLine{{VehicleDetailID: "vd-1", Quantity: 1, UnitPrice: decimal.NewFromInt(total)}},
		})
		return err
	}))
	return order
}

func (f *fixture) initiate(t *testing.T, orderID string, paymentType domain.PaymentType) *domain.Payment {
	t.Helper()
	var payment *domain.Payment
	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		payment, err = f.coordinator.Initiate(ctx, tx, orderID, paymentType)
		return err
	}))
	return payment
}

func (f *fixture) callback(cb dto.PaymentCallback) (*domain.Payment, *domain.Order, error) {
	var (
		payment *domain.Payment
		order   *domain.Order
	)
	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		payment, order, err = f.coordinator.OnCallback(ctx, tx, cb)
		return err
	})
	return payment, order, err
}

func (f *fixture) load(t *testing.T, orderID string) (*domain.Order, []domain.Payment) {
	t.Helper()
	var (
		order    *domain.Order
		payments []domain.Payment
	)
	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if order, err = tx.Orders().FindByID(ctx, orderID); err != nil {
			return err
		}
		payments, err = tx.Payments().FindByOrderID(ctx, orderID)
		return err
	}))
	return order, payments
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		orderID   string
		typ       domain.PaymentType
		wantErr   bool
	}{
		{"deposit", "0b7e-11_deposit_01HZX", "0b7e-11", domain.PaymentTypeDeposit, false},
		{"final", "abc_final_01HZX", "abc", domain.PaymentTypeFinal, false},
		{"order id with underscore", "legacy_42_final_01HZX", "legacy_42", domain.PaymentTypeFinal, false},
		{"too few parts", "abc_deposit", "", "", true},
		{"unknown type", "abc_refund_01HZX", "", "", true},
		{"empty nonce", "abc_deposit_", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderID, typ, err := ParseReference(tt.reference)

			if tt.wantErr {
				_, ok := apperrors.IsValidationError(err)
				assert.True(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.orderID, orderID)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestInitiate_Deposit(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)

	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)

	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, domain.PaymentMethodVNPay, payment.Method)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(50)))

	orderID, typ, err := ParseReference(payment.TransactionReference)
	require.NoError(t, err)
	assert.Equal(t, order.ID, orderID)
	assert.Equal(t, domain.PaymentTypeDeposit, typ)

	redirect, err := f.coordinator.RedirectURL(f.ctx, payment, "10.0.0.1")
	require.NoError(t, err)
	assert.Contains(t, redirect, payment.TransactionReference)
}

func TestInitiate_Gates(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	noDeposit := f.submit(t, 500, 0)

	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := f.coordinator.Initiate(ctx, tx, order.ID, domain.PaymentTypeFinal)
		return err
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOrderNotEligible))

	err = f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := f.coordinator.Initiate(ctx, tx, noDeposit.ID, domain.PaymentTypeDeposit)
		return err
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidAmount))

	err = f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := f.coordinator.Initiate(ctx, tx, order.ID, domain.PaymentType("refund"))
		return err
	})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestRedirectURL_GatewayFailure(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)
	f.gateway.CreatePaymentURLFunc = func(context.Context, gateway.PaymentRequest) (string, error) {
		return "", gateway.ErrNotConfigured
	}

	_, err := f.coordinator.RedirectURL(f.ctx, payment, "")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable))
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, payments := f.load(t, order.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusPending, payments[0].Status)
}

func TestOnCallback_Success(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)
	amount := decimal.NewFromInt(50)

	settled, updated, err := f.callback(dto.PaymentCallback{
		Reference: payment.TransactionReference,
		Success:   true,
		Message:   "transaction successful",
		Amount:    &amount,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, settled.Status)
	require.NotNil(t, settled.ProcessedAt)
	assert.Equal(t, domain.OrderStatusDeposited, updated.Status)
}

func TestOnCallback_Failure(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)

	settled, updated, err := f.callback(dto.PaymentCallback{
		Reference: payment.TransactionReference,
		Success:   false,
		Message:   "customer cancelled the transaction",
	})

	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.Equal(t, domain.PaymentStatusFailed, settled.Status)
	assert.Equal(t, "customer cancelled the transaction", settled.GatewayMessage)

	reloaded, _ := f.load(t, order.ID)
	assert.Equal(t, domain.OrderStatusDraftQuotation, reloaded.Status)
}

func TestOnCallback_Replay(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)
	cb := dto.PaymentCallback{Reference: payment.TransactionReference, Success: true}

	_, _, err := f.callback(cb)
	require.NoError(t, err)

	_, _, err = f.callback(cb)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReplayedCallback))

	reloaded, payments := f.load(t, order.ID)
	assert.Equal(t, domain.OrderStatusDeposited, reloaded.Status)
	assert.Equal(t, 2, reloaded.Version)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusCompleted, payments[0].Status)
}

func TestOnCallback_UnknownAndMalformedReference(t *testing.T) {
	f := newFixture()

	_, _, err := f.callback(dto.PaymentCallback{Reference: "missing_deposit_01HZX", Success: true})
	_, notFound := apperrors.IsNotFoundError(err)
	assert.True(t, notFound)

	_, _, err = f.callback(dto.PaymentCallback{Reference: "garbage", Success: true})
	_, invalid := apperrors.IsValidationError(err)
	assert.True(t, invalid)
}

func TestOnCallback_AmountMismatch(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)
	wrong := decimal.NewFromInt(5)

	_, _, err := f.callback(dto.PaymentCallback{Reference: payment.TransactionReference, Success: true, Amount: &wrong})

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidAmount))
	_, payments := f.load(t, order.ID)
	assert.Equal(t, domain.PaymentStatusPending, payments[0].Status)
}

func TestOnCallback_OrderNoLongerEligible(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)
	payment := f.initiate(t, order.ID, domain.PaymentTypeDeposit)

	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := f.orders.Cancel(ctx, tx, order.ID)
		return err
	}))

	_, _, err := f.callback(dto.PaymentCallback{Reference: payment.TransactionReference, Success: true})

	assert.True(t, apperrors.HasCode(err, apperrors.CodeOrderNotEligible))
	reloaded, payments := f.load(t, order.ID)
	assert.Equal(t, domain.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, domain.PaymentStatusPending, payments[0].Status)
}

func TestRecordOffline(t *testing.T) {
	f := newFixture()
	order := f.submit(t, 500, 50)

	var (
		payment *domain.Payment
		updated *domain.Order
	)
	require.NoError(t, f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		payment, updated, err = f.coordinator.RecordOffline(ctx, tx, order.ID, domain.PaymentTypeDeposit)
		return err
	}))

	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, domain.PaymentMethodOffline, payment.Method)
	assert.Equal(t, domain.OrderStatusDeposited, updated.Status)

	err := f.manager.WithinTx(f.ctx, func(ctx context.Context, tx store.Tx) error {
		_, _, err := f.coordinator.RecordOffline(ctx, tx, order.ID, domain.PaymentTypeDeposit)
		return err
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOrderNotEligible))
}

func TestRedirectURL_PropagatesContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.gateway.CreatePaymentURLFunc = func(ctx context.Context, _ gateway.PaymentRequest) (string, error) {
		return "", ctx.Err()
	}

	_, err := f.coordinator.RedirectURL(ctx, &domain.Payment{ID: "p-1"}, "")

	assert.True(t, errors.Is(err, context.Canceled))
}
