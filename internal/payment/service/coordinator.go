package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/payment/gateway"
	"dealerhub/internal/store"
)

// OrderLifecycle applies a settled payment to its order.
type OrderLifecycle interface {
	RecordDeposit(ctx context.Context, tx store.Tx, orderID string, amount decimal.Decimal) (*domain.Order, error)
	RecordFinalPayment(ctx context.Context, tx store.Tx, orderID string, amount decimal.Decimal) (*domain.Order, error)
}

type Gateway interface {
	CreatePaymentURL(ctx context.Context, req gateway.PaymentRequest) (string, error)
}

type Coordinator struct {
	orders  OrderLifecycle
	gateway Gateway
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	nonce   func() string
}

func NewCoordinator(orders OrderLifecycle, gw Gateway, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		orders:  orders,
		gateway: gw,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		nonce:   func() string { return ulid.MustNew(ulid.Now(), rand.Reader).String() },
	}
}

// Reference builds the gateway transaction reference {orderId}_{type}_{random}.
func Reference(orderID string, paymentType domain.PaymentType, nonce string) string {
	return orderID + "_" + string(paymentType) + "_" + nonce
}

// ParseReference splits a transaction reference into its order id and payment type.
func ParseReference(reference string) (string, domain.PaymentType, error) {
	parts := strings.Split(reference, "_")
	if len(parts) < 3 {
		return "", "", malformedReference(reference)
	}

	nonce := parts[len(parts)-1]
	paymentType := domain.PaymentType(parts[len(parts)-2])
	orderID := strings.Join(parts[:len(parts)-2], "_")
	if orderID == "" || nonce == "" || !paymentType.Valid() {
		return "", "", malformedReference(reference)
	}
	return orderID, paymentType, nil
}

func malformedReference(reference string) error {
	return apperrors.NewValidationError("malformed transaction reference",
		apperrors.ValidationDetail{Field: "vnp_TxnRef", Message: fmt.Sprintf("%q is not a transaction reference", reference)})
}

// Initiate records a pending gateway payment. The redirect is built separately
// with RedirectURL once the payment is committed.
func (c *Coordinator) Initiate(ctx context.Context, tx store.Tx, orderID string, paymentType domain.PaymentType) (*domain.Payment, error) {
	order, amount, err := c.eligible(ctx, tx, orderID, paymentType)
	if err != nil {
		return nil, err
	}

	payment := c.newPayment(order.ID, paymentType, domain.PaymentMethodVNPay, amount)
	if err := tx.Payments().Insert(ctx, payment); err != nil {
		return nil, err
	}

	c.logger.Info("payment initiated",
		zap.String("paymentId", payment.ID),
		zap.String("orderId", order.ID),
		zap.String("type", string(paymentType)),
		zap.String("reference", payment.TransactionReference),
		zap.Stringer("amount", amount),
	)
	return payment, nil
}

func (c *Coordinator) RedirectURL(ctx context.Context, payment *domain.Payment, clientIP string) (string, error) {
	redirect, err := c.gateway.CreatePaymentURL(ctx, gateway.PaymentRequest{
		Reference: payment.TransactionReference,
		Amount:    payment.Amount,
		OrderInfo: fmt.Sprintf("%s payment for order %s", payment.Type, payment.OrderID),
		ClientIP:  clientIP,
	})
	if err != nil {
		c.logger.Error("payment gateway unavailable",
			zap.String("paymentId", payment.ID), zap.String("reference", payment.TransactionReference), zap.Error(err))
		return "", apperrors.NewGatewayUnavailableError(err)
	}
	return redirect, nil
}

// RecordOffline books a payment settled outside the gateway and applies it to
// the order immediately.
func (c *Coordinator) RecordOffline(ctx context.Context, tx store.Tx, orderID string, paymentType domain.PaymentType) (*domain.Payment, *domain.Order, error) {
	order, amount, err := c.eligible(ctx, tx, orderID, paymentType)
	if err != nil {
		return nil, nil, err
	}

	order, err = c.apply(ctx, tx, order.ID, paymentType, amount)
	if err != nil {
		return nil, nil, err
	}

	payment := c.newPayment(order.ID, paymentType, domain.PaymentMethodOffline, amount)
	processed := c.now()
	payment.Status = domain.PaymentStatusCompleted
	payment.GatewayMessage = "recorded offline"
	payment.ProcessedAt = &processed
	if err := tx.Payments().Insert(ctx, payment); err != nil {
		return nil, nil, err
	}

	c.logger.Info("offline payment recorded",
		zap.String("paymentId", payment.ID),
		zap.String("orderId", order.ID),
		zap.String("type", string(paymentType)),
		zap.Stringer("amount", amount),
	)
	return payment, order, nil
}

// OnCallback settles the pending payment named by the callback reference. A
// successful outcome is applied to the order in the same transaction; if the
// order refuses it the whole callback fails and the payment stays pending.
// Callbacks for an already settled payment return REPLAYED_CALLBACK.
func (c *Coordinator) OnCallback(ctx context.Context, tx store.Tx, cb dto.PaymentCallback) (*domain.Payment, *domain.Order, error) {
	orderID, paymentType, err := ParseReference(cb.Reference)
	if err != nil {
		return nil, nil, err
	}

	payment, err := tx.Payments().FindByReference(ctx, cb.Reference)
	if err != nil {
		return nil, nil, err
	}
	if payment.OrderID != orderID || payment.Type != paymentType {
		return nil, nil, malformedReference(cb.Reference)
	}

	if payment.Settled() {
		return payment, nil, apperrors.NewWorkflowError(apperrors.CodeReplayedCallback,
			"payment %s already %s", payment.ID, payment.Status)
	}

	processed := c.now()
	payment.GatewayMessage = cb.Message
	payment.ProcessedAt = &processed
	payment.UpdatedAt = processed

	if !cb.Success {
		if err := c.settle(ctx, tx, payment, domain.PaymentStatusFailed); err != nil {
			return nil, nil, err
		}
		return payment, nil, nil
	}

	if cb.Amount != nil && !cb.Amount.Equal(payment.Amount) {
		return nil, nil, apperrors.NewWorkflowError(apperrors.CodeInvalidAmount,
			"gateway reported %s for payment %s of %s", cb.Amount, payment.ID, payment.Amount)
	}

	order, err := c.apply(ctx, tx, payment.OrderID, payment.Type, payment.Amount)
	if err != nil {
		c.logger.Warn("settled payment refused by order",
			zap.String("paymentId", payment.ID), zap.String("orderId", payment.OrderID), zap.Error(err))
		if apperrors.HasCode(err, apperrors.CodeIllegalTransition) {
			return nil, nil, &apperrors.WorkflowError{
				Code:    apperrors.CodeOrderNotEligible,
				Message: fmt.Sprintf("order %s can no longer accept %s payment %s", payment.OrderID, payment.Type, payment.ID),
				Cause:   err,
			}
		}
		return nil, nil, err
	}

	if err := c.settle(ctx, tx, payment, domain.PaymentStatusCompleted); err != nil {
		return nil, nil, err
	}
	return payment, order, nil
}

func (c *Coordinator) settle(ctx context.Context, tx store.Tx, payment *domain.Payment, to domain.PaymentStatus) error {
	from := payment.Status
	if err := domain.ValidateTransition(domain.KindPayment, string(from), string(to)); err != nil {
		return err
	}

	payment.Status = to
	if err := tx.Payments().Update(ctx, payment); err != nil {
		return err
	}

	c.logger.Info("payment settled",
		zap.String("paymentId", payment.ID),
		zap.String("orderId", payment.OrderID),
		zap.String("status", string(to)),
		zap.String("gatewayMessage", payment.GatewayMessage),
	)
	return nil
}

// eligible checks the order can take a payment of the given type and returns
// the amount due.
func (c *Coordinator) eligible(ctx context.Context, tx store.Tx, orderID string, paymentType domain.PaymentType) (*domain.Order, decimal.Decimal, error) {
	if !paymentType.Valid() {
		return nil, decimal.Zero, apperrors.NewValidationError("validation failed",
			apperrors.ValidationDetail{Field: "type", Message: fmt.Sprintf("unknown payment type %q", paymentType)})
	}

	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var amount decimal.Decimal
	switch paymentType {
	case domain.PaymentTypeDeposit:
		if !order.Status.CanReceiveDeposit() {
			return nil, decimal.Zero, apperrors.NewWorkflowError(apperrors.CodeOrderNotEligible,
				"order %s is %s and cannot take a deposit", order.ID, order.Status)
		}
		amount = order.DepositAmount
	case domain.PaymentTypeFinal:
		if !order.Status.CanReceiveFinalPayment() {
			return nil, decimal.Zero, apperrors.NewWorkflowError(apperrors.CodeOrderNotEligible,
				"order %s is %s and cannot take a final payment", order.ID, order.Status)
		}
		amount = order.RemainingAmount
	}
	if !amount.IsPositive() {
		return nil, decimal.Zero, apperrors.NewWorkflowError(apperrors.CodeInvalidAmount,
			"order %s has no %s amount due", order.ID, paymentType)
	}

	payments, err := tx.Payments().FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	for _, p := range payments {
		if p.Type == paymentType && p.Status == domain.PaymentStatusCompleted {
			return nil, decimal.Zero, apperrors.NewWorkflowError(apperrors.CodeOrderNotEligible,
				"order %s already has a completed %s payment", order.ID, paymentType)
		}
	}

	return order, amount, nil
}

func (c *Coordinator) apply(ctx context.Context, tx store.Tx, orderID string, paymentType domain.PaymentType, amount decimal.Decimal) (*domain.Order, error) {
	if paymentType == domain.PaymentTypeDeposit {
		return c.orders.RecordDeposit(ctx, tx, orderID, amount)
	}
	return c.orders.RecordFinalPayment(ctx, tx, orderID, amount)
}

func (c *Coordinator) newPayment(orderID string, paymentType domain.PaymentType, method domain.PaymentMethod, amount decimal.Decimal) *domain.Payment {
	now := c.now()
	return &domain.Payment{
		ID:                   c.newID(),
		OrderID:              orderID,
		Type:                 paymentType,
		Method:               method,
		Amount:               amount,
		Status:               domain.PaymentStatusPending,
		TransactionReference: Reference(orderID, paymentType, c.nonce()),
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
