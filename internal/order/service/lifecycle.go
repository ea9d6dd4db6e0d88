package service

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/store"
)

// Statuses an operator may set directly. Every other order status is reached
// only through its owning event (payment, contract signing, cancellation).
var manualTargets = []domain.OrderStatus{
	domain.OrderStatusReadyForContract,
	domain.OrderStatusAwaitingVehicle,
	domain.OrderStatusPendingDelivery,
	domain.OrderStatusReadyForFinalPayment,
}

type Lifecycle struct {
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (l *Lifecycle) Submit(ctx context.Context, tx store.Tx, q dto.Quotation) (*domain.Order, error) {
	if err := validateQuotation(q); err != nil {
		return nil, err
	}

	now := l.now()
	order := &domain.Order{
		ID:              l.newID(),
		CustomerID:      q.CustomerID,
		DealerID:        q.DealerID,
		Status:          domain.OrderStatusDraftQuotation,
		TotalAmount:     q.TotalAmount,
		DepositAmount:   q.DepositAmount,
		PaidFinalAmount: decimal.Zero,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i, line := range q.Lines {
		order.Details = append(order.Details, domain.OrderDetail{
			ID:              l.newID(),
			OrderID:         order.ID,
			Position:        i + 1,
			VehicleDetailID: line.VehicleDetailID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
		})
	}
	if err := order.Recalculate(); err != nil {
		return nil, err
	}

	if err := tx.Orders().Insert(ctx, order); err != nil {
		return nil, err
	}

	l.logger.Info("quotation submitted",
		zap.String("orderId", order.ID),
		zap.String("dealerId", order.DealerID),
		zap.Stringer("totalAmount", order.TotalAmount),
		zap.Int("lineCount", len(order.Details)),
	)
	return order, nil
}

func validateQuotation(q dto.Quotation) error {
	var details []apperrors.ValidationDetail

	if q.CustomerID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "customerId", Message: "customerId is required"})
	}
	if q.DealerID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "dealerId", Message: "dealerId is required"})
	}
	if q.TotalAmount.IsNegative() {
		details = append(details, apperrors.ValidationDetail{Field: "totalAmount", Message: "totalAmount must be non-negative"})
	}
	if q.DepositAmount.IsNegative() {
		details = append(details, apperrors.ValidationDetail{Field: "depositAmount", Message: "depositAmount must be non-negative"})
	}
	if len(q.Lines) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "orderDetails", Message: "orderDetails must not be empty"})
	}
	for idx, line := range q.Lines {
		prefix := "orderDetails[" + strconv.Itoa(idx) + "]"
		if line.VehicleDetailID == "" {
			details = append(details, apperrors.ValidationDetail{Field: prefix + ".vehicleDetailId", Message: "vehicleDetailId is required"})
		}
		if line.Quantity < 1 {
			details = append(details, apperrors.ValidationDetail{Field: prefix + ".quantity", Message: "quantity must be at least 1"})
		}
		if line.UnitPrice.IsNegative() {
			details = append(details, apperrors.ValidationDetail{Field: prefix + ".unitPrice", Message: "unitPrice must be non-negative"})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func (l *Lifecycle) RecordDeposit(ctx context.Context, tx store.Tx, orderID string, amount decimal.Decimal) (*domain.Order, error) {
	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanReceiveDeposit() {
		return nil, apperrors.NewIllegalTransitionError(string(domain.KindOrder), string(order.Status), string(domain.OrderStatusDeposited))
	}
	if !amount.Equal(order.DepositAmount) {
		return nil, apperrors.NewWorkflowError(apperrors.CodeInvalidAmount,
			"deposit of %s does not match the agreed deposit %s", amount, order.DepositAmount)
	}

	if err := l.transition(ctx, tx, order, domain.OrderStatusDeposited); err != nil {
		return nil, err
	}
	return order, nil
}

// AttachContract checks that the order may receive a contract. The order itself
// is not modified.
func (l *Lifecycle) AttachContract(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error) {
	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanReceiveContract() {
		return nil, apperrors.NewWorkflowError(apperrors.CodeOrderNotEligible,
			"order %s is %s; contracts require a deposited or ready_for_contract order", order.ID, order.Status)
	}
	return order, nil
}

func (l *Lifecycle) MarkSigned(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error) {
	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	contracts, err := tx.Contracts().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	signed := 0
	for _, c := range contracts {
		if c.Status == domain.ContractStatusSigned {
			signed++
		}
	}
	if signed != 1 {
		return nil, apperrors.NewWorkflowError(apperrors.CodeOrderNotEligible,
			"order %s has %d signed contracts, expected exactly one", order.ID, signed)
	}

	if err := l.transition(ctx, tx, order, domain.OrderStatusSigned); err != nil {
		return nil, err
	}
	return order, nil
}

func (l *Lifecycle) RecordFinalPayment(ctx context.Context, tx store.Tx, orderID string, amount decimal.Decimal) (*domain.Order, error) {
	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanReceiveFinalPayment() {
		return nil, apperrors.NewIllegalTransitionError(string(domain.KindOrder), string(order.Status), string(domain.OrderStatusPaymentCompleted))
	}
	if !amount.IsPositive() || !amount.Equal(order.RemainingAmount) {
		return nil, apperrors.NewWorkflowError(apperrors.CodeInvalidAmount,
			"final payment of %s does not match the remaining amount %s", amount, order.RemainingAmount)
	}

	order.PaidFinalAmount = order.PaidFinalAmount.Add(amount)
	if err := l.transition(ctx, tx, order, domain.OrderStatusPaymentCompleted); err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel is terminal. Contracts of the order that were never signed are
// cancelled alongside it.
func (l *Lifecycle) Cancel(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error) {
	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateTransition(domain.KindOrder, string(order.Status), string(domain.OrderStatusCancelled)); err != nil {
		return nil, err
	}

	contracts, err := tx.Contracts().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		contract := &contracts[i]
		if !contract.Status.Editable() {
			continue
		}
		contract.Status = domain.ContractStatusCancelled
		contract.UpdatedAt = l.now()
		if err := tx.Contracts().Update(ctx, contract); err != nil {
			return nil, err
		}
		l.logger.Info("contract cancelled with its order", zap.String("orderId", orderID), zap.String("contractId", contract.ID))
	}

	if err := l.transition(ctx, tx, order, domain.OrderStatusCancelled); err != nil {
		return nil, err
	}
	return order, nil
}

// Advance moves an order along the delivery track (and quotation approval).
func (l *Lifecycle) Advance(ctx context.Context, tx store.Tx, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	order, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(manualTargets, target) {
		l.logger.Warn("event-owned order status requested directly",
			zap.String("orderId", orderID), zap.String("from", string(order.Status)), zap.String("to", string(target)))
		return nil, apperrors.NewWorkflowError(apperrors.CodeIllegalTransition,
			"order status %q cannot be set directly from %q", target, order.Status)
	}

	if err := l.transition(ctx, tx, order, target); err != nil {
		return nil, err
	}
	return order, nil
}

func (l *Lifecycle) transition(ctx context.Context, tx store.Tx, order *domain.Order, to domain.OrderStatus) error {
	from := order.Status
	if err := domain.ValidateTransition(domain.KindOrder, string(from), string(to)); err != nil {
		l.logger.Warn("order transition rejected", zap.String("orderId", order.ID), zap.String("from", string(from)), zap.String("to", string(to)))
		return err
	}

	order.Status = to
	order.UpdatedAt = l.now()
	if err := order.Recalculate(); err != nil {
		return err
	}
	if err := tx.Orders().Update(ctx, order); err != nil {
		return err
	}

	l.logger.Info("order transitioned",
		zap.String("orderId", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Stringer("remainingAmount", order.RemainingAmount),
	)
	return nil
}
