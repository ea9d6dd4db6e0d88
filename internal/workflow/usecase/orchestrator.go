package usecase

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/infrastructure/mysql"
	"dealerhub/internal/store"
)

var tracer = otel.Tracer("dealerhub/internal/workflow/usecase")

type OrderLifecycle interface {
	Submit(ctx context.Context, tx store.Tx, q dto.Quotation) (*domain.Order, error)
	Advance(ctx context.Context, tx store.Tx, orderID string, target domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error)
}

type ContractLifecycle interface {
	Create(ctx context.Context, tx store.Tx, orderID string, terms domain.ContractTerms) (*domain.Contract, error)
	Edit(ctx context.Context, tx store.Tx, contractID string, terms domain.ContractTerms) (*domain.Contract, error)
	SubmitForSignature(ctx context.Context, tx store.Tx, contractID string) (*domain.Contract, error)
	Sign(ctx context.Context, tx store.Tx, contractID string) (*domain.Contract, *domain.Order, error)
	Cancel(ctx context.Context, tx store.Tx, contractID string) (*domain.Contract, error)
}

type PaymentCoordinator interface {
	Initiate(ctx context.Context, tx store.Tx, orderID string, paymentType domain.PaymentType) (*domain.Payment, error)
	RedirectURL(ctx context.Context, payment *domain.Payment, clientIP string) (string, error)
	RecordOffline(ctx context.Context, tx store.Tx, orderID string, paymentType domain.PaymentType) (*domain.Payment, *domain.Order, error)
	OnCallback(ctx context.Context, tx store.Tx, cb dto.PaymentCallback) (*domain.Payment, *domain.Order, error)
}

type DistributionStateMachine interface {
	Create(ctx context.Context, tx store.Tx, s dto.Shipment) (*domain.Distribution, error)
	Transition(ctx context.Context, tx store.Tx, id string, to domain.DistributionStatus) (*domain.Distribution, error)
	Complete(ctx context.Context, tx store.Tx, id string) (*domain.Distribution, []domain.Inventory, error)
}

// CallbackLock keeps two deliveries of the same gateway callback from being
// processed at once. release is nil when ok is false.
type CallbackLock interface {
	Acquire(ctx context.Context, reference string) (release func(), ok bool, err error)
}

// Orchestrator runs every workflow command in its own transaction and retries
// the whole command when it loses an optimistic or lock race.
type Orchestrator struct {
	tx               store.Manager
	orders           OrderLifecycle
	contracts        ContractLifecycle
	payments         PaymentCoordinator
	distributions    DistributionStateMachine
	callbackLock     CallbackLock
	logger           *zap.Logger
	maxRetryAttempts int
	sleep            func(time.Duration)
}

func NewOrchestrator(
	tx store.Manager,
	orders OrderLifecycle,
	contracts ContractLifecycle,
	payments PaymentCoordinator,
	distributions DistributionStateMachine,
	callbackLock CallbackLock,
	logger *zap.Logger,
	maxRetryAttempts int,
) *Orchestrator {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &Orchestrator{
		tx:               tx,
		orders:           orders,
		contracts:        contracts,
		payments:         payments,
		distributions:    distributions,
		callbackLock:     callbackLock,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
		sleep:            time.Sleep,
	}
}

func (o *Orchestrator) SubmitQuotation(ctx context.Context, q dto.Quotation) (*domain.Order, error) {
	var order *domain.Order
	err := o.run(ctx, "SubmitQuotation", func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = o.orders.Submit(ctx, tx, q)
		return err
	})
	return order, err
}

func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (*dto.OrderSnapshot, error) {
	var snapshot *dto.OrderSnapshot
	err := o.run(ctx, "GetOrder", func(ctx context.Context, tx store.Tx) error {
		order, err := tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		contracts, err := tx.Contracts().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		payments, err := tx.Payments().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot = &dto.OrderSnapshot{
			Order:           *order,
			Contracts:       contracts,
			Payments:        payments,
			AllowedStatuses: domain.AllowedTargets(domain.KindOrder, string(order.Status)),
		}
		return nil
	}, attribute.String("order.id", orderID))
	return snapshot, err
}

func (o *Orchestrator) AdvanceOrder(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order
	err := o.run(ctx, "AdvanceOrder", func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = o.orders.Advance(ctx, tx, orderID, target)
		return err
	}, attribute.String("order.id", orderID), attribute.String("order.target", string(target)))
	return order, err
}

func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order *domain.Order
	err := o.run(ctx, "CancelOrder", func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = o.orders.Cancel(ctx, tx, orderID)
		return err
	}, attribute.String("order.id", orderID))
	return order, err
}

func (o *Orchestrator) PayDeposit(ctx context.Context, orderID string, method domain.PaymentMethod, clientIP string) (*dto.PaymentResult, error) {
	return o.pay(ctx, "PayDeposit", orderID, domain.PaymentTypeDeposit, method, clientIP)
}

func (o *Orchestrator) PayFinal(ctx context.Context, orderID string, method domain.PaymentMethod, clientIP string) (*dto.PaymentResult, error) {
	return o.pay(ctx, "PayFinal", orderID, domain.PaymentTypeFinal, method, clientIP)
}

// pay records an offline payment at once, or commits a pending gateway
// payment and then asks the gateway for the redirect. A gateway failure
// leaves the pending payment in place for reconciliation.
func (o *Orchestrator) pay(ctx context.Context, op, orderID string, paymentType domain.PaymentType, method domain.PaymentMethod, clientIP string) (*dto.PaymentResult, error) {
	if method == "" {
		method = domain.PaymentMethodVNPay
	}
	if !method.Valid() {
		return nil, apperrors.NewValidationError("validation failed",
			apperrors.ValidationDetail{Field: "method", Message: "method must be vnpay or offline"})
	}

	var (
		payment *domain.Payment
		order   *domain.Order
	)
	err := o.run(ctx, op, func(ctx context.Context, tx store.Tx) error {
		var err error
		if method == domain.PaymentMethodOffline {
			payment, order, err = o.payments.RecordOffline(ctx, tx, orderID, paymentType)
			return err
		}
		if payment, err = o.payments.Initiate(ctx, tx, orderID, paymentType); err != nil {
			return err
		}
		order, err = tx.Orders().FindByID(ctx, orderID)
		return err
	}, attribute.String("order.id", orderID), attribute.String("payment.method", string(method)))
	if err != nil {
		return nil, err
	}

	result := &dto.PaymentResult{Payment: *payment, Order: *order}
	if method == domain.PaymentMethodOffline {
		return result, nil
	}

	redirect, err := o.payments.RedirectURL(ctx, payment, clientIP)
	if err != nil {
		return nil, err
	}
	result.RedirectURL = redirect
	return result, nil
}

// HandlePaymentCallback settles a gateway outcome at most once. Replays of a
// settled payment are acknowledged without touching any entity. A duplicate
// arriving while another delivery still holds the reference fails with
// CALLBACK_IN_FLIGHT so the gateway retries: that delivery may yet roll back.
func (o *Orchestrator) HandlePaymentCallback(ctx context.Context, cb dto.PaymentCallback) (*dto.CallbackResult, error) {
	release, ok, err := o.callbackLock.Acquire(ctx, cb.Reference)
	if err != nil {
		return nil, err
	}
	if !ok {
		o.logger.Info("payment callback already in flight", zap.String("reference", cb.Reference))
		return nil, apperrors.NewWorkflowError(apperrors.CodeCallbackInFlight,
			"callback for %s is being processed, retry later", cb.Reference)
	}
	defer release()

	var result dto.CallbackResult
	err = o.run(ctx, "HandlePaymentCallback", func(ctx context.Context, tx store.Tx) error {
		payment, order, err := o.payments.OnCallback(ctx, tx, cb)
		if err != nil {
			result = dto.CallbackResult{Payment: payment}
			return err
		}
		result = dto.CallbackResult{Payment: payment, Order: order}
		return nil
	}, attribute.String("payment.reference", cb.Reference), attribute.Bool("payment.success", cb.Success))

	if apperrors.HasCode(err, apperrors.CodeReplayedCallback) {
		o.logger.Info("payment callback replayed", zap.String("reference", cb.Reference), zap.Error(err))
		result.Replayed = true
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (o *Orchestrator) CreateContract(ctx context.Context, orderID string, terms domain.ContractTerms) (*domain.Contract, error) {
	var contract *domain.Contract
	err := o.run(ctx, "CreateContract", func(ctx context.Context, tx store.Tx) error {
		var err error
		contract, err = o.contracts.Create(ctx, tx, orderID, terms)
		return err
	}, attribute.String("order.id", orderID))
	return contract, err
}

func (o *Orchestrator) GetContract(ctx context.Context, contractID string) (*domain.Contract, error) {
	var contract *domain.Contract
	err := o.run(ctx, "GetContract", func(ctx context.Context, tx store.Tx) error {
		var err error
		contract, err = tx.Contracts().FindByID(ctx, contractID)
		return err
	}, attribute.String("contract.id", contractID))
	return contract, err
}

func (o *Orchestrator) EditContract(ctx context.Context, contractID string, terms domain.ContractTerms) (*domain.Contract, error) {
	return o.contractCommand(ctx, "EditContract", contractID, func(ctx context.Context, tx store.Tx) (*domain.Contract, error) {
		return o.contracts.Edit(ctx, tx, contractID, terms)
	})
}

func (o *Orchestrator) SubmitContract(ctx context.Context, contractID string) (*domain.Contract, error) {
	return o.contractCommand(ctx, "SubmitContract", contractID, func(ctx context.Context, tx store.Tx) (*domain.Contract, error) {
		return o.contracts.SubmitForSignature(ctx, tx, contractID)
	})
}

func (o *Orchestrator) CancelContract(ctx context.Context, contractID string) (*domain.Contract, error) {
	return o.contractCommand(ctx, "CancelContract", contractID, func(ctx context.Context, tx store.Tx) (*domain.Contract, error) {
		return o.contracts.Cancel(ctx, tx, contractID)
	})
}

func (o *Orchestrator) SignContract(ctx context.Context, contractID string) (*dto.SignResult, error) {
	var result *dto.SignResult
	err := o.run(ctx, "SignContract", func(ctx context.Context, tx store.Tx) error {
		contract, order, err := o.contracts.Sign(ctx, tx, contractID)
		if err != nil {
			return err
		}
		result = &dto.SignResult{Contract: *contract, Order: *order}
		return nil
	}, attribute.String("contract.id", contractID))
	return result, err
}

func (o *Orchestrator) contractCommand(ctx context.Context, op, contractID string, fn func(ctx context.Context, tx store.Tx) (*domain.Contract, error)) (*domain.Contract, error) {
	var contract *domain.Contract
	err := o.run(ctx, op, func(ctx context.Context, tx store.Tx) error {
		var err error
		contract, err = fn(ctx, tx)
		return err
	}, attribute.String("contract.id", contractID))
	return contract, err
}

func (o *Orchestrator) ShipToDealer(ctx context.Context, s dto.Shipment) (*domain.Distribution, error) {
	var distribution *domain.Distribution
	err := o.run(ctx, "ShipToDealer", func(ctx context.Context, tx store.Tx) error {
		var err error
		distribution, err = o.distributions.Create(ctx, tx, s)
		return err
	}, attribute.String("distribution.toDealerId", s.ToDealerID), attribute.Int("distribution.unitCount", len(s.InventoryIDs)))
	return distribution, err
}

func (o *Orchestrator) GetDistribution(ctx context.Context, id string) (*domain.Distribution, error) {
	var distribution *domain.Distribution
	err := o.run(ctx, "GetDistribution", func(ctx context.Context, tx store.Tx) error {
		var err error
		distribution, err = tx.Distributions().FindByID(ctx, id)
		return err
	}, attribute.String("distribution.id", id))
	return distribution, err
}

func (o *Orchestrator) UpdateDistributionStatus(ctx context.Context, id string, to domain.DistributionStatus) (*domain.Distribution, error) {
	var distribution *domain.Distribution
	err := o.run(ctx, "UpdateDistributionStatus", func(ctx context.Context, tx store.Tx) error {
		var err error
		distribution, err = o.distributions.Transition(ctx, tx, id, to)
		return err
	}, attribute.String("distribution.id", id), attribute.String("distribution.target", string(to)))
	return distribution, err
}

func (o *Orchestrator) ConfirmDelivery(ctx context.Context, id string) (*dto.DeliveryResult, error) {
	var result *dto.DeliveryResult
	err := o.run(ctx, "ConfirmDelivery", func(ctx context.Context, tx store.Tx) error {
		distribution, inventory, err := o.distributions.Complete(ctx, tx, id)
		if err != nil {
			return err
		}
		result = &dto.DeliveryResult{Distribution: *distribution, Inventory: inventory}
		return nil
	}, attribute.String("distribution.id", id))
	return result, err
}

// run executes fn in a transaction, retrying lost races with backoff.
func (o *Orchestrator) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, "workflow."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := o.withRetry(ctx, op, fn)
	if err != nil && !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	// attempt 1 runs immediately, later attempts back off
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

	var err error
	for attempt := 1; attempt <= o.maxRetryAttempts; attempt++ {
		err = o.tx.WithinTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == o.maxRetryAttempts {
			break
		}

		base := backoffs[min(attempt, len(backoffs)-1)]
		// ±20% jitter
		wait := base + time.Duration((rand.Float64()*0.4-0.2)*float64(base))
		o.logger.Warn("transaction conflict, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", o.maxRetryAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		o.sleep(wait)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	o.logger.Error("transaction conflict persisted", zap.String("operation", op), zap.Int("attempts", o.maxRetryAttempts), zap.Error(err))
	if apperrors.HasCode(err, apperrors.CodeConcurrentModification) {
		return err
	}
	return &apperrors.WorkflowError{
		Code:    apperrors.CodeConcurrentModification,
		Message: "conflicting concurrent update, retry the request",
		Cause:   err,
	}
}

func isRetryable(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeConcurrentModification) || mysql.IsRetryable(err)
}

// isClientError reports errors that describe a rejected request rather than a
// server fault, so they are not marked as span failures.
func isClientError(err error) bool {
	if _, ok := apperrors.IsValidationError(err); ok {
		return true
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return true
	}
	we, ok := apperrors.IsWorkflowError(err)
	return ok && we.Code != apperrors.CodeGatewayUnavailable && we.Code != apperrors.CodeConcurrentModification
}
