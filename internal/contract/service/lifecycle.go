package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/store"
)

// OrderLifecycle is the part of the order manager a contract depends on.
type OrderLifecycle interface {
	AttachContract(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error)
	MarkSigned(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, error)
}

type Lifecycle struct {
	orders OrderLifecycle
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewLifecycle(orders OrderLifecycle, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		orders: orders,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Create drafts the single live contract of an order.
func (l *Lifecycle) Create(ctx context.Context, tx store.Tx, orderID string, terms domain.ContractTerms) (*domain.Contract, error) {
	if err := validateTerms(terms, true); err != nil {
		return nil, err
	}

	if _, err := l.orders.AttachContract(ctx, tx, orderID); err != nil {
		return nil, err
	}

	existing, err := tx.Contracts().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if c.Live() {
			return nil, apperrors.NewWorkflowError(apperrors.CodeDuplicateContract,
				"order %s already has contract %s in status %s", orderID, c.ID, c.Status)
		}
	}

	now := l.now()
	contract := &domain.Contract{
		ID:        l.newID(),
		OrderID:   orderID,
		Status:    domain.ContractStatusDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	contract.ApplyTerms(terms)

	if err := tx.Contracts().Insert(ctx, contract); err != nil {
		return nil, err
	}

	l.logger.Info("contract drafted", zap.String("contractId", contract.ID), zap.String("orderId", orderID))
	return contract, nil
}

func (l *Lifecycle) Edit(ctx context.Context, tx store.Tx, contractID string, terms domain.ContractTerms) (*domain.Contract, error) {
	if err := validateTerms(terms, false); err != nil {
		return nil, err
	}

	contract, err := tx.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !contract.Status.Editable() {
		return nil, apperrors.NewWorkflowError(apperrors.CodeIllegalTransition,
			"contract %s is %s and can no longer be edited", contract.ID, contract.Status)
	}

	contract.ApplyTerms(terms)
	contract.UpdatedAt = l.now()
	if err := tx.Contracts().Update(ctx, contract); err != nil {
		return nil, err
	}

	l.logger.Info("contract edited", zap.String("contractId", contract.ID), zap.Int("version", contract.Version))
	return contract, nil
}

func (l *Lifecycle) SubmitForSignature(ctx context.Context, tx store.Tx, contractID string) (*domain.Contract, error) {
	contract, err := tx.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := l.transition(ctx, tx, contract, domain.ContractStatusPendingSign); err != nil {
		return nil, err
	}
	return contract, nil
}

// Sign signs the contract and moves its order to signed in the same
// transaction. If the order cannot follow, neither change is kept.
func (l *Lifecycle) Sign(ctx context.Context, tx store.Tx, contractID string) (*domain.Contract, *domain.Order, error) {
	contract, err := tx.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}

	signedAt := l.now()
	contract.SignedAt = &signedAt
	if err := l.transition(ctx, tx, contract, domain.ContractStatusSigned); err != nil {
		return nil, nil, err
	}

	order, err := l.orders.MarkSigned(ctx, tx, contract.OrderID)
	if err != nil {
		l.logger.Warn("order could not follow contract signature",
			zap.String("contractId", contract.ID), zap.String("orderId", contract.OrderID), zap.Error(err))
		return nil, nil, err
	}

	return contract, order, nil
}

func (l *Lifecycle) Cancel(ctx context.Context, tx store.Tx, contractID string) (*domain.Contract, error) {
	contract, err := tx.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := l.transition(ctx, tx, contract, domain.ContractStatusCancelled); err != nil {
		return nil, err
	}
	return contract, nil
}

func (l *Lifecycle) transition(ctx context.Context, tx store.Tx, contract *domain.Contract, to domain.ContractStatus) error {
	from := contract.Status
	if err := domain.ValidateTransition(domain.KindContract, string(from), string(to)); err != nil {
		return err
	}

	contract.Status = to
	contract.UpdatedAt = l.now()
	if err := tx.Contracts().Update(ctx, contract); err != nil {
		return err
	}

	l.logger.Info("contract transitioned",
		zap.String("contractId", contract.ID),
		zap.String("orderId", contract.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

// validateTerms requires every section on creation and at least one on edit.
func validateTerms(terms domain.ContractTerms, all bool) error {
	fields := []struct {
		name  string
		value string
	}{
		{"termsConditions", terms.TermsConditions},
		{"warrantyInfo", terms.WarrantyInfo},
		{"insuranceInfo", terms.InsuranceInfo},
	}

	var details []apperrors.ValidationDetail
	present := 0
	for _, f := range fields {
		if f.value != "" {
			present++
			continue
		}
		if all {
			details = append(details, apperrors.ValidationDetail{Field: f.name, Message: f.name + " is required"})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	if present == 0 {
		return apperrors.NewValidationError("validation failed",
			apperrors.ValidationDetail{Field: "terms", Message: "at least one contract section must be provided"})
	}
	return nil
}
