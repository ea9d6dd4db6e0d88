package domain

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "dealerhub/internal/errors"
)

type Order struct {
	ID              string
	CustomerID      string
	DealerID        string
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	DepositAmount   decimal.Decimal
	PaidFinalAmount decimal.Decimal
	RemainingAmount decimal.Decimal
	Details         []OrderDetail
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderDetail is one quotation line: a priced vehicle configuration and its quantity.
type OrderDetail struct {
	ID              string
	OrderID         string
	Position        int
	VehicleDetailID string
	Quantity        int
	UnitPrice       decimal.Decimal
}

// Recalculate derives RemainingAmount from the other amounts. It fails with
// INVALID_AMOUNT instead of clamping when the amounts are inconsistent.
func (o *Order) Recalculate() error {
	if o.TotalAmount.IsNegative() || o.DepositAmount.IsNegative() || o.PaidFinalAmount.IsNegative() {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidAmount, "order %s has a negative amount", o.ID)
	}
	if o.DepositAmount.GreaterThan(o.TotalAmount) {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidAmount,
			"deposit %s exceeds total %s", o.DepositAmount, o.TotalAmount)
	}

	remaining := o.TotalAmount.Sub(o.DepositAmount).Sub(o.PaidFinalAmount)
	if remaining.IsNegative() {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidAmount,
			"order %s remaining amount would be %s", o.ID, remaining)
	}
	o.RemainingAmount = remaining
	return nil
}

func (o Order) Clone() Order {
	c := o
	if o.Details != nil {
		c.Details = make([]OrderDetail, len(o.Details))
		copy(c.Details, o.Details)
	}
	return c
}
