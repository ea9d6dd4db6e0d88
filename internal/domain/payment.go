package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeDeposit PaymentType = "deposit"
	PaymentTypeFinal   PaymentType = "final"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeDeposit || t == PaymentTypeFinal
}

type PaymentMethod string

const (
	PaymentMethodVNPay   PaymentMethod = "vnpay"
	PaymentMethodOffline PaymentMethod = "offline"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodVNPay || m == PaymentMethodOffline
}

type Payment struct {
	ID                   string
	OrderID              string
	Type                 PaymentType
	Method               PaymentMethod
	Amount               decimal.Decimal
	Status               PaymentStatus
	TransactionReference string
	GatewayMessage       string
	ProcessedAt          *time.Time
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Settled reports whether the gateway outcome has already been applied.
func (p Payment) Settled() bool {
	return p.Status != PaymentStatusPending
}
