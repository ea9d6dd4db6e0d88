package dto

import "github.com/shopspring/decimal"

// Quotation is the input of an order submission.
type Quotation struct {
	CustomerID    string
	DealerID      string
	TotalAmount   decimal.Decimal
	DepositAmount decimal.Decimal
	Lines         []QuotationLine
}

type QuotationLine struct {
	VehicleDetailID string
	Quantity        int
	UnitPrice       decimal.Decimal
}

// Shipment is the input of a distribution creation. A nil FromDealerID ships
// from the central warehouse.
type Shipment struct {
	FromDealerID  *string
	ToDealerID    string
	InventoryIDs  []string
	MovementType  string
	InitialStatus string
	Note          string
}

// PaymentCallback is the normalised gateway outcome for one transaction
// reference. Amount is nil when the gateway did not report it.
type PaymentCallback struct {
	Reference string
	Success   bool
	Message   string
	Amount    *decimal.Decimal
}
