package dto

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
)

// Requests

type SubmitOrderRequest struct {
	CustomerID    string               `json:"customerId"`
	DealerID      string               `json:"dealerId"`
	TotalAmount   decimal.Decimal      `json:"totalAmount"`
	DepositAmount decimal.Decimal      `json:"depositAmount"`
	OrderDetails  []OrderDetailRequest `json:"orderDetails"`
}

type OrderDetailRequest struct {
	VehicleDetailID string          `json:"vehicleDetailId"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
}

func (r SubmitOrderRequest) Quotation() Quotation {
	q := Quotation{
		CustomerID:    r.CustomerID,
		DealerID:      r.DealerID,
		TotalAmount:   r.TotalAmount,
		DepositAmount: r.DepositAmount,
		Lines:         make([]QuotationLine, len(r.OrderDetails)),
	}
	for i, d := range r.OrderDetails {
		q.Lines[i] = QuotationLine{VehicleDetailID: d.VehicleDetailID, Quantity: d.Quantity, UnitPrice: d.UnitPrice}
	}
	return q
}

type UpdateStatusRequest struct {
	NewStatus string `json:"newStatus"`
}

type PayRequest struct {
	Method string `json:"method"`
}

type ContractRequest struct {
	TermsConditions string `json:"termsConditions"`
	WarrantyInfo    string `json:"warrantyInfo"`
	InsuranceInfo   string `json:"insuranceInfo"`
}

func (r ContractRequest) Terms() domain.ContractTerms {
	return domain.ContractTerms{
		TermsConditions: r.TermsConditions,
		WarrantyInfo:    r.WarrantyInfo,
		InsuranceInfo:   r.InsuranceInfo,
	}
}

// PaymentCallbackRequest is the outcome relayed by the payment return page.
// Success and Message are the page's reading of the result; only the signed
// vnp_* fields in GatewayParams decide how the payment settles.
type PaymentCallbackRequest struct {
	Success       bool
	Message       string
	GatewayParams url.Values
}

func (r *PaymentCallbackRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.GatewayParams = url.Values{}
	for key, value := range raw {
		switch {
		case key == "success":
			if err := json.Unmarshal(value, &r.Success); err != nil {
				return fmt.Errorf("success: %w", err)
			}
		case key == "message":
			if err := json.Unmarshal(value, &r.Message); err != nil {
				return fmt.Errorf("message: %w", err)
			}
		case strings.HasPrefix(key, "vnp_"):
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("%s must be a string: %w", key, err)
			}
			r.GatewayParams.Set(key, s)
		}
	}
	return nil
}

func (r PaymentCallbackRequest) Reference() string {
	return r.GatewayParams.Get("vnp_TxnRef")
}

type ShipmentRequest struct {
	FromDealerID *string  `json:"fromDealerId"`
	ToDealerID   string   `json:"toDealerId"`
	InventoryIDs []string `json:"inventoryIds"`
	MovementType string   `json:"movementType"`
	Status       string   `json:"status"`
	Note         string   `json:"note"`
}

func (r ShipmentRequest) Shipment() Shipment {
	return Shipment{
		FromDealerID:  r.FromDealerID,
		ToDealerID:    r.ToDealerID,
		InventoryIDs:  r.InventoryIDs,
		MovementType:  r.MovementType,
		InitialStatus: r.Status,
		Note:          r.Note,
	}
}

// Responses

type OrderResponse struct {
	ID              string                `json:"id"`
	CustomerID      string                `json:"customerId"`
	DealerID        string                `json:"dealerId"`
	Status          string                `json:"status"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	DepositAmount   decimal.Decimal       `json:"depositAmount"`
	PaidFinalAmount decimal.Decimal       `json:"paidFinalAmount"`
	RemainingAmount decimal.Decimal       `json:"remainingAmount"`
	OrderDetails    []OrderDetailResponse `json:"orderDetails"`
	AllowedStatuses []string              `json:"allowedStatuses,omitempty"`
	Contracts       []ContractResponse    `json:"contracts,omitempty"`
	Payments        []PaymentResponse     `json:"payments,omitempty"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type OrderDetailResponse struct {
	ID              string          `json:"id"`
	VehicleDetailID string          `json:"vehicleDetailId"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
}

func NewOrderResponse(o domain.Order) OrderResponse {
	details := make([]OrderDetailResponse, len(o.Details))
	for i, d := range o.Details {
		details[i] = OrderDetailResponse{ID: d.ID, VehicleDetailID: d.VehicleDetailID, Quantity: d.Quantity, UnitPrice: d.UnitPrice}
	}
	return OrderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		DealerID:        o.DealerID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		DepositAmount:   o.DepositAmount,
		PaidFinalAmount: o.PaidFinalAmount,
		RemainingAmount: o.RemainingAmount,
		OrderDetails:    details,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func NewOrderSnapshotResponse(s OrderSnapshot) OrderResponse {
	resp := NewOrderResponse(s.Order)
	resp.AllowedStatuses = s.AllowedStatuses
	for _, c := range s.Contracts {
		resp.Contracts = append(resp.Contracts, NewContractResponse(c))
	}
	for _, p := range s.Payments {
		resp.Payments = append(resp.Payments, NewPaymentResponse(p))
	}
	return resp
}

type ContractResponse struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"orderId"`
	Status          string     `json:"status"`
	TermsConditions string     `json:"termsConditions"`
	WarrantyInfo    string     `json:"warrantyInfo"`
	InsuranceInfo   string     `json:"insuranceInfo"`
	SignedAt        *time.Time `json:"signedAt,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func NewContractResponse(c domain.Contract) ContractResponse {
	return ContractResponse{
		ID:              c.ID,
		OrderID:         c.OrderID,
		Status:          string(c.Status),
		TermsConditions: c.TermsConditions,
		WarrantyInfo:    c.WarrantyInfo,
		InsuranceInfo:   c.InsuranceInfo,
		SignedAt:        c.SignedAt,
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type PaymentResponse struct {
	ID                   string          `json:"id"`
	OrderID              string          `json:"orderId"`
	Type                 string          `json:"type"`
	Method               string          `json:"method"`
	Amount               decimal.Decimal `json:"amount"`
	Status               string          `json:"status"`
	TransactionReference string          `json:"transactionReference"`
	GatewayMessage       string          `json:"gatewayMessage,omitempty"`
	ProcessedAt          *time.Time      `json:"processedAt,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

func NewPaymentResponse(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                   p.ID,
		OrderID:              p.OrderID,
		Type:                 string(p.Type),
		Method:               string(p.Method),
		Amount:               p.Amount,
		Status:               string(p.Status),
		TransactionReference: p.TransactionReference,
		GatewayMessage:       p.GatewayMessage,
		ProcessedAt:          p.ProcessedAt,
		CreatedAt:            p.CreatedAt,
	}
}

type PaymentInitResponse struct {
	TraceID     string          `json:"traceId"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	Payment     PaymentResponse `json:"payment"`
	Order       OrderResponse   `json:"order"`
}

type CallbackResponse struct {
	TraceID  string           `json:"traceId"`
	Replayed bool             `json:"replayed"`
	Payment  *PaymentResponse `json:"payment,omitempty"`
	Order    *OrderResponse   `json:"order,omitempty"`
}

func NewCallbackResponse(traceID string, r CallbackResult) CallbackResponse {
	resp := CallbackResponse{TraceID: traceID, Replayed: r.Replayed}
	if r.Payment != nil {
		p := NewPaymentResponse(*r.Payment)
		resp.Payment = &p
	}
	if r.Order != nil {
		o := NewOrderResponse(*r.Order)
		resp.Order = &o
	}
	return resp
}

type SignResponse struct {
	Contract ContractResponse `json:"contract"`
	Order    OrderResponse    `json:"order"`
}

type DistributionResponse struct {
	ID           string     `json:"id"`
	FromDealerID *string    `json:"fromDealerId"`
	ToDealerID   string     `json:"toDealerId"`
	InventoryIDs []string   `json:"inventoryIds"`
	Status       string     `json:"status"`
	MovementType string     `json:"movementType"`
	Note         string     `json:"note,omitempty"`
	DeliveredAt  *time.Time `json:"deliveredAt,omitempty"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func NewDistributionResponse(d domain.Distribution) DistributionResponse {
	return DistributionResponse{
		ID:           d.ID,
		FromDealerID: d.FromDealerID,
		ToDealerID:   d.ToDealerID,
		InventoryIDs: d.InventoryIDs,
		Status:       string(d.Status),
		MovementType: string(d.MovementType),
		Note:         d.Note,
		DeliveredAt:  d.DeliveredAt,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type InventoryResponse struct {
	ID       string  `json:"id"`
	VIN      string  `json:"vin"`
	DealerID *string `json:"dealerId"`
	Status   string  `json:"status"`
}

type DeliveryResponse struct {
	Distribution DistributionResponse `json:"distribution"`
	Inventory    []InventoryResponse  `json:"inventory"`
}

func NewDeliveryResponse(r DeliveryResult) DeliveryResponse {
	inventory := make([]InventoryResponse, len(r.Inventory))
	for i, unit := range r.Inventory {
		inventory[i] = InventoryResponse{ID: unit.ID, VIN: unit.VIN, DealerID: unit.DealerID, Status: string(unit.Status)}
	}
	return DeliveryResponse{
		Distribution: NewDistributionResponse(r.Distribution),
		Inventory:    inventory,
	}
}

type ErrorResponse struct {
	TraceID   string                       `json:"traceId"`
	Status    int                          `json:"status"`
	Code      string                       `json:"code"`
	Message   string                       `json:"message"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}
