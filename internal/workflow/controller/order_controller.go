package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
)

type OrderWorkflow interface {
	SubmitQuotation(ctx context.Context, q dto.Quotation) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*dto.OrderSnapshot, error)
	AdvanceOrder(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
	PayDeposit(ctx context.Context, orderID string, method domain.PaymentMethod, clientIP string) (*dto.PaymentResult, error)
	PayFinal(ctx context.Context, orderID string, method domain.PaymentMethod, clientIP string) (*dto.PaymentResult, error)
}

type OrderController struct {
	responder
	workflow OrderWorkflow
}

func NewOrderController(workflow OrderWorkflow, logger *zap.Logger) *OrderController {
	return &OrderController{
		responder: responder{logger: logger},
		workflow:  workflow,
	}
}

func (c *OrderController) Submit(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.SubmitOrderRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}

	order, err := c.workflow.SubmitQuotation(r.Context(), req.Quotation())
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, dto.NewOrderResponse(*order))
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	snapshot, err := c.workflow.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderSnapshotResponse(*snapshot))
}

func (c *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.UpdateStatusRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}
	if req.NewStatus == "" {
		c.writeValidationError(w, traceID, "validation failed", apperrors.ValidationDetail{Field: "newStatus", Message: "newStatus is required"})
		return
	}

	order, err := c.workflow.AdvanceOrder(r.Context(), chi.URLParam(r, "orderId"), domain.OrderStatus(req.NewStatus))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(*order))
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	order, err := c.workflow.CancelOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(*order))
}

func (c *OrderController) PayDeposit(w http.ResponseWriter, r *http.Request) {
	c.pay(w, r, c.workflow.PayDeposit)
}

func (c *OrderController) PayFinal(w http.ResponseWriter, r *http.Request) {
	c.pay(w, r, c.workflow.PayFinal)
}

type payFunc func(ctx context.Context, orderID string, method domain.PaymentMethod, clientIP string) (*dto.PaymentResult, error)

func (c *OrderController) pay(w http.ResponseWriter, r *http.Request, fn payFunc) {
	traceID := newTraceID()

	var req dto.PayRequest
	if !c.decode(w, r, traceID, &req, true) {
		return
	}

	result, err := fn(r.Context(), chi.URLParam(r, "orderId"), domain.PaymentMethod(req.Method), clientIP(r))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	status := http.StatusOK
	if result.RedirectURL != "" {
		status = http.StatusAccepted
	}
	c.writeJSON(w, status, dto.PaymentInitResponse{
		TraceID:     traceID,
		RedirectURL: result.RedirectURL,
		Payment:     dto.NewPaymentResponse(result.Payment),
		Order:       dto.NewOrderResponse(result.Order),
	})
}
