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

type DistributionWorkflow interface {
	ShipToDealer(ctx context.Context, s dto.Shipment) (*domain.Distribution, error)
	GetDistribution(ctx context.Context, id string) (*domain.Distribution, error)
	UpdateDistributionStatus(ctx context.Context, id string, to domain.DistributionStatus) (*domain.Distribution, error)
	ConfirmDelivery(ctx context.Context, id string) (*dto.DeliveryResult, error)
}

type DistributionController struct {
	responder
	workflow DistributionWorkflow
}

func NewDistributionController(workflow DistributionWorkflow, logger *zap.Logger) *DistributionController {
	return &DistributionController{
		responder: responder{logger: logger},
		workflow:  workflow,
	}
}

func (c *DistributionController) Create(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.ShipmentRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}

	distribution, err := c.workflow.ShipToDealer(r.Context(), req.Shipment())
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, dto.NewDistributionResponse(*distribution))
}

func (c *DistributionController) Get(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	distribution, err := c.workflow.GetDistribution(r.Context(), chi.URLParam(r, "distributionId"))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewDistributionResponse(*distribution))
}

func (c *DistributionController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.UpdateStatusRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}
	if req.NewStatus == "" {
		c.writeValidationError(w, traceID, "validation failed", apperrors.ValidationDetail{Field: "newStatus", Message: "newStatus is required"})
		return
	}

	distribution, err := c.workflow.UpdateDistributionStatus(r.Context(), chi.URLParam(r, "distributionId"), domain.DistributionStatus(req.NewStatus))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewDistributionResponse(*distribution))
}

func (c *DistributionController) Complete(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	result, err := c.workflow.ConfirmDelivery(r.Context(), chi.URLParam(r, "distributionId"))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewDeliveryResponse(*result))
}
