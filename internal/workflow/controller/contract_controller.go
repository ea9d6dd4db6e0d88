package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"dealerhub/internal/domain"
	"dealerhub/internal/dto"
)

type ContractWorkflow interface {
	CreateContract(ctx context.Context, orderID string, terms domain.ContractTerms) (*domain.Contract, error)
	GetContract(ctx context.Context, contractID string) (*domain.Contract, error)
	EditContract(ctx context.Context, contractID string, terms domain.ContractTerms) (*domain.Contract, error)
	SubmitContract(ctx context.Context, contractID string) (*domain.Contract, error)
	SignContract(ctx context.Context, contractID string) (*dto.SignResult, error)
	CancelContract(ctx context.Context, contractID string) (*domain.Contract, error)
}

type ContractController struct {
	responder
	workflow ContractWorkflow
}

func NewContractController(workflow ContractWorkflow, logger *zap.Logger) *ContractController {
	return &ContractController{
		responder: responder{logger: logger},
		workflow:  workflow,
	}
}

func (c *ContractController) Create(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.ContractRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}

	contract, err := c.workflow.CreateContract(r.Context(), chi.URLParam(r, "orderId"), req.Terms())
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, dto.NewContractResponse(*contract))
}

func (c *ContractController) Get(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, http.StatusOK, c.workflow.GetContract)
}

func (c *ContractController) Edit(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.ContractRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}

	contract, err := c.workflow.EditContract(r.Context(), chi.URLParam(r, "contractId"), req.Terms())
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewContractResponse(*contract))
}

func (c *ContractController) Submit(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, http.StatusOK, c.workflow.SubmitContract)
}

func (c *ContractController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, http.StatusOK, c.workflow.CancelContract)
}

func (c *ContractController) Sign(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	result, err := c.workflow.SignContract(r.Context(), chi.URLParam(r, "contractId"))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.SignResponse{
		Contract: dto.NewContractResponse(result.Contract),
		Order:    dto.NewOrderResponse(result.Order),
	})
}

func (c *ContractController) respond(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, contractID string) (*domain.Contract, error)) {
	traceID := newTraceID()

	contract, err := fn(r.Context(), chi.URLParam(r, "contractId"))
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, status, dto.NewContractResponse(*contract))
}
