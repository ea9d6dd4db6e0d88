package controller

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/payment/gateway"
)

type PaymentWorkflow interface {
	HandlePaymentCallback(ctx context.Context, cb dto.PaymentCallback) (*dto.CallbackResult, error)
}

type ReturnVerifier interface {
	VerifyReturn(values url.Values) (*gateway.ReturnResult, error)
}

type PaymentController struct {
	responder
	workflow PaymentWorkflow
	verifier ReturnVerifier
}

func NewPaymentController(workflow PaymentWorkflow, verifier ReturnVerifier, logger *zap.Logger) *PaymentController {
	return &PaymentController{
		responder: responder{logger: logger},
		workflow:  workflow,
		verifier:  verifier,
	}
}

// Callback accepts the outcome relayed by the payment return page. The relay
// must carry the gateway's signed vnp_* fields; the unsigned success flag is
// never trusted.
func (c *PaymentController) Callback(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req dto.PaymentCallbackRequest
	if !c.decode(w, r, traceID, &req, false) {
		return
	}
	if req.Reference() == "" {
		c.writeValidationError(w, traceID, "validation failed", apperrors.ValidationDetail{Field: "vnp_TxnRef", Message: "vnp_TxnRef is required"})
		return
	}

	result, ok := c.verify(w, traceID, req.GatewayParams)
	if !ok {
		return
	}
	if req.Success != result.Success {
		c.logger.Warn("relayed outcome disagrees with signed gateway outcome",
			zap.String("traceId", traceID),
			zap.String("reference", result.Reference),
			zap.Bool("relayedSuccess", req.Success),
			zap.String("responseCode", result.ResponseCode),
		)
	}

	c.settle(w, r, traceID, callbackFrom(result))
}

// VNPayReturn verifies the signed query the gateway appends to the return URL.
func (c *PaymentController) VNPayReturn(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	result, ok := c.verify(w, traceID, r.URL.Query())
	if !ok {
		return
	}

	c.settle(w, r, traceID, callbackFrom(result))
}

func (c *PaymentController) verify(w http.ResponseWriter, traceID string, values url.Values) (*gateway.ReturnResult, bool) {
	if values.Get("vnp_SecureHash") == "" {
		c.logger.Warn("rejected unsigned gateway outcome", zap.String("traceId", traceID), zap.String("reference", values.Get("vnp_TxnRef")))
		c.writeError(w, traceID, http.StatusBadRequest, "INVALID_SIGNATURE", "gateway outcome must carry vnp_SecureHash")
		return nil, false
	}

	result, err := c.verifier.VerifyReturn(values)
	if err != nil {
		c.logger.Warn("rejected gateway outcome", zap.String("traceId", traceID), zap.Error(err))
		if errors.Is(err, gateway.ErrInvalidSignature) {
			c.writeError(w, traceID, http.StatusBadRequest, "INVALID_SIGNATURE", "gateway signature does not match")
			return nil, false
		}
		c.writeValidationError(w, traceID, "malformed gateway outcome", apperrors.ValidationDetail{Field: "query", Message: err.Error()})
		return nil, false
	}
	return result, true
}

func callbackFrom(result *gateway.ReturnResult) dto.PaymentCallback {
	amount := result.Amount
	return dto.PaymentCallback{
		Reference: result.Reference,
		Success:   result.Success,
		Message:   result.Message,
		Amount:    &amount,
	}
}

func (c *PaymentController) settle(w http.ResponseWriter, r *http.Request, traceID string, cb dto.PaymentCallback) {
	result, err := c.workflow.HandlePaymentCallback(r.Context(), cb)
	if err != nil {
		c.handleError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewCallbackResponse(traceID, *result))
}
