package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealerhub/internal/dto"
	apperrors "dealerhub/internal/errors"
)

const maxBodyBytes = 1 << 20

var workflowStatus = map[apperrors.Code]int{
	apperrors.CodeIllegalTransition:        http.StatusConflict,
	apperrors.CodeOrderNotEligible:         http.StatusConflict,
	apperrors.CodeDuplicateContract:        http.StatusConflict,
	apperrors.CodeInvalidAmount:            http.StatusUnprocessableEntity,
	apperrors.CodeInventoryAlreadyReserved: http.StatusConflict,
	apperrors.CodeConcurrentModification:   http.StatusConflict,
	apperrors.CodeReplayedCallback:         http.StatusOK,
	apperrors.CodeCallbackInFlight:         http.StatusConflict,
	apperrors.CodeGatewayUnavailable:       http.StatusServiceUnavailable,
}

// responder holds the response helpers shared by every controller.
type responder struct {
	logger *zap.Logger
}

func newTraceID() string {
	return uuid.New().String()
}

// decode reads a JSON body. An empty body leaves dst untouched when optional.
func (c responder) decode(w http.ResponseWriter, r *http.Request, traceID string, dst any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	c.logger.Warn("invalid JSON body", zap.String("traceId", traceID), zap.Error(err))
	c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
		Field:   "body",
		Message: "request body must be valid JSON",
	})
	return false
}

func (c responder) handleError(w http.ResponseWriter, traceID string, err error) {
	logger := c.logger.With(zap.String("traceId", traceID))

	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeError(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if we, ok := apperrors.IsWorkflowError(err); ok {
		status, known := workflowStatus[we.Code]
		if known {
			if status >= http.StatusInternalServerError {
				logger.Error("workflow dependency failed", zap.String("code", string(we.Code)), zap.Error(err))
			} else {
				logger.Info("workflow rule rejected request", zap.String("code", string(we.Code)), zap.String("reason", we.Message))
			}
			c.writeError(w, traceID, status, string(we.Code), we.Message)
			return
		}
	}

	if ie, ok := apperrors.IsInternalError(err); ok {
		logger.Error("internal failure", zap.String("operation", ie.Message), zap.Error(ie.Cause))
		c.writeError(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeError(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (c responder) writeError(w http.ResponseWriter, traceID string, status int, code, message string) {
	c.writeJSON(w, status, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (c responder) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    http.StatusBadRequest,
		Code:      "VALIDATION_ERROR",
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

func (c responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
