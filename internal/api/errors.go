package api

import (
	"errors"
	"net/http"

	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrEmptyCart, http.StatusNotFound, "EmptyCart"},
	{service.ErrOrderNotFound, http.StatusNotFound, "OrderNotFound"},
	{service.ErrProductNotFound, http.StatusNotFound, "ProductNotFound"},
	{service.ErrCartItemNotFound, http.StatusNotFound, "CartItemNotFound"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, "InvalidQuantity"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "InvalidStatus"},
	{service.ErrMissingFields, http.StatusBadRequest, "MissingFields"},
	{service.ErrSignatureInvalid, http.StatusBadRequest, "SignatureInvalid"},
	{service.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
	{service.ErrSessionInProgress, http.StatusConflict, "SessionInProgress"},
	{service.ErrGatewayTimeout, http.StatusGatewayTimeout, "GatewayTimeout"},
}

// classify maps an error to its HTTP status, code and client-safe message
func classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, err.Error()
		}
	}

	var gwErr *service.GatewayError
	if errors.As(err, &gwErr) {
		return http.StatusBadGateway, "GatewayError", gwErr.Error()
	}

	var vfErr *service.VerificationFailedError
	if errors.As(err, &vfErr) {
		return http.StatusInternalServerError, "VerificationFailed", "payment could not be recorded, retry later"
	}

	return http.StatusInternalServerError, "InternalError", "internal server error"
}

// writeError sends the mapped error body
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code, message := classify(err)
	h.respondError(c, err, status, code, message)
}

// writePaymentError reports every non-server failure on the payment routes
// as 400.
func (h *Handler) writePaymentError(c *gin.Context, err error) {
	status, code, message := classify(err)
	if status != http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	h.respondError(c, err, status, code, message)
}

func (h *Handler) respondError(c *gin.Context, err error, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: code, Message: message})
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}
