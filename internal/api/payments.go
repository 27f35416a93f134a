package api

import (
	"net/http"

	"checkout-service/internal/service"

	"github.com/gin-gonic/gin"
)

// createPaymentSession opens a gateway session for one of the caller's orders
func (h *Handler) createPaymentSession(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	session, err := h.payments.CreateSession(c.Request.Context(), principalFrom(c), orderID)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// verifyPayment finalizes a signed gateway callback
func (h *Handler) verifyPayment(c *gin.Context) {
	var cb service.PaymentCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		h.writePaymentError(c, service.ErrMissingFields)
		return
	}

	result, err := h.payments.Verify(c.Request.Context(), cb)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
