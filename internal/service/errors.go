package service

import (
	"errors"
	"fmt"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrMissingFields     = errors.New("missing payment verification fields")
	ErrSignatureInvalid  = errors.New("invalid payment signature")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrSessionInProgress = errors.New("payment session creation already in progress")
	ErrInvalidStatus     = models.ErrUnknownOrderStatus
	ErrGatewayTimeout    = gateway.ErrTimeout
)

// GatewayError is an upstream rejection or transport failure from the gateway
type GatewayError = gateway.Error

// VerificationFailedError wraps an unexpected failure while finalizing a payment
type VerificationFailedError struct {
	Cause error
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("payment verification failed: %v", e.Cause)
}

func (e *VerificationFailedError) Unwrap() error {
	return e.Cause
}
