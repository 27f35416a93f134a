package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const paymentColumns = "id, order_id, provider, provider_payment_id, provider_order_id, amount, status, paid_at"

// PaymentConfirmation carries the verified gateway identifiers
type PaymentConfirmation struct {
	Provider          string
	ProviderPaymentID string
	ProviderOrderID   string
	PaidAt            time.Time
}

// ConfirmResult describes the outcome of ConfirmPayment
type ConfirmResult struct {
	Order   *models.Order
	Payment *models.Payment
	// AlreadyPaid is set when the order had been paid before this call
	AlreadyPaid bool
}

// ConfirmPayment marks the order with the given gateway id as PAID and records
// exactly one payment, all under a row lock on the order. A repeated confirmation
// for an order that already has a payment returns that payment unchanged.
func (s *Store) ConfirmPayment(ctx context.Context, c PaymentConfirmation) (*ConfirmResult, error) {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) (*ConfirmResult, error) {
		var order models.Order
		err := tx.GetContext(ctx, &order,
			"SELECT "+orderColumns+" FROM orders WHERE gateway_order_id = $1 FOR UPDATE", c.ProviderOrderID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order for gateway id %q: %w", c.ProviderOrderID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock order: %w", err)
		}

		if order.Status != models.OrderStatusPending {
			existing, err := getPaymentByOrderID(ctx, tx, order.ID)
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrOrderNotPending)
			}
			if err != nil {
				return nil, err
			}
			return &ConfirmResult{Order: &order, Payment: existing, AlreadyPaid: true}, nil
		}

		if err := tx.GetContext(ctx, &order, `
			UPDATE orders SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
			RETURNING `+orderColumns,
			models.OrderStatusPaid, order.ID, models.OrderStatusPending); err != nil {
			return nil, fmt.Errorf("failed to mark order paid: %w", err)
		}

		payment := models.Payment{
			OrderID:           order.ID,
			Provider:          c.Provider,
			ProviderPaymentID: c.ProviderPaymentID,
			ProviderOrderID:   c.ProviderOrderID,
			Amount:            order.TotalAmount,
			Status:            models.PaymentStatusPaid,
			PaidAt:            c.PaidAt,
		}
		if err := tx.GetContext(ctx, &payment.ID, `
			INSERT INTO payments (order_id, provider, provider_payment_id, provider_order_id, amount, status, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			payment.OrderID, payment.Provider, payment.ProviderPaymentID, payment.ProviderOrderID,
			payment.Amount, payment.Status, payment.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}

		return &ConfirmResult{Order: &order, Payment: &payment}, nil
	})
}

// GetPaymentByOrderID retrieves the payment recorded for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	return getPaymentByOrderID(ctx, s.db, orderID)
}

func getPaymentByOrderID(ctx context.Context, q sqlx.QueryerContext, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := sqlx.GetContext(ctx, q, &payment,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}
