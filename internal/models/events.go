package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced           = "ORDER_PLACED"
	EventTypePaymentSessionCreated = "PAYMENT_SESSION_CREATED"
	EventTypeOrderPaid             = "ORDER_PAID"
	EventTypeOrderStatusChanged    = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when a cart is converted into an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// PaymentSessionCreatedEvent published when the gateway assigns a session id
type PaymentSessionCreatedEvent struct {
	BaseEvent
	OrderID          int64  `json:"order_id"`
	GatewaySessionID string `json:"gateway_session_id"`
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
}

// OrderPaidEvent published when a gateway callback is verified
type OrderPaidEvent struct {
	BaseEvent
	OrderID           int64           `json:"order_id"`
	PaymentID         int64           `json:"payment_id"`
	Amount            decimal.Decimal `json:"amount"`
	Provider          string          `json:"provider"`
	ProviderPaymentID string          `json:"provider_payment_id"`
}

// OrderStatusChangedEvent published on administrative transitions
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID int64       `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
