package service

import (
	"context"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
)

// OrderStore is the order ledger as seen by OrderService
type OrderStore interface {
	CheckoutCart(ctx context.Context, userID int64, build store.OrderBuilder) (*models.Order, []models.OrderItem, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error)
	GetOrderStats(ctx context.Context, recent int) (*models.OrderStats, error)
}

// CartStore is the per-user cart as seen by CartService
type CartStore interface {
	GetCartLines(ctx context.Context, userID int64) ([]models.CartLine, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
	AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error)
	UpdateCartItem(ctx context.Context, userID, lineID int64, quantity int) error
	RemoveCartItem(ctx context.Context, userID, lineID int64) error
}

// PaymentStore is the slice of the ledger PaymentService writes to
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	SetGatewayOrderID(ctx context.Context, orderID int64, gatewayOrderID string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, c store.PaymentConfirmation) (*store.ConfirmResult, error)
}

// SessionGateway creates remote payment sessions
type SessionGateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error)
}

// Locker is a distributed mutual-exclusion primitive
type Locker interface {
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// EventPublisher publishes order lifecycle events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishPaymentSessionCreated(ctx context.Context, event *models.PaymentSessionCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}
