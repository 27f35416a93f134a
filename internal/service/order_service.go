package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderDetails is an order together with its items and, once paid, its payment
type OrderDetails struct {
	Order   models.Order
	Items   []models.OrderItem
	Payment *models.Payment
}

// OrderService handles checkout and the order lifecycle
type OrderService struct {
	store          OrderStore
	eventPublisher EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, eventPublisher EventPublisher) *OrderService {
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// PlaceOrder converts the caller's cart into a PENDING order. Every line is
// priced at the current catalog price and the cart is emptied in the same
// transaction that creates the order.
func (s *OrderService) PlaceOrder(ctx context.Context, principal models.Principal) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	order, items, err := s.store.CheckoutCart(ctx, principal.UserID, s.priceCart(principal.UserID))
	if err != nil {
		util.SpanError(span, err)
		switch {
		case errors.Is(err, ErrEmptyCart):
			util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		case errors.Is(err, ErrProductNotFound):
			util.OrdersFailedTotal.WithLabelValues("unknown_product").Inc()
		default:
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			return nil, fmt.Errorf("failed to place order: %w", err)
		}
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(items)))

	event := &models.OrderPlacedEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items: lo.Map(items, func(item models.OrderItem, _ int) models.OrderItemData {
			return models.OrderItemData{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		}),
	}
	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	return &OrderDetails{Order: *order, Items: items}, nil
}

// priceCart builds the order from the locked cart lines
func (s *OrderService) priceCart(userID int64) store.OrderBuilder {
	return func(lines []models.CartLine, products map[int64]models.Product) (*models.Order, []models.OrderItem, error) {
		if len(lines) == 0 {
			return nil, nil, ErrEmptyCart
		}

		if missing, ok := lo.Find(lines, func(line models.CartLine) bool {
			_, found := products[line.ProductID]
			return !found
		}); ok {
			return nil, nil, fmt.Errorf("product %d: %w", missing.ProductID, ErrProductNotFound)
		}

		items := lo.Map(lines, func(line models.CartLine, _ int) models.OrderItem {
			return models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: products[line.ProductID].Price,
			}
		})

		total := lo.Reduce(items, func(sum decimal.Decimal, item models.OrderItem, _ int) decimal.Decimal {
			return sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}, decimal.Zero)

		order := &models.Order{
			UserID:      userID,
			TotalAmount: total,
			Status:      models.OrderStatusPending,
			CreatedAt:   s.now().UTC(),
		}
		return order, items, nil
	}
}

// GetOrder returns an order visible to the principal. Orders owned by other
// users are reported as not found unless the principal is an admin.
func (s *OrderService) GetOrder(ctx context.Context, principal models.Principal, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	details, err := s.loadOrder(ctx, orderID)
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	if !principal.IsAdmin() && details.Order.UserID != principal.UserID {
		return nil, ErrOrderNotFound
	}
	return details, nil
}

// ListOrders returns the principal's own orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, principal models.Principal) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAllOrders returns every order, newest first
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListOrdersByStatus returns every order in the given status, newest first
func (s *OrderService) ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by status: %w", err)
	}
	return orders, nil
}

// recentOrdersOnDashboard is how many orders OrderStats returns
const recentOrdersOnDashboard = 5

// OrderStats returns the order count, collected revenue and the most recent
// orders for the admin dashboard.
func (s *OrderService) OrderStats(ctx context.Context) (*models.OrderStats, error) {
	stats, err := s.store.GetOrderStats(ctx, recentOrdersOnDashboard)
	if err != nil {
		return nil, fmt.Errorf("failed to get order stats: %w", err)
	}
	return stats, nil
}

// UpdateOrderStatus moves an order along the administrative lifecycle.
// PAID is never a valid target here; it is only reached through payment
// verification.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, next models.OrderStatus) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		util.SpanError(span, err)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	current := order.Status
	if current.IsTerminal() {
		return nil, fmt.Errorf("%w: order %d is %s and can no longer change", ErrInvalidTransition, orderID, current)
	}
	if !current.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	updated, err := s.store.UpdateOrderStatus(ctx, orderID, current, next)
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !updated {
		// Status moved underneath us; the caller should re-read and retry.
		return nil, fmt.Errorf("%w: order %d is no longer %s", ErrInvalidTransition, orderID, current)
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(current.String(), next.String()).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", current.String()),
		zap.String("to", next.String()))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		From:      current,
		To:        next,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", orderID), zap.Error(err))
	}

	return s.loadOrder(ctx, orderID)
}

func (s *OrderService) loadOrder(ctx context.Context, orderID int64) (*OrderDetails, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	payment, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &OrderDetails{Order: *order, Items: items, Payment: payment}, nil
}
