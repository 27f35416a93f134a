package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = "id, user_id, total_amount, status, gateway_order_id, created_at, updated_at"

// OrderBuilder prices the locked cart lines into an order and its items.
// Returning an error aborts the checkout and leaves the cart untouched.
type OrderBuilder func(lines []models.CartLine, products map[int64]models.Product) (*models.Order, []models.OrderItem, error)

// CheckoutCart converts the user's cart into an order in a single transaction:
// lines are read under the user's lock, the order and its items are inserted,
// and exactly the lines that were priced are deleted.
func (s *Store) CheckoutCart(ctx context.Context, userID int64, build OrderBuilder) (*models.Order, []models.OrderItem, error) {
	type result struct {
		order *models.Order
		items []models.OrderItem
	}

	res, err := withTx(ctx, s.db, func(tx *sqlx.Tx) (result, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return result{}, err
		}

		lines, err := getCartLines(ctx, tx, userID)
		if err != nil {
			return result{}, err
		}

		productIDs := make([]int64, 0, len(lines))
		lineIDs := make([]int64, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
			lineIDs = append(lineIDs, line.ID)
		}

		products, err := getProductsByIDs(ctx, tx, productIDs)
		if err != nil {
			return result{}, err
		}

		order, items, err := build(lines, products)
		if err != nil {
			return result{}, err
		}

		query := `
			INSERT INTO orders (user_id, total_amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING ` + orderColumns
		if err := tx.GetContext(ctx, order, query,
			order.UserID, order.TotalAmount, order.Status, order.CreatedAt); err != nil {
			return result{}, fmt.Errorf("failed to create order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.GetContext(ctx, &items[i].ID, `
				INSERT INTO order_items (order_id, product_id, quantity, unit_price)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				items[i].OrderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice); err != nil {
				return result{}, fmt.Errorf("failed to create order item: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM cart_lines WHERE id = ANY($1)", pq.Array(lineIDs)); err != nil {
			return result{}, fmt.Errorf("failed to clear cart: %w", err)
		}

		return result{order: order, items: items}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return res.order, res.items, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return &order, nil
}

// GetOrderStats summarizes the ledger for the admin dashboard. Revenue is the
// sum of recorded payments, so orders that moved on from PAID still count.
func (s *Store) GetOrderStats(ctx context.Context, recent int) (*models.OrderStats, error) {
	var stats models.OrderStats
	if err := s.db.GetContext(ctx, &stats.TotalOrders, "SELECT COUNT(*) FROM orders"); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.TotalRevenue, "SELECT COALESCE(SUM(amount), 0) FROM payments"); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	orders, err := s.selectOrders(ctx,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id DESC LIMIT $1", recent)
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = orders
	return &stats, nil
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.selectOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
}

// ListOrders retrieves every order, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.selectOrders(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id DESC")
}

// ListOrdersByStatus retrieves orders in the given status, newest first
func (s *Store) ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return s.selectOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC", status)
}

func (s *Store) selectOrders(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return items, nil
}

// SetGatewayOrderID stores the gateway session id on an order. The first write
// wins: the returned order carries whichever id is stored after the call.
func (s *Store) SetGatewayOrderID(ctx context.Context, orderID int64, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET gateway_order_id = $1, updated_at = NOW()
		WHERE id = $2 AND gateway_order_id IS NULL
		RETURNING `+orderColumns, gatewayOrderID, orderID)
	if err == nil {
		return &order, nil
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("gateway order id %q already assigned: %w", gatewayOrderID, err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to set gateway order id: %w", err)
	}

	// Either the order is gone or another writer got there first.
	return s.GetOrderByID(ctx, orderID)
}

// UpdateOrderStatus moves an order from one status to another. It reports false
// when the order is no longer in the expected status.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
