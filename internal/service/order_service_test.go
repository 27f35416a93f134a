package service

import (
	"context"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customer = models.Principal{UserID: 7, Role: models.RoleCustomer}
	admin    = models.Principal{UserID: 1, Role: models.RoleAdmin}
)

func newOrderService() (*OrderService, *memStore, *recordingPublisher) {
	st := newMemStore()
	pub := &recordingPublisher{}
	return NewOrderService(st, pub), st, pub
}

func TestPlaceOrder(t *testing.T) {
	svc, st, pub := newOrderService()
	ctx := context.Background()

	a := st.addProduct("10.50")
	b := st.addProduct("9.75")
	_, err := st.AddCartItem(ctx, customer.UserID, a.ID, 2)
	require.NoError(t, err)
	_, err = st.AddCartItem(ctx, customer.UserID, b.ID, 1)
	require.NoError(t, err)

	details, err := svc.PlaceOrder(ctx, customer)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, details.Order.Status)
	assert.Equal(t, customer.UserID, details.Order.UserID)
	assert.True(t, decimal.RequireFromString("30.75").Equal(details.Order.TotalAmount))
	assert.False(t, details.Order.GatewayOrderID.Valid)
	require.Len(t, details.Items, 2)
	assert.True(t, a.Price.Equal(details.Items[0].UnitPrice))

	lines, err := st.GetCartLines(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.Equal(t, 1, pub.count())
	placed, ok := pub.events[0].(*models.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, details.Order.ID, placed.OrderID)
	assert.Len(t, placed.Items, 2)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, st, pub := newOrderService()

	_, err := svc.PlaceOrder(context.Background(), customer)
	assert.ErrorIs(t, err, ErrEmptyCart)

	orders, _ := st.ListOrders(context.Background())
	assert.Empty(t, orders)
	assert.Zero(t, pub.count())
}

func TestPlaceOrder_UsesPriceAtCheckout(t *testing.T) {
	svc, st, _ := newOrderService()
	ctx := context.Background()

	p := st.addProduct("100.00")
	_, err := st.AddCartItem(ctx, customer.UserID, p.ID, 3)
	require.NoError(t, err)

	p.Price = decimal.RequireFromString("80.00")
	st.products[p.ID] = p

	details, err := svc.PlaceOrder(ctx, customer)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("240").Equal(details.Order.TotalAmount))
	assert.True(t, p.Price.Equal(details.Items[0].UnitPrice))
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	svc, st, pub := newOrderService()
	pub.err = assert.AnError
	ctx := context.Background()

	p := st.addProduct("5")
	_, err := st.AddCartItem(ctx, customer.UserID, p.ID, 1)
	require.NoError(t, err)

	_, err = svc.PlaceOrder(ctx, customer)
	assert.NoError(t, err)
}

func TestGetOrder_Visibility(t *testing.T) {
	svc, st, _ := newOrderService()
	ctx := context.Background()
	st.putOrder(models.Order{ID: 10, UserID: customer.UserID, Status: models.OrderStatusPending, TotalAmount: decimal.NewFromInt(5)})

	details, err := svc.GetOrder(ctx, customer, 10)
	require.NoError(t, err)
	assert.Nil(t, details.Payment)

	_, err = svc.GetOrder(ctx, models.Principal{UserID: 8, Role: models.RoleCustomer}, 10)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.GetOrder(ctx, admin, 10)
	assert.NoError(t, err)

	_, err = svc.GetOrder(ctx, customer, 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrders(t *testing.T) {
	svc, st, _ := newOrderService()
	ctx := context.Background()
	now := time.Now()
	st.putOrder(models.Order{ID: 1, UserID: customer.UserID, Status: models.OrderStatusPending, CreatedAt: now})
	st.putOrder(models.Order{ID: 2, UserID: customer.UserID, Status: models.OrderStatusShipped, CreatedAt: now})
	st.putOrder(models.Order{ID: 3, UserID: 99, Status: models.OrderStatusPending, CreatedAt: now})

	mine, err := svc.ListOrders(ctx, customer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(2), mine[0].ID)

	all, err := svc.ListAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := svc.ListOrdersByStatus(ctx, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestUpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    models.OrderStatus
		to      models.OrderStatus
		wantErr error
	}{
		{name: "pending to processing", from: models.OrderStatusPending, to: models.OrderStatusProcessing},
		{name: "paid to processing", from: models.OrderStatusPaid, to: models.OrderStatusProcessing},
		{name: "processing to shipped", from: models.OrderStatusProcessing, to: models.OrderStatusShipped},
		{name: "shipped to delivered", from: models.OrderStatusShipped, to: models.OrderStatusDelivered},
		{name: "pending to cancelled", from: models.OrderStatusPending, to: models.OrderStatusCancelled},
		{name: "pending to paid", from: models.OrderStatusPending, to: models.OrderStatusPaid, wantErr: ErrInvalidTransition},
		{name: "pending to shipped", from: models.OrderStatusPending, to: models.OrderStatusShipped, wantErr: ErrInvalidTransition},
		{name: "delivered to cancelled", from: models.OrderStatusDelivered, to: models.OrderStatusCancelled, wantErr: ErrInvalidTransition},
		{name: "cancelled to processing", from: models.OrderStatusCancelled, to: models.OrderStatusProcessing, wantErr: ErrInvalidTransition},
		{name: "shipped to cancelled", from: models.OrderStatusShipped, to: models.OrderStatusCancelled, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, pub := newOrderService()
			st.putOrder(models.Order{ID: 5, UserID: customer.UserID, Status: tt.from})

			details, err := svc.UpdateOrderStatus(context.Background(), 5, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, st.order(5).Status)
				assert.Zero(t, pub.count())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, details.Order.Status)
			assert.Equal(t, tt.to, st.order(5).Status)

			require.Equal(t, 1, pub.count())
			changed := pub.events[0].(*models.OrderStatusChangedEvent)
			assert.Equal(t, tt.from, changed.From)
			assert.Equal(t, tt.to, changed.To)
		})
	}
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	svc, _, _ := newOrderService()

	_, err := svc.UpdateOrderStatus(context.Background(), 12345, models.OrderStatusProcessing)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrderStatus_TerminalOrder(t *testing.T) {
	for _, status := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled} {
		t.Run(status.String(), func(t *testing.T) {
			svc, st, _ := newOrderService()
			st.putOrder(models.Order{ID: 8, UserID: customer.UserID, Status: status})

			_, err := svc.UpdateOrderStatus(context.Background(), 8, models.OrderStatusProcessing)
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.Contains(t, err.Error(), "can no longer change")
			assert.Equal(t, status, st.order(8).Status)
		})
	}
}

func TestOrderStats(t *testing.T) {
	svc, st, _ := newOrderService()
	ctx := context.Background()

	empty, err := svc.OrderStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalOrders)
	assert.True(t, empty.TotalRevenue.IsZero())
	assert.Empty(t, empty.RecentOrders)

	for id := int64(1); id <= 7; id++ {
		st.putOrder(models.Order{ID: id, UserID: customer.UserID, Status: models.OrderStatusPending, TotalAmount: decimal.NewFromInt(10)})
	}
	st.payments[2] = models.Payment{ID: 50, OrderID: 2, Amount: decimal.RequireFromString("10.00")}
	st.payments[6] = models.Payment{ID: 51, OrderID: 6, Amount: decimal.RequireFromString("25.50")}

	stats, err := svc.OrderStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.TotalOrders)
	assert.True(t, decimal.RequireFromString("35.50").Equal(stats.TotalRevenue), "revenue %s", stats.TotalRevenue)
	require.Len(t, stats.RecentOrders, 5)
	assert.Equal(t, int64(7), stats.RecentOrders[0].ID)
	assert.Equal(t, int64(3), stats.RecentOrders[4].ID)
}
