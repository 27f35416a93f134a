package api

import (
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// OrderResponse is the public representation of an order
type OrderResponse struct {
	ID             int64               `json:"id"`
	UserID         int64               `json:"userId"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	Status         models.OrderStatus  `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	GatewayOrderID *string             `json:"gatewayOrderId"`
	Items          []OrderItemResponse `json:"items,omitempty"`
	Payment        *PaymentResponse    `json:"payment,omitempty"`
}

// OrderStatsResponse is the admin dashboard summary
type OrderStatsResponse struct {
	TotalOrders  int64           `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	RecentOrders []OrderResponse `json:"recentOrders"`
}

type OrderItemResponse struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type PaymentResponse struct {
	ID                int64           `json:"id"`
	Provider          string          `json:"provider"`
	ProviderPaymentID string          `json:"providerPaymentId"`
	ProviderOrderID   string          `json:"providerOrderId"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	PaidAt            time.Time       `json:"paidAt"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func newOrderResponse(order models.Order) OrderResponse {
	return OrderResponse{
		ID:             order.ID,
		UserID:         order.UserID,
		TotalAmount:    order.TotalAmount,
		Status:         order.Status,
		CreatedAt:      order.CreatedAt,
		GatewayOrderID: lo.Ternary[*string](order.GatewayOrderID.Valid, lo.ToPtr(order.GatewayOrderID.String), nil),
	}
}

func newOrderDetailsResponse(details *service.OrderDetails) OrderResponse {
	resp := newOrderResponse(details.Order)
	resp.Items = lo.Map(details.Items, func(item models.OrderItem, _ int) OrderItemResponse {
		return OrderItemResponse{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	})
	if p := details.Payment; p != nil {
		resp.Payment = &PaymentResponse{
			ID:                p.ID,
			Provider:          p.Provider,
			ProviderPaymentID: p.ProviderPaymentID,
			ProviderOrderID:   p.ProviderOrderID,
			Amount:            p.Amount,
			Status:            p.Status,
			PaidAt:            p.PaidAt,
		}
	}
	return resp
}

func newOrderListResponse(orders []models.Order) []OrderResponse {
	return lo.Map(orders, func(order models.Order, _ int) OrderResponse {
		return newOrderResponse(order)
	})
}

func newCartResponse(cart *service.Cart) CartResponse {
	return CartResponse{
		Items: lo.Map(cart.Items, func(item service.CartItem, _ int) CartItemResponse {
			return CartItemResponse{
				ID:        item.Line.ID,
				ProductID: item.Product.ID,
				SKU:       item.Product.SKU,
				Title:     item.Product.Title,
				UnitPrice: item.Product.Price,
				Quantity:  item.Line.Quantity,
				Subtotal:  item.Subtotal,
			}
		}),
		Total: cart.Total,
	}
}
