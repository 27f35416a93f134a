package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the read-only catalog view used for pricing at checkout
type Product struct {
	ID    int64           `db:"id" json:"id"`
	SKU   string          `db:"sku" json:"sku"`
	Title string          `db:"title" json:"title"`
	Price decimal.Decimal `db:"price" json:"price"`
}

// CartLine is a single product reference in a user's cart
type CartLine struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order is immutable after creation except for Status and GatewayOrderID
type Order struct {
	ID             int64           `db:"id"`
	UserID         int64           `db:"user_id"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	Status         OrderStatus     `db:"status"`
	GatewayOrderID sql.NullString  `db:"gateway_order_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// OrderItem records a cart line as it was priced at checkout
type OrderItem struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

// Payment is written once per successful verification and never mutated
type Payment struct {
	ID                int64           `db:"id"`
	OrderID           int64           `db:"order_id"`
	Provider          string          `db:"provider"`
	ProviderPaymentID string          `db:"provider_payment_id"`
	ProviderOrderID   string          `db:"provider_order_id"`
	Amount            decimal.Decimal `db:"amount"`
	Status            string          `db:"status"`
	PaidAt            time.Time       `db:"paid_at"`
}

// PaymentStatusPaid is the only status a Payment record carries
const PaymentStatusPaid = "PAID"

// Role of an authenticated principal
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// Principal is the authenticated caller, resolved at the HTTP boundary
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the principal may perform administrative actions
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// OrderStats is the order part of the admin dashboard
type OrderStats struct {
	TotalOrders  int64
	TotalRevenue decimal.Decimal
	RecentOrders []Order
}
