package service

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartItem is a cart line priced at the current catalog price
type CartItem struct {
	Line     models.CartLine
	Product  models.Product
	Subtotal decimal.Decimal
}

// Cart is the priced view of a user's cart
type Cart struct {
	Items []CartItem
	Total decimal.Decimal
}

// CartService manages the caller's cart
type CartService struct {
	store  CartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// GetCart returns the principal's cart priced at current catalog prices
func (s *CartService) GetCart(ctx context.Context, principal models.Principal) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	lines, err := s.store.GetCartLines(ctx, principal.UserID)
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	products, err := s.store.GetProductsByIDs(ctx, lo.Map(lines, func(line models.CartLine, _ int) int64 {
		return line.ProductID
	}))
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}

	items := lo.Map(lines, func(line models.CartLine, _ int) CartItem {
		product := products[line.ProductID]
		return CartItem{
			Line:     line,
			Product:  product,
			Subtotal: product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
	})

	return &Cart{
		Items: items,
		Total: lo.Reduce(items, func(sum decimal.Decimal, item CartItem, _ int) decimal.Decimal {
			return sum.Add(item.Subtotal)
		}, decimal.Zero),
	}, nil
}

// AddItem adds a product to the cart, merging with an existing line for the
// same product.
func (s *CartService) AddItem(ctx context.Context, principal models.Principal, productID int64, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	line, err := s.store.AddCartItem(ctx, principal.UserID, productID, quantity)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	s.logger.Debug("Cart item added",
		zap.Int64("user_id", principal.UserID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", line.Quantity))

	return s.GetCart(ctx, principal)
}

// UpdateItem sets the quantity of one of the principal's cart lines
func (s *CartService) UpdateItem(ctx context.Context, principal models.Principal, lineID int64, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	err := s.store.UpdateCartItem(ctx, principal.UserID, lineID, quantity)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return s.GetCart(ctx, principal)
}

// RemoveItem deletes one of the principal's cart lines
func (s *CartService) RemoveItem(ctx context.Context, principal models.Principal, lineID int64) (*Cart, error) {
	err := s.store.RemoveCartItem(ctx, principal.UserID, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}

	return s.GetCart(ctx, principal)
}
