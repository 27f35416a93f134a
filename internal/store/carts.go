package store

import (
	"context"
	"fmt"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartLineColumns = "id, user_id, product_id, quantity, created_at, updated_at"

// GetCartLines retrieves all cart lines for a user, oldest first
func (s *Store) GetCartLines(ctx context.Context, userID int64) ([]models.CartLine, error) {
	return getCartLines(ctx, s.db, userID)
}

// AddCartItem adds quantity of a product to the user's cart, merging with an existing line
func (s *Store) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error) {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) (*models.CartLine, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return nil, err
		}

		query := `
			INSERT INTO cart_lines (user_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id)
			DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()
			RETURNING ` + cartLineColumns

		var line models.CartLine
		if err := tx.GetContext(ctx, &line, query, userID, productID, quantity); err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
		return &line, nil
	})
}

// UpdateCartItem sets the quantity of a line owned by the user
func (s *Store) UpdateCartItem(ctx context.Context, userID, lineID int64, quantity int) error {
	_, err := withTx(ctx, s.db, func(tx *sqlx.Tx) (struct{}, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return struct{}{}, err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE cart_lines SET quantity = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
			quantity, lineID, userID)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to update cart item: %w", err)
		}
		return struct{}{}, expectRow(res, fmt.Sprintf("cart line %d", lineID))
	})
	return err
}

// RemoveCartItem deletes a line owned by the user
func (s *Store) RemoveCartItem(ctx context.Context, userID, lineID int64) error {
	_, err := withTx(ctx, s.db, func(tx *sqlx.Tx) (struct{}, error) {
		if err := lockUser(ctx, tx, userID); err != nil {
			return struct{}{}, err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM cart_lines WHERE id = $1 AND user_id = $2", lineID, userID)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to remove cart item: %w", err)
		}
		return struct{}{}, expectRow(res, fmt.Sprintf("cart line %d", lineID))
	})
	return err
}

func getCartLines(ctx context.Context, q sqlx.QueryerContext, userID int64) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := sqlx.SelectContext(ctx, q, &lines,
		"SELECT "+cartLineColumns+" FROM cart_lines WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines: %w", err)
	}
	return lines, nil
}
