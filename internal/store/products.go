package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateProduct inserts a catalog product. Catalog management lives elsewhere;
// this exists for seeding.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (sku, title, price)
		VALUES ($1, $2, $3)
		RETURNING id`

	return s.db.GetContext(ctx, &product.ID, query, product.SKU, product.Title, product.Price)
}

// UpdateProductPrice changes the live catalog price
func (s *Store) UpdateProductPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, "UPDATE products SET price = $1 WHERE id = $2", price, id)
	if err != nil {
		return fmt.Errorf("failed to update product price: %w", err)
	}
	return expectRow(res, fmt.Sprintf("product %d", id))
}

// GetProductsByIDs retrieves multiple products keyed by product ID
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	return getProductsByIDs(ctx, s.db, ids)
}

// getProductsByIDs retrieves multiple products by IDs keyed by product ID
func getProductsByIDs(ctx context.Context, q sqlx.QueryerContext, ids []int64) (map[int64]models.Product, error) {
	if len(ids) == 0 {
		return map[int64]models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT id, sku, title, price FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var products []models.Product
	if err := sqlx.SelectContext(ctx, q, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
