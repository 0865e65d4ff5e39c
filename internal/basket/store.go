package basket

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// Store abstracts basket persistence.
type Store interface {
	ListItems(ctx context.Context, userID string) ([]pricing.BasketItem, error)
	AddItem(ctx context.Context, userID, productID string, count int) error
	SetCount(ctx context.Context, userID, productID string, count int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	Replace(ctx context.Context, userID string, items []pricing.BasketItem) error
	Clear(ctx context.Context, userID string) error
}

// PGStore implements Store on a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// ListItems returns the user's basket rows in insertion order.
func (s PGStore) ListItems(ctx context.Context, userID string) ([]pricing.BasketItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, count FROM basket_items
		WHERE user_id = $1
		ORDER BY added_at, product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []pricing.BasketItem{}
	for rows.Next() {
		var item pricing.BasketItem
		if err := rows.Scan(&item.ProductID, &item.Count); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddItem inserts a basket row or increments the count of an existing one.
func (s PGStore) AddItem(ctx context.Context, userID, productID string, count int) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO basket_items (user_id, product_id, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET count = basket_items.count + EXCLUDED.count`, userID, productID, count)
	return err
}

// SetCount overwrites the count of an existing row.
func (s PGStore) SetCount(ctx context.Context, userID, productID string, count int) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE basket_items SET count = $3
		WHERE user_id = $1 AND product_id = $2`, userID, productID, count)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RemoveItem deletes a basket row.
func (s PGStore) RemoveItem(ctx context.Context, userID, productID string) error {
	_, err := s.Pool.Exec(ctx, `
		DELETE FROM basket_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	return err
}

// Replace swaps the user's basket for the provided items atomically.
func (s PGStore) Replace(ctx context.Context, userID string, items []pricing.BasketItem) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM basket_items WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, item := range items {
		if item.Count <= 0 {
			return errors.New("basket: item count must be positive")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO basket_items (user_id, product_id, count)
			VALUES ($1, $2, $3)`, userID, item.ProductID, item.Count); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Clear removes every basket row of the user.
func (s PGStore) Clear(ctx context.Context, userID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM basket_items WHERE user_id = $1`, userID)
	return err
}
