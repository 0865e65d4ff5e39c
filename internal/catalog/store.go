package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("catalog: product not found")

// Store provides read access to the product catalog.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, title, slug, weight_grams, show_count, price_history, discount_history, created_at, updated_at`

// Get loads a single product by id. Ids that are not valid uuids cannot
// match a row and resolve to ErrNotFound without hitting the database.
func (s *Store) Get(ctx context.Context, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	if s == nil || s.Pool == nil {
		return Product{}, errors.New("catalog store not configured")
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return product, err
}

// GetByIDs bulk-loads products keyed by id. Missing and malformed ids are
// simply absent from the result; callers decide how to treat unresolvable
// products.
func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("catalog store not configured")
	}
	valid := validIDs(ids)
	if len(valid) == 0 {
		return map[string]Product{}, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[product.ID] = product
	}
	return result, rows.Err()
}

// validIDs drops ids that would make Postgres reject the uuid[] cast.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

// Create inserts a product. Used by seeding tools and tests.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	if s == nil || s.Pool == nil {
		return Product{}, errors.New("catalog store not configured")
	}
	prices, err := json.Marshal(p.Prices)
	if err != nil {
		return Product{}, fmt.Errorf("encode price history: %w", err)
	}
	discounts, err := json.Marshal(p.Discounts)
	if err != nil {
		return Product{}, fmt.Errorf("encode discount history: %w", err)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO products (title, slug, weight_grams, show_count, price_history, discount_history)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		p.Title, p.Slug, p.WeightGrams, p.ShowCount, prices, discounts)
	return scanProduct(row)
}

// AppendPrice appends a price point to the product's history.
func (s *Store) AppendPrice(ctx context.Context, id string, point PricePoint) error {
	if s == nil || s.Pool == nil {
		return errors.New("catalog store not configured")
	}
	encoded, err := json.Marshal(point)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE products
		SET price_history = price_history || $2::jsonb, updated_at = now()
		WHERE id = $1`, id, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendDiscount appends a discount point to the product's history. Expired
// entries are kept for auditing.
func (s *Store) AppendDiscount(ctx context.Context, id string, point DiscountPoint) error {
	if s == nil || s.Pool == nil {
		return errors.New("catalog store not configured")
	}
	encoded, err := json.Marshal(point)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE products
		SET discount_history = discount_history || $2::jsonb, updated_at = now()
		WHERE id = $1`, id, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p         Product
		prices    []byte
		discounts []byte
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.WeightGrams, &p.ShowCount, &prices, &discounts, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	if len(prices) > 0 {
		if err := json.Unmarshal(prices, &p.Prices); err != nil {
			return Product{}, fmt.Errorf("decode price history: %w", err)
		}
	}
	if len(discounts) > 0 {
		if err := json.Unmarshal(discounts, &p.Discounts); err != nil {
			return Product{}, fmt.Errorf("decode discount history: %w", err)
		}
	}
	return p, nil
}
