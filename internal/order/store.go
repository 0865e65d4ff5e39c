package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazar-commerce/backend-bazar/internal/checkout"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// ErrNotFound is returned when no order exists for the given key.
var ErrNotFound = errors.New("order: not found")

const orderColumns = `id, user_id, payment_authority, status, products, submission_method,
total_price, total_weight, discount_total, shipping_cost, grand_total,
post_tracking_code, gateway_ref_id, created_at, updated_at`

// PGStore persists orders in Postgres. The unique index on payment_authority
// plus row locking in Confirm give per-authority mutual exclusion.
type PGStore struct {
	Pool *pgxpool.Pool
}

// CreateUnpaid writes the provisional order mirroring a fresh intent.
func (s *PGStore) CreateUnpaid(ctx context.Context, intent checkout.Intent) error {
	return s.insertFromIntent(ctx, intent, false)
}

// EnsureUnpaid recreates a provisional order missing its dual-write half.
// Safe to call when the order already exists.
func (s *PGStore) EnsureUnpaid(ctx context.Context, intent checkout.Intent) error {
	return s.insertFromIntent(ctx, intent, true)
}

func (s *PGStore) insertFromIntent(ctx context.Context, intent checkout.Intent, ignoreConflict bool) error {
	products, err := json.Marshal(intent.Products)
	if err != nil {
		return err
	}
	query := `INSERT INTO orders
(user_id, payment_authority, status, products, submission_method,
 total_price, total_weight, discount_total, shipping_cost, grand_total, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if ignoreConflict {
		query += ` ON CONFLICT (payment_authority) DO NOTHING`
	}
	goodsTotal := intent.TotalPrice - intent.ShippingCost
	_, err = s.Pool.Exec(ctx, query,
		intent.UserID, intent.Authority, StatusUnpaid, products, intent.SubmissionMethod,
		goodsTotal, intent.TotalWeight, intent.DiscountTotal, intent.ShippingCost,
		intent.TotalPrice, intent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("order: inserting: %w", err)
	}
	return nil
}

// GetByAuthority loads an order without locking it.
func (s *PGStore) GetByAuthority(ctx context.Context, authority string) (Order, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_authority = $1`, authority)
	return scanOrder(row)
}

// ListByUser returns the user's orders, newest first.
func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ConfirmResult reports what Confirm did to the order row.
type ConfirmResult struct {
	Order      Order
	Already    bool
	Shortfalls []Shortfall
}

// Confirm transitions an unpaid order to confirmed and decrements stock for
// every line, atomically and floored at zero. The row is locked for the
// duration; a concurrent Confirm for the same authority observes the
// committed status and becomes a no-op. An already-confirmed order is
// reported via Already without touching stock again.
func (s *PGStore) Confirm(ctx context.Context, authority, refID string) (ConfirmResult, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ConfirmResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_authority = $1 FOR UPDATE`, authority)
	o, err := scanOrder(row)
	if err != nil {
		return ConfirmResult{}, err
	}

	switch o.Status {
	case StatusConfirmed:
		return ConfirmResult{Order: o, Already: true}, tx.Commit(ctx)
	case StatusFailed, StatusExpired:
		return ConfirmResult{Order: o}, fmt.Errorf("order: cannot confirm %s order: %w", o.Status, ErrTerminalStatus)
	}

	var shortfalls []Shortfall
	for _, line := range o.Products {
		if !line.Available || line.Count <= 0 {
			continue
		}
		short, err := decrementStock(ctx, tx, line)
		if err != nil {
			return ConfirmResult{}, err
		}
		if short != nil {
			shortfalls = append(shortfalls, *short)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, gateway_ref_id = $3, updated_at = now()
		 WHERE payment_authority = $1`, authority, StatusConfirmed, refID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ConfirmResult{}, err
	}
	o.Status = StatusConfirmed
	o.GatewayRefID = refID
	return ConfirmResult{Order: o, Shortfalls: shortfalls}, nil
}

// ErrTerminalStatus marks a confirm attempt against a failed or expired order.
var ErrTerminalStatus = errors.New("order: terminal status")

func decrementStock(ctx context.Context, tx pgx.Tx, line pricing.Line) (*Shortfall, error) {
	var prior int
	err := tx.QueryRow(ctx,
		`WITH prior AS (
			SELECT show_count FROM products WHERE id = $1 FOR UPDATE
		 )
		 UPDATE products p
		 SET show_count = GREATEST(p.show_count - $2, 0), updated_at = now()
		 FROM prior
		 WHERE p.id = $1
		 RETURNING prior.show_count`,
		line.ProductID, line.Count).Scan(&prior)
	if errors.Is(err, pgx.ErrNoRows) {
		// product vanished between pricing and confirmation
		return &Shortfall{ProductID: line.ProductID, Requested: line.Count, Available: 0}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("order: decrementing stock for %s: %w", line.ProductID, err)
	}
	if prior < line.Count {
		return &Shortfall{ProductID: line.ProductID, Requested: line.Count, Available: prior}, nil
	}
	return nil, nil
}

// MarkFailed records a gateway-rejected payment. Confirmed orders are never
// downgraded.
func (s *PGStore) MarkFailed(ctx context.Context, authority string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now()
		 WHERE payment_authority = $1 AND status = $3`,
		authority, StatusFailed, StatusUnpaid)
	return err
}

// MarkExpiredBefore stamps stale unpaid orders as expired audit records and
// returns how many rows changed. Used by the periodic sweep.
func (s *PGStore) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now()
		 WHERE status = $1 AND created_at < $3`,
		StatusUnpaid, StatusExpired, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o        Order
		products []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.PaymentAuthority, &o.Status, &products, &o.SubmissionMethod,
		&o.TotalPrice, &o.TotalWeight, &o.DiscountTotal, &o.ShippingCost, &o.GrandTotal,
		&o.PostTrackingCode, &o.GatewayRefID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(products, &o.Products); err != nil {
		return Order{}, fmt.Errorf("order: decoding products: %w", err)
	}
	return o, nil
}
