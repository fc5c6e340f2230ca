package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backend/internal/models"
)

type CartRepo struct {
	pool *pgxpool.Pool
}

func NewCartRepo(pool *pgxpool.Pool) *CartRepo {
	return &CartRepo{pool: pool}
}

// Upsert stages a line, merging with an existing identical
// (buyer, event, seller, price) tuple by adding the quantities.
func (r *CartRepo) Upsert(ctx context.Context, line *models.CartLine) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO cart_lines (buyer_address, event_id, seller_address, unit_price_cents, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (buyer_address, event_id, seller_address, unit_price_cents)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING id, quantity, created_at
	`, line.BuyerAddress, line.EventID, line.SellerAddress, line.UnitPriceCents, line.Quantity).
		Scan(&line.ID, &line.Quantity, &line.CreatedAt)
}

// Remove deletes one line. The buyer predicate keeps principals from
// touching each other's carts.
func (r *CartRepo) Remove(ctx context.Context, buyerAddress string, lineID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM cart_lines WHERE id = $1 AND buyer_address = $2
	`, lineID, buyerAddress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CartRepo) ListByBuyer(ctx context.Context, buyerAddress string) ([]*models.CartLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, buyer_address, event_id, seller_address, unit_price_cents, quantity, created_at
		FROM cart_lines WHERE buyer_address = $1 ORDER BY id
	`, buyerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []*models.CartLine
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.ID, &l.BuyerAddress, &l.EventID, &l.SellerAddress, &l.UnitPriceCents, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// Clear empties the buyer's cart within the checkout transaction.
func (r *CartRepo) Clear(ctx context.Context, tx pgx.Tx, buyerAddress string) error {
	_, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE buyer_address = $1`, buyerAddress)
	return err
}

// DeleteOlderThan purges lines staged before cutoff. Used by the periodic
// cart sweeper; abandoned carts never hold stock, so this is pure hygiene.
func (r *CartRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
