package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backend/internal/models"
)

const ledgerColumns = `id, tx_id, ticket_id, event_label, from_address, to_address, amount_cents, kind, created_at`

// LedgerRepo is append-only: Append is the only write, and nothing ever
// updates or deletes a row.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append writes one entry within the caller's transfer transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (tx_id, ticket_id, event_label, from_address, to_address, amount_cents, kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.TxID, e.TicketID, e.EventLabel, e.FromAddress, e.ToAddress, e.AmountCents, e.Kind).Scan(&e.ID, &e.CreatedAt)
}

func scanEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TxID, &e.TicketID, &e.EventLabel, &e.FromAddress, &e.ToAddress, &e.AmountCents, &e.Kind, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// ListByAddress returns every entry where the address is either endpoint,
// newest first: the account statement projection.
func (r *LedgerRepo) ListByAddress(ctx context.Context, address string) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE from_address = $1 OR to_address = $1
		ORDER BY id DESC
	`, address)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Tail returns the most recent limit entries, newest first.
func (r *LedgerRepo) Tail(ctx context.Context, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_entries ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListByTxID returns all entries of one atomic transfer, oldest first.
func (r *LedgerRepo) ListByTxID(ctx context.Context, txID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_entries WHERE tx_id = $1 ORDER BY id
	`, txID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// OrderSummary aggregates one checkout's PURCHASE entries.
type OrderSummary struct {
	TxID       uuid.UUID `json:"tx_id"`
	EventLabel string    `json:"event_label"`
	Units      int       `json:"units"`
	TotalCents int64     `json:"total_cents"`
	PlacedAt   time.Time `json:"placed_at"`
}

// OrdersByBuyer reconstructs the buyer's orders from the ledger, grouping
// PURCHASE entries by correlation id, newest first.
func (r *LedgerRepo) OrdersByBuyer(ctx context.Context, buyerAddress string) ([]OrderSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tx_id, min(event_label), count(*), sum(amount_cents), min(created_at)
		FROM ledger_entries
		WHERE to_address = $1 AND kind = 'PURCHASE'
		GROUP BY tx_id
		ORDER BY min(created_at) DESC
	`, buyerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []OrderSummary
	for rows.Next() {
		var o OrderSummary
		if err := rows.Scan(&o.TxID, &o.EventLabel, &o.Units, &o.TotalCents, &o.PlacedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// HasEndpoint reports whether the address appears in any entry. Accounts
// with ledger history are never hard-deleted.
func (r *LedgerRepo) HasEndpoint(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE from_address = $1 OR to_address = $1)
	`, address).Scan(&exists)
	return exists, err
}
