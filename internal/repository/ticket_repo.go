package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepo struct {
	pool *pgxpool.Pool
}

func NewTicketRepo(pool *pgxpool.Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

// MintBatch creates quantity tickets for the event, owned by the issuer
// and pre-listed at the wholesale price. Runs in the caller's transaction.
func (r *TicketRepo) MintBatch(ctx context.Context, tx pgx.Tx, eventID int64, owner string, priceCents int64, quantity int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tickets (event_id, owner_address, is_listed, list_price_cents)
		SELECT $1, $2, TRUE, $3 FROM generate_series(1, $4)
	`, eventID, owner, priceCents, quantity)
	return err
}

// SelectListedForUpdate reserves up to limit currently-listed units of the
// event owned by owner, locking the rows. Selection order is ascending
// ticket id so contending buyers resolve deterministically. A nil
// priceCents matches any listing price; otherwise only units listed at
// exactly that price qualify.
func (r *TicketRepo) SelectListedForUpdate(ctx context.Context, tx pgx.Tx, eventID int64, owner string, priceCents *int64, limit int) ([]int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT id FROM tickets
		WHERE event_id = $1 AND owner_address = $2 AND is_listed
			AND ($3::bigint IS NULL OR list_price_cents = $3)
		ORDER BY id ASC
		LIMIT $4
		FOR UPDATE
	`, eventID, owner, priceCents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Transfer reassigns ownership of the given units and clears their listing
// state. Call within the transaction that locked the rows.
func (r *TicketRepo) Transfer(ctx context.Context, tx pgx.Tx, ticketIDs []int64, newOwner string) error {
	_, err := tx.Exec(ctx, `
		UPDATE tickets SET owner_address = $1, is_listed = FALSE, list_price_cents = NULL
		WHERE id = ANY($2)
	`, newOwner, ticketIDs)
	return err
}

// MarkListed lists up to limit of the owner's unlisted units in the event
// at priceCents and returns how many were listed. Listing fewer than
// requested is not an error: no money moves here.
func (r *TicketRepo) MarkListed(ctx context.Context, eventID int64, owner string, priceCents int64, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET is_listed = TRUE, list_price_cents = $1
		WHERE id IN (
			SELECT id FROM tickets
			WHERE event_id = $2 AND owner_address = $3 AND NOT is_listed
			ORDER BY id ASC
			LIMIT $4
			FOR UPDATE
		)
	`, priceCents, eventID, owner, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *TicketRepo) CountOwnedBy(ctx context.Context, address string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tickets WHERE owner_address = $1`, address).Scan(&n)
	return n, err
}

// SupplyStat summarizes one event's issuance for its organizer.
type SupplyStat struct {
	EventID int64 `json:"event_id"`
	Total   int   `json:"total"`
	Unsold  int   `json:"unsold"` // still owned by the issuing organizer
}

// SupplyStats returns per-event supply/sold counts for every event issued
// by the organizer.
func (r *TicketRepo) SupplyStats(ctx context.Context, organizerAddress string) ([]SupplyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, count(t.id), count(t.id) FILTER (WHERE t.owner_address = e.organizer_address)
		FROM events e
		JOIN tickets t ON t.event_id = e.id
		WHERE e.organizer_address = $1
		GROUP BY e.id
		ORDER BY e.id
	`, organizerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []SupplyStat
	for rows.Next() {
		var s SupplyStat
		if err := rows.Scan(&s.EventID, &s.Total, &s.Unsold); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Holding summarizes one principal's stock in one event.
type Holding struct {
	EventID int64 `json:"event_id"`
	Owned   int   `json:"owned"`
	Listed  int   `json:"listed"`
}

// HoldingsByOwner returns per-event owned/listed counts for an address.
func (r *TicketRepo) HoldingsByOwner(ctx context.Context, address string) ([]Holding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, count(*), count(*) FILTER (WHERE is_listed)
		FROM tickets WHERE owner_address = $1
		GROUP BY event_id
		ORDER BY event_id
	`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.EventID, &h.Owned, &h.Listed); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// MarketListing is one (event, seller, price) bucket of the open resale
// market, joined with the event fields a buyer needs.
type MarketListing struct {
	EventID        int64
	EventName      string
	Symbol         string
	Date           string
	MaxResaleCents int64
	SellerAddress  string
	PriceCents     int64
	Available      int
}

// MarketListings returns every resale listing across all sellers, issuer
// stock excluded since that moves through the wholesale channel.
func (r *TicketRepo) MarketListings(ctx context.Context) ([]MarketListing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.event_id, e.name, e.symbol, e.event_date, e.max_resale_cents,
			t.owner_address, t.list_price_cents, count(*)
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		WHERE t.is_listed AND t.owner_address <> e.organizer_address
		GROUP BY t.event_id, e.name, e.symbol, e.event_date, e.max_resale_cents,
			t.owner_address, t.list_price_cents
		ORDER BY t.event_id, t.list_price_cents, t.owner_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var listings []MarketListing
	for rows.Next() {
		var l MarketListing
		if err := rows.Scan(&l.EventID, &l.EventName, &l.Symbol, &l.Date, &l.MaxResaleCents,
			&l.SellerAddress, &l.PriceCents, &l.Available); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// ListingGroup is one (event, price) bucket of a seller's listed stock.
type ListingGroup struct {
	EventID    int64 `json:"event_id"`
	PriceCents int64 `json:"price_cents"`
	Available  int   `json:"available"`
}

// ListedInventory groups a seller's listed stock by (event, price) with an
// availability count, the shape the market view sells from.
func (r *TicketRepo) ListedInventory(ctx context.Context, sellerAddress string) ([]ListingGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, list_price_cents, count(*)
		FROM tickets WHERE owner_address = $1 AND is_listed
		GROUP BY event_id, list_price_cents
		ORDER BY event_id, list_price_cents
	`, sellerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []ListingGroup
	for rows.Next() {
		var g ListingGroup
		if err := rows.Scan(&g.EventID, &g.PriceCents, &g.Available); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
