package models

import "time"

// CartLine is one staged prospective purchase. Lines are keyed by
// (buyer, event, seller, unit price); re-adding the same tuple merges by
// incrementing the quantity. Lines are ephemeral: consumed atomically at
// checkout or removed by their owner.
type CartLine struct {
	ID             int64     `json:"id"`
	BuyerAddress   string    `json:"buyer_address"`
	EventID        int64     `json:"event_id"`
	SellerAddress  string    `json:"seller_address"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubtotalCents is the line's contribution to the checkout total.
func (l *CartLine) SubtotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}
