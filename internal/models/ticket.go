package models

// Ticket is one non-fungible inventory unit, bound to its event for life.
// Ownership and listing state are the only mutable fields and change only
// through the transfer engine. ListPriceCents is set iff IsListed.
type Ticket struct {
	ID             int64  `json:"id"`
	EventID        int64  `json:"event_id"`
	OwnerAddress   string `json:"owner_address"`
	IsListed       bool   `json:"is_listed"`
	ListPriceCents *int64 `json:"list_price_cents,omitempty"`
}
