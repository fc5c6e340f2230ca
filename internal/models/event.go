package models

import "time"

// Event is an issuance of tickets by an organizer. Prices are integer
// cents; MaxResaleCents is a hard ceiling on any later listing, not a
// default.
type Event struct {
	ID               int64     `json:"id"`
	OrganizerAddress string    `json:"organizer_address"`
	Name             string    `json:"name"`
	Symbol           string    `json:"symbol"`
	Date             string    `json:"date"`
	WholesaleCents   int64     `json:"wholesale_cents"`
	MaxResaleCents   int64     `json:"max_resale_cents"`
	CreatedAt        time.Time `json:"created_at"`
}
