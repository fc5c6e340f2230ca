package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds. MINT is a summary row for a whole batch; WHOLESALE
// and PURCHASE are written once per transferred unit.
const (
	EntryMint      = "MINT"
	EntryTopUp     = "TOPUP"
	EntryWithdraw  = "WITHDRAW"
	EntryWholesale = "WHOLESALE"
	EntryPurchase  = "PURCHASE"
)

// LedgerEntry is one immutable audit record. Entries are append-only:
// nothing in the system updates or deletes them. All rows produced by one
// atomic transfer share a TxID.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	TxID        uuid.UUID `json:"tx_id"`
	TicketID    *int64    `json:"ticket_id,omitempty"`
	EventLabel  string    `json:"event_label"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	AmountCents int64     `json:"amount_cents"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}
