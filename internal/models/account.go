package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Role is the closed set of principal roles. Staff form a tree of depth
// three (admin -> organizer -> reseller); customers are leaves outside
// the staff chain and never have children.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleReseller  Role = "reseller"
	RoleCustomer  Role = "customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleReseller, RoleCustomer:
		return true
	}
	return false
}

// Synthetic ledger endpoints for movements that cross the system boundary.
const (
	SystemAddress = "SYSTEM" // mint source
	BankAddress   = "BANK"   // external funding source and withdrawal sink
)

// AdminAddress is the fixed wallet address of the bootstrap admin account,
// seeded at startup.
const AdminAddress = "0xADMIN_ROOT_AUTHORITY"

type Account struct {
	Address       string    `json:"address"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	BalanceCents  int64     `json:"balance_cents"`
	Role          Role      `json:"role"`
	ParentAddress *string   `json:"parent_address,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAddress generates a fresh wallet address: "0x" followed by 40 hex
// characters. Addresses are opaque identifiers, not cryptographic keys.
func NewAddress() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}
