package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrInsufficientFunds aborts the enclosing operation with no partial
	// effect; the balance is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientStock aborts the whole transfer when fewer listed
	// units exist than requested; no unit moves.
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	// ErrDeleteBlocked reports that a delete was substituted with
	// deactivation because the target has inventory or ledger history.
	ErrDeleteBlocked     = errors.New("account has inventory or ledger history")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrWeakPassword      = errors.New("password must be at least 4 characters")
)

// stockShortage wraps ErrInsufficientStock with what was asked for versus
// what was actually available, so callers can explain the refusal.
func stockShortage(eventID int64, seller string, requested, available int) error {
	return fmt.Errorf("%w: event %d, seller %s: requested %d, available %d",
		ErrInsufficientStock, eventID, seller, requested, available)
}

func fundsShortage(requestedCents, availableCents int64) error {
	return fmt.Errorf("%w: requested %d cents, available %d cents",
		ErrInsufficientFunds, requestedCents, availableCents)
}

// notFound maps a missing-row storage error to the domain error.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
