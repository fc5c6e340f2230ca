package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stagepass/backend/internal/authz"
	"github.com/stagepass/backend/internal/models"
)

// AddCartLine stages a purchase intent. Nothing is reserved or validated
// against live stock here; the cart is a wishlist until checkout.
func (s *TransferService) AddCartLine(ctx context.Context, buyer *models.Account, eventID int64, sellerAddress string, unitPriceCents int64, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if unitPriceCents < 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, notFound(err)
	}
	line := &models.CartLine{
		BuyerAddress:   buyer.Address,
		EventID:        eventID,
		SellerAddress:  sellerAddress,
		UnitPriceCents: unitPriceCents,
		Quantity:       quantity,
	}
	if err := s.carts.Upsert(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

func (s *TransferService) RemoveCartLine(ctx context.Context, buyer *models.Account, lineID int64) error {
	return notFound(s.carts.Remove(ctx, buyer.Address, lineID))
}

// CartContents returns the buyer's staged lines and their running total.
func (s *TransferService) CartContents(ctx context.Context, buyer *models.Account) ([]*models.CartLine, int64, error) {
	lines, err := s.carts.ListByBuyer(ctx, buyer.Address)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents()
	}
	return lines, total, nil
}

// Checkout settles the buyer's entire cart in one transaction. Every line
// must be satisfiable at its exact staged price and the buyer must cover
// the full total; any shortage aborts the whole order and leaves the
// cart, balances, and inventory untouched.
func (s *TransferService) Checkout(ctx context.Context, buyer *models.Account) (uuid.UUID, int64, error) {
	if err := authz.Authorize(authz.Request{Actor: buyer, Action: authz.ActionPurchase}); err != nil {
		return uuid.Nil, 0, err
	}
	lines, err := s.carts.ListByBuyer(ctx, buyer.Address)
	if err != nil {
		return uuid.Nil, 0, err
	}
	if len(lines) == 0 {
		return uuid.Nil, 0, ErrEmptyCart
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, 0, err
	}
	defer tx.Rollback(ctx)
	orderID, total, err := s.checkoutTx(ctx, tx, buyer, lines)
	if err != nil {
		return uuid.Nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, 0, err
	}
	s.log.Info("checkout settled", "order_id", orderID, "buyer", buyer.Address, "lines", len(lines), "total_cents", total)
	return orderID, total, nil
}

type reservation struct {
	line      *models.CartLine
	event     *models.Event
	ticketIDs []int64
}

func (s *TransferService) checkoutTx(ctx context.Context, tx pgx.Tx, buyer *models.Account, lines []*models.CartLine) (uuid.UUID, int64, error) {
	var total int64
	addrs := []string{buyer.Address}
	for _, l := range lines {
		total += l.SubtotalCents()
		addrs = append(addrs, l.SellerAddress)
	}

	var buyerBalance int64
	for _, addr := range sortedAddresses(addrs...) {
		acc, err := s.accounts.GetForUpdate(ctx, tx, addr)
		if err != nil {
			return uuid.Nil, 0, notFound(err)
		}
		if addr == buyer.Address {
			buyerBalance = acc.BalanceCents
		}
	}
	if buyerBalance < total {
		return uuid.Nil, 0, fundsShortage(total, buyerBalance)
	}

	// Phase one: reserve every unit of every line before mutating
	// anything, so a late shortage aborts with zero side effects.
	reservations := make([]reservation, 0, len(lines))
	for _, l := range lines {
		ev, err := s.events.GetByID(ctx, l.EventID)
		if err != nil {
			return uuid.Nil, 0, notFound(err)
		}
		price := l.UnitPriceCents
		ids, err := s.tickets.SelectListedForUpdate(ctx, tx, l.EventID, l.SellerAddress, &price, l.Quantity)
		if err != nil {
			return uuid.Nil, 0, err
		}
		if len(ids) < l.Quantity {
			return uuid.Nil, 0, stockShortage(l.EventID, l.SellerAddress, l.Quantity, len(ids))
		}
		reservations = append(reservations, reservation{line: l, event: ev, ticketIDs: ids})
	}

	// Phase two: apply every mutation.
	if _, err := s.accounts.Debit(ctx, tx, buyer.Address, total); err != nil {
		return uuid.Nil, 0, err
	}
	orderID := uuid.New()
	for _, r := range reservations {
		if _, err := s.accounts.Credit(ctx, tx, r.line.SellerAddress, r.line.SubtotalCents()); err != nil {
			return uuid.Nil, 0, err
		}
		if err := s.tickets.Transfer(ctx, tx, r.ticketIDs, buyer.Address); err != nil {
			return uuid.Nil, 0, err
		}
		for _, id := range r.ticketIDs {
			ticketID := id
			if err := s.ledger.Append(ctx, tx, &models.LedgerEntry{
				TxID:        orderID,
				TicketID:    &ticketID,
				EventLabel:  r.event.Name,
				FromAddress: r.line.SellerAddress,
				ToAddress:   buyer.Address,
				AmountCents: r.line.UnitPriceCents,
				Kind:        models.EntryPurchase,
			}); err != nil {
				return uuid.Nil, 0, err
			}
		}
	}
	if err := s.carts.Clear(ctx, tx, buyer.Address); err != nil {
		return uuid.Nil, 0, err
	}
	return orderID, total, nil
}
