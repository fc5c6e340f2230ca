package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stagepass/backend/internal/authz"
	"github.com/stagepass/backend/internal/models"
)

// AccountStore is the minimal account interface for the transfer engine.
type AccountStore interface {
	GetByAddress(ctx context.Context, address string) (*models.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*models.Account, error)
	Debit(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (int64, error)
	Credit(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (int64, error)
}

type EventStore interface {
	Create(ctx context.Context, tx pgx.Tx, ev *models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

type TicketStore interface {
	MintBatch(ctx context.Context, tx pgx.Tx, eventID int64, owner string, priceCents int64, quantity int) error
	SelectListedForUpdate(ctx context.Context, tx pgx.Tx, eventID int64, owner string, priceCents *int64, limit int) ([]int64, error)
	Transfer(ctx context.Context, tx pgx.Tx, ticketIDs []int64, newOwner string) error
	MarkListed(ctx context.Context, eventID int64, owner string, priceCents int64, limit int) (int, error)
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

type CartStore interface {
	Upsert(ctx context.Context, line *models.CartLine) error
	Remove(ctx context.Context, buyerAddress string, lineID int64) error
	ListByBuyer(ctx context.Context, buyerAddress string) ([]*models.CartLine, error)
	Clear(ctx context.Context, tx pgx.Tx, buyerAddress string) error
}

// TxBeginner opens the transaction each transfer runs in. Satisfied by the
// account repository (which fronts the pgx pool).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TransferService is the only writer of balances and ticket ownership.
// Every movement kind follows the same discipline inside one transaction:
// read current state under row locks, validate every precondition, then
// apply every mutation and append ledger entries, or apply nothing.
type TransferService struct {
	db       TxBeginner
	accounts AccountStore
	events   EventStore
	tickets  TicketStore
	ledger   LedgerStore
	carts    CartStore
	log      *slog.Logger
}

func NewTransferService(db TxBeginner, accounts AccountStore, events EventStore, tickets TicketStore, ledger LedgerStore, carts CartStore, log *slog.Logger) *TransferService {
	if log == nil {
		log = slog.Default()
	}
	return &TransferService{db: db, accounts: accounts, events: events, tickets: tickets, ledger: ledger, carts: carts, log: log}
}

// CreateEvent creates an event and mints its full fixed supply, owned by
// the issuing organizer and pre-listed at the wholesale price. The mint is
// recorded as a single zero-amount summary entry; per-unit provenance
// starts at each unit's first sale.
func (s *TransferService) CreateEvent(ctx context.Context, organizer *models.Account, name, symbol, date string, wholesaleCents, maxResaleCents int64, supply int) (*models.Event, error) {
	if err := authz.Authorize(authz.Request{Actor: organizer, Action: authz.ActionCreateEvent}); err != nil {
		return nil, err
	}
	if supply <= 0 {
		return nil, ErrInvalidQuantity
	}
	if wholesaleCents < 0 || maxResaleCents < wholesaleCents {
		return nil, fmt.Errorf("%w: resale cap must be at least the wholesale price", ErrInvalidAmount)
	}
	ev := &models.Event{
		OrganizerAddress: organizer.Address,
		Name:             name,
		Symbol:           strings.ToUpper(symbol),
		Date:             date,
		WholesaleCents:   wholesaleCents,
		MaxResaleCents:   maxResaleCents,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	if err := s.createEventTx(ctx, tx, ev, supply); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.log.Info("event created", "event_id", ev.ID, "symbol", ev.Symbol, "supply", supply)
	return ev, nil
}

func (s *TransferService) createEventTx(ctx context.Context, tx pgx.Tx, ev *models.Event, supply int) error {
	if err := s.events.Create(ctx, tx, ev); err != nil {
		return err
	}
	if err := s.tickets.MintBatch(ctx, tx, ev.ID, ev.OrganizerAddress, ev.WholesaleCents, supply); err != nil {
		return err
	}
	return s.ledger.Append(ctx, tx, &models.LedgerEntry{
		TxID:        uuid.New(),
		EventLabel:  fmt.Sprintf("MINT %dx %s", supply, ev.Symbol),
		FromAddress: models.SystemAddress,
		ToAddress:   ev.OrganizerAddress,
		AmountCents: 0,
		Kind:        models.EntryMint,
	})
}

// TopUp credits the account from the synthetic external funding source.
func (s *TransferService) TopUp(ctx context.Context, account *models.Account, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	newBalance, err := s.topUpTx(ctx, tx, account.Address, amountCents)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *TransferService) topUpTx(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (int64, error) {
	newBalance, err := s.accounts.Credit(ctx, tx, address, amountCents)
	if err != nil {
		return 0, notFound(err)
	}
	err = s.ledger.Append(ctx, tx, &models.LedgerEntry{
		TxID:        uuid.New(),
		EventLabel:  "Wallet Top-Up",
		FromAddress: models.BankAddress,
		ToAddress:   address,
		AmountCents: amountCents,
		Kind:        models.EntryTopUp,
	})
	return newBalance, err
}

// Withdraw moves funds out to the synthetic bank sink. Organizers only;
// insufficient funds is a reported failure that leaves the balance alone.
func (s *TransferService) Withdraw(ctx context.Context, actor *models.Account, amountCents int64) (int64, error) {
	if err := authz.Authorize(authz.Request{Actor: actor, Action: authz.ActionWithdraw}); err != nil {
		return 0, err
	}
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	newBalance, err := s.withdrawTx(ctx, tx, actor.Address, amountCents)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *TransferService) withdrawTx(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (int64, error) {
	acc, err := s.accounts.GetForUpdate(ctx, tx, address)
	if err != nil {
		return 0, notFound(err)
	}
	if acc.BalanceCents < amountCents {
		return 0, fundsShortage(amountCents, acc.BalanceCents)
	}
	newBalance, err := s.accounts.Debit(ctx, tx, address, amountCents)
	if err != nil {
		return 0, err
	}
	err = s.ledger.Append(ctx, tx, &models.LedgerEntry{
		TxID:        uuid.New(),
		EventLabel:  "Withdrawal",
		FromAddress: address,
		ToAddress:   models.BankAddress,
		AmountCents: amountCents,
		Kind:        models.EntryWithdraw,
	})
	return newBalance, err
}

// AcquireWholesale moves quantity units of the event from the issuing
// organizer to the reseller at the wholesale price. All units move with
// the payment in one transaction, or nothing does.
func (s *TransferService) AcquireWholesale(ctx context.Context, reseller *models.Account, eventID int64, quantity int) (uuid.UUID, error) {
	if quantity <= 0 {
		return uuid.Nil, ErrInvalidQuantity
	}
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return uuid.Nil, notFound(err)
	}
	if err := authz.Authorize(authz.Request{Actor: reseller, Action: authz.ActionAcquireWholesale, Event: ev}); err != nil {
		return uuid.Nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)
	orderID, err := s.acquireWholesaleTx(ctx, tx, reseller, ev, quantity)
	if err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	s.log.Info("wholesale acquisition", "order_id", orderID, "event_id", ev.ID, "reseller", reseller.Address, "quantity", quantity)
	return orderID, nil
}

func (s *TransferService) acquireWholesaleTx(ctx context.Context, tx pgx.Tx, reseller *models.Account, ev *models.Event, quantity int) (uuid.UUID, error) {
	cost := ev.WholesaleCents * int64(quantity)

	// Lock both balances in deterministic order to avoid deadlock with a
	// concurrent transfer touching the same pair.
	var resellerBalance int64
	for _, addr := range sortedAddresses(reseller.Address, ev.OrganizerAddress) {
		acc, err := s.accounts.GetForUpdate(ctx, tx, addr)
		if err != nil {
			return uuid.Nil, notFound(err)
		}
		if addr == reseller.Address {
			resellerBalance = acc.BalanceCents
		}
	}
	if resellerBalance < cost {
		return uuid.Nil, fundsShortage(cost, resellerBalance)
	}

	ids, err := s.tickets.SelectListedForUpdate(ctx, tx, ev.ID, ev.OrganizerAddress, nil, quantity)
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) < quantity {
		return uuid.Nil, stockShortage(ev.ID, ev.OrganizerAddress, quantity, len(ids))
	}

	if _, err := s.accounts.Debit(ctx, tx, reseller.Address, cost); err != nil {
		return uuid.Nil, err
	}
	if _, err := s.accounts.Credit(ctx, tx, ev.OrganizerAddress, cost); err != nil {
		return uuid.Nil, err
	}
	if err := s.tickets.Transfer(ctx, tx, ids, reseller.Address); err != nil {
		return uuid.Nil, err
	}

	orderID := uuid.New()
	for _, id := range ids {
		ticketID := id
		if err := s.ledger.Append(ctx, tx, &models.LedgerEntry{
			TxID:        orderID,
			TicketID:    &ticketID,
			EventLabel:  ev.Name,
			FromAddress: ev.OrganizerAddress,
			ToAddress:   reseller.Address,
			AmountCents: ev.WholesaleCents,
			Kind:        models.EntryWholesale,
		}); err != nil {
			return uuid.Nil, err
		}
	}
	return orderID, nil
}

// ListForResale lists up to quantity of the owner's unlisted units in the
// event at priceCents, which must not exceed the event's resale cap.
// Returns how many were actually listed; fewer than requested is fine
// because no money moves.
func (s *TransferService) ListForResale(ctx context.Context, owner *models.Account, eventID int64, quantity int, priceCents int64) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if priceCents < 0 {
		return 0, ErrInvalidAmount
	}
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return 0, notFound(err)
	}
	if err := authz.Authorize(authz.Request{Actor: owner, Action: authz.ActionListForResale, Event: ev, PriceCents: priceCents}); err != nil {
		return 0, err
	}
	return s.tickets.MarkListed(ctx, eventID, owner.Address, priceCents, quantity)
}

// sortedAddresses returns the distinct addresses in ascending order, the
// canonical lock order for multi-account transfers.
func sortedAddresses(addrs ...string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
