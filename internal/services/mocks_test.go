package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stagepass/backend/internal/models"
)

// nopTx satisfies pgx.Tx so service wrappers can run their begin/commit
// discipline against the in-memory store.
type nopTx struct{}

func (nopTx) Begin(ctx context.Context) (pgx.Tx, error) { return nopTx{}, nil }
func (nopTx) Commit(ctx context.Context) error          { return nil }
func (nopTx) Rollback(ctx context.Context) error        { return nil }
func (nopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (nopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (nopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (nopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (nopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (nopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (nopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (nopTx) Conn() *pgx.Conn                                               { return nil }

type fakeDB struct{}

func (fakeDB) Begin(ctx context.Context) (pgx.Tx, error) { return nopTx{}, nil }

// memStore backs every store interface with maps. It has no rollback, so
// tests asserting "nothing changed after an abort" also prove the service
// validated everything before its first mutation.
type memStore struct {
	accounts     map[string]*models.Account
	events       map[int64]*models.Event
	tickets      map[int64]*models.Ticket
	carts        []*models.CartLine
	ledger       []*models.LedgerEntry
	nextEventID  int64
	nextTicketID int64
	nextCartID   int64
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*models.Account),
		events:   make(map[int64]*models.Event),
		tickets:  make(map[int64]*models.Ticket),
	}
}

func (m *memStore) addAccount(address string, role models.Role, parent string, balanceCents int64) *models.Account {
	a := &models.Account{
		Address:      address,
		Username:     "user-" + address,
		Role:         role,
		BalanceCents: balanceCents,
		IsActive:     true,
	}
	if parent != "" {
		a.ParentAddress = &parent
	}
	m.accounts[address] = a
	return a
}

func (m *memStore) addEvent(organizer, name, symbol string, wholesaleCents, maxResaleCents int64) *models.Event {
	m.nextEventID++
	ev := &models.Event{
		ID:               m.nextEventID,
		OrganizerAddress: organizer,
		Name:             name,
		Symbol:           symbol,
		Date:             "2026-10-01",
		WholesaleCents:   wholesaleCents,
		MaxResaleCents:   maxResaleCents,
	}
	m.events[ev.ID] = ev
	return ev
}

func (m *memStore) addTickets(eventID int64, owner string, n int, listedAt *int64) []int64 {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		m.nextTicketID++
		t := &models.Ticket{ID: m.nextTicketID, EventID: eventID, OwnerAddress: owner}
		if listedAt != nil {
			price := *listedAt
			t.IsListed = true
			t.ListPriceCents = &price
		}
		m.tickets[t.ID] = t
		ids = append(ids, t.ID)
	}
	return ids
}

// AccountStore

func (m *memStore) GetByAddress(ctx context.Context, address string) (*models.Account, error) {
	a, ok := m.accounts[address]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*models.Account, error) {
	return m.GetByAddress(ctx, address)
}

func (m *memStore) Debit(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (int64, error) {
	a, ok := m.accounts[address]
	if !ok || a.BalanceCents < amountCents {
		return 0, pgx.ErrNoRows
	}
	a.BalanceCents -= amountCents
	return a.BalanceCents, nil
}

func (m *memStore) Credit(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (int64, error) {
	a, ok := m.accounts[address]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	a.BalanceCents += amountCents
	return a.BalanceCents, nil
}

// AccountAdminStore

func (m *memStore) Create(ctx context.Context, a *models.Account) error {
	for _, existing := range m.accounts {
		if existing.Username == a.Username {
			return &pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"}
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.Address] = a
	return nil
}

func (m *memStore) SetActive(ctx context.Context, address string, active bool) error {
	a, ok := m.accounts[address]
	if !ok {
		return pgx.ErrNoRows
	}
	a.IsActive = active
	return nil
}

func (m *memStore) Delete(ctx context.Context, address string) error {
	if _, ok := m.accounts[address]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.accounts, address)
	return nil
}

func (m *memStore) ListStaff(ctx context.Context, role models.Role, parentAddress string) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range m.accounts {
		if a.Role == role && a.ParentAddress != nil && *a.ParentAddress == parentAddress {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// EventStore

func (m *memStore) CreateEvent(ctx context.Context, tx pgx.Tx, ev *models.Event) error {
	m.nextEventID++
	ev.ID = m.nextEventID
	ev.CreatedAt = time.Now()
	m.events[ev.ID] = ev
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ev, nil
}

// TicketStore

func (m *memStore) MintBatch(ctx context.Context, tx pgx.Tx, eventID int64, owner string, priceCents int64, quantity int) error {
	m.addTickets(eventID, owner, quantity, &priceCents)
	return nil
}

func (m *memStore) sortedTickets() []*models.Ticket {
	out := make([]*models.Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) SelectListedForUpdate(ctx context.Context, tx pgx.Tx, eventID int64, owner string, priceCents *int64, limit int) ([]int64, error) {
	var ids []int64
	for _, t := range m.sortedTickets() {
		if len(ids) == limit {
			break
		}
		if t.EventID != eventID || t.OwnerAddress != owner || !t.IsListed {
			continue
		}
		if priceCents != nil && (t.ListPriceCents == nil || *t.ListPriceCents != *priceCents) {
			continue
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (m *memStore) Transfer(ctx context.Context, tx pgx.Tx, ticketIDs []int64, newOwner string) error {
	for _, id := range ticketIDs {
		t, ok := m.tickets[id]
		if !ok {
			return pgx.ErrNoRows
		}
		t.OwnerAddress = newOwner
		t.IsListed = false
		t.ListPriceCents = nil
	}
	return nil
}

func (m *memStore) MarkListed(ctx context.Context, eventID int64, owner string, priceCents int64, limit int) (int, error) {
	n := 0
	for _, t := range m.sortedTickets() {
		if n == limit {
			break
		}
		if t.EventID != eventID || t.OwnerAddress != owner || t.IsListed {
			continue
		}
		price := priceCents
		t.IsListed = true
		t.ListPriceCents = &price
		n++
	}
	return n, nil
}

func (m *memStore) CountOwnedBy(ctx context.Context, owner string) (int, error) {
	n := 0
	for _, t := range m.tickets {
		if t.OwnerAddress == owner {
			n++
		}
	}
	return n, nil
}

// LedgerStore

func (m *memStore) Append(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	e.ID = int64(len(m.ledger) + 1)
	e.CreatedAt = time.Now()
	m.ledger = append(m.ledger, e)
	return nil
}

func (m *memStore) HasEndpoint(ctx context.Context, address string) (bool, error) {
	for _, e := range m.ledger {
		if e.FromAddress == address || e.ToAddress == address {
			return true, nil
		}
	}
	return false, nil
}

// CartStore

func (m *memStore) Upsert(ctx context.Context, line *models.CartLine) error {
	for _, l := range m.carts {
		if l.BuyerAddress == line.BuyerAddress && l.EventID == line.EventID &&
			l.SellerAddress == line.SellerAddress && l.UnitPriceCents == line.UnitPriceCents {
			l.Quantity += line.Quantity
			*line = *l
			return nil
		}
	}
	m.nextCartID++
	line.ID = m.nextCartID
	line.CreatedAt = time.Now()
	m.carts = append(m.carts, line)
	return nil
}

func (m *memStore) Remove(ctx context.Context, buyerAddress string, lineID int64) error {
	for i, l := range m.carts {
		if l.ID == lineID && l.BuyerAddress == buyerAddress {
			m.carts = append(m.carts[:i], m.carts[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) ListByBuyer(ctx context.Context, buyerAddress string) ([]*models.CartLine, error) {
	var out []*models.CartLine
	for _, l := range m.carts {
		if l.BuyerAddress == buyerAddress {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) Clear(ctx context.Context, tx pgx.Tx, buyerAddress string) error {
	kept := m.carts[:0]
	for _, l := range m.carts {
		if l.BuyerAddress != buyerAddress {
			kept = append(kept, l)
		}
	}
	m.carts = kept
	return nil
}

// eventStoreAdapter bridges the mock's CreateEvent name onto EventStore.
type eventStoreAdapter struct{ *memStore }

func (a eventStoreAdapter) Create(ctx context.Context, tx pgx.Tx, ev *models.Event) error {
	return a.CreateEvent(ctx, tx, ev)
}

func newTestService(store *memStore) *TransferService {
	return NewTransferService(fakeDB{}, store, eventStoreAdapter{store}, store, store, store, slog.New(slog.DiscardHandler))
}

func (m *memStore) entriesOfKind(kind string) []*models.LedgerEntry {
	var out []*models.LedgerEntry
	for _, e := range m.ledger {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) ownedBy(owner string) []*models.Ticket {
	var out []*models.Ticket
	for _, t := range m.sortedTickets() {
		if t.OwnerAddress == owner {
			out = append(out, t)
		}
	}
	return out
}
