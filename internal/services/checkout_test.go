package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stagepass/backend/internal/models"
)

// checkoutFixture seeds a reseller holding four units listed at 1800 and a
// customer with 10000 cents to spend.
func checkoutFixture(t *testing.T) (*memStore, *TransferService, *models.Event, *models.Account, *models.Account) {
	t.Helper()
	store := newMemStore()
	org := store.addAccount("0xORG", models.RoleOrganizer, models.AdminAddress, 0)
	res := store.addAccount("0xRES", models.RoleReseller, org.Address, 0)
	cust := store.addAccount("0xCUST", models.RoleCustomer, "", 10000)
	ev := store.addEvent(org.Address, "Summer Fest", "FEST", 500, 2000)
	resale := int64(1800)
	store.addTickets(ev.ID, res.Address, 4, &resale)
	return store, newTestService(store), ev, res, cust
}

func TestAddCartLineMergesDuplicates(t *testing.T) {
	_, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	first, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 2)
	if err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	second, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 1)
	if err != nil {
		t.Fatalf("AddCartLine again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate tuple created new line %d, want merge into %d", second.ID, first.ID)
	}
	if second.Quantity != 3 {
		t.Fatalf("merged quantity = %d, want 3", second.Quantity)
	}

	lines, total, err := svc.CartContents(ctx, cust)
	if err != nil {
		t.Fatalf("CartContents: %v", err)
	}
	if len(lines) != 1 || total != 5400 {
		t.Fatalf("got %d lines, total %d; want 1 line totalling 5400", len(lines), total)
	}
}

func TestAddCartLineValidation(t *testing.T) {
	_, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("zero quantity: got %v", err)
	}
	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, -1, 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative price: got %v", err)
	}
	if _, err := svc.AddCartLine(ctx, cust, 999, res.Address, 1800, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown event: got %v", err)
	}
}

func TestRemoveCartLine(t *testing.T) {
	_, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	line, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 2)
	if err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	if err := svc.RemoveCartLine(ctx, cust, line.ID); err != nil {
		t.Fatalf("RemoveCartLine: %v", err)
	}
	if err := svc.RemoveCartLine(ctx, cust, line.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: got %v, want ErrNotFound", err)
	}
}

func TestCheckoutSettlesWholeCart(t *testing.T) {
	store, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 3); err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	orderID, total, err := svc.Checkout(ctx, cust)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if total != 5400 {
		t.Fatalf("total = %d, want 5400", total)
	}
	if got := store.accounts[cust.Address].BalanceCents; got != 4600 {
		t.Fatalf("buyer balance = %d, want 4600", got)
	}
	if got := store.accounts[res.Address].BalanceCents; got != 5400 {
		t.Fatalf("seller balance = %d, want 5400", got)
	}

	if owned := store.ownedBy(cust.Address); len(owned) != 3 {
		t.Fatalf("buyer owns %d tickets, want 3", len(owned))
	}
	remaining := store.ownedBy(res.Address)
	if len(remaining) != 1 || !remaining[0].IsListed {
		t.Fatalf("seller should keep one listed unit, got %+v", remaining)
	}

	entries := store.entriesOfKind(models.EntryPurchase)
	if len(entries) != 3 {
		t.Fatalf("got %d purchase entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.TxID != orderID || e.AmountCents != 1800 || e.TicketID == nil {
			t.Fatalf("unexpected purchase entry: %+v", e)
		}
		if e.EventLabel != ev.Name {
			t.Fatalf("entry label = %q, want %q", e.EventLabel, ev.Name)
		}
	}

	if lines, _, _ := svc.CartContents(ctx, cust); len(lines) != 0 {
		t.Fatal("cart not cleared after checkout")
	}
}

func TestCheckoutAbortsOnStockShortage(t *testing.T) {
	store, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 5); err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	if _, _, err := svc.Checkout(ctx, cust); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}

	if store.accounts[cust.Address].BalanceCents != 10000 || store.accounts[res.Address].BalanceCents != 0 {
		t.Fatal("aborted checkout moved money")
	}
	if len(store.ownedBy(cust.Address)) != 0 {
		t.Fatal("aborted checkout moved tickets")
	}
	if len(store.ledger) != 0 {
		t.Fatal("aborted checkout wrote ledger entries")
	}
	if lines, _, _ := svc.CartContents(ctx, cust); len(lines) != 1 {
		t.Fatal("aborted checkout emptied the cart")
	}
}

func TestCheckoutAbortsOnInsufficientFunds(t *testing.T) {
	store, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()
	store.accounts[cust.Address].BalanceCents = 1000

	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 3); err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	if _, _, err := svc.Checkout(ctx, cust); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if store.accounts[cust.Address].BalanceCents != 1000 {
		t.Fatal("aborted checkout moved money")
	}
	if lines, _, _ := svc.CartContents(ctx, cust); len(lines) != 1 {
		t.Fatal("aborted checkout emptied the cart")
	}
}

func TestCheckoutRequiresExactStagedPrice(t *testing.T) {
	store, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	// Tickets are listed at 1800; a line staged at 1700 matches nothing,
	// so the whole cart fails rather than settling at a different price.
	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1700, 1); err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	if _, _, err := svc.Checkout(ctx, cust); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}
	if len(store.ownedBy(cust.Address)) != 0 {
		t.Fatal("mispriced checkout moved tickets")
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	_, svc, _, _, cust := checkoutFixture(t)
	if _, _, err := svc.Checkout(context.Background(), cust); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("got %v, want ErrEmptyCart", err)
	}
}

func TestCheckoutMultipleLinesSingleOrder(t *testing.T) {
	store, svc, ev, res, cust := checkoutFixture(t)
	ctx := context.Background()

	other := store.addAccount("0xOTHER", models.RoleReseller, "0xORG", 0)
	resale := int64(1500)
	store.addTickets(ev.ID, other.Address, 2, &resale)

	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 2); err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}
	if _, err := svc.AddCartLine(ctx, cust, ev.ID, other.Address, 1500, 2); err != nil {
		t.Fatalf("AddCartLine: %v", err)
	}

	orderID, total, err := svc.Checkout(ctx, cust)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if total != 6600 {
		t.Fatalf("total = %d, want 6600", total)
	}
	if got := store.accounts[res.Address].BalanceCents; got != 3600 {
		t.Fatalf("first seller balance = %d, want 3600", got)
	}
	if got := store.accounts[other.Address].BalanceCents; got != 3000 {
		t.Fatalf("second seller balance = %d, want 3000", got)
	}

	entries := store.entriesOfKind(models.EntryPurchase)
	if len(entries) != 4 {
		t.Fatalf("got %d purchase entries, want 4", len(entries))
	}
	for _, e := range entries {
		if e.TxID != orderID {
			t.Fatalf("entries from one checkout must share a tx id, got %s and %s", e.TxID, orderID)
		}
	}
}

// TestMoneyConservation drives a full season through the engine and checks
// that balances only ever change by what entered or left through the bank.
func TestMoneyConservation(t *testing.T) {
	store := newMemStore()
	org := store.addAccount("0xORG", models.RoleOrganizer, models.AdminAddress, 0)
	res := store.addAccount("0xRES", models.RoleReseller, org.Address, 0)
	cust := store.addAccount("0xCUST", models.RoleCustomer, "", 0)
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.TopUp(ctx, res, 5000); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.TopUp(ctx, cust, 10000); err != nil {
		t.Fatal(err)
	}
	ev, err := svc.CreateEvent(ctx, org, "Summer Fest", "FEST", "2026-10-01", 500, 2000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AcquireWholesale(ctx, res, ev.ID, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ListForResale(ctx, res, ev.ID, 4, 1800); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddCartLine(ctx, cust, ev.ID, res.Address, 1800, 3); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Checkout(ctx, cust); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Withdraw(ctx, org, 1500); err != nil {
		t.Fatal(err)
	}

	var inSystem int64
	for _, a := range store.accounts {
		inSystem += a.BalanceCents
	}
	// 5000 + 10000 in via top-ups, 1500 out via withdrawal.
	if inSystem != 13500 {
		t.Fatalf("system holds %d cents, want 13500", inSystem)
	}

	var bankNet int64
	for _, e := range store.ledger {
		if e.FromAddress == models.BankAddress {
			bankNet += e.AmountCents
		}
		if e.ToAddress == models.BankAddress {
			bankNet -= e.AmountCents
		}
	}
	if bankNet != inSystem {
		t.Fatalf("ledger bank flow %d does not match balances %d", bankNet, inSystem)
	}
}
