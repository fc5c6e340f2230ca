package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/stagepass/backend/internal/authz"
	"github.com/stagepass/backend/internal/models"
)

func newAccountService(store *memStore) *AccountService {
	return NewAccountService(store, store, store, slog.New(slog.DiscardHandler))
}

func TestCreateStaff(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	svc := newAccountService(store)

	acc, err := svc.CreateStaff(context.Background(), admin, "venue-east", "hunter2", models.RoleOrganizer)
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	if !strings.HasPrefix(acc.Address, "0x") || len(acc.Address) != 42 {
		t.Fatalf("address = %q, want 0x plus 40 hex chars", acc.Address)
	}
	if acc.ParentAddress == nil || *acc.ParentAddress != admin.Address {
		t.Fatalf("parent = %v, want %s", acc.ParentAddress, admin.Address)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("hunter2")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if !acc.IsActive {
		t.Fatal("new staff account should start active")
	}
}

func TestCreateStaffDuplicateUsername(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	svc := newAccountService(store)
	ctx := context.Background()

	if _, err := svc.CreateStaff(ctx, admin, "venue-east", "hunter2", models.RoleOrganizer); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateStaff(ctx, admin, "venue-east", "other", models.RoleOrganizer); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("got %v, want ErrDuplicateUsername", err)
	}
}

func TestCreateStaffWeakPassword(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	svc := newAccountService(store)

	if _, err := svc.CreateStaff(context.Background(), admin, "venue-east", "abc", models.RoleOrganizer); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("got %v, want ErrWeakPassword", err)
	}
}

func TestCreateStaffTierRules(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	org := store.addAccount("0xORG", models.RoleOrganizer, admin.Address, 0)
	svc := newAccountService(store)
	ctx := context.Background()

	var denial *authz.Denial
	if _, err := svc.CreateStaff(ctx, admin, "x1", "hunter2", models.RoleReseller); !errors.As(err, &denial) {
		t.Fatalf("admin creating reseller: got %v, want denial", err)
	}
	if _, err := svc.CreateStaff(ctx, org, "x2", "hunter2", models.RoleOrganizer); !errors.As(err, &denial) {
		t.Fatalf("organizer creating organizer: got %v, want denial", err)
	}
	if _, err := svc.CreateStaff(ctx, org, "x3", "hunter2", models.RoleReseller); err != nil {
		t.Fatalf("organizer creating reseller: %v", err)
	}
}

func TestToggleActive(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	org := store.addAccount("0xORG", models.RoleOrganizer, admin.Address, 0)
	svc := newAccountService(store)
	ctx := context.Background()

	acc, err := svc.ToggleActive(ctx, admin, org.Address)
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if acc.IsActive {
		t.Fatal("account should be suspended")
	}
	acc, err = svc.ToggleActive(ctx, admin, org.Address)
	if err != nil {
		t.Fatalf("ToggleActive back: %v", err)
	}
	if !acc.IsActive {
		t.Fatal("account should be active again")
	}
}

func TestToggleActiveOutsideHierarchy(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	orgA := store.addAccount("0xORG_A", models.RoleOrganizer, admin.Address, 0)
	orgB := store.addAccount("0xORG_B", models.RoleOrganizer, admin.Address, 0)
	resB := store.addAccount("0xRES_B", models.RoleReseller, orgB.Address, 0)
	svc := newAccountService(store)

	var denial *authz.Denial
	if _, err := svc.ToggleActive(context.Background(), orgA, resB.Address); !errors.As(err, &denial) {
		t.Fatalf("got %v, want denial", err)
	}
	if store.accounts[resB.Address].IsActive != true {
		t.Fatal("denied toggle changed the flag")
	}
}

func TestDeleteCleanAccount(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	org := store.addAccount("0xORG", models.RoleOrganizer, admin.Address, 0)
	svc := newAccountService(store)

	if err := svc.Delete(context.Background(), admin, org.Address); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.accounts[org.Address]; ok {
		t.Fatal("account still present after delete")
	}
}

func TestDeleteBlockedByInventory(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	org := store.addAccount("0xORG", models.RoleOrganizer, admin.Address, 0)
	ev := store.addEvent(org.Address, "Summer Fest", "FEST", 500, 2000)
	store.addTickets(ev.ID, org.Address, 1, nil)
	svc := newAccountService(store)

	if err := svc.Delete(context.Background(), admin, org.Address); !errors.Is(err, ErrDeleteBlocked) {
		t.Fatalf("got %v, want ErrDeleteBlocked", err)
	}
	acc, ok := store.accounts[org.Address]
	if !ok {
		t.Fatal("account was removed despite holding inventory")
	}
	if acc.IsActive {
		t.Fatal("blocked delete should suspend the account")
	}
}

func TestDeleteBlockedByLedgerHistory(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	org := store.addAccount("0xORG", models.RoleOrganizer, admin.Address, 0)
	store.ledger = append(store.ledger, &models.LedgerEntry{
		FromAddress: models.BankAddress,
		ToAddress:   org.Address,
		AmountCents: 500,
		Kind:        models.EntryTopUp,
	})
	svc := newAccountService(store)

	if err := svc.Delete(context.Background(), admin, org.Address); !errors.Is(err, ErrDeleteBlocked) {
		t.Fatalf("got %v, want ErrDeleteBlocked", err)
	}
	if _, ok := store.accounts[org.Address]; !ok {
		t.Fatal("account with ledger history must survive as a row")
	}
}

func TestStaffListing(t *testing.T) {
	store := newMemStore()
	admin := store.addAccount(models.AdminAddress, models.RoleAdmin, "", 0)
	org := store.addAccount("0xORG", models.RoleOrganizer, admin.Address, 0)
	store.addAccount("0xRES_1", models.RoleReseller, org.Address, 0)
	store.addAccount("0xRES_2", models.RoleReseller, org.Address, 0)
	svc := newAccountService(store)
	ctx := context.Background()

	staff, err := svc.Staff(ctx, admin)
	if err != nil {
		t.Fatalf("Staff(admin): %v", err)
	}
	if len(staff) != 1 || staff[0].Address != org.Address {
		t.Fatalf("admin staff = %+v, want just the organizer", staff)
	}

	staff, err = svc.Staff(ctx, org)
	if err != nil {
		t.Fatalf("Staff(organizer): %v", err)
	}
	if len(staff) != 2 {
		t.Fatalf("organizer staff count = %d, want 2", len(staff))
	}
}
