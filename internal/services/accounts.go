package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/stagepass/backend/internal/authz"
	"github.com/stagepass/backend/internal/models"
)

// AccountAdminStore is what account administration needs from the account
// repository beyond the transfer-engine surface.
type AccountAdminStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByAddress(ctx context.Context, address string) (*models.Account, error)
	SetActive(ctx context.Context, address string, active bool) error
	Delete(ctx context.Context, address string) error
	ListStaff(ctx context.Context, role models.Role, parentAddress string) ([]*models.Account, error)
}

type InventoryCounter interface {
	CountOwnedBy(ctx context.Context, owner string) (int, error)
}

type LedgerProbe interface {
	HasEndpoint(ctx context.Context, address string) (bool, error)
}

// AccountService manages the staff hierarchy: admins create organizers,
// organizers create resellers, and each manager can suspend or remove
// only accounts under them.
type AccountService struct {
	accounts AccountAdminStore
	tickets  InventoryCounter
	ledger   LedgerProbe
	log      *slog.Logger
}

func NewAccountService(accounts AccountAdminStore, tickets InventoryCounter, ledger LedgerProbe, log *slog.Logger) *AccountService {
	if log == nil {
		log = slog.Default()
	}
	return &AccountService{accounts: accounts, tickets: tickets, ledger: ledger, log: log}
}

// CreateStaff creates a staff account one tier below the actor. The new
// account is parented to the actor, which scopes later management.
func (s *AccountService) CreateStaff(ctx context.Context, actor *models.Account, username, password string, role models.Role) (*models.Account, error) {
	if err := authz.Authorize(authz.Request{Actor: actor, Action: authz.ActionCreateStaff, StaffRole: role}); err != nil {
		return nil, err
	}
	if len(password) < 4 {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	address, err := models.NewAddress()
	if err != nil {
		return nil, err
	}
	parent := actor.Address
	acc := &models.Account{
		Address:       address,
		Username:      username,
		PasswordHash:  string(hash),
		Role:          role,
		ParentAddress: &parent,
		IsActive:      true,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	s.log.Info("staff account created", "address", acc.Address, "role", acc.Role, "parent", parent)
	return acc, nil
}

// ToggleActive flips the target's active flag. Suspended accounts keep
// their balance and inventory but fail every authorization check.
func (s *AccountService) ToggleActive(ctx context.Context, actor *models.Account, targetAddress string) (*models.Account, error) {
	target, err := s.accounts.GetByAddress(ctx, targetAddress)
	if err != nil {
		return nil, notFound(err)
	}
	if err := authz.Authorize(authz.Request{Actor: actor, Action: authz.ActionToggleAccount, TargetAccount: target}); err != nil {
		return nil, err
	}
	if err := s.accounts.SetActive(ctx, targetAddress, !target.IsActive); err != nil {
		return nil, err
	}
	target.IsActive = !target.IsActive
	return target, nil
}

// Delete removes the target account outright, but only when it holds no
// tickets and appears nowhere in the ledger. Otherwise the account is
// deactivated instead and ErrDeleteBlocked reports the downgrade, so
// historical entries always resolve to a real row.
func (s *AccountService) Delete(ctx context.Context, actor *models.Account, targetAddress string) error {
	target, err := s.accounts.GetByAddress(ctx, targetAddress)
	if err != nil {
		return notFound(err)
	}
	if err := authz.Authorize(authz.Request{Actor: actor, Action: authz.ActionDeleteAccount, TargetAccount: target}); err != nil {
		return err
	}

	owned, err := s.tickets.CountOwnedBy(ctx, targetAddress)
	if err != nil {
		return err
	}
	inLedger, err := s.ledger.HasEndpoint(ctx, targetAddress)
	if err != nil {
		return err
	}
	if owned > 0 || inLedger {
		if err := s.accounts.SetActive(ctx, targetAddress, false); err != nil {
			return err
		}
		s.log.Info("delete downgraded to suspension", "address", targetAddress, "tickets_owned", owned, "in_ledger", inLedger)
		return ErrDeleteBlocked
	}
	if err := s.accounts.Delete(ctx, targetAddress); err != nil {
		return err
	}
	s.log.Info("account deleted", "address", targetAddress)
	return nil
}

// Staff lists the accounts the actor manages directly.
func (s *AccountService) Staff(ctx context.Context, actor *models.Account) ([]*models.Account, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return s.accounts.ListStaff(ctx, models.RoleOrganizer, actor.Address)
	case models.RoleOrganizer:
		return s.accounts.ListStaff(ctx, models.RoleReseller, actor.Address)
	default:
		return nil, &authz.Denial{Action: authz.ActionCreateStaff, Reason: authz.ReasonRoleForbidden}
	}
}
