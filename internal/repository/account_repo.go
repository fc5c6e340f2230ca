package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagepass/backend/internal/models"
)

const accountColumns = `address, username, password_hash, balance_cents, role, parent_address, is_active, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.Address, &a.Username, &a.PasswordHash, &a.BalanceCents, &a.Role, &a.ParentAddress, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (address, username, password_hash, balance_cents, role, parent_address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, a.Address, a.Username, a.PasswordHash, a.BalanceCents, a.Role, a.ParentAddress, a.IsActive).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByAddress(ctx context.Context, address string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE address = $1
	`, address))
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE username = $1
	`, username))
}

// GetForUpdate locks the account row. Call within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address string) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE address = $1 FOR UPDATE
	`, address))
}

// Debit atomically deducts amount if the balance covers it. The WHERE
// clause enforces the non-negative balance invariant even if a caller
// skipped the locked pre-check.
func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents - $1, updated_at = now()
		WHERE address = $2 AND balance_cents >= $1
		RETURNING balance_cents
	`, amountCents, address).Scan(&newBalance)
	return newBalance, err
}

// Credit adds amount to the account and returns the new balance.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, address string, amountCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE address = $2
		RETURNING balance_cents
	`, amountCents, address).Scan(&newBalance)
	return newBalance, err
}

func (r *AccountRepo) SetActive(ctx context.Context, address string, active bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET is_active = $2, updated_at = now() WHERE address = $1
	`, address, active)
	return err
}

func (r *AccountRepo) UpdatePassword(ctx context.Context, address, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = now() WHERE address = $1
	`, address, passwordHash)
	return err
}

func (r *AccountRepo) Delete(ctx context.Context, address string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE address = $1`, address)
	return err
}

// ListStaff returns accounts of the given role created by parentAddress,
// newest first.
func (r *AccountRepo) ListStaff(ctx context.Context, role models.Role, parentAddress string) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE role = $1 AND parent_address = $2
		ORDER BY created_at DESC
	`, role, parentAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
