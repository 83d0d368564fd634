package banks

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorelive/backend/internal/models"
)

// ErrNotFound is returned when a bank account id does not exist for the user.
var ErrNotFound = errors.New("bank account not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create registers a payout destination. Setting is_default clears any
// previous default for the user in the same transaction, keeping the
// at-most-one-default invariant.
func (r *Repository) Create(ctx context.Context, a *models.BankAccount) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if a.IsDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE bank_accounts SET is_default = FALSE WHERE user_id = $1 AND is_default
		`, a.UserID); err != nil {
			return err
		}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO bank_accounts (id, user_id, account_holder, account_number, bank_name, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, a.ID, a.UserID, a.AccountHolder, a.AccountNumber, a.BankName, a.IsDefault).Scan(&a.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetOwned returns the account only if it belongs to userID.
func (r *Repository) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.BankAccount, error) {
	var a models.BankAccount
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, account_holder, account_number, bank_name, is_default, created_at
		FROM bank_accounts WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&a.ID, &a.UserID, &a.AccountHolder, &a.AccountNumber, &a.BankName, &a.IsDefault, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.BankAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, account_holder, account_number, bank_name, is_default, created_at
		FROM bank_accounts WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.BankAccount
	for rows.Next() {
		var a models.BankAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountHolder, &a.AccountNumber, &a.BankName, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
