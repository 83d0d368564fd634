package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorelive/backend/internal/models"
)

var errInsufficientBalance = errors.New("insufficient balance")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureBalance lazily creates the user's balance row at zero. Safe to call
// on every adjust; the conflict target makes it a no-op after the first time.
func (r *Repository) EnsureBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_balances (user_id, available_cents, currency)
		VALUES ($1, 0, 'MXN')
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// ApplyDelta is the single balance mutation. The WHERE clause makes the
// non-negative invariant part of the same atomic statement: a debit that
// would go negative matches zero rows and the balance is never written.
func (r *Repository) ApplyDelta(ctx context.Context, tx pgx.Tx, userID uuid.UUID, deltaCents int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE user_balances
		SET available_cents = available_cents + $1, updated_at = now()
		WHERE user_id = $2 AND available_cents + $1 >= 0
		RETURNING available_cents
	`, deltaCents, userID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errInsufficientBalance
	}
	return newBalance, err
}

// RecordEntry inserts the audit-trail row for an applied delta, inside the
// same transaction so balance and trail never diverge.
func (r *Repository) RecordEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO balance_ledger (id, user_id, delta_cents, balance_after_cents, reason, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.UserID, e.DeltaCents, e.BalanceAfterCents, e.Reason, e.RefID).Scan(&e.CreatedAt)
}

// GetBalance reads the current balance. Missing row means zero (the row is
// created lazily on first mutation).
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var b models.UserBalance
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, available_cents, currency, updated_at
		FROM user_balances WHERE user_id = $1
	`, userID).Scan(&b.UserID, &b.AvailableCents, &b.Currency, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.UserBalance{UserID: userID, AvailableCents: 0, Currency: "MXN"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListEntries returns the audit trail for one user, newest first.
func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, delta_cents, balance_after_cents, reason, ref_id, created_at
		FROM balance_ledger WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.DeltaCents, &e.BalanceAfterCents, &e.Reason, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}
