package withdrawals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorelive/backend/internal/models"
)

const withdrawalColumns = `id, user_id, amount_cents, bank_account_id, status, notes,
	processed_by, processed_at, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Create(ctx context.Context, wd *models.Withdrawal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO withdrawals (id, user_id, amount_cents, bank_account_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, wd.ID, wd.UserID, wd.AmountCents, wd.BankAccountID, wd.Status).Scan(&wd.CreatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	return scanWithdrawal(row)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanWithdrawals(rows)
}

func (r *Repository) ListByStatus(ctx context.Context, status string) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE status = $1 ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, err
	}
	return scanWithdrawals(rows)
}

// TransitionIfPending flips a pending withdrawal to its terminal (or
// approved) state. Zero rows affected means another transition already won.
func (r *Repository) TransitionIfPending(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, adminID uuid.UUID, notes *string) (bool, error) {
	result, err := tx.Exec(ctx, `
		UPDATE withdrawals
		SET status = $2, processed_by = $3, processed_at = now(), notes = $4
		WHERE id = $1 AND status = $5
	`, id, status, adminID, notes, models.WithdrawalStatusPending)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// Stats aggregates for the admin dashboard.
type Stats struct {
	PendingCount        int64 `json:"pending_count"`
	CompletedCount      int64 `json:"completed_count"`
	CompletedTotalCents int64 `json:"completed_total_cents"`
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'completed'), 0)
		FROM withdrawals
	`).Scan(&s.PendingCount, &s.CompletedCount, &s.CompletedTotalCents)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var wd models.Withdrawal
	err := row.Scan(&wd.ID, &wd.UserID, &wd.AmountCents, &wd.BankAccountID, &wd.Status,
		&wd.Notes, &wd.ProcessedBy, &wd.ProcessedAt, &wd.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wd, nil
}

func scanWithdrawals(rows pgx.Rows) ([]*models.Withdrawal, error) {
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		wd, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, wd)
	}
	return list, rows.Err()
}
