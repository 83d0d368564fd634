package deposits

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorelive/backend/internal/models"
)

const depositColumns = `id, user_id, amount_cents, voucher_blob_key, account_holder_name,
	account_number, bank_name, deposit_date, deposit_time, reference_number, comments,
	status, verification_data, verified_by, verified_at, notes, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Create(ctx context.Context, d *models.Deposit) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deposits (id, user_id, amount_cents, voucher_blob_key, account_holder_name,
			account_number, bank_name, deposit_date, deposit_time, reference_number, comments, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, d.ID, d.UserID, d.AmountCents, d.VoucherBlobKey, d.AccountHolderName,
		d.AccountNumber, d.BankName, d.DepositDate, d.DepositTime, d.ReferenceNumber,
		d.Comments, d.Status).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1`, id)
	return scanDeposit(row)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Deposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+depositColumns+` FROM deposits WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanDeposits(rows)
}

func (r *Repository) ListByStatus(ctx context.Context, status string) ([]*models.Deposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+depositColumns+` FROM deposits WHERE status = $1 ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, err
	}
	return scanDeposits(rows)
}

// ListCandidates returns non-rejected deposits with the given amount, the
// coarse pre-filter for duplicate fingerprinting. The case/whitespace
// normalization happens in the service.
func (r *Repository) ListCandidates(ctx context.Context, amountCents int64) ([]*models.Deposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+depositColumns+` FROM deposits
		WHERE amount_cents = $1 AND status IN ($2, $3)
		ORDER BY created_at ASC
	`, amountCents, models.DepositStatusPending, models.DepositStatusApproved)
	if err != nil {
		return nil, err
	}
	return scanDeposits(rows)
}

// TransitionIfPending is the optimistic-concurrency guard: only one
// pending→terminal transition can win. Returns false when the deposit was
// already processed (or does not exist).
func (r *Repository) TransitionIfPending(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, adminID uuid.UUID, notes *string, proof *models.VerificationProof) (bool, error) {
	var proofJSON *string
	if proof != nil {
		raw, err := json.Marshal(proof)
		if err != nil {
			return false, err
		}
		s := string(raw)
		proofJSON = &s
	}
	result, err := tx.Exec(ctx, `
		UPDATE deposits
		SET status = $2, verification_data = $3::jsonb, verified_by = $4, verified_at = now(), notes = $5, updated_at = now()
		WHERE id = $1 AND status = $6
	`, id, status, proofJSON, adminID, notes, models.DepositStatusPending)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// Stats aggregates for the admin dashboard.
type Stats struct {
	PendingCount       int64 `json:"pending_count"`
	ApprovedCount      int64 `json:"approved_count"`
	RejectedCount      int64 `json:"rejected_count"`
	ApprovedTotalCents int64 `json:"approved_total_cents"`
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'approved'), 0)
		FROM deposits
	`).Scan(&s.PendingCount, &s.ApprovedCount, &s.RejectedCount, &s.ApprovedTotalCents)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeposit(row rowScanner) (*models.Deposit, error) {
	var d models.Deposit
	err := row.Scan(&d.ID, &d.UserID, &d.AmountCents, &d.VoucherBlobKey, &d.AccountHolderName,
		&d.AccountNumber, &d.BankName, &d.DepositDate, &d.DepositTime, &d.ReferenceNumber,
		&d.Comments, &d.Status, &d.Verification, &d.VerifiedBy, &d.VerifiedAt, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeposits(rows pgx.Rows) ([]*models.Deposit, error) {
	defer rows.Close()
	var list []*models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}
